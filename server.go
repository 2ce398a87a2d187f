// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package opaque

import (
	"github.com/vivianlazaras/verdant/internal/ake"
	"github.com/vivianlazaras/verdant/internal/curve"
	"github.com/vivianlazaras/verdant/internal/oprf"
)

// Server runs the server half of registration and login against a
// ServerSetup and the caller's per-username ClientRecord storage.
type Server struct {
	setup *ServerSetup
}

// NewServer binds a Server to a ServerSetup, after verifying the setup
// matches the cipher suite this binary was built against.
func NewServer(setup *ServerSetup) (*Server, error) {
	if err := setup.Verify(); err != nil {
		return nil, err
	}

	return &Server{setup: setup}, nil
}

func (s *Server) oprfKey(credentialIdentifier []byte) *curve.Scalar {
	return oprf.DeriveKey(s.setup.Suite.Group, s.setup.OPRFSeed, credentialIdentifier)
}

// StartRegistration evaluates the client's blinded password under that
// user's per-credential OPRF key and returns the registration response.
func (s *Server) StartRegistration(
	req *RegistrationRequest, credentialIdentifier []byte,
) (*RegistrationResponse, error) {
	key := s.oprfKey(credentialIdentifier)

	evaluated, err := oprf.Evaluate(s.setup.Suite.Group, key, req.BlindedMessage)
	if err != nil {
		return nil, ErrInvalidCredentialResponse
	}

	return &RegistrationResponse{
		EvaluatedMessage: evaluated,
		ServerPublicKey:  s.setup.ServerPublicKey,
	}, nil
}

// FinishRegistration stores nothing itself (storage is the caller's
// responsibility, see server/store.go) — it exists only for symmetry with
// the client API and to validate the upload shape.
func (s *Server) FinishRegistration(upload *RegistrationUpload) (*ClientRecord, error) {
	if upload.ClientPublicKey == nil || upload.Envelope == nil {
		return nil, ErrInvalidCredentialResponse
	}

	return &ClientRecord{
		ClientPublicKey: upload.ClientPublicKey,
		Envelope:        upload.Envelope,
	}, nil
}

// ServerLoginState is the ephemeral per-session state threaded between
// StartLogin and FinishLogin, keyed by the caller (server/sessions.go uses
// a UUID). Single-use, like the client-side login state.
type ServerLoginState struct {
	ake      *ake.Server
	consumed bool
}

// StartLogin evaluates the client's blinded password, runs the server side
// of 3DH against the record's (or fake record's) static public key, and
// returns the credential response to send back.
func (s *Server) StartLogin(
	record *ClientRecord, req *CredentialRequest,
) (*ServerLoginState, *CredentialResponse, error) {
	key := s.oprfKey(record.CredentialIdentifier)

	evaluated, err := oprf.Evaluate(s.setup.Suite.Group, key, req.BlindedMessage)
	if err != nil {
		return nil, nil, ErrInvalidCredentialResponse
	}

	akeServer := ake.NewServer(s.setup.Suite.Group, s.setup.Suite.KDF, RandomBytes)
	serverMac := akeServer.Response(
		s.setup.ServerSecretKey,
		req.ClientKeyshare, record.ClientPublicKey,
		req.ClientNonce,
	)
	nonce, keyshare := akeServer.NonceAndKeyshare()

	return &ServerLoginState{ake: akeServer}, &CredentialResponse{
		EvaluatedMessage: evaluated,
		Envelope:         record.Envelope,
		ServerNonce:      nonce,
		ServerKeyshare:   keyshare,
		ServerMac:        serverMac,
	}, nil
}

// FinishLogin verifies the client's confirmation MAC and returns the
// shared session key. This is the server's defense-in-depth check: a
// correctly-behaving client will already have rejected a wrong password in
// its own FinishLogin and never reach this call.
func (s *Server) FinishLogin(state *ServerLoginState, finalization *CredentialFinalization) ([]byte, error) {
	if state.consumed {
		return nil, ErrStateConsumed
	}
	state.consumed = true

	if !state.ake.Finalize(finalization.ClientMac) {
		return nil, ErrServerAuthenticationFailed
	}

	return state.ake.SessionKey(), nil
}
