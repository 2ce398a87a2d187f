// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package opaque implements a mutually-authenticated OPAQUE-family aPAKE:
// registration lets a client establish a password-derived credential with a
// server that never observes the password itself, and login recovers a
// shared session key from that credential via a 3DH key exchange. Protocol
// background: https://datatracker.ietf.org/doc/draft-irtf-cfrg-opaque
package opaque

import (
	"crypto/rand"
	"errors"

	"github.com/bytemare/ecc"

	"github.com/vivianlazaras/verdant/internal/curve"
	"github.com/vivianlazaras/verdant/internal/kdf"
	"github.com/vivianlazaras/verdant/internal/keyrecovery"
)

// Envelope aliases the envelope layer's type so callers never need to
// import internal/keyrecovery directly.
type Envelope = keyrecovery.Envelope

// Suite fixes the cipher suite this deployment uses: Ristretto255 for both
// the OPRF and the AKE groups, SHA-512 for the AKE transcript KDF/MAC, and
// an identity key-stretching function (the password is already assumed to
// carry enough entropy that the deployment does not add its own KSF delay;
// a slow KSF can be layered in by the caller before Register/Login if a
// given deployment needs it).
type Suite struct {
	Group curve.Group
	KDF   kdf.KDF
}

// DefaultSuite is the only suite this module exposes, matching spec.md's
// C1: Ristretto255 group for both OPRF and AKE, 3DH key exchange.
var DefaultSuite = Suite{Group: ecc.Ristretto255, KDF: kdf.SHA512}

// ErrSuiteMismatch is returned by ServerSetup.Verify when the setup's group
// differs from DefaultSuite's. Only the group is compared, and the on-disk
// setup format (server/store.go) records no suite, so a loaded setup always
// carries DefaultSuite.
var ErrSuiteMismatch = errors.New("opaque: server setup does not match the configured cipher suite")

const (
	oprfSeedLength = 64
)

// RandomBytes returns n cryptographically random bytes. Exported so callers
// assembling wire messages and the envelope layer share one source of
// randomness instead of each reaching for crypto/rand directly.
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}

	return b
}

// ServerSetup is the server's long-term key material: its static AKE
// keypair and the seed used to derive every user's per-credential OPRF key.
// It is generated once per deployment and persisted (see server/store.go).
type ServerSetup struct {
	Suite            Suite
	ServerIdentity   []byte
	ServerSecretKey  *curve.Scalar
	ServerPublicKey  *curve.Element
	OPRFSeed         []byte
}

// SetupServer generates a fresh ServerSetup under the default suite.
func SetupServer(serverIdentity []byte) *ServerSetup {
	sk := curve.RandomScalar(DefaultSuite.Group)
	pk := curve.ScalarBaseMult(DefaultSuite.Group, sk)

	return &ServerSetup{
		Suite:           DefaultSuite,
		ServerIdentity:  serverIdentity,
		ServerSecretKey: sk,
		ServerPublicKey: pk,
		OPRFSeed:        RandomBytes(oprfSeedLength),
	}
}

// Verify rejects a ServerSetup that does not match the suite this binary
// was built against.
func (s *ServerSetup) Verify() error {
	if s.Suite.Group != DefaultSuite.Group {
		return ErrSuiteMismatch
	}

	return nil
}

// ClientRecord is what the server stores per registered username: the
// opaque registration record plus the credential identifier used to salt
// that user's OPRF key, kept distinct from the username itself so renaming
// a username never requires re-registration.
type ClientRecord struct {
	CredentialIdentifier []byte
	ClientIdentity       []byte
	Envelope             *Envelope
	ClientPublicKey      *curve.Element
}

// GetFakeRecord synthesizes a plausible-looking ClientRecord for a username
// that was never registered, so StartLogin has uniform shape and timing
// whether or not the account exists. This defends against username
// enumeration, mirroring the teacher library's own GetFakeRecord.
func GetFakeRecord(credentialIdentifier []byte) *ClientRecord {
	sk := curve.RandomScalar(DefaultSuite.Group)
	pk := curve.ScalarBaseMult(DefaultSuite.Group, sk)

	return &ClientRecord{
		CredentialIdentifier: credentialIdentifier,
		Envelope: &Envelope{
			Nonce:   RandomBytes(32),
			AuthTag: RandomBytes(64),
		},
		ClientPublicKey: pk,
	}
}
