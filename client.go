package opaque

import (
	"github.com/vivianlazaras/verdant/internal/ake"
	"github.com/vivianlazaras/verdant/internal/curve"
	"github.com/vivianlazaras/verdant/internal/keyrecovery"
	"github.com/vivianlazaras/verdant/internal/oprf"
)

// Client runs the client half of registration and login. A Client value
// carries no per-session state; StartRegistration/StartLogin instead return
// a state value the caller threads through to the matching Finish call.
type Client struct {
	suite          Suite
	clientIdentity []byte
}

// NewClient returns a Client bound to the default suite.
func NewClient(clientIdentity []byte) *Client {
	return &Client{suite: DefaultSuite, clientIdentity: clientIdentity}
}

// ClientRegistrationState is the state threaded between StartRegistration
// and FinishRegistration. It is single-use: a second call to
// FinishRegistration with the same state returns ErrStateConsumed.
type ClientRegistrationState struct {
	password []byte
	blind    *curve.Scalar
	consumed bool
}

// StartRegistration blinds password and returns the request to send to the
// server.
func (c *Client) StartRegistration(password []byte) (*ClientRegistrationState, *RegistrationRequest) {
	blind, blinded := oprf.Blind(c.suite.Group, password)

	return &ClientRegistrationState{password: password, blind: blind},
		&RegistrationRequest{BlindedMessage: blinded}
}

// FinishRegistration finalizes the OPRF exchange, derives the client's
// static AKE keypair from the randomized password, and seals a fresh
// envelope for the server to store.
func (c *Client) FinishRegistration(
	state *ClientRegistrationState, resp *RegistrationResponse,
) (*RegistrationUpload, error) {
	if state.consumed {
		return nil, ErrStateConsumed
	}
	state.consumed = true

	randomizedPwd := oprf.Finalize(c.suite.Group, state.password, state.blind, resp.EvaluatedMessage)

	_, clientPublicKey, envelope := keyrecovery.Seal(c.suite.Group, randomizedPwd, RandomBytes)

	return &RegistrationUpload{ClientPublicKey: clientPublicKey, Envelope: envelope}, nil
}

// ClientLoginState is the state threaded between StartLogin and
// FinishLogin. Single-use, like ClientRegistrationState.
type ClientLoginState struct {
	password []byte
	blind    *curve.Scalar
	ake      *ake.Client
	consumed bool
}

// StartLogin blinds password and generates the client's 3DH ephemeral
// keyshare, returning the combined credential request.
func (c *Client) StartLogin(password []byte) (*ClientLoginState, *CredentialRequest) {
	blind, blinded := oprf.Blind(c.suite.Group, password)
	akeClient := ake.NewClient(c.suite.Group, c.suite.KDF, RandomBytes)
	nonce, keyshare := akeClient.NonceAndKeyshare()

	return &ClientLoginState{password: password, blind: blind, ake: akeClient},
		&CredentialRequest{BlindedMessage: blinded, ClientNonce: nonce, ClientKeyshare: keyshare}
}

// FinishLogin recovers the client's static key from the envelope, verifying
// its auth tag (this is where a wrong password is detected, before any AKE
// work happens on an incorrect key), then runs 3DH to completion against
// the server's response and verifies the server's confirmation MAC.
func (c *Client) FinishLogin(
	state *ClientLoginState, serverPublicKey *curve.Element, resp *CredentialResponse,
) (sessionKey []byte, finalization *CredentialFinalization, err error) {
	if state.consumed {
		return nil, nil, ErrStateConsumed
	}
	state.consumed = true

	randomizedPwd := oprf.Finalize(c.suite.Group, state.password, state.blind, resp.EvaluatedMessage)

	clientSecretKey, _, err := keyrecovery.Open(c.suite.Group, randomizedPwd, resp.Envelope)
	if err != nil {
		return nil, nil, ErrAuthenticationFailed
	}

	key, clientMac, ok := state.ake.Finalize(
		clientSecretKey, serverPublicKey,
		resp.ServerKeyshare, resp.ServerNonce, resp.ServerMac,
	)
	if !ok {
		return nil, nil, ErrAuthenticationFailed
	}

	return key, &CredentialFinalization{ClientMac: clientMac}, nil
}
