package opaque

import "errors"

// Sentinel errors returned by the protocol engines in client.go/server.go.
// client.Error (see client/errors.go) wraps these under KindOpaque.
var (
	// ErrStateConsumed is returned when a Finish* method is called a second
	// time on a state value that already completed its one-shot protocol
	// step.
	ErrStateConsumed = errors.New("opaque: state already consumed")

	// ErrInvalidCredentialResponse is returned by the server's
	// StartRegistration/StartLogin when the client's blinded element is
	// rejected by the OPRF evaluation, and by FinishRegistration when the
	// upload lacks a public key or envelope.
	ErrInvalidCredentialResponse = errors.New("opaque: invalid credential response")

	// ErrAuthenticationFailed is returned by the client's FinishLogin when
	// the envelope auth tag does not match — almost always a wrong
	// password, occasionally tampering in transit.
	ErrAuthenticationFailed = errors.New("opaque: authentication failed")

	// ErrServerAuthenticationFailed is returned by the server's FinishLogin
	// when the client's confirmation MAC does not match. This is the
	// server-side defense-in-depth check: a correctly-implemented client
	// will already have failed in FinishLogin before ever sending this far,
	// so this mostly guards against a misbehaving or compromised client.
	ErrServerAuthenticationFailed = errors.New("opaque: client authentication failed")

	// ErrNoSuchCredential names the case of a username with no
	// ClientRecord. No function in this package returns it: server.Engine
	// substitutes GetFakeRecord for an unknown username instead.
	ErrNoSuchCredential = errors.New("opaque: no such credential")
)
