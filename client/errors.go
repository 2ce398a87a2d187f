// Package client implements the C5 API bootstrap and orchestrator: fetching
// and pinning the server's signing key, running the login protocol over
// HTTP, validating the returned bearer token, and pumping commands/events
// for a host UI.
package client

import "fmt"

// Kind enumerates the error categories spec.md §7 names, collapsing every
// lower-level failure mode (protocol, transport, encoding, token) into one
// taxonomy a host UI can switch on without needing to know this module's
// internals.
type Kind int

const (
	KindUnknown Kind = iota
	// KindOpaque wraps a failure from the opaque package's protocol
	// engine — almost always a wrong password, occasionally tampering.
	KindOpaque
	// KindTransport wraps a network/HTTP failure talking to the server.
	KindTransport
	// KindEncoding wraps a malformed wire message (bad JSON, bad base64,
	// a group element that fails to decode).
	KindEncoding
	// KindKeyHashMismatch is returned by Bootstrap when the server's
	// advertised public key does not match the hash seen in discovery.
	KindKeyHashMismatch
	// KindUnknownKeyType is returned by Bootstrap when the server's SPKI
	// key is of a type this module does not support dispatching on.
	KindUnknownKeyType
	// KindToken wraps a JWT validation failure (bad signature, expired,
	// malformed).
	KindToken
	// KindUnauthorized is returned by APIClient.Login when the server
	// answers with AccessDenied or an OTP step, reports a non-success
	// result, or sends a server tag that does not verify. The other
	// failures above keep their own Kind; the orchestrator maps every
	// Login error to LoginResult Unauthorized.
	KindUnauthorized
	// KindNoServerKey is returned by APIClient.Login when no server static
	// AKE public key has been pinned yet — e.g. a login attempted before
	// registration or a Discovery record ever supplied one. Caught here
	// rather than left to panic inside the AKE's triple-DH combiner.
	KindNoServerKey
)

func (k Kind) String() string {
	switch k {
	case KindOpaque:
		return "opaque"
	case KindTransport:
		return "transport"
	case KindEncoding:
		return "encoding"
	case KindKeyHashMismatch:
		return "key_hash_mismatch"
	case KindUnknownKeyType:
		return "unknown_key_type"
	case KindToken:
		return "token"
	case KindUnauthorized:
		return "unauthorized"
	case KindNoServerKey:
		return "no_server_key"
	default:
		return "unknown"
	}
}

// Error is the single error type this package returns, wrapping an
// underlying cause under a stable Kind so callers can use errors.Is/As
// without needing a sentinel per failure mode.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("client: %s: %s: %v", e.Op, e.Kind, e.Err)
	}

	return fmt.Sprintf("client: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func wrapErr(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}
