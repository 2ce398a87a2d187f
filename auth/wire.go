// Package auth implements the outer, application-level transcript and
// confirmation layer that sits on top of the opaque package's 3DH session
// key: a deterministic binary transcript of the wire-level login exchange,
// an HKDF-derived confirmation key, and HMAC confirmation tags that let
// both the client and the server detect a tampered or mismatched exchange
// independently of the inner AKE's own MAC check.
package auth

import (
	"github.com/google/uuid"
)

// CredentialRequestWire is the JSON-safe encoding of an
// opaque.CredentialRequest (see codec.go for the conversion).
type CredentialRequestWire struct {
	BlindedMessage []byte `json:"blinded_message"`
	ClientNonce    []byte `json:"client_nonce"`
	ClientKeyshare []byte `json:"client_keyshare"`
}

// CredentialResponseWire is the JSON-safe encoding of an
// opaque.CredentialResponse.
type CredentialResponseWire struct {
	EvaluatedMessage []byte `json:"evaluated_message"`
	EnvelopeNonce    []byte `json:"envelope_nonce"`
	EnvelopeAuthTag  []byte `json:"envelope_auth_tag"`
	ServerNonce      []byte `json:"server_nonce"`
	ServerKeyshare   []byte `json:"server_keyshare"`
	ServerMac        []byte `json:"server_mac"`
}

// CredentialFinalizationWire is the JSON-safe encoding of an
// opaque.CredentialFinalization.
type CredentialFinalizationWire struct {
	ClientMac []byte `json:"client_mac"`
}

// LoginRequest is the outer wire message the client POSTs to start a login.
type LoginRequest struct {
	Username   string                 `json:"username"`
	Credential *CredentialRequestWire `json:"credential"`
}

// ResponseKind tags which variant of LoginResponse is populated, standing
// in for a Rust-style tagged enum without reflection-based marshaling.
type ResponseKind string

const (
	// ResponseOTP signals an out-of-band one-time-password step is
	// required before PAKE can proceed (spec.md's OTP signalling path).
	ResponseOTP ResponseKind = "otp"
	// ResponsePAKE carries the server's credential response, keyed by the
	// session id the client must echo back on finalize.
	ResponsePAKE ResponseKind = "pake"
	// ResponseAccessDenied tells the client the account is locked or
	// otherwise not eligible to continue, without running PAKE at all.
	ResponseAccessDenied ResponseKind = "access_denied"
)

// LoginResponse is the outer wire message the server replies with. Exactly
// one of the Kind-tagged fields is populated, matching LoginResponse's
// OTP|PAKE|AccessDenied shape.
type LoginResponse struct {
	Kind       ResponseKind            `json:"kind"`
	OTPMessage string                  `json:"otp_message,omitempty"`
	SessionID  uuid.UUID               `json:"session_id,omitempty"`
	Credential *CredentialResponseWire `json:"credential,omitempty"`
}

// LoginUpload is the outer wire message the client POSTs to finalize a
// login: the finalization message plus a confirmation tag binding it to
// the exact request/response transcript the client observed.
type LoginUpload struct {
	ID        uuid.UUID                   `json:"id"`
	Upload    *CredentialFinalizationWire `json:"upload"`
	ClientTag []byte                      `json:"client_tag"`
}

// ResultKind tags which variant of LoginCompletion's result is populated.
type ResultKind string

const (
	ResultSuccess       ResultKind = "success"
	ResultPasswordReset ResultKind = "password_reset"
	ResultUnauthorized  ResultKind = "unauthorized"
	ResultUnknownServer ResultKind = "unknown_server"
)

// LoginResult is the tagged payload of a completed login attempt.
type LoginResult struct {
	Kind  ResultKind `json:"kind"`
	Token string     `json:"token,omitempty"`
}

// LoginCompletion is the outer wire message the server replies with after
// LoginUpload: the tagged result plus its own confirmation tag.
type LoginCompletion struct {
	Result    LoginResult `json:"result"`
	ServerTag []byte      `json:"server_tag,omitempty"`
}

// Unauthorized builds a LoginCompletion carrying an unauthorized result and
// no server tag — used for every server-side rejection (unknown or replayed
// session id, failed client MAC, failed client tag), so a rejected login
// never carries a confirmation tag.
func Unauthorized() *LoginCompletion {
	return &LoginCompletion{Result: LoginResult{Kind: ResultUnauthorized}}
}
