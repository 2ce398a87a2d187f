package opaque

import "github.com/vivianlazaras/verdant/internal/curve"

// RegistrationRequest is the client's first registration message: a
// blinded password, ready for the server to apply its per-user OPRF key.
type RegistrationRequest struct {
	BlindedMessage *curve.Element
}

// RegistrationResponse is the server's answer: the OPRF-evaluated message
// and the server's static AKE public key, which the client pins for later
// logins (sealing the envelope does not use it).
type RegistrationResponse struct {
	EvaluatedMessage *curve.Element
	ServerPublicKey  *curve.Element
}

// RegistrationUpload is the client's final registration message: its
// derived static public key and the envelope the server must store.
type RegistrationUpload struct {
	ClientPublicKey *curve.Element
	Envelope        *Envelope
}

// CredentialRequest is the client's first login message: a blinded
// password (reusing the OPRF exactly as in registration) bundled with its
// 3DH ephemeral keyshare and nonce, mirroring real OPAQUE's KE1.
type CredentialRequest struct {
	BlindedMessage     *curve.Element
	ClientNonce        []byte
	ClientKeyshare     *curve.Element
}

// CredentialResponse is the server's login answer: the OPRF-evaluated
// message, the envelope to recover the client's static key, and the
// server's 3DH ephemeral keyshare/nonce/confirmation MAC, mirroring KE2.
type CredentialResponse struct {
	EvaluatedMessage *curve.Element
	Envelope         *Envelope
	ServerNonce      []byte
	ServerKeyshare   *curve.Element
	ServerMac        []byte
}

// CredentialFinalization is the client's last login message: its 3DH
// confirmation MAC, mirroring KE3.
type CredentialFinalization struct {
	ClientMac []byte
}
