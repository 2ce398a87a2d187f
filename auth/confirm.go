package auth

import (
	"crypto/hmac"
	"crypto/sha256"

	"golang.org/x/crypto/hkdf"
)

var (
	confirmInfo     = []byte("confirmation")
	clientTagLabel  = []byte("client")
	serverTagLabel  = []byte("server")
)

// DeriveConfirmationKey expands the inner AKE's session key into a
// dedicated confirmation key via HKDF-SHA256, matching
// original_source/auth/challenge.rs's derive_k_confirm (there:
// Hkdf::<Sha256>::new(None, k_session).expand(b"confirmation", &mut okm)).
func DeriveConfirmationKey(sessionKey []byte) []byte {
	r := hkdf.Expand(sha256.New, deriveExtracted(sessionKey), confirmInfo)
	okm := make([]byte, sha256.Size)
	if _, err := r.Read(okm); err != nil {
		panic(err)
	}

	return okm
}

func deriveExtracted(sessionKey []byte) []byte {
	return hkdf.Extract(sha256.New, sessionKey, nil)
}

func computeHMAC(confirmKey, data []byte) []byte {
	mac := hmac.New(sha256.New, confirmKey)
	mac.Write(data)

	return mac.Sum(nil)
}

// ClientTag computes the client's confirmation tag over a transcript,
// domain-separated from ServerTag so neither side's tag can be replayed as
// the other's. The HMAC input is T ∥ "client" — transcript first, label
// appended after — matching original_source/auth/challenge.rs.
func ClientTag(confirmKey []byte, t *Transcript) []byte {
	return computeHMAC(confirmKey, append(append([]byte{}, t.Bytes()...), clientTagLabel...))
}

// ServerTag computes the server's confirmation tag over a transcript:
// T ∥ "server", the same transcript-then-label order as ClientTag.
func ServerTag(confirmKey []byte, t *Transcript) []byte {
	return computeHMAC(confirmKey, append(append([]byte{}, t.Bytes()...), serverTagLabel...))
}

// VerifyClientTag checks a received client tag in constant time.
func VerifyClientTag(confirmKey []byte, t *Transcript, tag []byte) bool {
	return hmac.Equal(ClientTag(confirmKey, t), tag)
}

// VerifyServerTag checks a received server tag in constant time.
func VerifyServerTag(confirmKey []byte, t *Transcript, tag []byte) bool {
	return hmac.Equal(ServerTag(confirmKey, t), tag)
}
