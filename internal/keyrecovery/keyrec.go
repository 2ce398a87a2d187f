// Package keyrecovery implements the registration envelope: the client's
// static AKE keypair is never stored. Instead it is re-derived on every
// login from the OPRF-randomized password plus a stored nonce, and an
// HMAC auth tag over that derivation lets the client detect a wrong
// password before any AKE transcript work happens.
package keyrecovery

import (
	"crypto/hmac"
	"crypto/sha512"
	"errors"

	"github.com/vivianlazaras/verdant/internal/curve"
	"github.com/vivianlazaras/verdant/internal/oprf"
)

// ErrEnvelopeAuthFailed is returned by Open when the computed auth tag does
// not match the envelope's stored tag — almost always a wrong password.
var ErrEnvelopeAuthFailed = errors.New("keyrecovery: envelope authentication failed")

const nonceLength = 32

var (
	infoPrivateKey = []byte("verdant-envelope-private-key")
	infoAuthKey    = []byte("verdant-envelope-auth-key")
	infoAuthTag    = []byte("verdant-envelope-auth-tag")
)

// Envelope is the value stored in a UserRecord: a nonce and an auth tag
// binding it to the password-derived key material. It never contains key
// bytes itself.
type Envelope struct {
	Nonce   []byte
	AuthTag []byte
}

func deriveAuthKeyPair(g curve.Group, randomizedPwd, nonce []byte) (*curve.Scalar, *curve.Element) {
	sk := oprf.DeriveKey(g, randomizedPwd, append(append([]byte{}, nonce...), infoPrivateKey...))
	return sk, curve.ScalarBaseMult(g, sk)
}

func authKey(randomizedPwd, nonce []byte) []byte {
	mac := hmac.New(sha512.New, randomizedPwd)
	mac.Write(infoAuthKey)
	mac.Write(nonce)

	return mac.Sum(nil)
}

func authTag(authKey, nonce, clientPublicKey []byte) []byte {
	mac := hmac.New(sha512.New, authKey)
	mac.Write(infoAuthTag)
	mac.Write(nonce)
	mac.Write(clientPublicKey)

	return mac.Sum(nil)
}

// Seal derives a fresh static AKE keypair from randomizedPwd and a new
// random nonce, and returns the keypair plus the envelope to persist.
func Seal(g curve.Group, randomizedPwd []byte, randomNonce func(int) []byte) (
	clientSecretKey *curve.Scalar, clientPublicKey *curve.Element, envelope *Envelope,
) {
	nonce := randomNonce(nonceLength)
	sk, pk := deriveAuthKeyPair(g, randomizedPwd, nonce)
	ak := authKey(randomizedPwd, nonce)
	tag := authTag(ak, nonce, pk.Encode())

	return sk, pk, &Envelope{Nonce: nonce, AuthTag: tag}
}

// Open re-derives the static AKE keypair from randomizedPwd and the stored
// envelope, and verifies the auth tag in constant time. A mismatch means
// the caller supplied the wrong password.
func Open(g curve.Group, randomizedPwd []byte, envelope *Envelope) (
	clientSecretKey *curve.Scalar, clientPublicKey *curve.Element, err error,
) {
	sk, pk := deriveAuthKeyPair(g, randomizedPwd, envelope.Nonce)
	ak := authKey(randomizedPwd, envelope.Nonce)
	want := authTag(ak, envelope.Nonce, pk.Encode())

	if !hmac.Equal(want, envelope.AuthTag) {
		return nil, nil, ErrEnvelopeAuthFailed
	}

	return sk, pk, nil
}
