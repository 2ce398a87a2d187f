// Package ake implements the 3DH (triple Diffie-Hellman) key exchange that
// binds the OPAQUE credential exchange to a confirmed, mutually-authenticated
// session key.
package ake

import (
	"crypto/hmac"
	"crypto/sha512"

	"github.com/vivianlazaras/verdant/internal/curve"
	"github.com/vivianlazaras/verdant/internal/kdf"
)

var newHMACHash = sha512.New

const (
	labelHandshake = "3dh-handshake"
	labelSession   = "3dh-session-key"
	labelMacServer = "3dh-mac-server"
	labelMacClient = "3dh-mac-client"
	nonceLength    = 32
)

// KeyGen returns a fresh AKE keypair in g (used by NewClient and NewServer
// for each side's ephemeral keypair).
func KeyGen(g curve.Group) (sk *curve.Scalar, pk *curve.Element) {
	sk = curve.RandomScalar(g)
	return sk, curve.ScalarBaseMult(g, sk)
}

// macKeys holds the two directional MAC keys derived from the handshake
// secret; each side only ever computes the tag it sends, and verifies the
// tag it receives.
type macKeys struct {
	server, client []byte
}

// deriveKeys runs HKDF-Extract over the combined DH output, then expands
// the handshake secret into a session key and the two MAC keys.
func deriveKeys(k kdf.KDF, ikm, transcriptHash []byte) (keys macKeys, sessionKey []byte) {
	prk := k.Extract(nil, ikm)
	handshakeSecret := k.Expand(prk, append([]byte(labelHandshake), transcriptHash...), k.Size())
	sessionKey = k.Expand(prk, append([]byte(labelSession), transcriptHash...), k.Size())
	keys.server = k.Expand(handshakeSecret, []byte(labelMacServer), k.Size())
	keys.client = k.Expand(handshakeSecret, []byte(labelMacClient), k.Size())

	return keys, sessionKey
}

// k3dh folds three independent Diffie-Hellman products into one ikm: the
// two ephemeral-ephemeral, static-ephemeral and ephemeral-static crossings
// that make 3DH resistant to either side's long-term key alone being
// compromised.
func k3dh(
	peerEph *curve.Element, ownEph *curve.Scalar,
	peerStatic *curve.Element, ownEphForStatic *curve.Scalar,
	peerEphForStatic *curve.Element, ownStatic *curve.Scalar,
) []byte {
	d1 := peerEph.Copy().Multiply(ownEph).Encode()
	d2 := peerStatic.Copy().Multiply(ownEphForStatic).Encode()
	d3 := peerEphForStatic.Copy().Multiply(ownStatic).Encode()

	out := make([]byte, 0, len(d1)+len(d2)+len(d3))
	out = append(out, d1...)
	out = append(out, d2...)
	out = append(out, d3...)

	return out
}

// transcriptHash hashes the exact bytes both sides agree constitute "the
// handshake so far": the two nonces and two ephemeral public keys, in a
// fixed order. It is distinct from (and runs before) the outer, application
// level LOGIN_TRANSCRIPT_V1 computed in the auth package.
func transcriptHash(g curve.Group, clientNonce, serverNonce []byte, clientEph, serverEph *curve.Element) []byte {
	h := g.Hash()
	h.Write(clientNonce)
	h.Write(clientEph.Encode())
	h.Write(serverNonce)
	h.Write(serverEph.Encode())

	return h.Sum(nil)
}

// core3DH runs the full derivation shared by client and server: combine the
// three DH products, hash the transcript, derive the session key and both
// MAC keys, and compute both sides' confirmation MACs over the transcript.
func core3DH(
	k kdf.KDF, g curve.Group,
	clientNonce, serverNonce []byte, clientEph, serverEph *curve.Element,
	ikm []byte,
) (sessionKey, serverMac, clientMac []byte) {
	th := transcriptHash(g, clientNonce, serverNonce, clientEph, serverEph)
	keys, sessionKey := deriveKeys(k, ikm, th)

	serverMac = hmacSum(keys.server, th)
	clientMac = hmacSum(keys.client, append(append([]byte{}, th...), serverMac...))

	return sessionKey, serverMac, clientMac
}

func hmacSum(key, data []byte) []byte {
	h := hmac.New(newHMACHash, key)
	h.Write(data)

	return h.Sum(nil)
}
