package ake

import (
	"crypto/hmac"
	"errors"

	"github.com/vivianlazaras/verdant/internal/curve"
	"github.com/vivianlazaras/verdant/internal/kdf"
)

// ErrStateNotEmpty reports a Server that already holds derived session
// material. No function in this package returns it.
var ErrStateNotEmpty = errors.New("ake: existing state is not empty")

// Server holds one server-side 3DH exchange's ephemeral state between
// Response and Finalize.
type Server struct {
	group curve.Group
	kdf   kdf.KDF

	ephemeralSecretKey *curve.Scalar
	ephemeralPublicKey *curve.Element
	nonce              []byte

	expectedClientMac []byte
	sessionKey        []byte
}

// NewServer returns a fresh, empty 3DH server half, generating its
// ephemeral keypair and nonce immediately (the credential response and the
// AKE response are sent together, so both must exist before send-time).
func NewServer(g curve.Group, k kdf.KDF, randomBytes func(int) []byte) *Server {
	sk, pk := KeyGen(g)

	return &Server{
		group:              g,
		kdf:                k,
		ephemeralSecretKey: sk,
		ephemeralPublicKey: pk,
		nonce:              randomBytes(nonceLength),
	}
}

// NonceAndKeyshare returns the values the server must place on its outgoing
// KE2-equivalent message.
func (s *Server) NonceAndKeyshare() (nonce []byte, keyshare *curve.Element) {
	return s.nonce, s.ephemeralPublicKey
}

// Response computes the server's confirmation MAC and the shared session
// key from the client's ephemeral/static public keys and the server's own
// static secret key, and stashes the expected client MAC for Finalize.
func (s *Server) Response(
	serverStaticSecret *curve.Scalar,
	clientEphemeralPublic, clientStaticPublic *curve.Element,
	clientNonce []byte,
) (serverMac []byte) {
	ikm := k3dh(
		clientEphemeralPublic, s.ephemeralSecretKey,
		clientStaticPublic, s.ephemeralSecretKey,
		clientEphemeralPublic, serverStaticSecret,
	)

	sessionKey, serverMac, clientMac := core3DH(
		s.kdf, s.group,
		clientNonce, s.nonce,
		clientEphemeralPublic, s.ephemeralPublicKey,
		ikm,
	)

	s.sessionKey = sessionKey
	s.expectedClientMac = clientMac

	return serverMac
}

// Finalize verifies the client's confirmation MAC in constant time.
func (s *Server) Finalize(clientMac []byte) bool {
	return hmac.Equal(s.expectedClientMac, clientMac)
}

// SessionKey returns the derived session key once Response has run.
func (s *Server) SessionKey() []byte {
	return s.sessionKey
}
