package ake

import (
	"github.com/vivianlazaras/verdant/internal/curve"
	"github.com/vivianlazaras/verdant/internal/kdf"
)

// Client holds one client-side 3DH exchange's ephemeral state between
// Start and Finalize.
type Client struct {
	group curve.Group
	kdf   kdf.KDF

	ephemeralSecretKey *curve.Scalar
	ephemeralPublicKey *curve.Element
	nonce              []byte
}

// NewClient generates the client's ephemeral keypair and nonce for a login
// attempt.
func NewClient(g curve.Group, k kdf.KDF, randomBytes func(int) []byte) *Client {
	sk, pk := KeyGen(g)

	return &Client{
		group:              g,
		kdf:                k,
		ephemeralSecretKey: sk,
		ephemeralPublicKey: pk,
		nonce:              randomBytes(nonceLength),
	}
}

// NonceAndKeyshare returns the values the client must place on its outgoing
// credential request.
func (c *Client) NonceAndKeyshare() (nonce []byte, keyshare *curve.Element) {
	return c.nonce, c.ephemeralPublicKey
}

// Finalize computes the shared session key and both confirmation MACs from
// the server's response, the client's own static keypair recovered from the
// envelope, and verifies the server's MAC in constant time before returning
// the client MAC to send back.
func (c *Client) Finalize(
	clientStaticSecret *curve.Scalar, serverStaticPublic *curve.Element,
	serverEphemeralPublic *curve.Element, serverNonce []byte, serverMac []byte,
) (sessionKey, clientMac []byte, ok bool) {
	ikm := k3dh(
		serverEphemeralPublic, c.ephemeralSecretKey,
		serverEphemeralPublic, clientStaticSecret,
		serverStaticPublic, c.ephemeralSecretKey,
	)

	sessionKey, expectedServerMac, clientMac := core3DH(
		c.kdf, c.group,
		c.nonce, serverNonce,
		c.ephemeralPublicKey, serverEphemeralPublic,
		ikm,
	)

	if !constantTimeEqual(expectedServerMac, serverMac) {
		return nil, nil, false
	}

	return sessionKey, clientMac, true
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}

	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}

	return v == 0
}
