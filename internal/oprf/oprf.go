// Package oprf implements the base-mode Elliptic Curve Oblivious
// Pseudorandom Function used by the registration and login envelopes to
// turn a low-entropy password into a uniformly random, server-blinded key.
package oprf

import (
	"crypto/rand"
	"errors"

	"github.com/vivianlazaras/verdant/internal/curve"
)

// ErrInvalidBlindedElement is returned when a peer-supplied blinded element
// fails to decode, or decodes to the group identity.
var ErrInvalidBlindedElement = errors.New("oprf: invalid blinded element")

const (
	dstOPRF    = "VOPRF08-"
	suiteLabel = "ristretto255-SHA512"
)

func dst(contextTag string) []byte {
	return []byte(dstOPRF + suiteLabel + "-" + contextTag)
}

// Blind hides input behind a fresh random scalar (the "blind"). The caller
// keeps the blind secret and sends blindedElement to the evaluator.
func Blind(g curve.Group, input []byte) (blind *curve.Scalar, blindedElement *curve.Element) {
	blind = curve.RandomScalar(g)
	p := curve.HashToGroup(g, input, dst("HashToGroup"))

	return blind, p.Multiply(blind)
}

// Evaluate applies the server's OPRF key to a client-supplied blinded
// element. The server never learns the client's input.
func Evaluate(g curve.Group, key *curve.Scalar, blindedElement *curve.Element) (*curve.Element, error) {
	if blindedElement.IsIdentity() {
		return nil, ErrInvalidBlindedElement
	}

	return blindedElement.Copy().Multiply(key), nil
}

// Finalize removes the blind from the evaluated element and hashes the
// result down to the final, uniformly random OPRF output.
func Finalize(g curve.Group, input []byte, blind *curve.Scalar, evaluated *curve.Element) []byte {
	inv := blind.Copy().Invert()
	n := evaluated.Copy().Multiply(inv)

	h := g.Hash()
	h.Write(input)
	encoded := n.Encode()
	h.Write(encoded)
	h.Write(dst("Finalize"))

	return h.Sum(nil)
}

// DeriveKey maps arbitrary seed material to a scalar in g, used both to
// derive a server's per-user OPRF key (from the global seed + credential
// identifier) and, downstream, the client's static AKE keypair from the
// randomized password.
func DeriveKey(g curve.Group, seed, info []byte) *curve.Scalar {
	return curve.HashToScalar(g, seed, append(append([]byte{}, info...), dst("DeriveKeyPair")...))
}

// RandomSeed returns cryptographically random seed material of length n.
// opaque.SetupServer draws the server-wide OPRF seed from
// opaque.RandomBytes, not from this function.
func RandomSeed(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}

	return b
}
