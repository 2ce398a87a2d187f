// Package curve wraps the bytemare/ecc group API down to the exact
// operations the rest of this module needs: scalar/element arithmetic,
// encode/decode, and hash-to-group/scalar for the OPRF layer.
package curve

import (
	"github.com/bytemare/ecc"
)

// Group identifies the elliptic curve group a cipher suite operates over.
type Group = ecc.Group

const (
	Ristretto255 = ecc.Ristretto255
	P256         = ecc.P256
	P384         = ecc.P384
	P521         = ecc.P521
)

// Scalar and Element alias the ecc types so callers outside this package
// never need to import bytemare/ecc directly.
type (
	Scalar  = ecc.Scalar
	Element = ecc.Element
)

// RandomScalar returns a new, non-zero random scalar in g.
func RandomScalar(g Group) *Scalar {
	return g.NewScalar().Random()
}

// Base returns the group's base (generator) element.
func Base(g Group) *Element {
	return g.Base()
}

// ScalarBaseMult computes s*G.
func ScalarBaseMult(g Group, s *Scalar) *Element {
	return g.Base().Multiply(s)
}

// DecodeElement decodes a fixed-length encoded group element.
func DecodeElement(g Group, data []byte) (*Element, error) {
	e := g.NewElement()
	if err := e.Decode(data); err != nil {
		return nil, err
	}

	return e, nil
}

// DecodeScalar decodes a fixed-length encoded scalar.
func DecodeScalar(g Group, data []byte) (*Scalar, error) {
	s := g.NewScalar()
	if err := s.Decode(data); err != nil {
		return nil, err
	}

	return s, nil
}

// HashToScalar maps arbitrary input to a scalar under the given
// domain-separation tag, used to derive the OPRF key and the client's
// static AKE key from the randomized password.
func HashToScalar(g Group, input, dst []byte) *Scalar {
	return g.HashToScalar(input, dst)
}

// HashToGroup maps arbitrary input to a group element, used by the OPRF's
// blind step to bind the blinded element to the password.
func HashToGroup(g Group, input, dst []byte) *Element {
	return g.HashToGroup(input, dst)
}

// ElementLength returns the encoded length of a group element.
func ElementLength(g Group) int {
	return int(g.ElementLength())
}

// ScalarLength returns the encoded length of a scalar.
func ScalarLength(g Group) int {
	return int(g.ScalarLength())
}
