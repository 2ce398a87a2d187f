// Package kdf wraps HKDF-SHA256/512 extract-then-expand key derivation,
// used by the AKE transcript (handshake secret -> session key, MAC keys).
// The outer confirmation layer (auth package) calls
// golang.org/x/crypto/hkdf directly rather than going through this package.
package kdf

import (
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"golang.org/x/crypto/hkdf"
)

// KDF binds a hash function to the extract/expand operations.
type KDF struct {
	newHash func() hash.Hash
	size    int
}

// SHA256 is an HKDF-SHA256 KDF, the same construction as
// original_source/auth/challenge.rs's Hkdf::<Sha256>. Nothing in this
// module uses it; auth/confirm.go builds its HKDF-SHA256 directly.
var SHA256 = KDF{newHash: sha256.New, size: sha256.Size}

// SHA512 is the KDF used by the inner 3DH transcript, matching the
// teacher's DefaultConfiguration (KDF tied to the suite's Hash).
var SHA512 = KDF{newHash: sha512.New, size: sha512.Size}

// Size returns the underlying hash's output length.
func (k KDF) Size() int {
	return k.size
}

// Extract implements HKDF-Extract(salt, ikm).
func (k KDF) Extract(salt, ikm []byte) []byte {
	return hkdf.Extract(k.newHash, ikm, salt)
}

// Expand implements HKDF-Expand(prk, info, length).
func (k KDF) Expand(prk, info []byte, length int) []byte {
	r := hkdf.Expand(k.newHash, prk, info)
	out := make([]byte, length)
	if _, err := r.Read(out); err != nil {
		panic(err)
	}

	return out
}
