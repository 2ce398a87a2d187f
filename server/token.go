package server

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PubKeyResponse is served at GET /pubkey: the server's token-signing
// public key's family (key_type) and its SPKI/DER encoding, base64 (pubkey)
// — the wire shape spec.md §3/§6 document, so any client implementing that
// schema can cross-check the key against a discovery-advertised commitment
// hash before trusting it.
type PubKeyResponse struct {
	KeyType string `json:"key_type"`
	PubKey  string `json:"pubkey"`
}

// TokenIssuer signs and issues short-lived bearer tokens once a login
// completes successfully.
type TokenIssuer struct {
	signingKey ed25519.PrivateKey
	publicSPKI []byte
	keyType    string
	ttl        time.Duration
}

// NewTokenIssuer generates a fresh Ed25519 signing keypair. Ed25519 is
// chosen over RSA for the token-signing key specifically so the SPKI OID
// dispatch path in client/bootstrap.go is exercised end to end by this
// module's own default deployment, not just by a client talking to some
// other issuer.
func NewTokenIssuer(ttl time.Duration) (*TokenIssuer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("server: generate signing key: %w", err)
	}

	spki, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("server: marshal signing key: %w", err)
	}

	return &TokenIssuer{signingKey: priv, publicSPKI: spki, keyType: "ed25519", ttl: ttl}, nil
}

// LoadTokenIssuer reads a PEM-encoded Ed25519 private key from path.
func LoadTokenIssuer(path string, ttl time.Duration) (*TokenIssuer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server: read signing key %s: %w", path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("server: no PEM block in %s", path)
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("server: parse signing key %s: %w", path, err)
	}

	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("server: signing key %s is not Ed25519", path)
	}

	spki, err := x509.MarshalPKIXPublicKey(priv.Public())
	if err != nil {
		return nil, fmt.Errorf("server: marshal signing key: %w", err)
	}

	return &TokenIssuer{signingKey: priv, publicSPKI: spki, keyType: "ed25519", ttl: ttl}, nil
}

// PubKeyResponse returns the key_type plus SPKI/DER encoding of the
// issuer's public key, base64-encoded for JSON transport.
func (t *TokenIssuer) PubKeyResponse() PubKeyResponse {
	return PubKeyResponse{
		KeyType: t.keyType,
		PubKey:  base64.StdEncoding.EncodeToString(t.publicSPKI),
	}
}

// Issue mints a signed bearer token for username, carrying sessionKeyHash
// in its "skh" claim. No code in this module checks that claim when a
// token is presented.
func (t *TokenIssuer) Issue(username string, sessionKeyHash []byte) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": username,
		"skh": base64.RawURLEncoding.EncodeToString(sessionKeyHash),
		"iat": now.Unix(),
		"exp": now.Add(t.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)

	signed, err := token.SignedString(t.signingKey)
	if err != nil {
		return "", fmt.Errorf("server: sign token: %w", err)
	}

	return signed, nil
}
