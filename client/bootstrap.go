package client

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// KeyType names the SPKI algorithm a server's token-signing key uses,
// dispatched from the raw ASN.1 OID before attempting crypto/x509's parse
// (which does not support Ed448, so that case must be detected first).
type KeyType string

const (
	KeyTypeRSA     KeyType = "rsa"
	KeyTypeEC      KeyType = "ec"
	KeyTypeEd25519 KeyType = "ed25519"
	KeyTypeEd448   KeyType = "ed448"
	KeyTypeUnknown KeyType = "unknown"
)

var (
	oidRSA     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	oidEC      = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidEd25519 = asn1.ObjectIdentifier{1, 3, 101, 112}
	oidEd448   = asn1.ObjectIdentifier{1, 3, 101, 113}
)

type pkixAlgorithmIdentifier struct {
	Algorithm asn1.ObjectIdentifier
}

type pkixPublicKeyInfo struct {
	Algorithm pkixAlgorithmIdentifier
}

// spkiKeyType peeks at a DER-encoded SubjectPublicKeyInfo's algorithm OID
// without fully parsing the key, so Ed448 (which crypto/x509 refuses to
// parse) is reported as KindUnknownKeyType rather than a generic parse
// error.
func spkiKeyType(der []byte) KeyType {
	var info pkixPublicKeyInfo
	if _, err := asn1.Unmarshal(der, &info); err != nil {
		return KeyTypeUnknown
	}

	switch {
	case info.Algorithm.Algorithm.Equal(oidRSA):
		return KeyTypeRSA
	case info.Algorithm.Algorithm.Equal(oidEC):
		return KeyTypeEC
	case info.Algorithm.Algorithm.Equal(oidEd25519):
		return KeyTypeEd25519
	case info.Algorithm.Algorithm.Equal(oidEd448):
		return KeyTypeEd448
	default:
		return KeyTypeUnknown
	}
}

// Bootstrap fetches the server's token-signing public key, checks it
// against a discovery-advertised commitment hash, and builds a jwt.Keyfunc
// bound to it.
type Bootstrap struct {
	http *http.Client
}

// NewBootstrap returns a Bootstrap with the given HTTP timeout.
func NewBootstrap(timeout time.Duration) *Bootstrap {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Bootstrap{http: &http.Client{Timeout: timeout}}
}

// pubKeyResponse is the wire shape of GET /pubkey per spec.md §3/§6:
// { key_type, pubkey: base64 DER SubjectPublicKeyInfo }.
type pubKeyResponse struct {
	KeyType string `json:"key_type"`
	PubKey  string `json:"pubkey"`
}

// Verify fetches baseURL+"/pubkey", checks its SHA-256 hash in constant
// time against expectedHash (the value carried in a Discovery record), and
// returns the parsed public key, its KeyType, and a ready-to-use
// jwt.Keyfunc. The returned KeyType is what a caller should use to build
// the jwt.WithValidMethods algorithm set for this server — it must not be
// assumed to be a fixed set across deployments.
func (b *Bootstrap) Verify(baseURL string, expectedHash []byte) (crypto.PublicKey, KeyType, jwt.Keyfunc, error) {
	resp, err := b.http.Get(baseURL + "/pubkey")
	if err != nil {
		return nil, KeyTypeUnknown, nil, wrapErr("bootstrap.Verify", KindTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, KeyTypeUnknown, nil, wrapErr("bootstrap.Verify", KindTransport, err)
	}

	var pk pubKeyResponse
	if err := json.Unmarshal(body, &pk); err != nil {
		return nil, KeyTypeUnknown, nil, wrapErr("bootstrap.Verify", KindEncoding, err)
	}

	der, err := base64.StdEncoding.DecodeString(pk.PubKey)
	if err != nil {
		return nil, KeyTypeUnknown, nil, wrapErr("bootstrap.Verify", KindEncoding, err)
	}

	if len(expectedHash) > 0 {
		sum := sha256.Sum256(der)
		if subtle.ConstantTimeCompare(sum[:], expectedHash) != 1 {
			return nil, KeyTypeUnknown, nil, wrapErr("bootstrap.Verify", KindKeyHashMismatch,
				fmt.Errorf("server public key does not match discovery commitment"))
		}
	}

	keyType := spkiKeyType(der)
	if keyType == KeyTypeEd448 || keyType == KeyTypeUnknown {
		return nil, KeyTypeUnknown, nil, wrapErr("bootstrap.Verify", KindUnknownKeyType,
			fmt.Errorf("unsupported server key type %q", keyType))
	}

	if pk.KeyType != "" && KeyType(pk.KeyType) != keyType {
		return nil, KeyTypeUnknown, nil, wrapErr("bootstrap.Verify", KindUnknownKeyType,
			fmt.Errorf("advertised key_type %q does not match SPKI OID %q", pk.KeyType, keyType))
	}

	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, KeyTypeUnknown, nil, wrapErr("bootstrap.Verify", KindEncoding, err)
	}

	switch keyType {
	case KeyTypeRSA:
		if _, ok := pub.(*rsa.PublicKey); !ok {
			return nil, KeyTypeUnknown, nil, wrapErr("bootstrap.Verify", KindUnknownKeyType, fmt.Errorf("OID/key mismatch"))
		}
	case KeyTypeEC:
		if _, ok := pub.(*ecdsa.PublicKey); !ok {
			return nil, KeyTypeUnknown, nil, wrapErr("bootstrap.Verify", KindUnknownKeyType, fmt.Errorf("OID/key mismatch"))
		}
	case KeyTypeEd25519:
		if _, ok := pub.(ed25519.PublicKey); !ok {
			return nil, KeyTypeUnknown, nil, wrapErr("bootstrap.Verify", KindUnknownKeyType, fmt.Errorf("OID/key mismatch"))
		}
	}

	keyfunc := func(*jwt.Token) (interface{}, error) { return pub, nil }

	return pub, keyType, keyfunc, nil
}
