package client

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSPKIKeyTypeDispatchesOnOID(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)

	assert.Equal(t, KeyTypeEd25519, spkiKeyType(der))
}

func TestSPKIKeyTypeRejectsGarbage(t *testing.T) {
	assert.Equal(t, KeyTypeUnknown, spkiKeyType([]byte("not a der blob")))
}

func pubKeyServer(t *testing.T, der []byte) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(pubKeyResponse{KeyType: string(KeyTypeEd25519), PubKey: base64.StdEncoding.EncodeToString(der)})
	}))
}

func TestBootstrapVerifyAcceptsMatchingHash(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)

	srv := pubKeyServer(t, der)
	defer srv.Close()

	sum := sha256.Sum256(der)

	bootstrap := NewBootstrap(2 * time.Second)
	key, keyType, keyfunc, err := bootstrap.Verify(srv.URL, sum[:])
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, KeyTypeEd25519, keyType)
	require.NotNil(t, keyfunc)

	resolved, err := keyfunc(nil)
	require.NoError(t, err)
	assert.Equal(t, pub, resolved)
}

func TestBootstrapVerifyRejectsMismatchedHash(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)

	srv := pubKeyServer(t, der)
	defer srv.Close()

	wrongHash := sha256.Sum256([]byte("not the real key"))

	bootstrap := NewBootstrap(2 * time.Second)
	_, _, _, err = bootstrap.Verify(srv.URL, wrongHash[:])
	require.Error(t, err)

	var clientErr *Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, KindKeyHashMismatch, clientErr.Kind)
}

func TestBootstrapVerifySkipsHashCheckWhenNoneExpected(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)

	srv := pubKeyServer(t, der)
	defer srv.Close()

	bootstrap := NewBootstrap(2 * time.Second)
	_, _, _, err = bootstrap.Verify(srv.URL, nil)
	assert.NoError(t, err)
}
