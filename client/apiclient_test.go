package client_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivianlazaras/verdant/auth"
	"github.com/vivianlazaras/verdant/client"
)

// TestLoginStopsAtOTPStep exercises scenario S3: when the server responds
// to login-start with the OTP variant, the client must surface it as an
// error and never issue the finalize call.
func TestLoginStopsAtOTPStep(t *testing.T) {
	var finalizeCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/api/login/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(auth.LoginResponse{
			Kind:       auth.ResponseOTP,
			OTPMessage: "check your email",
		})
	})
	mux.HandleFunc("/auth/api/login/finalize", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&finalizeCalls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	api := client.NewAPIClient(srv.URL, 2*time.Second, client.KeyTypeEd25519, nil, nil)
	_, err := api.Login("alice", "whatever")

	require.Error(t, err)
	assert.Zero(t, atomic.LoadInt32(&finalizeCalls), "an OTP response must never be followed by a finalize call")
}

// TestLoginStopsAtAccessDenied exercises the AccessDenied wire variant the
// same way: no PAKE exchange is ever attempted, and no finalize call
// follows.
func TestLoginStopsAtAccessDenied(t *testing.T) {
	var finalizeCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/api/login/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(auth.LoginResponse{Kind: auth.ResponseAccessDenied})
	})
	mux.HandleFunc("/auth/api/login/finalize", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&finalizeCalls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	api := client.NewAPIClient(srv.URL, 2*time.Second, client.KeyTypeEd25519, nil, nil)
	_, err := api.Login("bob", "whatever")

	require.Error(t, err)
	assert.Zero(t, atomic.LoadInt32(&finalizeCalls))
}
