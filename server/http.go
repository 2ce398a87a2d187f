package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	opaque "github.com/vivianlazaras/verdant"
	"github.com/vivianlazaras/verdant/auth"
	"github.com/vivianlazaras/verdant/internal/curve"
	"github.com/vivianlazaras/verdant/internal/logger"
	"github.com/vivianlazaras/verdant/internal/metrics"
)

// HTTPServer exposes an Engine over the four routes spec.md §6 names plus
// the two registration routes (and /metrics when a handler is given),
// using the standard library's net/http.ServeMux — this deployment's route
// table is six fixed paths with no parameters, which is exactly the shape
// the rest of this module's corpus reaches for plain ServeMux on, rather
// than a third-party router.
type HTTPServer struct {
	engine *Engine
	log    logger.Logger
	srv    *http.Server
}

// NewHTTPServer builds the mux and the underlying http.Server, with the
// same conservative timeout defaults used elsewhere in this module's
// corpus for an internet-facing listener.
func NewHTTPServer(addr string, engine *Engine, metricsHandler http.Handler, log logger.Logger) *HTTPServer {
	if log == nil {
		log = logger.Default()
	}

	mux := http.NewServeMux()
	s := &HTTPServer{engine: engine, log: log}

	mux.HandleFunc("/pubkey", s.handlePubKey)
	mux.HandleFunc("/auth/api/register/start", s.handleRegisterStart)
	mux.HandleFunc("/auth/api/register/finalize", s.handleRegisterFinalize)
	mux.HandleFunc("/auth/api/login/", s.handleLoginStart)
	mux.HandleFunc("/auth/api/login/finalize", s.handleLoginFinalize)
	mux.HandleFunc("/rpc/token", s.handleTokenExchange)

	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// ListenAndServe runs the HTTP server, blocking until it stops.
func (s *HTTPServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Handler returns the underlying http.Handler, so a caller can mount it on
// its own listener (httptest.NewServer, a custom net.Listener) instead of
// going through ListenAndServe.
func (s *HTTPServer) Handler() http.Handler {
	return s.srv.Handler
}

// Shutdown gracefully stops the HTTP server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *HTTPServer) handlePubKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, s.engine.tokens.PubKeyResponse())
}

// registrationStartPayload/registrationFinalizePayload are the wire-level
// counterparts of opaque.RegistrationRequest/Upload; their blinded/public
// elements travel as base64 over JSON the same way auth's credential wire
// types do.
type registrationStartPayload struct {
	Username       string `json:"username"`
	BlindedMessage []byte `json:"blinded_message"`
}

type registrationStartResponse struct {
	EvaluatedMessage []byte `json:"evaluated_message"`
	ServerPublicKey  []byte `json:"server_public_key"`
}

type registrationFinalizePayload struct {
	Username        string `json:"username"`
	ClientPublicKey []byte `json:"client_public_key"`
	EnvelopeNonce   []byte `json:"envelope_nonce"`
	EnvelopeAuthTag []byte `json:"envelope_auth_tag"`
}

func (s *HTTPServer) handleRegisterStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload registrationStartPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	g := s.engine.setup.Suite.Group
	blinded, err := decodeElement(g, payload.BlindedMessage)
	if err != nil {
		http.Error(w, "invalid blinded message", http.StatusBadRequest)
		return
	}

	resp, err := s.engine.StartRegistration(&opaque.RegistrationRequest{BlindedMessage: blinded}, payload.Username)
	if err != nil {
		s.log.Error("start registration failed", logger.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, registrationStartResponse{
		EvaluatedMessage: resp.EvaluatedMessage.Encode(),
		ServerPublicKey:  resp.ServerPublicKey.Encode(),
	})
}

func (s *HTTPServer) handleRegisterFinalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload registrationFinalizePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	g := s.engine.setup.Suite.Group
	pk, err := decodeElement(g, payload.ClientPublicKey)
	if err != nil {
		http.Error(w, "invalid client public key", http.StatusBadRequest)
		return
	}

	upload := &opaque.RegistrationUpload{
		ClientPublicKey: pk,
		Envelope:        &opaque.Envelope{Nonce: payload.EnvelopeNonce, AuthTag: payload.EnvelopeAuthTag},
	}

	if err := s.engine.FinishRegistration(payload.Username, upload); err != nil {
		s.log.Error("finish registration failed", logger.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleLoginStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := s.engine.StartLogin(&req)
	if err != nil {
		s.log.Error("start login failed", logger.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleLoginFinalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var upload auth.LoginUpload
	if err := json.NewDecoder(r.Body).Decode(&upload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	completion, err := s.engine.FinishLogin(&upload)
	if err != nil {
		s.log.Error("finish login failed", logger.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, completion)
}

// handleTokenExchange is the generic downstream token-exchange endpoint
// supplemented from original_source/livekit.rs + services.rs. No downstream
// issuer is wired: the handler does not check the bearer token and answers
// every GET with 501 Not Implemented.
func (s *HTTPServer) handleTokenExchange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	metrics.HandshakeDuration.WithLabelValues("rpc_token").Observe(0)
	http.Error(w, "downstream token exchange not configured", http.StatusNotImplemented)
}

func decodeElement(g curve.Group, data []byte) (*curve.Element, error) {
	return curve.DecodeElement(g, data)
}
