// Package server implements the wire-level OPAQUE server: it wraps the
// opaque package's protocol engine with storage, session bookkeeping, the
// outer transcript-confirmation layer, and the HTTP surface spec.md names.
package server

import (
	"crypto/sha256"
	"fmt"
	"time"

	opaque "github.com/vivianlazaras/verdant"
	"github.com/vivianlazaras/verdant/auth"
	"github.com/vivianlazaras/verdant/internal/logger"
	"github.com/vivianlazaras/verdant/internal/metrics"
)

// Engine binds an opaque.Server to durable storage and in-flight session
// state, and implements the four wire-level operations the HTTP layer
// exposes: Register (two phases) and Login (two phases).
type Engine struct {
	opaqueServer *opaque.Server
	setup        *opaque.ServerSetup
	users        *UserStore
	sessions     *SessionTable
	tokens       *TokenIssuer
	log          logger.Logger
}

// NewEngine wires a fresh Engine.
func NewEngine(setup *opaque.ServerSetup, users *UserStore, sessionTTL time.Duration, tokens *TokenIssuer, log logger.Logger) (*Engine, error) {
	s, err := opaque.NewServer(setup)
	if err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.Default()
	}

	return &Engine{
		opaqueServer: s,
		setup:        setup,
		users:        users,
		sessions:     NewSessionTable(sessionTTL),
		tokens:       tokens,
		log:          log,
	}, nil
}

// Sessions exposes the session table so cmd/ can drive its TTL sweep.
func (e *Engine) Sessions() *SessionTable { return e.sessions }

// StartRegistration runs the server half of OPAQUE registration.
func (e *Engine) StartRegistration(req *opaque.RegistrationRequest, username string) (*opaque.RegistrationResponse, error) {
	return e.opaqueServer.StartRegistration(req, CredentialIdentifier(username))
}

// FinishRegistration validates and stores the client's upload, serialized
// per-username so two concurrent registrations for the same account never
// interleave.
func (e *Engine) FinishRegistration(username string, upload *opaque.RegistrationUpload) error {
	return e.users.WithRegistrationLock(username, func() error {
		record, err := e.opaqueServer.FinishRegistration(upload)
		if err != nil {
			return err
		}

		record.CredentialIdentifier = CredentialIdentifier(username)
		e.users.Put(username, record)
		metrics.RegistrationsCompleted.Inc()
		e.log.Info("registration completed", logger.String("username", username))

		return nil
	})
}

// StartLogin implements POST /auth/api/login/: it looks up (or fakes) the
// user's record, runs the server half of the credential exchange, and
// stashes the session (request and response) for the matching FinishLogin
// call, which computes the outer transcript and confirmation tags.
func (e *Engine) StartLogin(req *auth.LoginRequest) (*auth.LoginResponse, error) {
	timer := prometheusTimer("start")
	defer timer()

	record, known := e.users.Get(req.Username)
	if !known {
		record = opaque.GetFakeRecord(CredentialIdentifier(req.Username))
	}

	credReq, err := auth.FromWireCredentialRequest(e.setup.Suite.Group, req.Credential)
	if err != nil {
		return nil, fmt.Errorf("server: decode credential request: %w", err)
	}

	state, credResp, err := e.opaqueServer.StartLogin(record, credReq)
	if err != nil {
		return nil, fmt.Errorf("server: start login: %w", err)
	}

	resp := &auth.LoginResponse{
		Kind:       auth.ResponsePAKE,
		Credential: auth.ToWireCredentialResponse(credResp),
	}

	id := e.sessions.Put(loginSession{
		state:   state,
		machine: auth.NewServerStateMachine(),
		request: req,
	})
	resp.SessionID = id

	// The session is stashed before SessionID is known (Put assigns the
	// id), so patch the stored response in afterward; this is the exact
	// LoginResponse the client will receive and hash into its transcript.
	e.sessions.setResponse(id, resp)

	return resp, nil
}

// FinishLogin implements POST /auth/api/login/finalize: it recovers the
// stashed session by id (rejecting replay or unknown ids), verifies the
// client's inner AKE MAC, derives the outer confirmation key from the
// resulting session key, verifies the client's outer confirmation tag
// against the full request/response transcript, and — only once both
// checks pass — mints a bearer token.
func (e *Engine) FinishLogin(upload *auth.LoginUpload) (*auth.LoginCompletion, error) {
	timer := prometheusTimer("finish")
	defer timer()

	sess, ok := e.sessions.Take(upload.ID)
	if !ok {
		metrics.LoginAttempts.WithLabelValues("unauthorized").Inc()
		return auth.Unauthorized(), nil
	}

	if err := sess.machine.ReceivedUpload(); err != nil {
		metrics.LoginAttempts.WithLabelValues("unauthorized").Inc()
		return auth.Unauthorized(), nil
	}

	finalization := auth.FromWireCredentialFinalization(upload.Upload)

	sessionKey, err := e.opaqueServer.FinishLogin(sess.state, finalization)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("unauthorized").Inc()
		return auth.Unauthorized(), nil
	}

	confirmKey := auth.DeriveConfirmationKey(sessionKey)
	transcript := auth.ComputeTranscript(sess.request, sess.response)

	if !auth.VerifyClientTag(confirmKey, transcript, upload.ClientTag) {
		metrics.LoginAttempts.WithLabelValues("unauthorized").Inc()
		return auth.Unauthorized(), nil
	}

	token, err := e.tokens.Issue(sess.request.Username, sessionKeyFingerprint(sessionKey))
	if err != nil {
		return nil, fmt.Errorf("server: issue token: %w", err)
	}

	completion := &auth.LoginCompletion{
		Result: auth.LoginResult{Kind: auth.ResultSuccess, Token: token},
	}
	completion.ServerTag = auth.ServerTag(confirmKey, transcript)

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	e.log.WithSessionID(upload.ID.String()).Info("login succeeded", logger.String("username", sess.request.Username))

	return completion, nil
}

// sessionKeyFingerprint hashes sessionKey so the value bound into the
// issued token's "skh" claim can never be inverted back to the session
// key itself — spec.md §3 requires SessionKey is never transmitted, and
// that claim rides back to the client (and on to /rpc/token) over the
// wire.
func sessionKeyFingerprint(sessionKey []byte) []byte {
	sum := sha256.Sum256(sessionKey)
	return sum[:]
}

func prometheusTimer(phase string) func() {
	start := time.Now()
	return func() {
		metrics.HandshakeDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
	}
}
