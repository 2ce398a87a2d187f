package client

import (
	"sync"
	"time"

	opaque "github.com/vivianlazaras/verdant"
	"github.com/vivianlazaras/verdant/internal/curve"
	"github.com/vivianlazaras/verdant/internal/logger"
)

// Command is anything the orchestrator's single consumer goroutine accepts
// on its inbound channel, mirroring original_source/services.rs's
// VerdantCmd enum (Login, ServerDiscovered) as a Go sum-by-struct-fields
// type rather than a Rust enum.
type Command struct {
	Kind             CommandKind
	LoginRequest     LoginRequest
	RegisterRequest  LoginRequest
	ServerDiscovered Discovery
}

// CommandKind discriminates Command, the same tagged-sum pattern used for
// auth.ResponseKind/auth.ResultKind.
type CommandKind int

const (
	CommandLogin CommandKind = iota
	CommandServerDiscovered
	CommandRegister
)

// LoginRequest carries the login (or registration) the UI thread asked
// for, mirroring original_source/services.rs's LoginRequest. Registration
// shares the same shape since it takes the same three fields.
type LoginRequest struct {
	URL      string
	Username string
	Password string
}

// Event is anything the orchestrator emits back to the UI thread, mirroring
// VerdantUiCmd (LoginResult, ServerDiscovered, LkToken).
type Event struct {
	Kind             EventKind
	LoginResult      LoginResult
	ServerDiscovered Discovery
	TokenServerURL   string
	Token            string
	Registered       Registered
}

type EventKind int

const (
	EventLoginResult EventKind = iota
	EventServerDiscovered
	EventLkToken
	EventRegistered
)

// Registered is emitted once a CommandRegister completes: the server's
// static AKE public key learned during registration, curve-encoded, so a
// host UI can persist it into a Discovery record for future runs (the
// orchestrator itself also pins it immediately for subsequent logins
// against the same URL within this process).
type Registered struct {
	URL             string
	ServerPublicKey []byte
}

// LoginResult is the orchestrator's user-facing outcome of a login attempt
// — always one of these three, never a raw protocol error. A bootstrap
// failure against the target URL is reported as UnknownServer; every
// *Error from APIClient.Login collapses to Unauthorized, per spec.md's
// scenario S2: the UI never learns whether a login failed because of a
// wrong password, a tampered response, or a bad token signature, only that
// it failed. There is no separate password-reset result: a server's OTP
// response is reported as Unauthorized too.
type LoginResult struct {
	Kind LoginResultKind
	URL  string
}

type LoginResultKind int

const (
	ResultSuccess LoginResultKind = iota
	ResultUnauthorized
	ResultUnknownServer
)

// Orchestrator pumps Commands from a UI thread to background login work and
// Events back, exactly the role original_source/services.rs's
// VerdantService/verdant_service pair play, but expressed as one goroutine
// reading off a Go channel instead of a tokio task reading an mpsc receiver.
type Orchestrator struct {
	cmdCh chan Command
	evCh  chan Event

	mu         sync.Mutex
	clients    map[string]*APIClient
	serverKeys map[string]*curve.Element

	bootstrapTimeout time.Duration
	log              logger.Logger

	stop chan struct{}
}

// NewOrchestrator starts the consumer goroutine and returns the handle a UI
// thread uses to send commands and drain events.
func NewOrchestrator(bootstrapTimeout time.Duration, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.Default()
	}

	o := &Orchestrator{
		cmdCh:            make(chan Command, 16),
		evCh:             make(chan Event, 16),
		clients:          make(map[string]*APIClient),
		serverKeys:       make(map[string]*curve.Element),
		bootstrapTimeout: bootstrapTimeout,
		log:              log,
		stop:             make(chan struct{}),
	}

	go o.run()

	return o
}

// Commands returns the channel a UI thread sends Commands on.
func (o *Orchestrator) Commands() chan<- Command { return o.cmdCh }

// Events returns the channel a UI thread receives Events from.
func (o *Orchestrator) Events() <-chan Event { return o.evCh }

// Login is a convenience wrapper around sending a CommandLogin, mirroring
// VerdantService::login.
func (o *Orchestrator) Login(url, username, password string) {
	o.cmdCh <- Command{
		Kind:         CommandLogin,
		LoginRequest: LoginRequest{URL: url, Username: username, Password: password},
	}
}

// Register is a convenience wrapper around sending a CommandRegister. Once
// it completes, the orchestrator pins the server's static AKE public key
// it learns for every subsequent Login against the same url and emits an
// EventRegistered carrying that key for the host UI to persist.
func (o *Orchestrator) Register(url, username, password string) {
	o.cmdCh <- Command{
		Kind:            CommandRegister,
		RegisterRequest: LoginRequest{URL: url, Username: username, Password: password},
	}
}

// Shutdown stops the consumer goroutine. Already-enqueued commands are
// dropped.
func (o *Orchestrator) Shutdown() {
	close(o.stop)
}

func (o *Orchestrator) run() {
	for {
		select {
		case <-o.stop:
			return
		case cmd := <-o.cmdCh:
			o.handle(cmd)
		}
	}
}

func (o *Orchestrator) handle(cmd Command) {
	switch cmd.Kind {
	case CommandServerDiscovered:
		o.handleDiscovered(cmd.ServerDiscovered)
	case CommandLogin:
		o.handleLogin(cmd.LoginRequest)
	case CommandRegister:
		o.handleRegister(cmd.RegisterRequest)
	}
}

func (o *Orchestrator) handleDiscovered(d Discovery) {
	var pinned *curve.Element
	if len(d.ServerPublicKey) > 0 {
		key, err := curve.DecodeElement(opaque.DefaultSuite.Group, d.ServerPublicKey)
		if err != nil {
			o.log.Warn("discovery carried an undecodable server public key", logger.String("url", d.URL()), logger.Error(err))
		} else {
			pinned = key
		}
	}

	client, err := o.clientFor(d.URL(), d.PubkeyHash, pinned)
	if err != nil {
		o.log.Warn("bootstrap failed for discovered server", logger.String("url", d.URL()), logger.Error(err))
		return
	}

	o.mu.Lock()
	o.clients[d.URL()] = client
	if pinned != nil {
		o.serverKeys[d.URL()] = pinned
	}
	o.mu.Unlock()

	o.evCh <- Event{Kind: EventServerDiscovered, ServerDiscovered: d}
}

func (o *Orchestrator) handleLogin(req LoginRequest) {
	o.mu.Lock()
	client, ok := o.clients[req.URL]
	o.mu.Unlock()

	if !ok {
		o.mu.Lock()
		pinned := o.serverKeys[req.URL]
		o.mu.Unlock()

		var err error
		client, err = o.clientFor(req.URL, nil, pinned)
		if err != nil {
			o.log.Warn("login bootstrap failed", logger.String("url", req.URL), logger.Error(err))
			o.evCh <- Event{Kind: EventLoginResult, LoginResult: LoginResult{Kind: ResultUnknownServer, URL: req.URL}}
			return
		}

		o.mu.Lock()
		o.clients[req.URL] = client
		o.mu.Unlock()
	}

	token, err := client.Login(req.Username, req.Password)
	if err != nil {
		o.log.Warn("login failed", logger.String("username", req.Username), logger.Error(err))
		o.evCh <- Event{Kind: EventLoginResult, LoginResult: LoginResult{Kind: ResultUnauthorized, URL: req.URL}}
		return
	}

	o.evCh <- Event{Kind: EventLoginResult, LoginResult: LoginResult{Kind: ResultSuccess, URL: req.URL}}
	o.evCh <- Event{Kind: EventLkToken, TokenServerURL: req.URL, Token: token}
}

// handleRegister runs a full registration against req.URL and pins the
// server's static AKE public key it learns, so a Login command against
// the same URL later in this process never hits a nil pinned key.
func (o *Orchestrator) handleRegister(req LoginRequest) {
	o.mu.Lock()
	client, ok := o.clients[req.URL]
	o.mu.Unlock()

	if !ok {
		var err error
		client, err = o.clientFor(req.URL, nil, nil)
		if err != nil {
			o.log.Warn("registration bootstrap failed", logger.String("url", req.URL), logger.Error(err))
			return
		}
	}

	serverPublicKey, err := client.Register(req.Username, req.Password)
	if err != nil {
		o.log.Warn("registration failed", logger.String("username", req.Username), logger.Error(err))
		return
	}

	o.mu.Lock()
	o.clients[req.URL] = client
	o.serverKeys[req.URL] = serverPublicKey
	o.mu.Unlock()

	o.evCh <- Event{
		Kind:       EventRegistered,
		Registered: Registered{URL: req.URL, ServerPublicKey: serverPublicKey.Encode()},
	}
}

// clientFor bootstraps a fresh APIClient against url: fetches and pins the
// server's signing key (checked against pubkeyHash when non-nil), and
// binds serverPublicKey — the AKE static public key pinned via a prior
// Discovery record or registration, if any is known yet. serverPublicKey
// may be nil; APIClient.Login then stops with KindNoServerKey before
// running FinishLogin.
func (o *Orchestrator) clientFor(url string, pubkeyHash []byte, serverPublicKey *curve.Element) (*APIClient, error) {
	bootstrap := NewBootstrap(o.bootstrapTimeout)

	_, keyType, keyfunc, err := bootstrap.Verify(url, pubkeyHash)
	if err != nil {
		return nil, err
	}

	return NewAPIClient(url, o.bootstrapTimeout, keyType, keyfunc, serverPublicKey), nil
}
