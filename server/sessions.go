package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	opaque "github.com/vivianlazaras/verdant"
	"github.com/vivianlazaras/verdant/auth"
	"github.com/vivianlazaras/verdant/internal/metrics"
)

// loginSession is the ephemeral per-attempt state held between a server's
// StartLogin and FinishLogin, keyed by a UUID the client must echo back on
// finalize. Removed on first terminal event (success or failure); a
// duplicate finalize against the same id is rejected.
type loginSession struct {
	state      *opaque.ServerLoginState
	machine    *auth.ServerStateMachine
	confirmKey []byte
	request    *auth.LoginRequest
	response   *auth.LoginResponse
	expires    time.Time
}

// SessionTable holds in-flight login sessions. Grounded on the
// pending-state map + cleanup ticker pattern used for ephemeral handshake
// state elsewhere in this corpus, adapted here to key by uuid.UUID and to
// carry OPAQUE/auth session material instead of a DH secret.
type SessionTable struct {
	mu      sync.Mutex
	ttl     time.Duration
	pending map[uuid.UUID]loginSession
}

// NewSessionTable returns an empty table with the given per-session TTL
// (spec.md §5 recommends 30s).
func NewSessionTable(ttl time.Duration) *SessionTable {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &SessionTable{ttl: ttl, pending: make(map[uuid.UUID]loginSession)}
}

// Put registers a new in-flight session and returns its id.
func (t *SessionTable) Put(s loginSession) uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := uuid.New()
	s.expires = time.Now().Add(t.ttl)
	t.pending[id] = s
	metrics.SessionsActive.Set(float64(len(t.pending)))

	return id
}

// setResponse records the exact LoginResponse sent for session id, so
// FinishLogin can later recompute the identical transcript the client
// hashed on its side.
func (t *SessionTable) setResponse(id uuid.UUID, resp *auth.LoginResponse) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.pending[id]; ok {
		s.response = resp
		t.pending[id] = s
	}
}

// Take removes and returns the session for id, if present and unexpired.
// A second call for the same id always misses, which is what rejects a
// duplicate finalize.
func (t *SessionTable) Take(id uuid.UUID) (loginSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.pending[id]
	if !ok {
		return loginSession{}, false
	}

	delete(t.pending, id)
	metrics.SessionsActive.Set(float64(len(t.pending)))

	if time.Now().After(s.expires) {
		metrics.SessionsExpired.Inc()
		return loginSession{}, false
	}

	return s, true
}

// Sweep deletes any session past its expiry without ever being finalized.
// Run calls it on a ticker; cmd/verdant-server starts Run in a goroutine.
func (t *SessionTable) Sweep() {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	for id, s := range t.pending {
		if now.After(s.expires) {
			delete(t.pending, id)
			metrics.SessionsExpired.Inc()
		}
	}

	metrics.SessionsActive.Set(float64(len(t.pending)))
}

// Run drives Sweep on d until ctx-equivalent stop channel is closed. The
// caller is expected to launch this in its own goroutine, mirroring the
// rest of this module's background-task convention.
func (t *SessionTable) Run(stop <-chan struct{}, d time.Duration) {
	ticker := time.NewTicker(d)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.Sweep()
		case <-stop:
			return
		}
	}
}
