package auth

import "errors"

// Phase enumerates the states a single login attempt moves through on
// either side of the wire, per spec.md's client/server state machine.
type Phase int

const (
	// Idle is the state before StartLogin has been called.
	Idle Phase = iota
	// AwaitingServerResponse is the client's state after sending
	// LoginRequest, before LoginResponse arrives.
	AwaitingServerResponse
	// AwaitingServerCompletion is the client's state after sending
	// LoginUpload, before LoginCompletion arrives.
	AwaitingServerCompletion
	// Terminal is reached once a LoginCompletion (success or failure) has
	// been processed; the state machine will not advance further.
	Terminal
)

// ErrInvalidTransition is returned when an event arrives out of order —
// e.g. a duplicate LoginResponse, or a LoginUpload processed twice.
var ErrInvalidTransition = errors.New("auth: invalid state transition")

// ClientStateMachine tracks a single client-side login attempt's phase.
type ClientStateMachine struct {
	phase Phase
}

// NewClientStateMachine starts a fresh attempt in Idle.
func NewClientStateMachine() *ClientStateMachine {
	return &ClientStateMachine{phase: Idle}
}

// Phase returns the current phase.
func (c *ClientStateMachine) Phase() Phase { return c.phase }

// SentRequest advances Idle -> AwaitingServerResponse.
func (c *ClientStateMachine) SentRequest() error {
	if c.phase != Idle {
		return ErrInvalidTransition
	}
	c.phase = AwaitingServerResponse
	return nil
}

// ReceivedResponse advances AwaitingServerResponse -> AwaitingServerCompletion.
func (c *ClientStateMachine) ReceivedResponse() error {
	if c.phase != AwaitingServerResponse {
		return ErrInvalidTransition
	}
	c.phase = AwaitingServerCompletion
	return nil
}

// ReceivedCompletion advances AwaitingServerCompletion -> Terminal.
func (c *ClientStateMachine) ReceivedCompletion() error {
	if c.phase != AwaitingServerCompletion {
		return ErrInvalidTransition
	}
	c.phase = Terminal
	return nil
}

// ServerStateMachine tracks a single server-side login session's phase,
// keyed externally by session id (see server/sessions.go).
type ServerStateMachine struct {
	phase Phase
}

// NewServerStateMachine starts a fresh session in AwaitingServerResponse
// (the server's own response has already been computed and sent by the
// time a session is registered; it is waiting for the client's upload).
func NewServerStateMachine() *ServerStateMachine {
	return &ServerStateMachine{phase: AwaitingServerResponse}
}

// Phase returns the current phase.
func (s *ServerStateMachine) Phase() Phase { return s.phase }

// ReceivedUpload advances AwaitingServerResponse -> Terminal, rejecting a
// second finalize against the same session.
func (s *ServerStateMachine) ReceivedUpload() error {
	if s.phase != AwaitingServerResponse {
		return ErrInvalidTransition
	}
	s.phase = Terminal
	return nil
}
