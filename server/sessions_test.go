package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vivianlazaras/verdant/auth"
)

func TestSessionTableTakeIsSingleUse(t *testing.T) {
	table := NewSessionTable(time.Minute)

	id := table.Put(loginSession{machine: auth.NewServerStateMachine()})

	_, ok := table.Take(id)
	assert.True(t, ok)

	_, ok = table.Take(id)
	assert.False(t, ok, "a second Take for the same id must miss")
}

func TestSessionTableTakeRejectsUnknownID(t *testing.T) {
	table := NewSessionTable(time.Minute)

	_, ok := table.Take([16]byte{})
	assert.False(t, ok)
}

func TestSessionTableSweepExpiresStaleSessions(t *testing.T) {
	table := NewSessionTable(time.Millisecond)

	id := table.Put(loginSession{machine: auth.NewServerStateMachine()})

	time.Sleep(5 * time.Millisecond)
	table.Sweep()

	_, ok := table.Take(id)
	assert.False(t, ok, "Sweep must have removed the expired session before Take is ever called")
}

func TestSessionTableSetResponseIsVisibleToLaterTake(t *testing.T) {
	table := NewSessionTable(time.Minute)

	id := table.Put(loginSession{machine: auth.NewServerStateMachine()})
	resp := &auth.LoginResponse{Kind: auth.ResponsePAKE, SessionID: id}
	table.setResponse(id, resp)

	sess, ok := table.Take(id)
	assert.True(t, ok)
	assert.Same(t, resp, sess.response)
}
