package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientStateMachineHappyPath(t *testing.T) {
	m := NewClientStateMachine()
	assert.Equal(t, Idle, m.Phase())

	require.NoError(t, m.SentRequest())
	assert.Equal(t, AwaitingServerResponse, m.Phase())

	require.NoError(t, m.ReceivedResponse())
	assert.Equal(t, AwaitingServerCompletion, m.Phase())

	require.NoError(t, m.ReceivedCompletion())
	assert.Equal(t, Terminal, m.Phase())
}

func TestClientStateMachineRejectsOutOfOrderEvents(t *testing.T) {
	m := NewClientStateMachine()

	assert.ErrorIs(t, m.ReceivedResponse(), ErrInvalidTransition)
	assert.ErrorIs(t, m.ReceivedCompletion(), ErrInvalidTransition)

	require.NoError(t, m.SentRequest())
	assert.ErrorIs(t, m.SentRequest(), ErrInvalidTransition)
}

func TestServerStateMachineRejectsDuplicateUpload(t *testing.T) {
	m := NewServerStateMachine()
	assert.Equal(t, AwaitingServerResponse, m.Phase())

	require.NoError(t, m.ReceivedUpload())
	assert.Equal(t, Terminal, m.Phase())

	assert.ErrorIs(t, m.ReceivedUpload(), ErrInvalidTransition)
}
