package opaque

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerUser(t *testing.T, server *Server, username string, password []byte) *ClientRecord {
	t.Helper()

	cl := NewClient([]byte(username))
	regState, req := cl.StartRegistration(password)

	resp, err := server.StartRegistration(req, []byte("cred-id:"+username))
	require.NoError(t, err)

	upload, err := cl.FinishRegistration(regState, resp)
	require.NoError(t, err)

	record, err := server.FinishRegistration(upload)
	require.NoError(t, err)
	record.CredentialIdentifier = []byte("cred-id:" + username)

	return record
}

func TestRegistrationAndLoginRoundTrip(t *testing.T) {
	setup := SetupServer([]byte("verdant-test-server"))
	server, err := NewServer(setup)
	require.NoError(t, err)

	password := []byte("correct horse battery staple")
	record := registerUser(t, server, "alice", password)

	cl := NewClient([]byte("alice"))
	loginState, credReq := cl.StartLogin(password)

	serverState, credResp, err := server.StartLogin(record, credReq)
	require.NoError(t, err)

	clientSessionKey, finalization, err := cl.FinishLogin(loginState, setup.ServerPublicKey, credResp)
	require.NoError(t, err)
	require.NotEmpty(t, clientSessionKey)

	serverSessionKey, err := server.FinishLogin(serverState, finalization)
	require.NoError(t, err)

	assert.Equal(t, clientSessionKey, serverSessionKey, "client and server must derive the same session key")
}

func TestLoginWithWrongPasswordFailsClientSide(t *testing.T) {
	setup := SetupServer([]byte("verdant-test-server"))
	server, err := NewServer(setup)
	require.NoError(t, err)

	record := registerUser(t, server, "bob", []byte("the real password"))

	cl := NewClient([]byte("bob"))
	loginState, credReq := cl.StartLogin([]byte("a wrong guess"))

	_, credResp, err := server.StartLogin(record, credReq)
	require.NoError(t, err)

	_, _, err = cl.FinishLogin(loginState, setup.ServerPublicKey, credResp)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestFinishLoginRejectsReplayedFinalization(t *testing.T) {
	setup := SetupServer([]byte("verdant-test-server"))
	server, err := NewServer(setup)
	require.NoError(t, err)

	password := []byte("hunter2")
	record := registerUser(t, server, "carol", password)

	cl := NewClient([]byte("carol"))
	loginState, credReq := cl.StartLogin(password)

	serverState, credResp, err := server.StartLogin(record, credReq)
	require.NoError(t, err)

	_, finalization, err := cl.FinishLogin(loginState, setup.ServerPublicKey, credResp)
	require.NoError(t, err)

	_, err = server.FinishLogin(serverState, finalization)
	require.NoError(t, err)

	_, err = server.FinishLogin(serverState, finalization)
	assert.ErrorIs(t, err, ErrStateConsumed)
}

func TestUnknownUsernameGetsAStructurallyValidFakeRecord(t *testing.T) {
	setup := SetupServer([]byte("verdant-test-server"))
	server, err := NewServer(setup)
	require.NoError(t, err)

	fake := GetFakeRecord([]byte("cred-id:nobody"))
	require.NotNil(t, fake.Envelope)

	cl := NewClient([]byte("nobody"))
	loginState, credReq := cl.StartLogin([]byte("whatever"))

	_, credResp, err := server.StartLogin(fake, credReq)
	require.NoError(t, err, "an unknown user must still produce a structurally valid response")

	_, _, err = cl.FinishLogin(loginState, setup.ServerPublicKey, credResp)
	assert.Error(t, err, "a fake record must never authenticate")
}
