package server

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	opaque "github.com/vivianlazaras/verdant"
	"github.com/vivianlazaras/verdant/auth"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	setup := opaque.SetupServer([]byte("engine-test-server"))
	users := NewUserStore()

	tokens, err := NewTokenIssuer(15 * time.Minute)
	require.NoError(t, err)

	engine, err := NewEngine(setup, users, 30*time.Second, tokens, nil)
	require.NoError(t, err)

	return engine
}

// register runs one full registration against engine via its own
// StartRegistration/FinishRegistration (not HTTP), mirroring the wire-level
// sequence server/http.go's handlers drive.
func register(t *testing.T, engine *Engine, username, password string) {
	t.Helper()

	cl := opaque.NewClient([]byte(username))
	state, req := cl.StartRegistration([]byte(password))

	resp, err := engine.StartRegistration(req, username)
	require.NoError(t, err)

	upload, err := cl.FinishRegistration(state, resp)
	require.NoError(t, err)

	require.NoError(t, engine.FinishRegistration(username, upload))
}

// loginResult bundles everything one full login attempt against engine
// produces, so a test can inspect or reuse any part of it afterward.
type loginResult struct {
	resp       *auth.LoginResponse
	upload     *auth.LoginUpload
	completion *auth.LoginCompletion
	confirmKey []byte
	transcript []byte
}

// login drives one full login against engine via StartLogin/FinishLogin,
// the same sequence server/http.go's handlers drive over the wire.
func login(t *testing.T, engine *Engine, username, password string) loginResult {
	t.Helper()

	cl := opaque.NewClient([]byte(username))
	loginState, credReq := cl.StartLogin([]byte(password))

	req := &auth.LoginRequest{Username: username, Credential: auth.ToWireCredentialRequest(credReq)}

	resp, err := engine.StartLogin(req)
	require.NoError(t, err)
	require.Equal(t, auth.ResponsePAKE, resp.Kind)

	credResp, err := auth.FromWireCredentialResponse(engine.setup.Suite.Group, resp.Credential)
	require.NoError(t, err)

	sessionKey, finalization, err := cl.FinishLogin(loginState, engine.setup.ServerPublicKey, credResp)
	require.NoError(t, err)

	confirmKey := auth.DeriveConfirmationKey(sessionKey)
	transcript := auth.ComputeTranscript(req, resp)
	clientTag := auth.ClientTag(confirmKey, transcript)

	upload := &auth.LoginUpload{ID: resp.SessionID, Upload: auth.ToWireCredentialFinalization(finalization), ClientTag: clientTag}

	completion, err := engine.FinishLogin(upload)
	require.NoError(t, err)

	return loginResult{resp: resp, upload: upload, completion: completion, confirmKey: confirmKey, transcript: transcript}
}

// TestFinishLoginRejectsReplayedUpload exercises scenario S4: resubmitting
// an already-consumed LoginUpload must never succeed a second time, since
// its session was removed from the pending table on first use.
func TestFinishLoginRejectsReplayedUpload(t *testing.T) {
	engine := newTestEngine(t)
	register(t, engine, "dana", "hunter2")

	first := login(t, engine, "dana", "hunter2")
	require.Equal(t, auth.ResultSuccess, first.completion.Result.Kind)
	require.True(t, auth.VerifyServerTag(first.confirmKey, first.transcript, first.completion.ServerTag))

	replay, err := engine.FinishLogin(first.upload)
	require.NoError(t, err)
	assert.Equal(t, auth.ResultUnauthorized, replay.Result.Kind)
	assert.Empty(t, replay.ServerTag, "a rejected replay must not carry a confirmation tag")
}

// TestConcurrentLoginsForSameUserAreIndependent exercises scenario S6: two
// logins for the same account running at once must never share a session
// key or a confirmation tag, even though they authenticate the same
// underlying ClientRecord concurrently.
func TestConcurrentLoginsForSameUserAreIndependent(t *testing.T) {
	engine := newTestEngine(t)
	register(t, engine, "erin", "swordfish")

	var wg sync.WaitGroup
	results := make([]loginResult, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = login(t, engine, "erin", "swordfish")
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.Equal(t, auth.ResultSuccess, results[i].completion.Result.Kind)
	}

	assert.NotEqual(t, results[0].resp.SessionID, results[1].resp.SessionID, "each login must get a distinct session id")
	assert.NotEqual(t, results[0].confirmKey, results[1].confirmKey, "each login must derive a distinct confirmation key")

	assert.True(t, auth.VerifyServerTag(results[0].confirmKey, results[0].transcript, results[0].completion.ServerTag))
	assert.True(t, auth.VerifyServerTag(results[1].confirmKey, results[1].transcript, results[1].completion.ServerTag))

	assert.False(t, auth.VerifyServerTag(results[0].confirmKey, results[0].transcript, results[1].completion.ServerTag),
		"session 1's server tag must not verify under session 0's confirmation key and transcript")
	assert.False(t, auth.VerifyServerTag(results[1].confirmKey, results[1].transcript, results[0].completion.ServerTag),
		"session 0's server tag must not verify under session 1's confirmation key and transcript")
}
