package client_test

import (
	"net"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	opaque "github.com/vivianlazaras/verdant"
	"github.com/vivianlazaras/verdant/client"
	"github.com/vivianlazaras/verdant/server"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	setup := opaque.SetupServer([]byte("e2e-test-server"))
	users := server.NewUserStore()

	tokens, err := server.NewTokenIssuer(15 * time.Minute)
	require.NoError(t, err)

	engine, err := server.NewEngine(setup, users, 30*time.Second, tokens, nil)
	require.NoError(t, err)

	httpServer := server.NewHTTPServer("127.0.0.1:0", engine, nil, nil)

	return httptest.NewServer(httpServer.Handler())
}

// TestFullLoginFlowAgainstAnInProcessServer walks through every step scenario
// S1 (spec.md) describes: bootstrap trust in the server's signing key,
// register an account, log in, and end up with a validated bearer token.
func TestFullLoginFlowAgainstAnInProcessServer(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	bootstrap := client.NewBootstrap(2 * time.Second)
	_, keyType, keyfunc, err := bootstrap.Verify(srv.URL, nil)
	require.NoError(t, err)

	api := client.NewAPIClient(srv.URL, 2*time.Second, keyType, keyfunc, nil)

	serverPublicKey, err := api.Register("alice", "correct horse battery staple")
	require.NoError(t, err)
	require.NotNil(t, serverPublicKey)

	loggedInAPI := client.NewAPIClient(srv.URL, 2*time.Second, keyType, keyfunc, serverPublicKey)

	token, err := loggedInAPI.Login("alice", "correct horse battery staple")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

// TestFullLoginFlowRejectsWrongPassword exercises scenario S2: a login
// attempt with the wrong password must fail, never succeed partially.
func TestFullLoginFlowRejectsWrongPassword(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	bootstrap := client.NewBootstrap(2 * time.Second)
	_, keyType, keyfunc, err := bootstrap.Verify(srv.URL, nil)
	require.NoError(t, err)

	api := client.NewAPIClient(srv.URL, 2*time.Second, keyType, keyfunc, nil)
	serverPublicKey, err := api.Register("bob", "the real password")
	require.NoError(t, err)

	loggedInAPI := client.NewAPIClient(srv.URL, 2*time.Second, keyType, keyfunc, serverPublicKey)
	_, err = loggedInAPI.Login("bob", "a wrong guess")
	assert.Error(t, err)
}

// TestOrchestratorReportsUnknownServer exercises the orchestrator's command
// pump for a login aimed at a server it has never bootstrapped against.
func TestOrchestratorReportsUnknownServer(t *testing.T) {
	o := client.NewOrchestrator(200*time.Millisecond, nil)
	defer o.Shutdown()

	o.Login("https://127.0.0.1:1", "nobody", "whatever")

	select {
	case ev := <-o.Events():
		require.Equal(t, client.EventLoginResult, ev.Kind)
		assert.Equal(t, client.ResultUnknownServer, ev.LoginResult.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for orchestrator event")
	}
}

// TestOrchestratorEmitsServerDiscovered exercises the ServerDiscovered
// command/event pair, mirroring the background-beacon path.
func TestOrchestratorEmitsServerDiscovered(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	o := client.NewOrchestrator(2*time.Second, nil)
	defer o.Shutdown()

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	o.Commands() <- client.Command{
		Kind: client.CommandServerDiscovered,
		ServerDiscovered: client.Discovery{
			ID:     "srv-1",
			Name:   "test",
			IP:     host,
			Port:   port,
			Scheme: "http",
		},
	}

	select {
	case ev := <-o.Events():
		require.Equal(t, client.EventServerDiscovered, ev.Kind)
		assert.Equal(t, "srv-1", ev.ServerDiscovered.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for orchestrator event")
	}
}

// TestOrchestratorRegisterThenLogin drives a full register-then-login
// sequence exclusively through Orchestrator.Register/Orchestrator.Login —
// unlike TestFullLoginFlowAgainstAnInProcessServer, this never constructs
// an APIClient by hand: the login reuses the APIClient the orchestrator
// cached during registration, whose server public key Register pinned.
func TestOrchestratorRegisterThenLogin(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	o := client.NewOrchestrator(2*time.Second, nil)
	defer o.Shutdown()

	o.Register(srv.URL, "carol", "hunter2 but better")

	select {
	case ev := <-o.Events():
		require.Equal(t, client.EventRegistered, ev.Kind)
		require.Equal(t, srv.URL, ev.Registered.URL)
		assert.NotEmpty(t, ev.Registered.ServerPublicKey)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for registration event")
	}

	o.Login(srv.URL, "carol", "hunter2 but better")

	select {
	case ev := <-o.Events():
		require.Equal(t, client.EventLoginResult, ev.Kind)
		require.Equal(t, client.ResultSuccess, ev.LoginResult.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for login result event")
	}

	select {
	case ev := <-o.Events():
		require.Equal(t, client.EventLkToken, ev.Kind)
		assert.NotEmpty(t, ev.Token)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for token event")
	}
}

// TestOrchestratorLoginAgainstUnregisteredServerNeverPanics guards the
// regression this test file targets: a Login command sent straight through
// the orchestrator against a server it has neither discovered nor
// registered against must surface ResultUnauthorized (via the
// nil-server-key guard in APIClient.Login), never panic.
func TestOrchestratorLoginAgainstUnregisteredServerNeverPanics(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	o := client.NewOrchestrator(2*time.Second, nil)
	defer o.Shutdown()

	o.Login(srv.URL, "dave", "whatever")

	select {
	case ev := <-o.Events():
		require.Equal(t, client.EventLoginResult, ev.Kind)
		assert.Equal(t, client.ResultUnauthorized, ev.LoginResult.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for orchestrator event")
	}
}
