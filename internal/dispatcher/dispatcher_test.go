package dispatcher

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oidc-agent/agentd/internal/account"
	"github.com/oidc-agent/agentd/internal/agent"
	"github.com/oidc-agent/agentd/internal/lockstate"
	"github.com/oidc-agent/agentd/pkg/log"
)

func newTestDispatcher(t *testing.T, httpClient *http.Client) (*Dispatcher, *agent.Context) {
	t.Helper()
	logger := log.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := agent.New(account.New(), lockstate.New(), httpClient, nil, logger)
	return New(ctx), ctx
}

// roundTrip issues one request over a net.Pipe connection directly into
// the dispatcher's connection handler and returns the decoded response.
func roundTrip(t *testing.T, d *Dispatcher, req map[string]interface{}) response {
	t.Helper()
	client, server := net.Pipe()

	body, err := json.Marshal(req)
	require.NoError(t, err)
	body = append(body, '\n')

	done := make(chan struct{})
	go func() {
		d.handleConn(context.Background(), server)
		close(done)
	}()

	_, err = client.Write(body)
	require.NoError(t, err)

	reader := bufio.NewReader(client)
	line, err := reader.ReadBytes('\n')
	require.NoError(t, err)

	var resp response
	require.NoError(t, json.Unmarshal(line, &resp))

	client.Close()
	<-done
	return resp
}

func TestAddThenAccessToken(t *testing.T) {
	issuer := newMockIssuer(t)
	defer issuer.Close()

	d, _ := newTestDispatcher(t, issuer.Client())

	addResp := roundTrip(t, d, map[string]interface{}{
		"request": "add",
		"account": map[string]interface{}{
			"shortname":     "acme",
			"issuer":        issuer.URL,
			"client_id":     "cid",
			"refresh_token": "rt-1",
		},
		"timeout": 3600,
	})
	require.Equal(t, "success", addResp.Status)

	tokenResp := roundTrip(t, d, map[string]interface{}{
		"request":          "access_token",
		"account_name":     "acme",
		"min_valid_period": 60,
	})
	assert.Equal(t, "success", tokenResp.Status)
	assert.Equal(t, "at-1", tokenResp.AccessToken)
	assert.Equal(t, issuer.URL, tokenResp.IssuerURL)
}

func TestAccessTokenNotLoadedWithNoPrompter(t *testing.T) {
	d, _ := newTestDispatcher(t, http.DefaultClient)

	resp := roundTrip(t, d, map[string]interface{}{
		"request":      "access_token",
		"account_name": "nope",
	})
	assert.Equal(t, "notfound", resp.Status)
}

func TestUnknownRequestIsBadRequest(t *testing.T) {
	d, _ := newTestDispatcher(t, http.DefaultClient)
	resp := roundTrip(t, d, map[string]interface{}{"request": "bogus"})
	assert.Equal(t, "badrequest", resp.Status)
}

func TestLockThenAccessTokenThenUnlock(t *testing.T) {
	issuer := newMockIssuer(t)
	defer issuer.Close()
	d, _ := newTestDispatcher(t, issuer.Client())

	addResp := roundTrip(t, d, map[string]interface{}{
		"request": "add",
		"account": map[string]interface{}{
			"shortname":     "acme",
			"issuer":        issuer.URL,
			"client_id":     "cid",
			"refresh_token": "rt-1",
		},
	})
	require.Equal(t, "success", addResp.Status)

	lockResp := roundTrip(t, d, map[string]interface{}{"request": "lock", "password": "pw"})
	require.Equal(t, "success", lockResp.Status)

	blockedResp := roundTrip(t, d, map[string]interface{}{"request": "access_token", "account_name": "acme"})
	assert.Equal(t, "locked", blockedResp.Kind)

	unlockResp := roundTrip(t, d, map[string]interface{}{"request": "unlock", "password": "pw"})
	require.Equal(t, "success", unlockResp.Status)

	okResp := roundTrip(t, d, map[string]interface{}{"request": "access_token", "account_name": "acme"})
	assert.Equal(t, "success", okResp.Status)
}

// newMockIssuer serves both a discovery document and a token endpoint
// returning a fixed successful token response, the way connector/oidc's
// tests stand up a mock provider.
func newMockIssuer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":                 srv.URL,
			"token_endpoint":         srv.URL + "/token",
			"authorization_endpoint": srv.URL + "/auth",
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","expires_in":3600}`))
	})

	srv = httptest.NewServer(mux)
	return srv
}
