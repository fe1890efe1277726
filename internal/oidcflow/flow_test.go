package oidcflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oidc-agent/agentd/internal/account"
	"github.com/oidc-agent/agentd/internal/secretbuf"
)

func newTestRecordWithToken(tokenEndpoint, refreshToken string) *account.Record {
	return &account.Record{
		Shortname:    "test",
		Issuer:       "https://issuer.example.com",
		ClientID:     "client-id",
		RefreshToken: secretbuf.New([]byte(refreshToken)),
		Endpoints:    account.Endpoints{Token: tokenEndpoint, Authorization: "https://issuer.example.com/auth"},
	}
}

func TestRunRefreshSuccessUpdatesTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.FormValue("grant_type"))
		assert.Equal(t, "rt-old", r.FormValue("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-new","refresh_token":"rt-new","expires_in":3600}`))
	}))
	defer srv.Close()

	rec := newTestRecordWithToken(srv.URL, "rt-old")
	err := runRefresh(context.Background(), srv.Client(), rec, "")
	require.NoError(t, err)

	var at string
	require.NoError(t, rec.AccessToken.Borrow(func(plain []byte) { at = string(plain) }))
	assert.Equal(t, "at-new", at)

	var rt string
	require.NoError(t, rec.RefreshToken.Borrow(func(plain []byte) { rt = string(plain) }))
	assert.Equal(t, "rt-new", rt)
	assert.False(t, rec.AccessExpiry.IsZero())
}

func TestRunRefreshInvalidGrantIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	rec := newTestRecordWithToken(srv.URL, "rt-dead")
	err := runRefresh(context.Background(), srv.Client(), rec, "")
	require.Error(t, err)
}

func TestRunRefreshWithNoRefreshTokenFailsFast(t *testing.T) {
	rec := newTestRecordWithToken("https://issuer.example.com/token", "")
	err := runRefresh(context.Background(), http.DefaultClient, rec, "")
	require.Error(t, err)
}

func TestStartAuthCodeSetsOutstandingState(t *testing.T) {
	rec := newTestRecordWithToken("https://issuer.example.com/token", "")
	rec.RedirectURIs = []string{"http://127.0.0.1:0/callback"}
	reg := account.New()
	require.NoError(t, reg.Add(rec))

	authURL, err := StartAuthCode(rec, reg)
	require.NoError(t, err)
	require.NotEmpty(t, rec.OutstandingState)
	require.NotEmpty(t, rec.CodeVerifier)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, rec.OutstandingState, parsed.Query().Get("state"))
	assert.Equal(t, "S256", parsed.Query().Get("code_challenge_method"))
	assert.NotEmpty(t, parsed.Query().Get("code_challenge"))

	found := reg.FindByOutstandingState(rec.OutstandingState)
	assert.Same(t, rec, found)
}

func TestCompleteAuthCodeExchangesCodeAndClearsState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.FormValue("grant_type"))
		assert.Equal(t, "verifier-xyz", r.FormValue("code_verifier"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","expires_in":60}`))
	}))
	defer srv.Close()

	rec := newTestRecordWithToken(srv.URL, "")
	rec.RedirectURIs = []string{"http://127.0.0.1:0/callback"}
	rec.CodeVerifier = "verifier-xyz"
	rec.OutstandingState = "state-xyz"
	reg := account.New()
	require.NoError(t, reg.Add(rec))
	reg.SetOutstandingState(rec, "state-xyz", "verifier-xyz")

	err := CompleteAuthCode(context.Background(), srv.Client(), rec, reg, "the-code")
	require.NoError(t, err)
	assert.Empty(t, rec.OutstandingState)
	assert.Nil(t, reg.FindByOutstandingState("state-xyz"))
}

func TestRunDeviceFlowPendingThenComplete(t *testing.T) {
	poll := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/device":
			w.Write([]byte(`{"device_code":"dc-1","user_code":"ABCD-EFGH","verification_uri":"https://issuer.example.com/device","interval":1}`))
		default:
			poll++
			if poll == 1 {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"authorization_pending"}`))
				return
			}
			w.Write([]byte(`{"access_token":"at-device","refresh_token":"rt-device","expires_in":120}`))
		}
	}))
	defer srv.Close()

	rec := newTestRecordWithToken(srv.URL+"/token", "")
	rec.Endpoints.DeviceAuthorization = srv.URL + "/device"

	accepted, err := StartDevice(context.Background(), srv.Client(), rec)
	require.NoError(t, err)
	assert.Equal(t, "ABCD-EFGH", accepted.UserCode)

	outcome, err := CompleteDevice(context.Background(), srv.Client(), rec)
	require.NoError(t, err)
	assert.Equal(t, DevicePollPending, outcome)

	outcome, err = CompleteDevice(context.Background(), srv.Client(), rec)
	require.NoError(t, err)
	assert.Equal(t, DevicePollComplete, outcome)
}
