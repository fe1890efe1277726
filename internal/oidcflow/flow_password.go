package oidcflow

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/oidc-agent/agentd/internal/account"
	"github.com/oidc-agent/agentd/internal/errkind"
)

// runPassword exchanges rec's stored username/password for a fresh token
// pair using the Resource Owner Password Credentials grant. The credential
// is single-use: it is cleared from rec whether or not the exchange
// succeeds, since a stored username/password older than the first use it
// was needed for is of no further value to the daemon.
func runPassword(ctx context.Context, client *http.Client, rec *account.Record, scopeOverride string) error {
	defer rec.ClearPassword()

	if rec.Username == nil || rec.Username.Empty() || rec.Password == nil || rec.Password.Empty() {
		return errkind.New(errkind.FlowFailed, "account has no stored username/password")
	}

	var username, password string
	if err := rec.Username.Borrow(func(plain []byte) { username = string(plain) }); err != nil {
		return errkind.Wrap(errkind.FlowFailed, "failed to read stored username", err)
	}
	if err := rec.Password.Borrow(func(plain []byte) { password = string(plain) }); err != nil {
		return errkind.Wrap(errkind.FlowFailed, "failed to read stored password", err)
	}

	data := url.Values{}
	data.Set("grant_type", "password")
	data.Set("username", username)
	data.Set("password", password)
	data.Set("client_id", rec.ClientID)
	if rec.ClientSecret != nil && !rec.ClientSecret.Empty() {
		var secret string
		if err := rec.ClientSecret.Borrow(func(plain []byte) { secret = string(plain) }); err != nil {
			return errkind.Wrap(errkind.FlowFailed, "failed to read stored client secret", err)
		}
		data.Set("client_secret", secret)
	}
	scope := scopeOverride
	if scope == "" {
		scope = rec.AccessTokenScope
	}
	if scope != "" {
		data.Set("scope", scope)
	}

	tr, expiry, oerr, err := postToken(ctx, client, rec.Endpoints.Token, data, time.Now())
	if err != nil {
		return err
	}
	if oerr != nil {
		return errkind.New(errkind.FlowFailed, "token endpoint rejected the password grant: "+oerr.Error)
	}

	applyTokenResponse(rec, tr, expiry)
	return nil
}
