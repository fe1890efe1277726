package oidcflow

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/oidc-agent/agentd/internal/account"
	"github.com/oidc-agent/agentd/internal/errkind"
	"github.com/oidc-agent/agentd/internal/secretbuf"
)

// runRefresh exchanges rec's stored refresh token for a fresh access token.
// A terminal "invalid_grant" response means the refresh token itself is
// dead; every other failure (network error, 5xx, unexpected error code) is
// retryable by a later flow in the same composition.
func runRefresh(ctx context.Context, client *http.Client, rec *account.Record, scopeOverride string) error {
	if rec.RefreshToken == nil || rec.RefreshToken.Empty() {
		return errkind.New(errkind.NoRefreshToken, "account has no refresh token")
	}

	var refreshToken string
	if err := rec.RefreshToken.Borrow(func(plain []byte) {
		refreshToken = string(plain)
	}); err != nil {
		return errkind.Wrap(errkind.NoRefreshToken, "failed to read stored refresh token", err)
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
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
		if oerr.Error == "invalid_grant" {
			return errkind.New(errkind.NoRefreshToken, "refresh token rejected by issuer: "+oerr.ErrorDescription)
		}
		return errkind.New(errkind.UpstreamHTTP, "token endpoint rejected the refresh request: "+oerr.Error)
	}

	applyTokenResponse(rec, tr, expiry)
	return nil
}

// applyTokenResponse copies a successful token response onto rec. The
// refresh token is only replaced when the issuer actually rotated it.
func applyTokenResponse(rec *account.Record, tr *tokenResponse, expiry time.Time) {
	rec.AccessToken = secretbuf.New([]byte(tr.AccessToken))
	rec.AccessExpiry = expiry
	if tr.Scope != "" {
		rec.AccessTokenScope = tr.Scope
	}
	if tr.RefreshToken != "" {
		rec.RefreshToken = secretbuf.New([]byte(tr.RefreshToken))
	}
}
