package oidcflow

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/oidc-agent/agentd/internal/account"
	"github.com/oidc-agent/agentd/internal/errkind"
)

// StartAuthCode begins the Authorization Code + PKCE flow: it mints a
// state/verifier pair, records them against rec so the eventual redirect
// (or the redirect-capture helper) can find its way back, and returns the
// URL the user must visit. The caller answers the client with that URL
// right away; a later code_exchange request or a captured redirect then
// drives CompleteAuthCode.
func StartAuthCode(rec *account.Record, reg *account.Registry) (string, error) {
	if len(rec.RedirectURIs) == 0 {
		return "", errkind.New(errkind.NoRedirectURIs, "account has no redirect URIs configured")
	}
	if rec.Endpoints.Authorization == "" {
		return "", errkind.New(errkind.BadRequest, "account has no authorization endpoint configured")
	}

	state, err := newState()
	if err != nil {
		return "", errkind.Wrap(errkind.FlowFailed, "failed to generate state", err)
	}
	verifier, err := newPKCEVerifier()
	if err != nil {
		return "", errkind.Wrap(errkind.FlowFailed, "failed to generate PKCE verifier", err)
	}

	cfg := authCodeConfig(rec)
	authURL := cfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", pkceChallenge(verifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)

	reg.SetOutstandingState(rec, state, verifier)
	return authURL, nil
}

// CompleteAuthCode finishes the flow once the redirect-capture helper has
// observed a matching "code" for rec's outstanding state. It exchanges the
// code (with the original PKCE verifier) for a token pair.
func CompleteAuthCode(ctx context.Context, client *http.Client, rec *account.Record, reg *account.Registry, code string) error {
	verifier := rec.CodeVerifier
	if verifier == "" {
		return errkind.New(errkind.FlowFailed, "account has no outstanding authorization-code exchange")
	}

	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", rec.RedirectURIs[0])
	data.Set("client_id", rec.ClientID)
	data.Set("code_verifier", verifier)
	if rec.ClientSecret != nil && !rec.ClientSecret.Empty() {
		var secret string
		if err := rec.ClientSecret.Borrow(func(plain []byte) { secret = string(plain) }); err != nil {
			return errkind.Wrap(errkind.FlowFailed, "failed to read stored client secret", err)
		}
		data.Set("client_secret", secret)
	}

	tr, expiry, oerr, err := postToken(ctx, client, rec.Endpoints.Token, data, time.Now())
	reg.ClearOutstandingState(rec)
	if err != nil {
		return err
	}
	if oerr != nil {
		return errkind.New(errkind.FlowFailed, "token endpoint rejected the code exchange: "+oerr.Error)
	}

	applyTokenResponse(rec, tr, expiry)
	return nil
}

// authCodeConfig builds the oauth2.Config used only to compose the
// authorization URL, mirroring connector/oidc's construction of the
// upstream oauth2.Config from a discovered provider's endpoints.
func authCodeConfig(rec *account.Record) *oauth2.Config {
	return &oauth2.Config{
		ClientID: rec.ClientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:  rec.Endpoints.Authorization,
			TokenURL: rec.Endpoints.Token,
		},
		RedirectURL: rec.RedirectURIs[0],
		Scopes:      rec.Scopes,
	}
}
