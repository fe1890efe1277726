package dispatcher

import (
	"context"
	"time"

	"github.com/oidc-agent/agentd/internal/account"
	"github.com/oidc-agent/agentd/internal/errkind"
	"github.com/oidc-agent/agentd/internal/oidcflow"
	"github.com/oidc-agent/agentd/internal/secretbuf"
)

// handleAccessToken implements "access_token": return an access token
// valid for at least min_valid_period seconds, refreshing or autoloading
// as necessary.
func (d *Dispatcher) handleAccessToken(ctx context.Context, req request) response {
	if req.AccountName == "" {
		return badRequest("missing account_name")
	}

	rec := d.agent.Registry.FindByShortname(req.AccountName)
	if rec == nil {
		loaded, err := d.autoload(ctx, req.AccountName, req.ApplicationHint)
		if err != nil {
			return responseFor(err)
		}
		if loaded == nil {
			return notFound("account not loaded: " + req.AccountName)
		}
		rec = loaded
	}

	// A scope explicitly requested that the account has never consented to
	// before re-triggers confirmation even if the account's general
	// confirmation flag was already satisfied once.
	scopeEscalation := req.Scope != "" && req.Scope != rec.AccessTokenScope
	if rec.ConfirmationNeeded || scopeEscalation {
		if err := d.confirm(rec.Shortname, req.ApplicationHint); err != nil {
			return responseFor(err)
		}
	}

	minValid := time.Duration(req.MinValidPeriod) * time.Second
	now := time.Now()

	if rec.AccessToken != nil && !rec.AccessToken.Empty() && !rec.AccessExpiry.IsZero() {
		scopeMatches := req.Scope == "" || req.Scope == rec.AccessTokenScope
		if scopeMatches && rec.AccessExpiry.After(now.Add(minValid)) {
			return tokenResponseFor(rec)
		}
	}

	// A scoped request must not clobber the account's default-scope cached
	// token: the record's cached access token is only ever for the default
	// scope, so a scoped fetch is applied to the response and then the
	// record's cached fields are restored to whatever they held before.
	var cachedToken *secretbuf.Buffer
	var cachedExpiry time.Time
	var cachedScope string
	restoreCache := req.Scope != ""
	if restoreCache {
		cachedToken = rec.AccessToken
		cachedExpiry = rec.AccessExpiry
		cachedScope = rec.AccessTokenScope
	}

	if _, err := oidcflow.Run(ctx, d.agent.HTTP, rec, d.agent.Registry, []oidcflow.FlowName{oidcflow.FlowRefresh}, req.Scope); err != nil {
		return responseFor(err)
	}

	resp := tokenResponseFor(rec)

	if restoreCache {
		scopedToken := rec.AccessToken
		rec.AccessToken = cachedToken
		rec.AccessExpiry = cachedExpiry
		rec.AccessTokenScope = cachedScope
		if scopedToken != cachedToken {
			scopedToken.Release()
		}
	}

	return resp
}

func tokenResponseFor(rec *account.Record) response {
	resp := success()
	resp.IssuerURL = rec.Issuer
	resp.ExpiresAt = rec.AccessExpiry.Unix()
	if rec.AccessToken != nil {
		if plain, err := rec.AccessToken.Reveal(); err == nil {
			resp.AccessToken = string(plain)
		}
	}
	return resp
}

// autoload asks the prompter to resolve an account the registry does not
// currently hold, loading it via the refresh flow on success.
func (d *Dispatcher) autoload(ctx context.Context, shortname, applicationHint string) (*account.Record, error) {
	if d.agent.Prompter == nil {
		return nil, nil
	}
	cfg, err := d.agent.Prompter.Autoload(shortname, applicationHint)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, nil
	}

	rec, err := recordFromPrompterConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := oidcflow.Discover(ctx, d.agent.HTTP, rec); err != nil {
		return nil, err
	}
	if _, err := oidcflow.Run(ctx, d.agent.HTTP, rec, d.agent.Registry, []oidcflow.FlowName{oidcflow.FlowRefresh}, ""); err != nil {
		return nil, err
	}
	if err := d.agent.Registry.Add(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (d *Dispatcher) confirm(shortname, applicationHint string) error {
	if d.agent.Prompter == nil {
		return errkind.New(errkind.PrompterFailed, "no prompter configured")
	}
	return d.agent.Prompter.Confirm(shortname, applicationHint)
}
