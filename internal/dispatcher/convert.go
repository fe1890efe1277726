package dispatcher

import (
	"encoding/json"
	"strings"

	"github.com/oidc-agent/agentd/internal/account"
	"github.com/oidc-agent/agentd/internal/errkind"
	"github.com/oidc-agent/agentd/internal/prompter"
	"github.com/oidc-agent/agentd/internal/secretbuf"
)

// recordFromPrompterConfig builds a *account.Record from the configuration
// an autoload round trip returned. Unlike parseAccount's wire decoding,
// this never carries a username/password: autoload resolves straight to a
// refresh token or an already-registered client.
func recordFromPrompterConfig(cfg *prompter.AccountConfig) (*account.Record, error) {
	if cfg.Shortname == "" {
		return nil, errkind.New(errkind.BadRequest, "prompter returned a configuration with no shortname")
	}
	rec := &account.Record{
		Shortname:    cfg.Shortname,
		Issuer:       cfg.Issuer,
		ClientID:     cfg.ClientID,
		RedirectURIs: cfg.RedirectURIs,
		Scopes:       cfg.Scopes,
	}
	if len(cfg.Scopes) > 0 {
		rec.AccessTokenScope = strings.Join(cfg.Scopes, " ")
	}
	if cfg.ClientSecret != "" {
		rec.ClientSecret = secretbuf.New([]byte(cfg.ClientSecret))
	}
	if cfg.RefreshToken != "" {
		rec.RefreshToken = secretbuf.New([]byte(cfg.RefreshToken))
	}
	return rec, nil
}

// parseAccount decodes req's "account" field into a fresh *account.Record.
// Secrets are wrapped in secretbuf.Buffer immediately so a plain copy never
// lingers in the decoded wire struct longer than this function.
func parseAccount(raw json.RawMessage) (*account.Record, error) {
	if len(raw) == 0 {
		return nil, errkind.New(errkind.BadRequest, "missing account configuration")
	}

	var cfg accountConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, errkind.Wrap(errkind.BadRequest, "malformed account configuration", err)
	}
	if cfg.Shortname == "" {
		return nil, errkind.New(errkind.BadRequest, "account configuration has no shortname")
	}

	rec := &account.Record{
		Shortname:        cfg.Shortname,
		Issuer:           cfg.Issuer,
		ClientID:         cfg.ClientID,
		RedirectURIs:     cfg.RedirectURIs,
		ConfirmationNeeded: cfg.Confirm,
	}
	if cfg.Scope != "" {
		rec.Scopes = strings.Fields(cfg.Scope)
		rec.AccessTokenScope = cfg.Scope
	}
	if cfg.ClientSecret != "" {
		rec.ClientSecret = secretbuf.New([]byte(cfg.ClientSecret))
	}
	if cfg.RefreshToken != "" {
		rec.RefreshToken = secretbuf.New([]byte(cfg.RefreshToken))
	}
	if cfg.Username != "" {
		rec.Username = secretbuf.New([]byte(cfg.Username))
	}
	if cfg.Password != "" {
		rec.Password = secretbuf.New([]byte(cfg.Password))
	}
	if cfg.DeviceAuth != "" {
		rec.Endpoints.DeviceAuthorization = cfg.DeviceAuth
		rec.Endpoints.DeviceAuthorizationIsSet = true
	}
	return rec, nil
}

// recordConfig is the shape returned to the client in a "config" field,
// mirroring accountConfig but never carrying the client secret, password,
// or username: only what a client needs to later re-add the account.
type recordConfig struct {
	Shortname    string   `json:"shortname"`
	Issuer       string   `json:"issuer"`
	ClientID     string   `json:"client_id"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	RedirectURIs []string `json:"redirect_uris,omitempty"`
	Scope        string   `json:"scope,omitempty"`
}

func marshalConfig(rec *account.Record) json.RawMessage {
	cfg := recordConfig{
		Shortname:    rec.Shortname,
		Issuer:       rec.Issuer,
		ClientID:     rec.ClientID,
		RedirectURIs: rec.RedirectURIs,
		Scope:        rec.AccessTokenScope,
	}
	if rec.RefreshToken != nil {
		if plain, err := rec.RefreshToken.Reveal(); err == nil {
			cfg.RefreshToken = string(plain)
		}
	}
	body, err := json.Marshal(cfg)
	if err != nil {
		return nil
	}
	return body
}
