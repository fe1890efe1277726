package dispatcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/oidc-agent/agentd/internal/errkind"
	"github.com/oidc-agent/agentd/internal/oidcflow"
)

func errUnexpectedStatus(code int) error {
	return fmt.Errorf("unexpected status code %d", code)
}

// handleRemove implements "remove": evict by shortname only.
func (d *Dispatcher) handleRemove(req request) response {
	if req.AccountName == "" {
		return badRequest("missing account_name")
	}
	if !d.agent.Registry.Remove(req.AccountName) {
		return notFound("account not loaded: " + req.AccountName)
	}
	return success()
}

// handleRemoveAll implements "remove_all": atomically replace the registry
// with an empty one. The lock state itself is untouched.
func (d *Dispatcher) handleRemoveAll() response {
	d.agent.Registry.RemoveAll()
	return success()
}

// handleDelete implements "delete": revoke the refresh token upstream,
// then evict. Revocation failure is fatal and the record is retained.
func (d *Dispatcher) handleDelete(ctx context.Context, req request) response {
	rec, err := parseAccount(req.Account)
	if err != nil {
		return responseFor(err)
	}

	loaded := d.agent.Registry.FindByShortname(rec.Shortname)
	if loaded != nil {
		rec = loaded
	}

	if err := oidcflow.Discover(ctx, d.agent.HTTP, rec); err != nil {
		return responseFor(err)
	}
	if rec.Endpoints.Revocation == "" {
		return responseFor(errkind.New(errkind.RevokeFailed, "issuer has no revocation endpoint"))
	}
	if rec.RefreshToken == nil || rec.RefreshToken.Empty() {
		return responseFor(errkind.New(errkind.RevokeFailed, "account has no refresh token to revoke"))
	}

	var token string
	if err := rec.RefreshToken.Borrow(func(plain []byte) { token = string(plain) }); err != nil {
		return responseFor(errkind.Wrap(errkind.RevokeFailed, "failed to read refresh token", err))
	}

	data := url.Values{}
	data.Set("token", token)
	data.Set("token_type_hint", "refresh_token")
	data.Set("client_id", rec.ClientID)

	if err := postRevocation(ctx, d.agent.HTTP, rec.Endpoints.Revocation, data); err != nil {
		return responseFor(errkind.Wrap(errkind.RevokeFailed, "revocation request failed", err))
	}

	d.agent.Registry.Remove(rec.Shortname)
	return success()
}

// postRevocation performs an RFC 7009 token revocation call. Revocation
// failure is fatal to "delete" but any non-2xx or network error is treated
// uniformly as failure: the revocation endpoint's error body carries no
// stable kind worth threading through.
func postRevocation(ctx context.Context, client *http.Client, endpoint string, data url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errUnexpectedStatus(resp.StatusCode)
	}
	return nil
}
