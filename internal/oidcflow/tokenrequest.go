package oidcflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oidc-agent/agentd/internal/errkind"
)

// tokenResponse is the subset of an OIDC token-endpoint response body the
// flow engine cares about. Unmarshaled the same way
// examples/example-app/handlers_device.go decodes a token-endpoint POST.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
}

// oauthError is the RFC 6749 §5.2 error response shape.
type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// postToken POSTs form-encoded data to endpoint using client and parses
// the result as either a success tokenResponse or an oauthError. now is
// injected so ExpiresIn can be converted into an absolute expiry
// deterministically in tests.
func postToken(ctx context.Context, client *http.Client, endpoint string, data url.Values, now time.Time) (*tokenResponse, time.Time, *oauthError, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, time.Time{}, nil, errkind.Wrap(errkind.UpstreamHTTP, "failed to build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, time.Time{}, nil, errkind.Wrap(errkind.UpstreamHTTP, "token request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var oe oauthError
		if err := json.NewDecoder(resp.Body).Decode(&oe); err != nil {
			return nil, time.Time{}, nil, errkind.Wrap(errkind.UpstreamHTTP, "token endpoint returned a non-2xx status with an unparseable body", err)
		}
		return nil, time.Time{}, &oe, nil
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, time.Time{}, nil, errkind.Wrap(errkind.UpstreamHTTP, "failed to decode token response", err)
	}

	expiry := time.Time{}
	if tr.ExpiresIn > 0 {
		expiry = now.Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return &tr, expiry, nil, nil
}
