package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/oidc-agent/agentd/internal/errkind"
	"github.com/oidc-agent/agentd/internal/oidcflow"
)

// handleRegister implements "register": dynamic client registration
// against the issuer's registration endpoint.
func (d *Dispatcher) handleRegister(ctx context.Context, req request) response {
	rec, err := parseAccount(req.Account)
	if err != nil {
		return responseFor(err)
	}
	if d.agent.Registry.FindByShortname(rec.Shortname) != nil {
		return responseFor(errkind.New(errkind.AlreadyLoaded, "account already loaded: "+rec.Shortname))
	}

	if err := oidcflow.Discover(ctx, d.agent.HTTP, rec); err != nil {
		return responseFor(err)
	}
	if rec.Endpoints.Registration == "" {
		return responseFor(errkind.New(errkind.BadRequest, "issuer has no registration endpoint"))
	}

	flows := req.Flows

	body, err := d.postRegistration(ctx, rec.Endpoints.Registration, flows, req.AccessToken)
	if err != nil {
		return responseFor(err)
	}

	var first map[string]interface{}
	if jsonErr := json.Unmarshal(body, &first); jsonErr != nil {
		resp := failure(string(errkind.BadRequest), "registration endpoint returned a non-JSON body")
		resp.Info = string(body)
		return resp
	}

	if _, hasErr := first["error"]; !hasErr {
		return classifyRegistration(first, body)
	}

	// Retry once with "password" removed from the requested flow list.
	retryFlows := removeFlow(flows, "password")
	retryBody, err := d.postRegistration(ctx, rec.Endpoints.Registration, retryFlows, req.AccessToken)
	if err != nil {
		return responseFor(err)
	}

	var second map[string]interface{}
	if jsonErr := json.Unmarshal(retryBody, &second); jsonErr != nil {
		resp := failure(string(errkind.BadRequest), "registration retry returned a non-JSON body")
		resp.Info = string(retryBody)
		return resp
	}
	if _, hasErr := second["error"]; hasErr {
		desc, _ := first["error_description"].(string)
		if desc == "" {
			desc, _ = first["error"].(string)
		}
		return failure(string(errkind.BadRequest), desc)
	}

	resp := success()
	resp.Info = string(retryBody)
	return resp
}

// classifyRegistration handles the first-attempt-succeeded path: the
// granted scopes must include both openid and offline_access.
func classifyRegistration(body map[string]interface{}, raw []byte) response {
	scope, _ := body["scope"].(string)
	granted := strings.Fields(scope)
	if !containsAll(granted, "openid", "offline_access") {
		resp := failure(string(errkind.InvalidScope), "registration did not grant the required offline scope")
		resp.Info = string(raw)
		return resp
	}
	resp := success()
	resp.Info = string(raw)
	return resp
}

func containsAll(haystack []string, needles ...string) bool {
	set := make(map[string]bool, len(haystack))
	for _, h := range haystack {
		set[h] = true
	}
	for _, n := range needles {
		if !set[n] {
			return false
		}
	}
	return true
}

func removeFlow(flows []string, target string) []string {
	out := make([]string, 0, len(flows))
	for _, f := range flows {
		if f != target {
			out = append(out, f)
		}
	}
	return out
}

func (d *Dispatcher) postRegistration(ctx context.Context, endpoint string, flows []string, accessToken string) ([]byte, error) {
	payload := map[string]interface{}{
		"grant_types": flowsToGrantTypes(flows),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, errkind.Wrap(errkind.BadRequest, "failed to encode registration request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, errkind.Wrap(errkind.UpstreamHTTP, "failed to build registration request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := d.agent.HTTP.Do(httpReq)
	if err != nil {
		return nil, errkind.Wrap(errkind.UpstreamHTTP, "registration request failed", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func flowsToGrantTypes(flows []string) []string {
	grants := make([]string, 0, len(flows))
	for _, f := range flows {
		switch f {
		case "refresh":
			grants = append(grants, "refresh_token")
		case "password":
			grants = append(grants, "password")
		case "code":
			grants = append(grants, "authorization_code")
		case "device":
			grants = append(grants, "urn:ietf:params:oauth:grant-type:device_code")
		}
	}
	return grants
}
