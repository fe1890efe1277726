package dispatcher

import (
	"context"

	"github.com/oidc-agent/agentd/internal/errkind"
	"github.com/oidc-agent/agentd/internal/oidcflow"
)

// handleDeviceLookup implements "device_lookup": poll a device-code flow
// to completion. A "pending" poll responds with status "accepted", no
// access token, and kind "pending", signalling the client should poll
// again.
func (d *Dispatcher) handleDeviceLookup(ctx context.Context, req request) response {
	if req.AccountName == "" {
		return badRequest("missing account_name")
	}
	rec := d.agent.Registry.FindByShortname(req.AccountName)
	if rec == nil {
		return notFound("account not loaded: " + req.AccountName)
	}

	outcome, err := oidcflow.CompleteDevice(ctx, d.agent.HTTP, rec)
	if err != nil {
		return responseFor(err)
	}

	switch outcome {
	case oidcflow.DevicePollComplete:
		resp := success()
		resp.Config = marshalConfig(rec)
		return resp
	case oidcflow.DevicePollPending:
		return response{Status: "accepted", Kind: "pending", Error: "authorization_pending"}
	default:
		return failure(string(errkind.FlowFailed), "device authorization was not completed")
	}
}
