package dispatcher

import (
	"context"

	"github.com/oidc-agent/agentd/internal/account"
	"github.com/oidc-agent/agentd/internal/errkind"
	"github.com/oidc-agent/agentd/internal/oidcflow"
)

// handleGen implements "gen": produce credentials for a new account via
// the client-selected ordered flow list.
func (d *Dispatcher) handleGen(ctx context.Context, req request) response {
	rec, err := parseAccount(req.Account)
	if err != nil {
		return responseFor(err)
	}
	if d.agent.Registry.FindByShortname(rec.Shortname) != nil {
		return responseFor(errkind.New(errkind.AlreadyLoaded, "account already loaded: "+rec.Shortname))
	}

	var order []oidcflow.FlowName
	for _, f := range req.Flow {
		order = append(order, oidcflow.FlowName(f))
	}

	// The record is tracked in the registry for the duration of the flow
	// attempt so a suspended code/device flow can be found again by
	// state_lookup/device_lookup; a failed attempt removes it again.
	if err := d.agent.Registry.Add(rec); err != nil {
		return responseFor(err)
	}

	suspended, err := oidcflow.Run(ctx, d.agent.HTTP, rec, d.agent.Registry, order, req.Scope)
	if err != nil {
		d.agent.Registry.Remove(rec.Shortname)
		return responseFor(err)
	}
	if suspended != nil {
		return suspendedResponse(suspended, rec)
	}

	if rec.RefreshToken == nil || rec.RefreshToken.Empty() {
		d.agent.Registry.Remove(rec.Shortname)
		return responseFor(errkind.New(errkind.NoRefreshToken, "response did not contain a refresh token"))
	}

	resp := success()
	resp.Config = marshalConfig(rec)
	return resp
}

func suspendedResponse(s *oidcflow.Suspended, rec *account.Record) response {
	resp := accepted()
	switch s.Flow {
	case oidcflow.FlowAuthCode:
		resp.CodeURI = s.AuthCodeURL
		resp.State = rec.OutstandingState
	case oidcflow.FlowDevice:
		resp.AcceptedDevice = &deviceInfo{
			UserCode:                s.AcceptedDevice.UserCode,
			VerificationURI:         s.AcceptedDevice.VerificationURI,
			VerificationURIComplete: s.AcceptedDevice.VerificationURIComplete,
			Interval:                int64(s.AcceptedDevice.Interval.Seconds()),
		}
	}
	return resp
}
