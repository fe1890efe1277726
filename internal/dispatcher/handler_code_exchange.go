package dispatcher

import (
	"context"

	"github.com/oidc-agent/agentd/internal/errkind"
	"github.com/oidc-agent/agentd/internal/oidcflow"
)

// handleCodeExchange implements "code_exchange": completes an outstanding
// authorization-code flow. A request whose state has no matching record is
// a not-found error, not a bad request, since the state is valid wire
// syntax — it simply does not (or no longer) correlates to anything.
func (d *Dispatcher) handleCodeExchange(ctx context.Context, req request) response {
	if req.State == "" || req.Code == "" {
		return badRequest("missing state or code")
	}

	rec := d.agent.Registry.FindByOutstandingState(req.State)
	if rec == nil {
		return notFound("no outstanding authorization-code flow for state: " + req.State)
	}

	if err := oidcflow.CompleteAuthCode(ctx, d.agent.HTTP, rec, d.agent.Registry, req.Code); err != nil {
		return responseFor(err)
	}

	resp := success()
	resp.Config = marshalConfig(rec)
	return resp
}

// handleStateLookup implements "state_lookup": used by the redirect-
// capture helper to find out whether a state is still outstanding before
// it attempts the code exchange itself.
func (d *Dispatcher) handleStateLookup(req request) response {
	if req.State == "" {
		return badRequest("missing state")
	}
	rec := d.agent.Registry.FindByOutstandingState(req.State)
	if rec == nil {
		return notFound("no outstanding authorization-code flow for state: " + req.State)
	}
	resp := success()
	resp.State = req.State
	return resp
}

// CompleteRedirect is the redirecthelper.Relay wired into the daemon's
// redirect-capture loopback server: it runs the same completion a
// code_exchange request would, so a provider redirect that lands directly
// on the loopback helper finishes the flow without the client having to
// issue a separate code_exchange request. Failures are logged, not
// returned, since there is no connection to answer.
func (d *Dispatcher) CompleteRedirect(ctx context.Context, state, code, errParam string) {
	if errParam != "" {
		d.agent.Logger.Warnf("redirect capture for state %s returned provider error: %s", state, errParam)
		rec := d.agent.Registry.FindByOutstandingState(state)
		if rec != nil {
			d.agent.Registry.ClearOutstandingState(rec)
		}
		return
	}

	rec := d.agent.Registry.FindByOutstandingState(state)
	if rec == nil {
		d.agent.Logger.Warnf("redirect capture: no outstanding authorization-code flow for state %s", state)
		return
	}

	if err := oidcflow.CompleteAuthCode(ctx, d.agent.HTTP, rec, d.agent.Registry, code); err != nil {
		d.agent.Logger.Warnf("redirect capture: code exchange failed for %s: %v", rec.Shortname, err)
	}
}

// handleTermHTTP implements "term_http": stops the redirect-capture HTTP
// helper instance associated with state, if the daemon is tracking one.
func (d *Dispatcher) handleTermHTTP(req request) response {
	if req.State == "" {
		return badRequest("missing state")
	}
	if d.agent.RedirectHelpers == nil {
		return responseFor(errkind.New(errkind.BadRequest, "no redirect helper registered for state: "+req.State))
	}
	if !d.agent.RedirectHelpers.Stop(req.State) {
		return notFound("no redirect helper registered for state: " + req.State)
	}
	return success()
}
