package dispatcher

import (
	"context"
	"time"

	"github.com/oidc-agent/agentd/internal/oidcflow"
)

// handleAdd implements "add": load an existing account (one that already
// carries a refresh token) into the registry. Re-adding an already-loaded
// shortname is idempotent except for the death field, which is updated to
// the newly requested timeout.
func (d *Dispatcher) handleAdd(ctx context.Context, req request) response {
	rec, err := parseAccount(req.Account)
	if err != nil {
		return responseFor(err)
	}

	death := deathFor(req.Timeout)

	if existing := d.agent.Registry.FindByShortname(rec.Shortname); existing != nil {
		existing.Death = death
		return success()
	}

	if err := oidcflow.Discover(ctx, d.agent.HTTP, rec); err != nil {
		return responseFor(err)
	}

	suspended, err := oidcflow.Run(ctx, d.agent.HTTP, rec, d.agent.Registry, []oidcflow.FlowName{oidcflow.FlowRefresh}, "")
	if err != nil {
		return responseFor(err)
	}
	_ = suspended // the refresh flow never suspends

	rec.Death = death
	rec.ConfirmationNeeded = req.Confirm
	if err := d.agent.Registry.Add(rec); err != nil {
		return responseFor(err)
	}
	return success()
}

// deathFor converts a requested timeout in seconds into an absolute death
// time; a timeout of 0 means the account never auto-evicts.
func deathFor(timeoutSeconds int64) time.Time {
	if timeoutSeconds <= 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
}
