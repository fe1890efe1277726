// Package housekeeping runs the periodic sweep that evicts accounts whose
// death deadline has passed, the way storage/memory's GarbageCollect sweeps
// expired refresh tokens on its own ticker.
package housekeeping

import (
	"context"
	"time"

	"github.com/oidc-agent/agentd/internal/account"
	"github.com/oidc-agent/agentd/pkg/log"
)

// DefaultInterval is the tick period used when none is configured.
const DefaultInterval = time.Second

// Run ticks every interval until ctx is cancelled, sweeping reg on each
// tick. Intended to be run as one oklog/run actor alongside the
// dispatcher's accept loop.
func Run(ctx context.Context, reg *account.Registry, interval time.Duration, logger log.Logger) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			evicted := reg.Sweep(now)
			for _, shortname := range evicted {
				logger.Infof("housekeeping: evicted expired account %s", shortname)
			}
		}
	}
}
