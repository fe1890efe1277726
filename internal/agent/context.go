// Package agent holds the single piece of shared, mutable state every
// dispatcher handler operates against: the loaded-account registry, the
// lock state guarding it, the outbound HTTP client used for every issuer
// call, and the prompter channel used to reach the user. Bundling these as
// one struct threaded through each handler mirrors how server.Server is
// threaded through dex's HTTP handlers.
package agent

import (
	"net/http"

	"github.com/oidc-agent/agentd/internal/account"
	"github.com/oidc-agent/agentd/internal/lockstate"
	"github.com/oidc-agent/agentd/internal/prompter"
	"github.com/oidc-agent/agentd/internal/redirecthelper"
	"github.com/oidc-agent/agentd/pkg/log"
)

// Context is the daemon's process-wide state. Exactly one Context exists
// per running daemon; the dispatcher's accept loop hands the same pointer
// to every connection handler, relying on the single-threaded dispatch
// model (pkg/log.Logger and the registry's own locking are the only
// concurrency-safety the fields need).
type Context struct {
	Registry *account.Registry
	Lock     *lockstate.State
	HTTP     *http.Client
	Prompter *prompter.Channel // nil if no prompter helper is configured
	Logger   log.Logger

	// RedirectHelpers tracks any running authorization-code redirect
	// helpers, keyed by their outstanding state. Nil if the daemon was
	// configured with no redirect helper at all.
	RedirectHelpers *redirecthelper.Manager

	// ConfirmBeforeRelease, when true, requires a prompter confirmation
	// before access_token hands out a token for an account marked
	// ConfirmationNeeded.
	ConfirmBeforeRelease bool
}

// New builds a Context. prompterChannel may be nil: autoload then reports
// the account as not loaded, and confirm requests fail with
// errkind.PrompterFailed, instead of blocking.
func New(reg *account.Registry, lock *lockstate.State, httpClient *http.Client, prompterChannel *prompter.Channel, logger log.Logger) *Context {
	return &Context{
		Registry:             reg,
		Lock:                 lock,
		HTTP:                 httpClient,
		Prompter:             prompterChannel,
		Logger:               logger,
		ConfirmBeforeRelease: true,
		RedirectHelpers:      redirecthelper.NewManager(nil, logger),
	}
}
