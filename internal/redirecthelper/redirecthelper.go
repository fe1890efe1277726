// Package redirecthelper implements the loopback HTTP server that receives
// an OIDC provider's authorization-code redirect and relays it back into
// the daemon as a code_exchange request. One helper instance serves one
// outstanding authorization-code flow, keyed by its state.
package redirecthelper

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/oidc-agent/agentd/pkg/log"
)

// Relay is how a Helper hands a captured redirect back to the dispatcher,
// without the redirecthelper package depending on the dispatcher package.
type Relay func(ctx context.Context, state, code, errParam string)

// Helper is one loopback *http.Server bound to an ephemeral port, routed
// with gorilla/mux the way dex's own HTTP servers are, serving exactly one
// route for exactly one outstanding state.
type Helper struct {
	state    string
	srv      *http.Server
	listener net.Listener
}

// Manager owns the set of currently running helpers, keyed by the state
// they were started for. It is the concrete type behind agent.Context's
// RedirectHelpers field.
type Manager struct {
	mu      sync.Mutex
	helpers map[string]*Helper
	relay   Relay
	logger  log.Logger
}

// NewManager returns an empty Manager. relay is invoked with the captured
// code/state/error whenever a redirect lands on a running helper.
func NewManager(relay Relay, logger log.Logger) *Manager {
	return &Manager{helpers: make(map[string]*Helper), relay: relay, logger: logger}
}

// Start binds a new loopback server for state and returns the callback URL
// the client should use as its redirect_uri, e.g.
// "http://127.0.0.1:51823/callback".
func (m *Manager) Start(state string) (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}

	router := mux.NewRouter()
	h := &Helper{state: state, listener: listener}
	router.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		code := q.Get("code")
		errParam := q.Get("error")
		redirectState := q.Get("state")

		if m.relay != nil {
			m.relay(r.Context(), redirectState, code, errParam)
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if errParam != "" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("authorization failed: " + errParam))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("authorization complete, you may close this window"))
	})

	h.srv = &http.Server{Handler: router}

	m.mu.Lock()
	m.helpers[state] = h
	m.mu.Unlock()

	go func() {
		if err := h.srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			if m.logger != nil {
				m.logger.Warnf("redirecthelper: server for state %s exited: %v", state, err)
			}
		}
	}()

	return "http://" + listener.Addr().String() + "/callback", nil
}

// SetRelay installs the callback invoked on every captured redirect. It
// exists because the manager is constructed before the dispatcher that
// ultimately handles the captured code/state.
func (m *Manager) SetRelay(relay Relay) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relay = relay
}

// Stop shuts down the helper for state, if one is running. Returns false
// if none was found, matching term_http's not-found case.
func (m *Manager) Stop(state string) bool {
	m.mu.Lock()
	h, ok := m.helpers[state]
	if ok {
		delete(m.helpers, state)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	_ = h.srv.Shutdown(context.Background())
	return true
}

// StopAll shuts down every running helper. Called on daemon shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	helpers := m.helpers
	m.helpers = make(map[string]*Helper)
	m.mu.Unlock()
	for _, h := range helpers {
		_ = h.srv.Shutdown(context.Background())
	}
}
