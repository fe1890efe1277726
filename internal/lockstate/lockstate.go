// Package lockstate implements the process-wide locked/unlocked gate.
// Locking derives a bcrypt verifier from the passphrase and transitions
// every loaded account's secret buffers to hidden; unlocking recomputes the
// verifier and, on match, reveals them again.
package lockstate

import (
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/oidc-agent/agentd/internal/account"
	"github.com/oidc-agent/agentd/internal/errkind"
)

// State is the agent-wide lock gate. It is safe for concurrent use, though
// the dispatcher's single-threaded accept loop never actually contends on
// it.
type State struct {
	mu       sync.Mutex
	locked   bool
	verifier []byte // bcrypt hash of the locking passphrase; nil while unlocked
}

// New returns an unlocked State.
func New() *State {
	return &State{}
}

// Locked reports whether the agent is currently locked.
func (s *State) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// Lock transitions to locked and hides every record's secret buffers. A
// no-op error (errkind.Locked) if already locked.
func (s *State) Lock(reg *account.Registry, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return errkind.New(errkind.Locked, "agent is already locked")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errkind.Wrap(errkind.BadRequest, "failed to derive lock verifier", err)
	}

	if err := reg.HideAll(); err != nil {
		return errkind.Wrap(errkind.BadRequest, "failed to hide account secrets", err)
	}

	s.verifier = hash
	s.locked = true
	return nil
}

// Unlock recomputes the verifier from password and, on a constant-time
// match against the stored bcrypt hash, transitions to unlocked and
// reveals every record's secret buffers.
func (s *State) Unlock(reg *account.Registry, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.locked {
		return nil
	}

	if err := bcrypt.CompareHashAndPassword(s.verifier, []byte(password)); err != nil {
		return errkind.New(errkind.Locked, "incorrect password")
	}

	if err := reg.UnhideAll(); err != nil {
		return errkind.Wrap(errkind.BadRequest, "failed to reveal account secrets", err)
	}

	s.verifier = nil
	s.locked = false
	return nil
}
