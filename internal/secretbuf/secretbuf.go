// Package secretbuf holds sensitive byte sequences in one of two states:
// plain (readable) or hidden (encrypted at rest with a per-process key).
// Every code path that constructs a Buffer must release it on every exit so
// the plain bytes are zeroized before the memory is dropped.
package secretbuf

import (
	"crypto/subtle"
	"log/slog"
	"sync"

	"github.com/oidc-agent/agentd/pkg/crypto"
)

// processKey is generated once per daemon process and never leaves memory.
// It is the key Hide encrypts under. A buffer is hidden only when Hide is
// called on it, which lockstate does for every loaded record's buffers
// when the agent locks.
var (
	processKeyOnce sync.Once
	processKey     [32]byte
)

func ensureProcessKey() {
	processKeyOnce.Do(func() {
		b, err := crypto.RandBytes(32)
		if err != nil {
			// crypto/rand failing is unrecoverable: the process cannot
			// safely hold secrets.
			panic("secretbuf: failed to seed process key: " + err.Error())
		}
		copy(processKey[:], b)
	})
}

// Buffer is a secret byte sequence with an explicit plain/hidden lifecycle.
type Buffer struct {
	mu     sync.Mutex
	plain  []byte // non-nil only while state == statePlain
	hidden []byte // ciphertext, non-nil only while state == stateHidden
	state  state
}

type state int

const (
	stateEmpty state = iota
	statePlain
	stateHidden
)

// New returns a Buffer holding b in plain state. New takes ownership of b;
// callers must not retain or mutate it afterward.
func New(b []byte) *Buffer {
	ensureProcessKey()
	if len(b) == 0 {
		return &Buffer{state: stateEmpty}
	}
	return &Buffer{plain: b, state: statePlain}
}

// Empty reports whether the buffer holds no bytes in any state.
func (b *Buffer) Empty() bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateEmpty
}

// Borrow returns the plain bytes for the duration of fn, re-hiding or
// zeroizing immediately afterward according to the buffer's state prior to
// the call. No copy of the plain representation escapes this function.
func (b *Buffer) Borrow(fn func(plain []byte)) error {
	if b == nil {
		fn(nil)
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateEmpty:
		fn(nil)
		return nil
	case statePlain:
		fn(b.plain)
		return nil
	case stateHidden:
		plain, err := crypto.Decrypt(b.hidden, processKey[:])
		if err != nil {
			return err
		}
		defer zero(plain)
		fn(plain)
		return nil
	}
	return nil
}

// Reveal returns a copy of the plain bytes. Prefer Borrow; Reveal exists
// for call sites (e.g. JSON encoding of a freshly-issued token response)
// that must hand the secret to a caller outside this package.
func (b *Buffer) Reveal() ([]byte, error) {
	var out []byte
	err := b.Borrow(func(plain []byte) {
		if plain == nil {
			return
		}
		out = append([]byte(nil), plain...)
	})
	return out, err
}

// Hide encrypts the buffer at rest under the process key, zeroizing the
// plain representation. A no-op if already hidden or empty.
func (b *Buffer) Hide() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != statePlain {
		return nil
	}
	ct, err := crypto.Encrypt(b.plain, processKey[:])
	if err != nil {
		return err
	}
	zero(b.plain)
	b.plain = nil
	b.hidden = ct
	b.state = stateHidden
	return nil
}

// Unhide decrypts a hidden buffer back to plain. A no-op if already plain
// or empty.
func (b *Buffer) Unhide() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != stateHidden {
		return nil
	}
	plain, err := crypto.Decrypt(b.hidden, processKey[:])
	if err != nil {
		return err
	}
	zero(b.hidden)
	b.hidden = nil
	b.plain = plain
	b.state = statePlain
	return nil
}

// Equal reports whether the buffer's plain contents equal other, without
// ever placing other's bytes alongside a copy that outlives the call.
func (b *Buffer) Equal(other []byte) bool {
	eq := false
	_ = b.Borrow(func(plain []byte) {
		eq = subtle.ConstantTimeCompare(plain, other) == 1
	})
	return eq
}

// Release zeroizes the buffer's memory in whichever state it is currently
// in and marks it empty. Safe to call more than once.
func (b *Buffer) Release() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	zero(b.plain)
	zero(b.hidden)
	b.plain = nil
	b.hidden = nil
	b.state = stateEmpty
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// LogValue implements slog.LogValuer so a Buffer never leaks its contents
// through structured logging, even indirectly via %v or a log.Any call.
func (b *Buffer) LogValue() slog.Value {
	if b.Empty() {
		return slog.StringValue("<empty secret>")
	}
	return slog.StringValue("<redacted secret>")
}
