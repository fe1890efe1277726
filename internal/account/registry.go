package account

import (
	"sync"
	"time"
)

// ErrAlreadyExists is returned by Add when the shortname is already loaded.
type ErrAlreadyExists struct{ Shortname string }

func (e *ErrAlreadyExists) Error() string { return "account already loaded: " + e.Shortname }

// Registry is the set of loaded account records, keyed by shortname, with a
// secondary index keyed by outstanding authorization-code state so the
// code-exchange and state-lookup handlers can correlate a provider redirect
// back to the record that initiated it. The registry exclusively owns its
// records; callers must not retain a *Record beyond the function they
// received it in, mirroring storage/memory's lock-scoped access pattern.
type Registry struct {
	mu        sync.Mutex
	byName    map[string]*Record
	byState   map[string]string // state -> shortname
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byName:  make(map[string]*Record),
		byState: make(map[string]string),
	}
}

func (r *Registry) tx(f func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f()
}

// Add inserts a new record. Returns *ErrAlreadyExists if the shortname is
// already loaded.
func (r *Registry) Add(rec *Record) error {
	var err error
	r.tx(func() {
		if _, ok := r.byName[rec.Shortname]; ok {
			err = &ErrAlreadyExists{Shortname: rec.Shortname}
			return
		}
		r.byName[rec.Shortname] = rec
	})
	return err
}

// FindByShortname returns the record for shortname, or nil if not loaded.
func (r *Registry) FindByShortname(shortname string) *Record {
	var rec *Record
	r.tx(func() { rec = r.byName[shortname] })
	return rec
}

// FindByOutstandingState returns the record whose OutstandingState equals
// state, or nil if none is outstanding for that state.
func (r *Registry) FindByOutstandingState(state string) *Record {
	var rec *Record
	r.tx(func() {
		if shortname, ok := r.byState[state]; ok {
			rec = r.byName[shortname]
		}
	})
	return rec
}

// SetOutstandingState records that rec now has an in-progress
// authorization-code flow keyed by state, replacing any prior outstanding
// state for that account (at most one
// outstanding code flow per account).
func (r *Registry) SetOutstandingState(rec *Record, state, verifier string) {
	r.tx(func() {
		if rec.OutstandingState != "" {
			delete(r.byState, rec.OutstandingState)
		}
		rec.OutstandingState = state
		rec.CodeVerifier = verifier
		r.byState[state] = rec.Shortname
	})
}

// ClearOutstandingState drops rec's in-progress code-flow state, if any.
func (r *Registry) ClearOutstandingState(rec *Record) {
	r.tx(func() {
		if rec.OutstandingState != "" {
			delete(r.byState, rec.OutstandingState)
			rec.OutstandingState = ""
			rec.CodeVerifier = ""
		}
	})
}

// Remove evicts the record for shortname, zeroizing its secret buffers.
// Returns false if no such record was loaded.
func (r *Registry) Remove(shortname string) bool {
	found := false
	r.tx(func() {
		rec, ok := r.byName[shortname]
		if !ok {
			return
		}
		found = true
		if rec.OutstandingState != "" {
			delete(r.byState, rec.OutstandingState)
		}
		rec.Zeroize()
		delete(r.byName, shortname)
	})
	return found
}

// RemoveAll atomically replaces the registry with an empty one, zeroizing
// every record's secret buffers first.
func (r *Registry) RemoveAll() {
	r.tx(func() {
		for _, rec := range r.byName {
			rec.Zeroize()
		}
		r.byName = make(map[string]*Record)
		r.byState = make(map[string]string)
	})
}

// Len returns the number of loaded records.
func (r *Registry) Len() int {
	n := 0
	r.tx(func() { n = len(r.byName) })
	return n
}

// HideAll transitions every loaded record's secret buffers to hidden.
// Called by lockstate when locking.
func (r *Registry) HideAll() error {
	var err error
	r.tx(func() {
		for _, rec := range r.byName {
			if e := rec.Hide(); e != nil {
				err = e
				return
			}
		}
	})
	return err
}

// UnhideAll transitions every loaded record's secret buffers back to
// plain. Called by lockstate when unlocking.
func (r *Registry) UnhideAll() error {
	var err error
	r.tx(func() {
		for _, rec := range r.byName {
			if e := rec.Unhide(); e != nil {
				err = e
				return
			}
		}
	})
	return err
}

// Sweep evicts every record whose death deadline has passed as of now,
// zeroizing its secret buffers first. Returns the evicted shortnames.
// This is the body of the periodic housekeeping tick.
func (r *Registry) Sweep(now time.Time) []string {
	var evicted []string
	r.tx(func() {
		for shortname, rec := range r.byName {
			if !rec.Expired(now) {
				continue
			}
			if rec.OutstandingState != "" {
				delete(r.byState, rec.OutstandingState)
			}
			rec.Zeroize()
			delete(r.byName, shortname)
			evicted = append(evicted, shortname)
		}
	})
	return evicted
}
