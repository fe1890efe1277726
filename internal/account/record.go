// Package account holds the structured per-shortname credential and
// endpoint state the daemon custodies, and the registry that owns the set
// of currently loaded records.
package account

import (
	"time"

	"github.com/oidc-agent/agentd/internal/secretbuf"
)

// Endpoints are the OIDC provider endpoints discovered (or user-supplied)
// for an issuer. An empty string means the endpoint is absent.
type Endpoints struct {
	Token                    string
	Authorization            string
	Registration             string
	Revocation               string
	DeviceAuthorization      string
	DeviceAuthorizationIsSet bool // true if DeviceAuthorization was user-supplied, not discovered
}

// Discovered reports whether issuer endpoint discovery has already run.
func (e Endpoints) Discovered() bool {
	return e.Token != ""
}

// Record is one named account configuration: identity, discovered
// endpoints, live credentials, and in-progress session state.
type Record struct {
	// Identity
	Shortname    string
	Issuer       string
	ClientID     string
	ClientSecret *secretbuf.Buffer
	RedirectURIs []string
	Scopes       []string

	// Discovered endpoints
	Endpoints Endpoints

	// Credentials
	RefreshToken     *secretbuf.Buffer
	AccessToken      *secretbuf.Buffer
	AccessTokenScope string
	AccessExpiry     time.Time
	Username         *secretbuf.Buffer
	Password         *secretbuf.Buffer

	// Session
	OutstandingState   string // used-state nonce of an in-progress code flow; "" if none
	CodeVerifier       string
	DeviceCode         string        // device_code of an in-progress device flow; "" if none
	DevicePollInterval time.Duration // RFC 8628 poll interval, bumped on slow_down
	Death              time.Time     // zero value means "never evicts"
	ConfirmationNeeded bool
}

// Valid reports whether the record is eligible for token issuance per
// issuer set, token endpoint known, refresh token present.
func (r *Record) Valid() bool {
	if r == nil {
		return false
	}
	if r.Issuer == "" || r.Endpoints.Token == "" {
		return false
	}
	return r.RefreshToken != nil && !r.RefreshToken.Empty()
}

// HasDeath reports whether the record carries a nonzero eviction deadline.
func (r *Record) HasDeath() bool {
	return !r.Death.IsZero()
}

// Expired reports whether the record's death deadline has passed as of now.
func (r *Record) Expired(now time.Time) bool {
	return r.HasDeath() && !now.Before(r.Death)
}

// ClearPassword releases the username/password buffers. Called after a
// password-flow attempt regardless of outcome: a stored
// username/password is single-use.
func (r *Record) ClearPassword() {
	r.Username.Release()
	r.Password.Release()
	r.Username = nil
	r.Password = nil
}

// Zeroize releases every secret buffer owned by the record. Called on
// eviction and on remove_all.
func (r *Record) Zeroize() {
	r.ClientSecret.Release()
	r.RefreshToken.Release()
	r.AccessToken.Release()
	r.Username.Release()
	r.Password.Release()
}

// Hide transitions every secret buffer to its encrypted-at-rest form.
// Called when the lock state transitions to locked.
func (r *Record) Hide() error {
	for _, b := range r.buffers() {
		if err := b.Hide(); err != nil {
			return err
		}
	}
	return nil
}

// Unhide transitions every secret buffer back to plain. Called on unlock.
func (r *Record) Unhide() error {
	for _, b := range r.buffers() {
		if err := b.Unhide(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Record) buffers() []*secretbuf.Buffer {
	return []*secretbuf.Buffer{r.ClientSecret, r.RefreshToken, r.AccessToken, r.Username, r.Password}
}
