package account

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oidc-agent/agentd/internal/secretbuf"
)

func newTestRecord(shortname string) *Record {
	return &Record{
		Shortname: shortname,
		Issuer:    "https://issuer.example/",
	}
}

func TestRegistryAddRemoveRoundTrip(t *testing.T) {
	r := New()
	rec := newTestRecord("acme")

	require.NoError(t, r.Add(rec))
	assert.Equal(t, 1, r.Len())

	ok := r.Remove("acme")
	assert.True(t, ok)
	assert.Equal(t, 0, r.Len())
	assert.Nil(t, r.FindByShortname("acme"))
}

func TestRegistryAddDuplicateShortname(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(newTestRecord("acme")))

	err := r.Add(newTestRecord("acme"))
	require.Error(t, err)
	var alreadyExists *ErrAlreadyExists
	assert.ErrorAs(t, err, &alreadyExists)
}

func TestRegistryOutstandingStateAtMostOnePerAccount(t *testing.T) {
	r := New()
	rec := newTestRecord("acme")
	require.NoError(t, r.Add(rec))

	r.SetOutstandingState(rec, "state-1", "verifier-1")
	assert.Equal(t, rec, r.FindByOutstandingState("state-1"))

	// A new initiation replaces the prior outstanding state.
	r.SetOutstandingState(rec, "state-2", "verifier-2")
	assert.Nil(t, r.FindByOutstandingState("state-1"))
	assert.Equal(t, rec, r.FindByOutstandingState("state-2"))
}

func TestRegistrySweepEvictsExpiredOnly(t *testing.T) {
	r := New()
	now := time.Now()

	expired := newTestRecord("expired")
	expired.Death = now.Add(-time.Second)
	require.NoError(t, r.Add(expired))

	neverEvicts := newTestRecord("forever")
	require.NoError(t, r.Add(neverEvicts))

	future := newTestRecord("future")
	future.Death = now.Add(time.Hour)
	require.NoError(t, r.Add(future))

	evicted := r.Sweep(now)
	assert.ElementsMatch(t, []string{"expired"}, evicted)
	assert.Equal(t, 2, r.Len())
	assert.NotNil(t, r.FindByShortname("forever"))
	assert.NotNil(t, r.FindByShortname("future"))
}

func TestRegistryRemoveAllZeroizesAndClearsState(t *testing.T) {
	r := New()
	rec := newTestRecord("acme")
	rec.RefreshToken = secretbuf.New([]byte("rt-1"))
	require.NoError(t, r.Add(rec))
	r.SetOutstandingState(rec, "state-1", "verifier-1")

	r.RemoveAll()
	assert.Equal(t, 0, r.Len())
	assert.Nil(t, r.FindByOutstandingState("state-1"))
	assert.True(t, rec.RefreshToken.Empty())
}
