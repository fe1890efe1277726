package lockstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oidc-agent/agentd/internal/account"
	"github.com/oidc-agent/agentd/internal/secretbuf"
)

func TestLockUnlockIsIdentityOverObservableState(t *testing.T) {
	reg := account.New()
	rec := &account.Record{Shortname: "acme", Issuer: "https://issuer.example/"}
	rec.AccessToken = secretbuf.New([]byte("at-1"))
	require.NoError(t, reg.Add(rec))

	s := New()
	require.NoError(t, s.Lock(reg, "hunter2"))
	assert.True(t, s.Locked())

	require.NoError(t, s.Unlock(reg, "hunter2"))
	assert.False(t, s.Locked())

	plain, err := rec.AccessToken.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "at-1", string(plain))
}

func TestUnlockWrongPasswordFails(t *testing.T) {
	reg := account.New()
	s := New()
	require.NoError(t, s.Lock(reg, "hunter2"))

	err := s.Unlock(reg, "wrong")
	require.Error(t, err)
	assert.True(t, s.Locked())
}

func TestLockWhileLockedFails(t *testing.T) {
	reg := account.New()
	s := New()
	require.NoError(t, s.Lock(reg, "hunter2"))

	err := s.Lock(reg, "hunter2")
	require.Error(t, err)
}
