package redirecthelper

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelperRelaysCapturedRedirect(t *testing.T) {
	captured := make(chan [3]string, 1)
	m := NewManager(func(ctx context.Context, state, code, errParam string) {
		captured <- [3]string{state, code, errParam}
	}, nil)

	callbackURL, err := m.Start("state-1")
	require.NoError(t, err)

	resp, err := http.Get(callbackURL + "?code=abc&state=state-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "authorization complete")

	select {
	case got := <-captured:
		assert.Equal(t, [3]string{"state-1", "abc", ""}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("relay was not called")
	}

	assert.True(t, m.Stop("state-1"))
	assert.False(t, m.Stop("state-1"))
}

func TestStopUnknownStateReturnsFalse(t *testing.T) {
	m := NewManager(nil, nil)
	assert.False(t, m.Stop("no-such-state"))
}
