package secretbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferHideUnhideRoundTrip(t *testing.T) {
	b := New([]byte("super-secret"))

	require.NoError(t, b.Hide())
	assert.True(t, b.Equal([]byte("super-secret")))

	require.NoError(t, b.Unhide())

	plain, err := b.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "super-secret", string(plain))
}

func TestBufferReleaseZeroizes(t *testing.T) {
	b := New([]byte("super-secret"))
	b.Release()

	assert.True(t, b.Empty())
	plain, err := b.Reveal()
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestBufferEmptyInputIsEmpty(t *testing.T) {
	b := New(nil)
	assert.True(t, b.Empty())
	assert.False(t, b.Equal([]byte("anything")))
}

func TestNilBufferIsSafe(t *testing.T) {
	var b *Buffer
	assert.True(t, b.Empty())
	assert.NoError(t, b.Hide())
	assert.NoError(t, b.Unhide())
	b.Release()
}
