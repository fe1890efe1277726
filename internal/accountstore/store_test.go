package accountstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.store")
	store := NewFileStore(path)

	configs := []AccountConfig{
		{Shortname: "acme", Issuer: "https://issuer.example.com", ClientID: "cid", RefreshToken: "rt-1"},
	}
	require.NoError(t, store.Save("correct horse", configs))

	loaded, err := store.Load("correct horse")
	require.NoError(t, err)
	assert.Equal(t, configs, loaded)
}

func TestFileStoreLoadMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.store")
	store := NewFileStore(path)

	loaded, err := store.Load("whatever")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestFileStoreWrongPassphraseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.store")
	store := NewFileStore(path)

	require.NoError(t, store.Save("right", []AccountConfig{{Shortname: "acme"}}))

	_, err := store.Load("wrong")
	require.Error(t, err)
}
