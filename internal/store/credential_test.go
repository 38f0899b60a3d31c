package store_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageguard/internal/store"
)

func TestCredentialsMissingFileMeansInactive(t *testing.T) {
	c := store.NewCredentials(filepath.Join(t.TempDir(), "credential.key"), nil)
	require.NoError(t, c.Load())
	assert.Empty(t, c.Token())
}

func TestCredentialsSetTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.key")
	c := store.NewCredentials(path, nil)

	require.NoError(t, c.SetToken("  tok-123  "))
	assert.Equal(t, "tok-123", c.Token())

	// a fresh instance reads the same value back from disk
	c2 := store.NewCredentials(path, nil)
	require.NoError(t, c2.Load())
	assert.Equal(t, "tok-123", c2.Token())
}

func TestCredentialsSubscribersNotified(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.key")
	c := store.NewCredentials(path, nil)

	var mu sync.Mutex
	var seen []string
	c.Subscribe(func(tok string) {
		mu.Lock()
		seen = append(seen, tok)
		mu.Unlock()
	})

	require.NoError(t, c.SetToken("first"))
	require.NoError(t, c.SetToken(""))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", ""}, seen)
}

func TestCredentialsLoadClearsOnEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.key")
	c := store.NewCredentials(path, nil)
	require.NoError(t, c.SetToken("tok"))
	require.Equal(t, "tok", c.Token())

	require.NoError(t, os.WriteFile(path, []byte("\n"), 0o600))
	require.NoError(t, c.Load())
	assert.Empty(t, c.Token())
}
