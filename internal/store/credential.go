package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"pageguard/internal/logger"
)

// Credentials caches the bearer token backed by a file on disk. An empty or
// missing file means the agent is inactive. External writes to the file
// (the options flow) are picked up by a watcher and fanned out to
// subscribers.
type Credentials struct {
	path string
	log  logger.Logger

	mu    sync.RWMutex
	token string
	subs  []func(token string)
}

func NewCredentials(path string, l logger.Logger) *Credentials {
	if l == nil {
		l = logger.NewNop()
	}
	return &Credentials{path: path, log: l}
}

// Load refreshes the in-memory token from disk. A missing file is not an
// error, it clears the cache.
func (c *Credentials) Load() error {
	b, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		b = nil
	}
	tok := strings.TrimSpace(string(b))
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
	c.log.Info("credential loaded", "present", tok != "")
	return nil
}

// Token returns the cached credential. Empty means inactive.
func (c *Credentials) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken writes the credential file and updates the cache.
func (c *Credentials) SetToken(token string) error {
	if err := os.WriteFile(c.path, []byte(strings.TrimSpace(token)+"\n"), 0o600); err != nil {
		return err
	}
	if err := c.Load(); err != nil {
		return err
	}
	c.notify()
	return nil
}

// Subscribe registers a callback invoked with the new token after every
// credential change. Callbacks must be idempotent.
func (c *Credentials) Subscribe(fn func(token string)) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// Watch follows the credential file until ctx is done. The parent directory
// is watched so creations and atomic renames are seen too.
func (c *Credentials) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(c.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return err
	}
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(c.path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				if err := c.Load(); err != nil {
					c.log.Err(err, "credential reload failed")
					continue
				}
				c.notify()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				c.log.Warn("credential watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (c *Credentials) notify() {
	c.mu.RLock()
	subs := make([]func(string), len(c.subs))
	copy(subs, c.subs)
	tok := c.token
	c.mu.RUnlock()
	for _, fn := range subs {
		fn(tok)
	}
}
