// ABOUTME: Test utilities for creating isolated document store clients
// ABOUTME: Uses temporary directories with BadgerDB so tests never reach a charm server

package docstore

import (
	"errors"
	"sync"
	"testing"
)

// NewTestClient creates a client over a Badger database in a temp directory.
// The database is closed and removed when the test finishes.
func NewTestClient(t *testing.T) *Client {
	t.Helper()

	backend, err := OpenBadgerKV(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open badger: %v", err)
	}

	c := NewClient(backend)
	t.Cleanup(func() {
		_ = c.Close()
		if err := backend.Close(); err != nil {
			t.Logf("Warning: failed to close test database: %v", err)
		}
	})
	return c
}

// FlakyKV wraps a KV and fails Get and Sync while Broken is set, for
// exercising transport-error paths.
type FlakyKV struct {
	KV

	mu     sync.Mutex
	broken error
}

// ErrTransport is the error FlakyKV returns when broken.
var ErrTransport = errors.New("transport unavailable")

func (f *FlakyKV) Break(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		err = ErrTransport
	}
	f.broken = err
}

func (f *FlakyKV) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broken = nil
}

func (f *FlakyKV) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.broken
}

func (f *FlakyKV) Get(key []byte) ([]byte, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	return f.KV.Get(key)
}

func (f *FlakyKV) Sync() error {
	if err := f.err(); err != nil {
		return err
	}
	return f.KV.Sync()
}
