// ABOUTME: Backend selection and connection options for the document store
// ABOUTME: Opens a Charm-synced, local Badger, or disabled store from explicit options

package docstore

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultCharmHost is the self-hosted 2389 research server.
	DefaultCharmHost = "charm.2389.dev"

	// AppName names the Charm KV database.
	AppName = "fitout"

	DefaultSyncInterval = 30 * time.Second
)

// Backend names.
const (
	BackendCharm    = "charm"
	BackendLocal    = "local"
	BackendDisabled = "disabled"
)

// Options selects and configures a backend.
type Options struct {
	Backend string

	// DataDir holds the local Badger database for BackendLocal.
	DataDir string

	// Host is the charm server hostname.
	Host string

	// AutoSync pushes every write to the charm server immediately.
	AutoSync bool

	// SyncInterval controls how often remote changes are pulled.
	SyncInterval time.Duration

	Logger *log.Logger
}

// DefaultOptions returns options for the Charm backend with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Backend:      BackendCharm,
		Host:         DefaultCharmHost,
		AutoSync:     true,
		SyncInterval: DefaultSyncInterval,
	}
}

// Open builds the store described by opts. The returned Store is a *Client
// for the charm and local backends and Disabled otherwise.
func Open(opts Options) (Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	switch opts.Backend {
	case BackendDisabled:
		logger.Info("document store disabled")
		return Disabled{}, nil

	case BackendLocal:
		dir := filepath.Join(opts.DataDir, "docstore")
		backend, err := OpenBadgerKV(dir)
		if err != nil {
			return nil, err
		}
		logger.Debug("opened local document store", "dir", dir)
		return NewClient(backend, WithLogger(logger), WithCloser(backend)), nil

	case BackendCharm, "":
		host := opts.Host
		if host == "" {
			host = DefaultCharmHost
		}
		backend, err := OpenCharmKV(AppName, host)
		if err != nil {
			return nil, err
		}
		c := NewClient(backend, WithLogger(logger), WithAutoSync(opts.AutoSync))

		// Pull remote changes before the first read
		if opts.AutoSync {
			if err := backend.Sync(); err != nil {
				logger.Warn("initial sync failed", "host", host, "err", err)
			}
		}
		logger.Debug("opened charm document store", "host", host)
		return c, nil
	}

	return nil, fmt.Errorf("unknown document store backend: %q", opts.Backend)
}
