// ABOUTME: Long-running serve command
// ABOUTME: Runs the web portal, document store sync, and calendar import side by side
package cli

import (
	"context"
	"time"

	"github.com/harperreed/fitout/sync"
	"github.com/harperreed/fitout/web"
	"golang.org/x/sync/errgroup"
)

// syncer is implemented by stores that pull remote changes periodically.
type syncer interface {
	StartSync(ctx context.Context, interval time.Duration)
}

// ServeCommand runs until ctx is cancelled or a component fails.
func ServeCommand(ctx context.Context, env *Env, args []string) error {
	addr := "127.0.0.1:8080"
	var syncInterval time.Duration
	if env.Config != nil {
		addr = env.Config.WebAddr
		syncInterval = env.Config.SyncInterval.Duration
	}

	fs := env.newFlagSet("serve")
	fs.StringVar(&addr, "addr", addr, "Listen address")
	calendarEvery := fs.Duration("calendar-interval", 0, "Import calendar events this often (0 disables)")
	calendarID := fs.String("calendar", "primary", "Calendar ID for imports")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := env.logger()
	server, err := web.NewServer(env.Store, env.Reports,
		web.WithLogger(logger),
		web.WithLanguage(env.language()),
	)
	if err != nil {
		return err
	}

	// Fail before anything is listening.
	var importer *sync.Importer
	if *calendarEvery > 0 {
		importer, err = NewCalendarImporter(ctx, env, *calendarID)
		if err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(ctx, addr)
	})

	if s, ok := env.Store.(syncer); ok && syncInterval > 0 {
		g.Go(func() error {
			logger.Info("document sync started", "interval", syncInterval)
			s.StartSync(ctx, syncInterval)
			return nil
		})
	}

	if importer != nil {
		g.Go(func() error {
			ticker := time.NewTicker(*calendarEvery)
			defer ticker.Stop()
			for {
				if _, err := importer.ImportSiteVisits(ctx, false); err != nil {
					// Recorded in sync_state; keep serving.
					logger.Warn("calendar import failed", "err", err)
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		})
	}

	return g.Wait()
}
