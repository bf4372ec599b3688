// ABOUTME: Migration utility that stamps schemaVersion on legacy case documents.
// ABOUTME: Provides dry-run and JSON backup capabilities for safe document migration.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/fitout/config"
	"github.com/harperreed/fitout/docstore"
	"github.com/harperreed/fitout/models"
)

type options struct {
	dryRun    bool
	backupDir string
	force     bool
}

type result struct {
	Stamped     []string
	Current     []string
	Unsupported []string
	BackupPath  string
}

func main() {
	configPath := flag.String("config", config.Path(), "Config file path")
	dryRun := flag.Bool("dry-run", false, "Show what would happen without making changes")
	backup := flag.Bool("backup", true, "Write a JSON backup of every case before migrating")
	force := flag.Bool("force", false, "Migrate even if some cases carry an unsupported schema version")
	flag.Parse()

	cfg, err := config.LoadFrom(*configPath, ".env")
	if err != nil {
		log.Fatal("failed to load config", "err", err)
	}
	logger := cfg.NewLogger(os.Stderr)

	store, err := docstore.Open(cfg.DocstoreOptions(logger))
	if err != nil {
		logger.Fatal("failed to open document store", "err", err)
	}
	defer func() { _ = store.Close() }()

	opts := options{dryRun: *dryRun, force: *force}
	if *backup {
		opts.backupDir = cfg.DataDir
	}

	res, err := migrate(context.Background(), store, opts, logger)
	if err != nil {
		logger.Fatal("migration failed", "err", err)
	}

	logger.Info("migration completed",
		"stamped", len(res.Stamped),
		"current", len(res.Current),
		"unsupported", len(res.Unsupported),
	)
}

func migrate(ctx context.Context, store docstore.Store, opts options, logger *log.Logger) (*result, error) {
	snaps, err := store.List(ctx, models.CollectionCases)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}

	res := &result{}
	for _, snap := range snaps {
		var head struct {
			SchemaVersion *int `json:"schemaVersion"`
		}
		if err := json.Unmarshal(snap.Data, &head); err != nil {
			logger.Warn("skipping unreadable case", "case", snap.ID, "err", err)
			continue
		}
		switch {
		case head.SchemaVersion == nil || *head.SchemaVersion == 0:
			res.Stamped = append(res.Stamped, snap.ID)
		case *head.SchemaVersion == models.CurrentSchemaVersion:
			res.Current = append(res.Current, snap.ID)
		default:
			res.Unsupported = append(res.Unsupported, snap.ID)
		}
	}

	logger.Info("cases scanned", "total", len(snaps))

	if len(res.Unsupported) > 0 && !opts.force {
		logger.Warn("cases carry a schema version newer than this build", "cases", res.Unsupported)
		logger.Warn("use -force to migrate the rest and leave them untouched")
		return nil, fmt.Errorf("migration requires -force flag")
	}

	if opts.dryRun {
		for _, id := range res.Stamped {
			logger.Info("[DRY RUN] would stamp schemaVersion", "case", id, "version", models.CurrentSchemaVersion)
		}
		return res, nil
	}

	if len(res.Stamped) == 0 {
		logger.Info("nothing to migrate")
		return res, nil
	}

	if opts.backupDir != "" {
		path, err := writeBackup(opts.backupDir, snaps)
		if err != nil {
			return nil, err
		}
		res.BackupPath = path
		logger.Info("backup created", "path", path)
	}

	for _, id := range res.Stamped {
		if err := store.Update(ctx, models.CollectionCases, id, "schemaVersion", models.CurrentSchemaVersion); err != nil {
			return nil, fmt.Errorf("failed to stamp case %s: %w", id, err)
		}
		logger.Info("stamped case", "case", id)
	}
	return res, nil
}

func writeBackup(dir string, snaps []docstore.Snapshot) (string, error) {
	docs := make(map[string]json.RawMessage, len(snaps))
	for _, snap := range snaps {
		docs[snap.ID] = json.RawMessage(snap.Data)
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode backup: %w", err)
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create backup dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("cases.backup.%s.json", time.Now().Format("20060102-150405")))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	return path, nil
}
