package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/harperreed/fitout/docstore"
	"github.com/harperreed/fitout/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, docs map[string]map[string]interface{}) *docstore.Client {
	t.Helper()
	store := docstore.NewTestClient(t)
	for id, doc := range docs {
		require.NoError(t, store.Set(context.Background(), models.CollectionCases, id, doc))
	}
	return store
}

func schemaOf(t *testing.T, store *docstore.Client, id string) interface{} {
	t.Helper()
	snap, err := store.Get(context.Background(), models.CollectionCases, id)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(snap.Data, &doc))
	return doc["schemaVersion"]
}

func TestMigrateStampsLegacyCases(t *testing.T) {
	store := seed(t, map[string]map[string]interface{}{
		"old": {"id": "old", "projectName": "Legacy"},
		"new": {"id": "new", "projectName": "Current", "schemaVersion": 1},
	})
	dir := t.TempDir()

	res, err := migrate(context.Background(), store, options{backupDir: dir}, log.New(io.Discard))
	require.NoError(t, err)

	assert.Equal(t, []string{"old"}, res.Stamped)
	assert.Equal(t, []string{"new"}, res.Current)
	assert.EqualValues(t, 1, schemaOf(t, store, "old"))

	data, err := os.ReadFile(res.BackupPath)
	require.NoError(t, err)
	var backup map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &backup))
	assert.Len(t, backup, 2)
	assert.NotContains(t, backup["old"], "schemaVersion")
}

func TestMigrateDryRun(t *testing.T) {
	store := seed(t, map[string]map[string]interface{}{
		"old": {"id": "old"},
	})

	res, err := migrate(context.Background(), store, options{dryRun: true}, log.New(io.Discard))
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, res.Stamped)
	assert.Nil(t, schemaOf(t, store, "old"))
	assert.Empty(t, res.BackupPath)
}

func TestMigrateUnsupportedRequiresForce(t *testing.T) {
	store := seed(t, map[string]map[string]interface{}{
		"old":    {"id": "old"},
		"future": {"id": "future", "schemaVersion": 7},
	})

	_, err := migrate(context.Background(), store, options{}, log.New(io.Discard))
	require.Error(t, err)
	assert.Nil(t, schemaOf(t, store, "old"))

	res, err := migrate(context.Background(), store, options{force: true}, log.New(io.Discard))
	require.NoError(t, err)
	assert.Equal(t, []string{"future"}, res.Unsupported)
	assert.EqualValues(t, 1, schemaOf(t, store, "old"))
	assert.EqualValues(t, 7, schemaOf(t, store, "future"))
}
