// ABOUTME: Tests for the document store client
// ABOUTME: Covers CRUD, field-path updates, array appends and subscriptions
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeMap(t *testing.T, snap Snapshot) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, snap.Decode(&m))
	return m
}

func TestClient_SetGet(t *testing.T) {
	c := NewTestClient(t)
	ctx := context.Background()

	snap, err := c.Get(ctx, "cases", "c1")
	require.NoError(t, err)
	assert.False(t, snap.Exists)
	assert.ErrorIs(t, snap.Decode(&struct{}{}), ErrNotFound)

	require.NoError(t, c.Set(ctx, "cases", "c1", map[string]interface{}{"id": "c1", "clientName": "Mehta"}))

	snap, err = c.Get(ctx, "cases", "c1")
	require.NoError(t, err)
	require.True(t, snap.Exists)
	assert.Equal(t, "Mehta", decodeMap(t, snap)["clientName"])
}

func TestClient_SetRejectsNonObjects(t *testing.T) {
	c := NewTestClient(t)
	ctx := context.Background()

	assert.ErrorIs(t, c.Set(ctx, "cases", "c1", []int{1, 2}), ErrInvalidDoc)
	assert.ErrorIs(t, c.Set(ctx, "cases", "c1", nil), ErrInvalidDoc)
	assert.Error(t, c.Set(ctx, "cases", "", map[string]string{}))
}

func TestClient_Update(t *testing.T) {
	c := NewTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "cases", "c1", map[string]interface{}{
		"id":          "c1",
		"leadJourney": map[string]interface{}{"callInitiated": "2025-01-01T00:00:00Z"},
		"clientName":  "Mehta",
	}))

	require.NoError(t, c.Update(ctx, "cases", "c1", "leadJourney.siteVisitCompleted", "2025-01-05T00:00:00Z"))
	require.NoError(t, c.Update(ctx, "cases", "c1", "health.status", "on_track"))

	snap, err := c.Get(ctx, "cases", "c1")
	require.NoError(t, err)
	doc := decodeMap(t, snap)

	journey := doc["leadJourney"].(map[string]interface{})
	assert.Equal(t, "2025-01-01T00:00:00Z", journey["callInitiated"])
	assert.Equal(t, "2025-01-05T00:00:00Z", journey["siteVisitCompleted"])
	assert.Equal(t, "on_track", doc["health"].(map[string]interface{})["status"])
	assert.Equal(t, "Mehta", doc["clientName"])
}

func TestClient_UpdateErrors(t *testing.T) {
	c := NewTestClient(t)
	ctx := context.Background()

	err := c.Update(ctx, "cases", "missing", "clientName", "x")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Set(ctx, "cases", "c1", map[string]interface{}{"clientName": "Mehta"}))

	assert.ErrorIs(t, c.Update(ctx, "cases", "c1", "clientName.first", "x"), ErrInvalidPath)
	assert.ErrorIs(t, c.Update(ctx, "cases", "c1", "", "x"), ErrInvalidPath)
	assert.ErrorIs(t, c.Update(ctx, "cases", "c1", "a..b", "x"), ErrInvalidPath)
}

func TestClient_Append(t *testing.T) {
	c := NewTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "cases", "c1", map[string]interface{}{"id": "c1"}))

	type msg struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}
	require.NoError(t, c.Append(ctx, "cases", "c1", "chat", msg{ID: "m1", Message: "hello"}))
	require.NoError(t, c.Append(ctx, "cases", "c1", "chat", msg{ID: "m2", Message: "hi"}, msg{ID: "m3", Message: "ok"}))

	snap, err := c.Get(ctx, "cases", "c1")
	require.NoError(t, err)

	var doc struct {
		Chat []msg `json:"chat"`
	}
	require.NoError(t, snap.Decode(&doc))
	require.Len(t, doc.Chat, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{doc.Chat[0].ID, doc.Chat[1].ID, doc.Chat[2].ID})

	assert.ErrorIs(t, c.Append(ctx, "cases", "c1", "id", "x"), ErrNotAnArray)
	assert.ErrorIs(t, c.Append(ctx, "cases", "nope", "chat", "x"), ErrNotFound)
}

func TestClient_ListAndDelete(t *testing.T) {
	c := NewTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "cases", "a", map[string]string{"id": "a"}))
	require.NoError(t, c.Set(ctx, "cases", "b", map[string]string{"id": "b"}))
	require.NoError(t, c.Set(ctx, "users", "u", map[string]string{"id": "u"}))

	snaps, err := c.List(ctx, "cases")
	require.NoError(t, err)
	assert.Len(t, snaps, 2)

	require.NoError(t, c.Delete(ctx, "cases", "a"))
	snaps, err = c.List(ctx, "cases")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "b", snaps[0].ID)
}

func TestClient_SubscribeDeliversChanges(t *testing.T) {
	c := NewTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "cases", "c1", map[string]string{"clientName": "first"}))

	snaps := make(chan Snapshot, 10)
	unsub := c.Subscribe("cases", "c1", func(s Snapshot) { snaps <- s }, nil)
	defer unsub()

	first := waitSnapshot(t, snaps)
	assert.True(t, first.Exists)
	assert.Equal(t, "first", decodeMap(t, first)["clientName"])

	require.NoError(t, c.Update(ctx, "cases", "c1", "clientName", "second"))
	second := waitSnapshot(t, snaps)
	assert.Equal(t, "second", decodeMap(t, second)["clientName"])

	require.NoError(t, c.Delete(ctx, "cases", "c1"))
	gone := waitSnapshot(t, snaps)
	assert.False(t, gone.Exists)
}

func TestClient_SubscribeMissingDocument(t *testing.T) {
	c := NewTestClient(t)

	snaps := make(chan Snapshot, 1)
	unsub := c.Subscribe("cases", "ghost", func(s Snapshot) { snaps <- s }, nil)
	defer unsub()

	snap := waitSnapshot(t, snaps)
	assert.False(t, snap.Exists)
	assert.Equal(t, "ghost", snap.ID)
}

func TestClient_Unsubscribe(t *testing.T) {
	c := NewTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "cases", "c1", map[string]string{"v": "1"}))

	snaps := make(chan Snapshot, 10)
	unsub := c.Subscribe("cases", "c1", func(s Snapshot) { snaps <- s }, nil)
	waitSnapshot(t, snaps)
	assert.Equal(t, 1, c.ActiveSubscriptions())

	unsub()
	unsub()
	assert.Equal(t, 0, c.ActiveSubscriptions())

	require.NoError(t, c.Update(ctx, "cases", "c1", "v", "2"))
	select {
	case s := <-snaps:
		t.Fatalf("unexpected snapshot after unsubscribe: %s", s.Data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClient_SyncErrorReachesSubscribers(t *testing.T) {
	backend, err := OpenBadgerKV(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = backend.Close() }()

	flaky := &FlakyKV{KV: backend}
	c := NewClient(flaky)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "cases", "c1", map[string]string{"v": "1"}))

	snaps := make(chan Snapshot, 10)
	errs := make(chan error, 10)
	unsub := c.Subscribe("cases", "c1", func(s Snapshot) { snaps <- s }, func(err error) { errs <- err })
	defer unsub()
	waitSnapshot(t, snaps)

	flaky.Break(nil)
	assert.Error(t, c.Sync())

	select {
	case err := <-errs:
		assert.True(t, errors.Is(err, ErrTransport))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transport error")
	}

	flaky.Heal()
	require.NoError(t, c.Sync())
}

func TestDisabled(t *testing.T) {
	var s Store = Disabled{}
	ctx := context.Background()

	_, err := s.Get(ctx, "cases", "c1")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.ErrorIs(t, s.Set(ctx, "cases", "c1", map[string]string{}), ErrDisabled)
	assert.ErrorIs(t, s.Append(ctx, "cases", "c1", "chat", 1), ErrDisabled)

	errs := make(chan error, 1)
	unsub := s.Subscribe("cases", "c1", func(Snapshot) { t.Error("disabled store delivered a snapshot") }, func(err error) { errs <- err })
	defer unsub()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrDisabled)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for disabled error")
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(Options{Backend: "postgres"})
	assert.Error(t, err)
}

func TestOpen_LocalBackend(t *testing.T) {
	s, err := Open(Options{Backend: BackendLocal, DataDir: t.TempDir()})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "cases", "c1", json.RawMessage(`{"id":"c1"}`)))
	snap, err := s.Get(ctx, "cases", "c1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"c1"}`, string(snap.Data))
}

func waitSnapshot(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}
