// ABOUTME: Tests for the case watcher state machine
// ABOUTME: Uses a Badger-backed document store and a flaky backend for transport errors
package portal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/harperreed/fitout/docstore"
	"github.com/harperreed/fitout/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second
const tick = 10 * time.Millisecond

func seedCase(t *testing.T, store docstore.Writer, id string, doc map[string]interface{}) {
	t.Helper()
	doc["id"] = id
	require.NoError(t, store.Set(context.Background(), models.CollectionCases, id, doc))
}

func fixedClock() time.Time { return testNow }

func TestWatcher_EmptyIDStaysLoading(t *testing.T) {
	sub := &countingSubscriber{}
	w := NewWatcher(sub)
	defer w.Close()

	w.Watch("")

	st := w.State()
	assert.True(t, st.Loading)
	assert.Nil(t, st.Project)
	assert.Empty(t, st.Error)
	assert.Equal(t, 0, sub.calls())
}

func TestWatcher_PublishesProjection(t *testing.T) {
	store := docstore.NewTestClient(t)
	seedCase(t, store, "c1", map[string]interface{}{
		"clientName": "Mehta",
		"financial": map[string]interface{}{
			"totalBudget": 250000,
			"installmentSchedule": []interface{}{
				map[string]interface{}{"amount": 100000, "status": "Paid"},
				map[string]interface{}{"amount": 150000, "status": "Pending"},
			},
		},
	})

	w := NewWatcher(store, WithClock(fixedClock))
	defer w.Close()
	w.Watch("c1")

	require.Eventually(t, func() bool { return w.State().Project != nil }, waitFor, tick)

	st := w.State()
	assert.False(t, st.Loading)
	assert.Empty(t, st.Error)
	assert.Equal(t, "Mehta", st.Project.ClientName)
	assert.Equal(t, 40, st.Project.BudgetUtilizationPercent)
}

func TestWatcher_RecomputesOnChange(t *testing.T) {
	store := docstore.NewTestClient(t)
	seedCase(t, store, "c1", map[string]interface{}{"clientName": "Mehta"})

	w := NewWatcher(store, WithClock(fixedClock))
	defer w.Close()

	var mu sync.Mutex
	var seen []string
	remove := w.OnChange(func(s State) {
		if s.Project == nil {
			return
		}
		mu.Lock()
		seen = append(seen, s.Project.ClientName)
		mu.Unlock()
	})
	defer remove()

	w.Watch("c1")
	require.Eventually(t, func() bool { return w.State().Project != nil }, waitFor, tick)

	require.NoError(t, store.Update(context.Background(), models.CollectionCases, "c1", "clientName", "Mehta Family"))
	require.Eventually(t, func() bool {
		p := w.State().Project
		return p != nil && p.ClientName == "Mehta Family"
	}, waitFor, tick)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Mehta", "Mehta Family"}, seen)
}

func TestWatcher_NotFoundIsTerminal(t *testing.T) {
	store := docstore.NewTestClient(t)

	w := NewWatcher(store)
	defer w.Close()
	w.Watch("ghost")

	require.Eventually(t, func() bool { return w.State().Error != "" }, waitFor, tick)

	st := w.State()
	assert.Nil(t, st.Project)
	assert.False(t, st.Loading)
	assert.Equal(t, "Project not found", st.Error)
	require.Eventually(t, func() bool { return store.ActiveSubscriptions() == 0 }, waitFor, tick)

	// Creating the document later does not revive the stream.
	seedCase(t, store, "ghost", map[string]interface{}{"clientName": "Late"})
	time.Sleep(50 * time.Millisecond)
	assert.Nil(t, w.State().Project)
	assert.Equal(t, "Project not found", w.State().Error)

	// An explicit Watch does.
	w.Watch("ghost")
	require.Eventually(t, func() bool { return w.State().Project != nil }, waitFor, tick)
	assert.Equal(t, "Late", w.State().Project.ClientName)
}

func TestWatcher_StateJSON(t *testing.T) {
	data, err := State{Error: "Project not found"}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"project": null, "loading": false, "error": "Project not found"}`, string(data))

	data, err = State{Loading: true}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"project": null, "loading": true, "error": null}`, string(data))
}

func TestWatcher_TransportErrorKeepsProject(t *testing.T) {
	backend, err := docstore.OpenBadgerKV(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = backend.Close() }()

	flaky := &docstore.FlakyKV{KV: backend}
	store := docstore.NewClient(flaky)
	defer func() { _ = store.Close() }()

	seedCase(t, store, "c1", map[string]interface{}{"clientName": "Mehta"})

	w := NewWatcher(store)
	defer w.Close()
	w.Watch("c1")
	require.Eventually(t, func() bool { return w.State().Project != nil }, waitFor, tick)

	flaky.Break(nil)
	require.Error(t, store.Sync())

	require.Eventually(t, func() bool { return w.State().Error != "" }, waitFor, tick)
	st := w.State()
	assert.Equal(t, docstore.ErrTransport.Error(), st.Error)
	require.NotNil(t, st.Project)
	assert.Equal(t, "Mehta", st.Project.ClientName)
	assert.False(t, st.Loading)

	flaky.Heal()
	require.NoError(t, store.Update(context.Background(), models.CollectionCases, "c1", "clientName", "Mehta Family"))
	require.Eventually(t, func() bool {
		s := w.State()
		return s.Error == "" && s.Project != nil && s.Project.ClientName == "Mehta Family"
	}, waitFor, tick)
}

func TestWatcher_UnsupportedSchemaSurfacesError(t *testing.T) {
	store := docstore.NewTestClient(t)
	seedCase(t, store, "c1", map[string]interface{}{"clientName": "Mehta"})

	w := NewWatcher(store)
	defer w.Close()
	w.Watch("c1")
	require.Eventually(t, func() bool { return w.State().Project != nil }, waitFor, tick)

	require.NoError(t, store.Update(context.Background(), models.CollectionCases, "c1", "schemaVersion", 99))
	require.Eventually(t, func() bool { return w.State().Error != "" }, waitFor, tick)

	st := w.State()
	assert.Contains(t, st.Error, ErrUnsupportedSchema.Error())
	require.NotNil(t, st.Project)
	assert.Equal(t, "Mehta", st.Project.ClientName)
}

func TestWatcher_SwitchingCasesKeepsOneSubscription(t *testing.T) {
	store := docstore.NewTestClient(t)
	seedCase(t, store, "c1", map[string]interface{}{"clientName": "First"})
	seedCase(t, store, "c2", map[string]interface{}{"clientName": "Second"})

	w := NewWatcher(store)
	defer w.Close()

	w.Watch("c1")
	require.Eventually(t, func() bool { return w.State().Project != nil }, waitFor, tick)

	w.Watch("c2")
	require.Eventually(t, func() bool {
		p := w.State().Project
		return p != nil && p.ClientName == "Second"
	}, waitFor, tick)
	assert.Equal(t, 1, store.ActiveSubscriptions())

	// Changes to the old case are ignored.
	require.NoError(t, store.Update(context.Background(), models.CollectionCases, "c1", "clientName", "Changed"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, "Second", w.State().Project.ClientName)

	w.Close()
	assert.Equal(t, 0, store.ActiveSubscriptions())
}

func TestWatcher_DisabledStore(t *testing.T) {
	w := NewWatcher(docstore.Disabled{})
	defer w.Close()
	w.Watch("c1")

	require.Eventually(t, func() bool { return w.State().Error != "" }, waitFor, tick)
	assert.Equal(t, docstore.ErrDisabled.Error(), w.State().Error)
	assert.Nil(t, w.State().Project)
}

// countingSubscriber records Subscribe calls and never delivers anything.
type countingSubscriber struct {
	mu sync.Mutex
	n  int
}

func (c *countingSubscriber) Subscribe(string, string, func(docstore.Snapshot), func(error)) docstore.Unsubscribe {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return func() {}
}

func (c *countingSubscriber) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
