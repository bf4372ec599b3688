// ABOUTME: Watcher subscribes to one case document and republishes its projection
// ABOUTME: Tracks loading and error state and keeps at most one active subscription
package portal

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/fitout/docstore"
	"github.com/harperreed/fitout/models"
)

// State is what a watcher publishes after every change.
type State struct {
	Project *models.ClientProject
	Loading bool
	Error   string
}

// MarshalJSON renders an empty error as null.
func (s State) MarshalJSON() ([]byte, error) {
	var errVal *string
	if s.Error != "" {
		errVal = &s.Error
	}
	return json.Marshal(struct {
		Project *models.ClientProject `json:"project"`
		Loading bool                  `json:"loading"`
		Error   *string               `json:"error"`
	}{s.Project, s.Loading, errVal})
}

// Watcher keeps a ClientProject current for one case at a time.
type Watcher struct {
	sub    docstore.Subscriber
	logger *log.Logger
	now    func() time.Time

	mu        sync.Mutex
	state     State
	caseID    string
	gen       uint64
	unsub     docstore.Unsubscribe
	listeners map[int]func(State)
	nextID    int
	closed    bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

func WithLogger(l *log.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithClock overrides the time source used for day arithmetic.
func WithClock(now func() time.Time) WatcherOption {
	return func(w *Watcher) { w.now = now }
}

// NewWatcher creates an idle watcher. It reports loading until Watch is
// called with a case id and the first snapshot arrives.
func NewWatcher(sub docstore.Subscriber, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		sub:       sub,
		logger:    log.Default(),
		now:       time.Now,
		state:     State{Loading: true},
		listeners: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch switches the watcher to caseID. Any previous subscription is stopped
// first. An empty id leaves the watcher loading and subscribes to nothing.
func (w *Watcher) Watch(caseID string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	prev := w.unsub
	w.unsub = nil
	w.gen++
	gen := w.gen
	w.caseID = caseID
	w.state = State{Loading: true}
	w.mu.Unlock()

	if prev != nil {
		prev()
	}
	w.publish()

	if caseID == "" {
		return
	}

	w.logger.Debug("watching case", "case", caseID)
	unsub := w.sub.Subscribe(models.CollectionCases, caseID,
		func(snap docstore.Snapshot) { w.handleSnapshot(gen, snap) },
		func(err error) { w.handleError(gen, err) },
	)

	w.mu.Lock()
	if w.gen != gen {
		// Superseded or terminated while subscribing.
		w.mu.Unlock()
		unsub()
		return
	}
	w.unsub = unsub
	w.mu.Unlock()
}

func (w *Watcher) handleSnapshot(gen uint64, snap docstore.Snapshot) {
	w.mu.Lock()
	if w.gen != gen || w.closed {
		w.mu.Unlock()
		return
	}

	if !snap.Exists {
		w.state = State{Error: ErrProjectNotFound.Error()}
		unsub := w.unsub
		w.unsub = nil
		// Not found is terminal until the next Watch.
		w.gen++
		w.mu.Unlock()

		w.logger.Warn("case not found", "case", snap.ID)
		if unsub != nil {
			unsub()
		}
		w.publish()
		return
	}
	w.mu.Unlock()

	raw, err := DecodeCase(snap.Data)
	var project *models.ClientProject
	if err == nil {
		project = RawCaseToClientProject(raw, w.now())
	}

	w.mu.Lock()
	if w.gen != gen || w.closed {
		w.mu.Unlock()
		return
	}
	if err != nil {
		w.state.Loading = false
		w.state.Error = err.Error()
	} else {
		w.state = State{Project: project}
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("failed to decode case", "case", snap.ID, "err", err)
	}
	w.publish()
}

func (w *Watcher) handleError(gen uint64, err error) {
	w.mu.Lock()
	if w.gen != gen || w.closed {
		w.mu.Unlock()
		return
	}
	// Keep the last good projection visible.
	w.state.Loading = false
	w.state.Error = err.Error()
	caseID := w.caseID
	w.mu.Unlock()

	w.logger.Warn("case subscription error", "case", caseID, "err", err)
	w.publish()
}

// State returns the latest published state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// OnChange registers fn to receive every published state. The returned
// function removes it.
func (w *Watcher) OnChange(fn func(State)) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = fn
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.listeners, id)
		w.mu.Unlock()
	}
}

func (w *Watcher) publish() {
	w.mu.Lock()
	state := w.state
	fns := make([]func(State), 0, len(w.listeners))
	for _, fn := range w.listeners {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// Close stops the subscription and drops all listeners.
func (w *Watcher) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.gen++
	unsub := w.unsub
	w.unsub = nil
	w.listeners = make(map[int]func(State))
	w.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}
