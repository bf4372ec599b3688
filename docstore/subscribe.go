// ABOUTME: Real-time document subscriptions for the document store client
// ABOUTME: One goroutine per subscription delivers complete snapshots in order

package docstore

import (
	"bytes"
	"sync"
)

type subscription struct {
	key        string
	collection string
	id         string

	notify chan struct{}
	errs   chan error
	done   chan struct{}
	once   sync.Once

	onSnapshot func(Snapshot)
	onError    func(error)

	delivered  bool
	lastExists bool
	lastData   []byte
}

// Subscribe delivers the current document and then every change to it. An
// absent document is delivered as a snapshot with Exists false. Callbacks run
// on the subscription's own goroutine, never concurrently with each other.
func (c *Client) Subscribe(collection, id string, onSnapshot func(Snapshot), onError func(error)) Unsubscribe {
	s := &subscription{
		key:        docKey(collection, id),
		collection: collection,
		id:         id,
		notify:     make(chan struct{}, 1),
		errs:       make(chan error, 1),
		done:       make(chan struct{}),
		onSnapshot: onSnapshot,
		onError:    onError,
	}

	c.subsMu.Lock()
	set, ok := c.subs[s.key]
	if !ok {
		set = make(map[*subscription]struct{})
		c.subs[s.key] = set
	}
	set[s] = struct{}{}
	c.subsMu.Unlock()

	s.signal()
	go c.run(s)

	return func() { c.unsubscribe(s) }
}

func (c *Client) run(s *subscription) {
	for {
		select {
		case <-s.done:
			return
		case err := <-s.errs:
			if s.stopped() {
				return
			}
			if s.onError != nil {
				s.onError(err)
			}
		case <-s.notify:
			if s.stopped() {
				return
			}
			snap, err := c.read(s.collection, s.id)
			if err != nil {
				if s.onError != nil {
					s.onError(err)
				}
				continue
			}
			if s.delivered && snap.Exists == s.lastExists && bytes.Equal(snap.Data, s.lastData) {
				continue
			}
			s.delivered = true
			s.lastExists = snap.Exists
			s.lastData = snap.Data
			if s.onSnapshot != nil {
				s.onSnapshot(snap)
			}
		}
	}
}

func (c *Client) unsubscribe(s *subscription) {
	s.once.Do(func() {
		close(s.done)
		c.subsMu.Lock()
		if set, ok := c.subs[s.key]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(c.subs, s.key)
			}
		}
		c.subsMu.Unlock()
	})
}

func (s *subscription) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// signal coalesces: a pending notification already covers this change.
func (s *subscription) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscription) fail(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

func (c *Client) notifyKey(key string) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for s := range c.subs[key] {
		s.signal()
	}
}

func (c *Client) notifyAll() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, set := range c.subs {
		for s := range set {
			s.signal()
		}
	}
}

func (c *Client) failAll(err error) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, set := range c.subs {
		for s := range set {
			s.fail(err)
		}
	}
}

// ActiveSubscriptions reports how many subscriptions are open, for diagnostics.
func (c *Client) ActiveSubscriptions() int {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	n := 0
	for _, set := range c.subs {
		n += len(set)
	}
	return n
}
