// ABOUTME: Document store client over a KV backend with real-time document subscriptions
// ABOUTME: Supports whole-document sets, field-path updates and array appends

package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrDisabled    = errors.New("document store is disabled")
	ErrInvalidPath = errors.New("invalid field path")
	ErrNotAnArray  = errors.New("field is not an array")
	ErrInvalidDoc  = errors.New("document must be a JSON object")
)

// Snapshot is the full state of one document at read time.
type Snapshot struct {
	Collection string
	ID         string
	Exists     bool
	Data       []byte
	ReadAt     time.Time
}

// Decode unmarshals the snapshot data into v.
func (s Snapshot) Decode(v interface{}) error {
	if !s.Exists {
		return ErrNotFound
	}
	return json.Unmarshal(s.Data, v)
}

// Unsubscribe stops a subscription. Calling it more than once is safe.
type Unsubscribe func()

// Subscriber delivers a document's full contents on every change.
type Subscriber interface {
	Subscribe(collection, id string, onSnapshot func(Snapshot), onError func(error)) Unsubscribe
}

// Writer is the write interface used by the case helpers.
type Writer interface {
	Get(ctx context.Context, collection, id string) (Snapshot, error)
	Set(ctx context.Context, collection, id string, doc interface{}) error
	Update(ctx context.Context, collection, id, path string, value interface{}) error
	Append(ctx context.Context, collection, id, path string, elems ...interface{}) error
}

// Store is the full document store surface.
type Store interface {
	Subscriber
	Writer
	List(ctx context.Context, collection string) ([]Snapshot, error)
	Delete(ctx context.Context, collection, id string) error
	Close() error
}

// Client implements Store on top of a KV backend.
type Client struct {
	kv       KV
	closer   io.Closer
	autoSync bool
	logger   *log.Logger

	writeMu sync.Mutex

	subsMu sync.Mutex
	subs   map[string]map[*subscription]struct{}
}

var _ Store = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client's logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithAutoSync pushes every write to the backend's remote immediately.
func WithAutoSync(enabled bool) Option {
	return func(c *Client) { c.autoSync = enabled }
}

// WithCloser registers a resource released by Close.
func WithCloser(cl io.Closer) Option {
	return func(c *Client) { c.closer = cl }
}

// NewClient creates a client over kv.
func NewClient(backend KV, opts ...Option) *Client {
	c := &Client{
		kv:     backend,
		logger: log.Default(),
		subs:   make(map[string]map[*subscription]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func docKey(collection, id string) string {
	return collection + "/" + id
}

func (c *Client) read(collection, id string) (Snapshot, error) {
	snap := Snapshot{Collection: collection, ID: id, ReadAt: time.Now().UTC()}
	data, err := c.kv.Get([]byte(docKey(collection, id)))
	if errors.Is(err, errKeyMissing) {
		return snap, nil
	}
	if err != nil {
		return snap, fmt.Errorf("failed to read %s: %w", docKey(collection, id), err)
	}
	snap.Exists = true
	snap.Data = data
	return snap, nil
}

// Get reads one document. A missing document is a snapshot with Exists false.
func (c *Client) Get(_ context.Context, collection, id string) (Snapshot, error) {
	if id == "" {
		return Snapshot{}, fmt.Errorf("%w: empty document id", ErrInvalidPath)
	}
	return c.read(collection, id)
}

// List returns every document in a collection.
func (c *Client) List(_ context.Context, collection string) ([]Snapshot, error) {
	keys, err := c.kv.Keys()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	prefix := collection + "/"
	var snaps []Snapshot
	for _, k := range keys {
		key := string(k)
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		snap, err := c.read(collection, strings.TrimPrefix(key, prefix))
		if err != nil {
			return nil, err
		}
		if snap.Exists {
			snaps = append(snaps, snap)
		}
	}
	return snaps, nil
}

// Set replaces a whole document.
func (c *Client) Set(_ context.Context, collection, id string, doc interface{}) error {
	if id == "" {
		return fmt.Errorf("%w: empty document id", ErrInvalidPath)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	var probe map[string]interface{}
	if err := json.Unmarshal(data, &probe); err != nil || probe == nil {
		return ErrInvalidDoc
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.write(collection, id, data)
}

// Update sets the value at a dotted field path of an existing document.
func (c *Client) Update(_ context.Context, collection, id, path string, value interface{}) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	v, err := toJSONValue(value)
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	doc, err := c.loadObject(collection, id)
	if err != nil {
		return err
	}
	if err := setPath(doc, segs, v); err != nil {
		return err
	}
	return c.writeObject(collection, id, doc)
}

// Append adds elements to the array at path, creating it when absent. The
// stored array is replaced as a whole.
func (c *Client) Append(_ context.Context, collection, id, path string, elems ...interface{}) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	doc, err := c.loadObject(collection, id)
	if err != nil {
		return err
	}

	var arr []interface{}
	switch existing := getPath(doc, segs).(type) {
	case nil:
	case []interface{}:
		arr = existing
	default:
		return fmt.Errorf("%w: %s", ErrNotAnArray, path)
	}

	for _, e := range elems {
		v, err := toJSONValue(e)
		if err != nil {
			return fmt.Errorf("failed to encode element: %w", err)
		}
		arr = append(arr, v)
	}

	if err := setPath(doc, segs, arr); err != nil {
		return err
	}
	return c.writeObject(collection, id, doc)
}

// Delete removes a document.
func (c *Client) Delete(_ context.Context, collection, id string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.kv.Delete([]byte(docKey(collection, id))); err != nil {
		return fmt.Errorf("failed to delete %s: %w", docKey(collection, id), err)
	}
	c.afterWrite(collection, id)
	return nil
}

func (c *Client) loadObject(collection, id string) (map[string]interface{}, error) {
	snap, err := c.read(collection, id)
	if err != nil {
		return nil, err
	}
	if !snap.Exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, docKey(collection, id))
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(snap.Data, &doc); err != nil || doc == nil {
		return nil, ErrInvalidDoc
	}
	return doc, nil
}

func (c *Client) writeObject(collection, id string, doc map[string]interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	return c.write(collection, id, data)
}

// write must be called with writeMu held.
func (c *Client) write(collection, id string, data []byte) error {
	if err := c.kv.Set([]byte(docKey(collection, id)), data); err != nil {
		return fmt.Errorf("failed to write %s: %w", docKey(collection, id), err)
	}
	c.afterWrite(collection, id)
	return nil
}

func (c *Client) afterWrite(collection, id string) {
	if c.autoSync {
		if err := c.kv.Sync(); err != nil {
			c.logger.Warn("sync after write failed", "key", docKey(collection, id), "err", err)
		}
	}
	c.notifyKey(docKey(collection, id))
}

// Sync pulls remote changes and pushes local ones, then refreshes every
// subscription. Failures are reported to subscribers as transport errors.
func (c *Client) Sync() error {
	if err := c.kv.Sync(); err != nil {
		c.failAll(err)
		return err
	}
	c.notifyAll()
	return nil
}

// StartSync runs Sync every interval until ctx is done.
func (c *Client) StartSync(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Sync(); err != nil {
				c.logger.Warn("document sync failed", "err", err)
			}
		}
	}
}

// Close stops all subscriptions and releases the backend.
func (c *Client) Close() error {
	c.subsMu.Lock()
	var all []*subscription
	for _, set := range c.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	c.subsMu.Unlock()

	for _, s := range all {
		c.unsubscribe(s)
	}

	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}
