// Package file provides a filesystem-backed EventBus for cross-process
// delivery on a single host. Each subscriber owns a spool directory; Publish
// writes one record file per envelope and subscribers tail their directory
// with fsnotify. Files are removed after successful handling, so unprocessed
// envelopes survive a subscriber crash.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
)

// WithEventTypes restricts a subscription to the named event types. Without
// it the subscriber receives everything.
func WithEventTypes(names ...string) rd.SubscriberOption {
	return func(cfg any) {
		if c, ok := cfg.(*subscriberConfig); ok {
			c.eventTypes = append(c.eventTypes, names...)
		}
	}
}

type subscriberConfig struct {
	eventTypes []string
}

type subscriber struct {
	name    string
	handler rd.EventHandler
	filter  map[string]struct{}
	cancel  context.CancelFunc
}

// EventBus is the file-backed bus rooted at a spool directory.
type EventBus struct {
	mu         sync.RWMutex
	subs       map[string]*subscriber
	root       string
	serializer rd.Serializer
	closed     bool
	errs       chan error
	wg         sync.WaitGroup
}

var _ rd.EventBus = (*EventBus)(nil)

// NewEventBus constructs the bus over the given spool root, creating it if
// needed. All processes sharing the root see each other's publications.
func NewEventBus(root string) (*EventBus, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}

	return &EventBus{
		root:       root,
		subs:       make(map[string]*subscriber),
		serializer: rd.JSONSerializer{},
		errs:       make(chan error, 64),
	}, nil
}

// Subscribe registers a subscriber and starts tailing its spool directory.
// Records already spooled before the subscription are processed first.
func (b *EventBus) Subscribe(ctx context.Context, name string, handler rd.EventHandler, opts ...rd.SubscriberOption) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	var cfg subscriberConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New("bus is closed")
	}

	if _, exists := b.subs[name]; exists {
		return fmt.Errorf("subscriber %q already exists", name)
	}

	filter := make(map[string]struct{})
	for _, ev := range cfg.eventTypes {
		filter[ev] = struct{}{}
	}

	subDir := filepath.Join(b.root, name)
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		return err
	}

	workerCtx, cancel := context.WithCancel(context.Background())

	s := &subscriber{
		name:    name,
		handler: handler,
		filter:  filter,
		cancel:  cancel,
	}

	b.subs[name] = s

	b.wg.Add(1)
	go b.runSubscriber(workerCtx, s, subDir)

	go func() {
		<-ctx.Done()
		b.removeSubscriber(name)
	}()

	return nil
}

// Unsubscribe stops a subscriber's worker. Its spool directory is kept, so a
// later subscription under the same name resumes where it left off.
func (b *EventBus) Unsubscribe(name string) error {
	b.mu.RLock()
	_, ok := b.subs[name]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no subscriber with name %q", name)
	}
	b.removeSubscriber(name)
	return nil
}

// Publish spools each envelope into every matching subscriber directory.
// Records are written to a .tmp path first and renamed into place so
// watchers never observe a partial file.
func (b *EventBus) Publish(_ context.Context, envelopes ...*rd.Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return errors.New("bus is closed")
	}

	for _, env := range envelopes {
		rec, err := b.serializer.Serialize(*env)
		if err != nil {
			return err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		for name, s := range b.subs {
			if len(s.filter) > 0 {
				if _, ok := s.filter[env.Event.EventType()]; !ok {
					continue
				}
			}

			dir := filepath.Join(b.root, name)
			filename := fmt.Sprintf("%020d.json", time.Now().UnixNano())
			path := filepath.Join(dir, filename)

			tmp := path + ".tmp"
			if err := os.WriteFile(tmp, data, 0o644); err != nil {
				continue
			}
			_ = os.Rename(tmp, path)
		}
	}

	return nil
}

func (b *EventBus) Errors() <-chan error {
	return b.errs
}

// runSubscriber drains the spooled backlog, then watches the directory.
func (b *EventBus) runSubscriber(ctx context.Context, s *subscriber, dir string) {
	defer b.wg.Done()

	processDir := func() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") {
				continue
			}
			b.processFile(ctx, s, filepath.Join(dir, e.Name()))
		}
	}
	processDir()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		b.reportError(fmt.Errorf("subscriber %q: %w", s.name, err))
		return
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		b.reportError(fmt.Errorf("subscriber %q: watch %s: %w", s.name, dir, err))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-watcher.Events:
			if ev.Op&(fsnotify.Create|fsnotify.Rename|fsnotify.Write) != 0 {
				if strings.HasSuffix(ev.Name, ".tmp") {
					continue
				}
				b.processFile(ctx, s, ev.Name)
			}

		case err := <-watcher.Errors:
			b.reportError(fmt.Errorf("subscriber %q: %w", s.name, err))
		}
	}
}

// processFile handles a single spooled record and deletes it on success.
// On handler error the file stays in place and is retried on the next pass.
func (b *EventBus) processFile(ctx context.Context, s *subscriber, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var rec rd.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		b.reportError(fmt.Errorf("subscriber %q: decode %s: %w", s.name, filepath.Base(path), err))
		return
	}
	env, err := b.serializer.Deserialize(rec)
	if err != nil {
		b.reportError(fmt.Errorf("subscriber %q: decode %s: %w", s.name, filepath.Base(path), err))
		return
	}

	if err := s.handler.Handle(rd.WithEnvelope(ctx, env), env.Event); err != nil {
		b.reportError(fmt.Errorf("handler %q: %w", s.name, err))
		return // retry later
	}

	_ = os.Remove(path)
}

func (b *EventBus) reportError(err error) {
	select {
	case b.errs <- err:
	default:
		// Drop error if channel full
	}
}

func (b *EventBus) removeSubscriber(name string) {
	b.mu.Lock()
	s, ok := b.subs[name]
	if ok {
		delete(b.subs, name)
	}
	b.mu.Unlock()

	if ok {
		s.cancel()
	}
}

// Close shuts down the bus and waits for workers.
func (b *EventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, s := range b.subs {
		s.cancel()
	}
	b.subs = nil
	b.mu.Unlock()

	b.wg.Wait()
	close(b.errs)
	return nil
}
