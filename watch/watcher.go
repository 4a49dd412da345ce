// Package watch dispatches property-change notifications to one handler per
// property name.
//
// A Watcher subscribes to a property.Target for exactly the keys of its
// event map while observation is enabled, and for none while it is disabled.
// Replacing, extending or shrinking the event map reconciles subscriptions
// with the minimal set of Subscribe and Unsubscribe calls.
//
//	obj := property.NewObject(map[string]any{"length": 0.0})
//	w := watch.New(obj, watch.Events{
//	    "length": func(old, new any) { fmt.Println(old, "->", new) },
//	}, true)
//	defer w.Close()
//	obj.Set("length", 2.0) // prints 0 -> 2
package watch

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/tailored-agentic-units/propwatch/observability"
	"github.com/tailored-agentic-units/propwatch/property"
)

const defaultSource = "watch"

// Handler receives the old and new value of a changed property. Either may
// be nil when the change has no meaningful previous or next value, such as
// a collection insertion or removal.
type Handler func(old, new any)

// Events maps property names to their handlers.
type Events map[string]Handler

// Option configures a Watcher at construction.
type Option func(*Watcher)

// WithObserver overrides the default SlogObserver.
func WithObserver(o observability.Observer) Option {
	return func(w *Watcher) {
		if o != nil {
			w.observer = o
		}
	}
}

// WithFallback sets the subscriber that receives notifications this watcher
// does not handle: keys absent from the event map, or tokens that are not
// its own.
func WithFallback(s property.Subscriber) Option {
	return func(w *Watcher) { w.fallback = s }
}

// WithOptions sets the delivery options requested on every Subscribe.
func WithOptions(opts property.Options) Option {
	return func(w *Watcher) { w.options = opts }
}

// WithSource sets the Source reported on emitted events.
func WithSource(source string) Option {
	return func(w *Watcher) {
		if source != "" {
			w.source = source
		}
	}
}

// Watcher adapts string-keyed change notifications into per-property handler
// calls. Handlers run synchronously on the goroutine that delivered the
// notification, in arrival order, and are invoked without any watcher lock
// held so they may call back into the watcher.
type Watcher struct {
	target    property.Target
	token     property.Token
	events    Events
	observing bool
	closed    bool

	options  property.Options
	fallback property.Subscriber
	observer observability.Observer
	source   string

	mu sync.RWMutex
}

// New creates a Watcher over target using a copy of events. When observing
// is true every key is subscribed immediately. Construction never invokes a
// handler. target must not be nil; NewFromConfig reports ErrNilTarget.
func New(target property.Target, events Events, observing bool, opts ...Option) *Watcher {
	w := &Watcher{
		target:   target,
		token:    property.NewToken(),
		events:   maps.Clone(events),
		options:  property.DefaultOptions(),
		observer: observability.NewSlogObserver(nil),
		source:   defaultSource,
	}
	if w.events == nil {
		w.events = Events{}
	}
	for _, opt := range opts {
		opt(w)
	}

	w.emit(EventCreate, observability.LevelVerbose, map[string]any{
		"keys":      len(w.events),
		"observing": observing,
	})

	if observing {
		w.mu.Lock()
		w.observing = true
		w.subscribe(sortedKeys(w.events))
		w.mu.Unlock()
	}

	return w
}

// Token returns the identity this watcher registers with on the target.
func (w *Watcher) Token() property.Token {
	return w.token
}

// Events returns a copy of the live event map.
func (w *Watcher) Events() Events {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return maps.Clone(w.events)
}

// SetEvents replaces the event map. While observing, keys only in the old
// map are unsubscribed and keys only in the new map are subscribed; keys in
// both keep their subscription and take the new handler. While not
// observing, only the map is stored.
func (w *Watcher) SetEvents(events Events) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.replace(maps.Clone(events))
}

// Add merges partial into the event map, partial's handlers winning on
// collision, and reconciles as SetEvents does.
func (w *Watcher) Add(partial Events) {
	w.mu.Lock()
	defer w.mu.Unlock()

	merged := maps.Clone(w.events)
	maps.Copy(merged, partial)
	w.replace(merged)
}

// Remove drops keys from the event map and reconciles as SetEvents does.
// Keys that are not present are ignored.
func (w *Watcher) Remove(keys ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	remaining := maps.Clone(w.events)
	for _, k := range keys {
		delete(remaining, k)
	}
	w.replace(remaining)
}

// Observing reports whether the watcher is subscribed to its keys.
func (w *Watcher) Observing() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.observing
}

// SetObserving subscribes every key on false to true and unsubscribes every
// key on true to false. Setting the current value is a no-op, as is enabling
// observation on a closed watcher.
func (w *Watcher) SetObserving(observing bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.setObserving(observing)
}

// Close stops observation and releases every registration held on the
// target. The target itself is left untouched. Close is idempotent and the
// watcher must not be re-enabled afterwards.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.setObserving(false)
	w.closed = true

	w.emit(EventClose, observability.LevelVerbose, map[string]any{
		"keys": len(w.events),
	})
}

// OnNotify implements property.Subscriber. A notification carrying this
// watcher's token for an observed key is dispatched to that key's handler
// with (old, new). Anything else is forwarded to the fallback.
func (w *Watcher) OnNotify(key string, source any, change property.Change, token property.Token) {
	w.mu.RLock()
	handler, ok := w.events[key]
	own := token == w.token && w.observing
	w.mu.RUnlock()

	if !own || !ok {
		w.forward(key, source, change, token)
		return
	}

	w.emit(EventDispatch, observability.LevelVerbose, map[string]any{
		"key":  key,
		"kind": change.Kind.String(),
	})
	if handler != nil {
		handler(change.Old, change.New)
	}
}

func (w *Watcher) forward(key string, source any, change property.Change, token property.Token) {
	level := observability.LevelVerbose
	if w.fallback == nil {
		level = observability.LevelWarning
	}
	w.emit(EventForward, level, map[string]any{
		"key":     key,
		"kind":    change.Kind.String(),
		"foreign": token != w.token,
	})

	if w.fallback != nil {
		w.fallback.OnNotify(key, source, change, token)
	}
}

// replace and setObserving must be called with w.mu held.
func (w *Watcher) replace(events Events) {
	if events == nil {
		events = Events{}
	}
	old := w.events
	w.events = events
	if !w.observing {
		return
	}

	var removed, added []string
	for k := range old {
		if _, ok := events[k]; !ok {
			removed = append(removed, k)
		}
	}
	for k := range events {
		if _, ok := old[k]; !ok {
			added = append(added, k)
		}
	}
	slices.Sort(removed)
	slices.Sort(added)

	w.unsubscribe(removed)
	w.subscribe(added)
}

func (w *Watcher) setObserving(observing bool) {
	if observing == w.observing || (observing && w.closed) {
		return
	}
	w.observing = observing

	w.emit(EventObserve, observability.LevelInfo, map[string]any{
		"observing": observing,
		"keys":      len(w.events),
	})

	if observing {
		w.subscribe(sortedKeys(w.events))
	} else {
		w.unsubscribe(sortedKeys(w.events))
	}
}

func (w *Watcher) subscribe(keys []string) {
	for _, k := range keys {
		w.target.Subscribe(k, w, w.options, w.token)
		w.emit(EventSubscribe, observability.LevelVerbose, map[string]any{"key": k})
	}
}

func (w *Watcher) unsubscribe(keys []string) {
	for _, k := range keys {
		w.target.Unsubscribe(k, w, w.token)
		w.emit(EventUnsubscribe, observability.LevelVerbose, map[string]any{"key": k})
	}
}

func (w *Watcher) emit(t observability.EventType, level observability.Level, data map[string]any) {
	data["token"] = string(w.token)
	w.observer.OnEvent(context.Background(), observability.Event{
		Type:      t,
		Level:     level,
		Timestamp: time.Now(),
		Source:    w.source,
		Data:      data,
	})
}

func sortedKeys(events Events) []string {
	return slices.Sorted(maps.Keys(events))
}
