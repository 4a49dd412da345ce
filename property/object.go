package property

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"
)

type registration struct {
	sub   Subscriber
	token Token
	opts  Options
}

// Object is an observable property bag. Every mutation goes through an
// instrumented method that notifies the registrations for the mutated key.
//
// Notifications are delivered synchronously on the mutating goroutine, in
// registration order, after the object's lock has been released. Subscribers
// must be comparable (typically pointers). Object is safe for concurrent use.
type Object struct {
	values        map[string]any
	registrations map[string][]registration
	mu            sync.RWMutex
}

// NewObject creates an Object seeded with a copy of initial.
func NewObject(initial map[string]any) *Object {
	values := make(map[string]any, len(initial))
	maps.Copy(values, initial)
	return &Object{
		values:        values,
		registrations: make(map[string][]registration),
	}
}

func (o *Object) Subscribe(key string, sub Subscriber, opts Options, token Token) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, r := range o.registrations[key] {
		if r.sub == sub && r.token == token {
			return
		}
	}
	o.registrations[key] = append(o.registrations[key], registration{sub: sub, token: token, opts: opts})
}

func (o *Object) Unsubscribe(key string, sub Subscriber, token Token) {
	o.mu.Lock()
	defer o.mu.Unlock()

	regs := o.registrations[key]
	i := slices.IndexFunc(regs, func(r registration) bool {
		return r.sub == sub && r.token == token
	})
	if i < 0 {
		return
	}
	regs = slices.Delete(regs, i, i+1)
	if len(regs) == 0 {
		delete(o.registrations, key)
		return
	}
	o.registrations[key] = regs
}

// Subscribers returns the number of live registrations for key.
func (o *Object) Subscribers(key string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.registrations[key])
}

// Get returns the current value of key.
func (o *Object) Get(key string) (any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.values[key]
	return v, ok
}

// Keys returns the property names in sorted order.
func (o *Object) Keys() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	keys := make([]string, 0, len(o.values))
	for k := range o.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a shallow copy of all property values.
func (o *Object) Snapshot() map[string]any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return maps.Clone(o.values)
}

// Decode copies the current property values into out, which must be a
// pointer to a struct or map. Field names are matched case-insensitively,
// or through `mapstructure` struct tags.
func (o *Object) Decode(out any) error {
	if err := mapstructure.Decode(o.Snapshot(), out); err != nil {
		return fmt.Errorf("decode properties: %w", err)
	}
	return nil
}

// Set replaces the value of key and notifies with the previous value as Old
// (nil if the key was unset) and value as New.
func (o *Object) Set(key string, value any) {
	o.mu.Lock()
	old := o.values[key]
	o.values[key] = value
	regs := slices.Clone(o.registrations[key])
	o.mu.Unlock()

	o.notify(key, regs, Change{Kind: KindSetting, Old: old, New: value})
}

// Append adds values to the end of the []any collection stored at key,
// creating it if absent. Subscribers receive an insertion with the inserted
// elements as New and no Old value.
func (o *Object) Append(key string, values ...any) error {
	o.mu.Lock()
	current, err := o.collection(key)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	indexes := make([]int, len(values))
	for i := range values {
		indexes[i] = len(current) + i
	}
	o.values[key] = append(slices.Clone(current), values...)
	regs := slices.Clone(o.registrations[key])
	o.mu.Unlock()

	o.notify(key, regs, Change{Kind: KindInsertion, New: slices.Clone(values), Indexes: indexes})
	return nil
}

// RemoveAt removes the elements at indexes from the []any collection stored
// at key. Subscribers receive a removal with the removed elements as Old and
// no New value.
func (o *Object) RemoveAt(key string, indexes ...int) error {
	o.mu.Lock()
	current, err := o.collection(key)
	if err != nil {
		o.mu.Unlock()
		return err
	}

	sorted := slices.Clone(indexes)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	for _, i := range sorted {
		if i < 0 || i >= len(current) {
			o.mu.Unlock()
			return fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, key, i)
		}
	}

	removed := make([]any, 0, len(sorted))
	kept := make([]any, 0, len(current)-len(sorted))
	next := 0
	for i, v := range current {
		if next < len(sorted) && sorted[next] == i {
			removed = append(removed, v)
			next++
			continue
		}
		kept = append(kept, v)
	}
	o.values[key] = kept
	regs := slices.Clone(o.registrations[key])
	o.mu.Unlock()

	o.notify(key, regs, Change{Kind: KindRemoval, Old: removed, Indexes: sorted})
	return nil
}

// ReplaceAt overwrites the element at index in the []any collection stored
// at key.
func (o *Object) ReplaceAt(key string, index int, value any) error {
	o.mu.Lock()
	current, err := o.collection(key)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	if index < 0 || index >= len(current) {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, key, index)
	}
	old := current[index]
	updated := slices.Clone(current)
	updated[index] = value
	o.values[key] = updated
	regs := slices.Clone(o.registrations[key])
	o.mu.Unlock()

	o.notify(key, regs, Change{
		Kind:    KindReplacement,
		Old:     []any{old},
		New:     []any{value},
		Indexes: []int{index},
	})
	return nil
}

// collection must be called with o.mu held.
func (o *Object) collection(key string) ([]any, error) {
	v, ok := o.values[key]
	if !ok || v == nil {
		return nil, nil
	}
	c, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T", ErrNotCollection, key, v)
	}
	return c, nil
}

func (o *Object) notify(key string, regs []registration, change Change) {
	for _, r := range regs {
		delivered := change
		if !r.opts.ReportOld {
			delivered.Old = nil
		}
		if !r.opts.ReportNew {
			delivered.New = nil
		}
		r.sub.OnNotify(key, o, delivered, r.token)
	}
}
