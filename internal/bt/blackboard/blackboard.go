// Package blackboard provides the typed key-value store shared by every node
// of a behaviour tree.
//
// Values are stored with the runtime type of their most recent write. Typed
// reads go through the generic helpers Get, Lookup and Set; a read that asks
// for a different type returns the caller's default and never mutates the
// store.
package blackboard

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// NotSet is the display string for a key that is absent.
const NotSet = "<not set>"

// NoRecentChanges is returned by RecentChangeSummary when nothing changed.
const NoRecentChanges = "No recent changes"

// Named is implemented by object references that display by name.
type Named interface {
	Name() string
}

// Vec2 is a two-component vector value.
type Vec2 struct{ X, Y float64 }

// Vec3 is a three-component vector value.
type Vec3 struct{ X, Y, Z float64 }

// Change is one recorded write.
type Change struct {
	Key   string
	Value string // display string of the new value
}

// Blackboard is a heterogeneous key-value store with change tracking.
//
// Invariant: changes only holds writes that altered the stored value.
type Blackboard struct {
	mu      sync.RWMutex
	data    map[string]any
	changes []Change
	logger  *zap.Logger
}

// New returns an empty Blackboard. A nil logger is replaced by a no-op logger.
func New(logger *zap.Logger) *Blackboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Blackboard{
		data:   make(map[string]any),
		logger: logger,
	}
}

// log returns the logger, falling back to a no-op logger on a zero-value
// Blackboard.
func (b *Blackboard) log() *zap.Logger {
	if b.logger == nil {
		return zap.NewNop()
	}
	return b.logger
}

// SetValue stores value under key, replacing any previous value and type.
//
// Postcondition: a change is recorded unless the old and new values are equal
// (an absent key compares equal to nil).
func (b *Blackboard) SetValue(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		b.data = make(map[string]any)
	}
	old := b.data[key]
	b.data[key] = value
	if sameValue(old, value) {
		return
	}
	b.changes = append(b.changes, Change{Key: key, Value: formatValue(value)})
}

func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	// NaN never equals itself; rewriting NaN is not a change.
	switch x := a.(type) {
	case float64:
		y := b.(float64)
		if math.IsNaN(x) && math.IsNaN(y) {
			return true
		}
	case float32:
		y := b.(float32)
		if math.IsNaN(float64(x)) && math.IsNaN(float64(y)) {
			return true
		}
	}
	return reflect.DeepEqual(a, b)
}

// Value returns the raw stored value and whether key is present.
func (b *Blackboard) Value(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	return v, ok
}

// HasKey reports whether key is present, including keys holding nil.
func (b *Blackboard) HasKey(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.data[key]
	return ok
}

// RemoveValue deletes key. Removing an absent key is a no-op.
func (b *Blackboard) RemoveValue(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
}

// Clear removes every key and drops pending changes.
func (b *Blackboard) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = make(map[string]any)
	b.changes = nil
}

// Keys returns all keys in no defined order.
func (b *Blackboard) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of stored keys.
func (b *Blackboard) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// Snapshot returns a shallow copy of the stored values.
func (b *Blackboard) Snapshot() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]any, len(b.data))
	for k, v := range b.data {
		out[k] = v
	}
	return out
}

// ValueType returns the runtime type stored under key, or nil when the key is
// absent or holds nil.
func (b *Blackboard) ValueType(key string) reflect.Type {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	if !ok || v == nil {
		return nil
	}
	return reflect.TypeOf(v)
}

// ValueAsString returns the display form of the value under key.
//
// Postcondition: NotSet for absent keys, "null" for nil values.
func (b *Blackboard) ValueAsString(key string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	if !ok {
		return NotSet
	}
	return formatValue(v)
}

// HasRecentChanges reports whether any change is waiting to be drained.
func (b *Blackboard) HasRecentChanges() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.changes) > 0
}

// RecentChanges returns a copy of the pending changes without draining them.
func (b *Blackboard) RecentChanges() []Change {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Change, len(b.changes))
	copy(out, b.changes)
	return out
}

// RecentChangeSummary drains the pending changes and returns them as
// "key=value" pairs joined by ", ".
//
// Postcondition: the change buffer is empty; NoRecentChanges when it was empty.
func (b *Blackboard) RecentChangeSummary() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.changes) == 0 {
		return NoRecentChanges
	}
	parts := make([]string, len(b.changes))
	for i, c := range b.changes {
		parts[i] = c.Key + "=" + c.Value
	}
	b.changes = nil
	return strings.Join(parts, ", ")
}

// String lists the stored values sorted by key, for diagnostics.
func (b *Blackboard) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + formatValue(b.data[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case float64:
		return fmt.Sprintf("%.1f", x)
	case float32:
		return fmt.Sprintf("%.1f", x)
	case Vec2:
		return fmt.Sprintf("(%.1f, %.1f)", round1(x.X), round1(x.Y))
	case Vec3:
		return fmt.Sprintf("(%.1f, %.1f, %.1f)", round1(x.X), round1(x.Y), round1(x.Z))
	case Named:
		if isNilPointer(v) {
			return "null"
		}
		return x.Name()
	case fmt.Stringer:
		if isNilPointer(v) {
			return "null"
		}
		return x.String()
	default:
		if isNilPointer(v) {
			return "null"
		}
		return fmt.Sprint(v)
	}
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// Set stores value under key with static type T.
func Set[T any](b *Blackboard, key string, value T) {
	b.SetValue(key, value)
}

// Lookup returns the value under key if it is present and of type T.
//
// Postcondition: the store is never modified.
func Lookup[T any](b *Blackboard, key string) (T, bool) {
	var zero T
	raw, ok := b.Value(key)
	if !ok || raw == nil {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// Get returns the value under key as T, or def when the key is absent, holds
// nil, or holds a value of a different type. Type mismatches are logged at
// Warn level.
func Get[T any](b *Blackboard, key string, def T) T {
	raw, ok := b.Value(key)
	if !ok || raw == nil {
		return def
	}
	v, ok := raw.(T)
	if !ok {
		b.log().Warn("blackboard: type mismatch",
			zap.String("key", key),
			zap.String("stored", fmt.Sprintf("%T", raw)),
			zap.String("requested", fmt.Sprintf("%T", def)),
		)
		return def
	}
	return v
}
