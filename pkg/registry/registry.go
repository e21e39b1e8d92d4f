// Package registry provides a small TTL-bounded map used by every ephemeral
// store in the application (room codes, sessions). Entries are evicted lazily
// on read and authoritatively by SweepExpired.
package registry

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// Expiring is a mutex-guarded map whose entries become invisible once they
// are older than the configured TTL. It never returns errors; absence and
// expiry are indistinguishable to callers.
type Expiring[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	ttl     time.Duration

	// now is swappable for tests.
	now func() time.Time
}

func NewExpiring[K comparable, V any](ttl time.Duration) *Expiring[K, V] {
	return &Expiring[K, V]{
		entries: make(map[K]entry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// expired is the single expiry predicate shared by Get and SweepExpired.
func (e *Expiring[K, V]) expired(ent entry[V], now time.Time) bool {
	return now.Sub(ent.insertedAt) > e.ttl
}

// Put inserts or overwrites; the insertion time is reset on overwrite.
func (e *Expiring[K, V]) Put(key K, value V) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries[key] = entry[V]{value: value, insertedAt: e.now()}
}

// PutIfAbsent inserts only when no live entry exists for key, reporting
// whether the insert happened. An expired entry counts as absent and is
// replaced.
func (e *Expiring[K, V]) PutIfAbsent(key K, value V) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if ent, ok := e.entries[key]; ok && !e.expired(ent, now) {
		return false
	}
	e.entries[key] = entry[V]{value: value, insertedAt: now}
	return true
}

// Get returns the value if the entry exists and has not expired. An expired
// entry is evicted on the spot and reported as absent.
func (e *Expiring[K, V]) Get(key K) (V, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if e.expired(ent, e.now()) {
		delete(e.entries, key)
		var zero V
		return zero, false
	}
	return ent.value, true
}

// InsertedAt reports when a live entry was stored.
func (e *Expiring[K, V]) InsertedAt(key K) (time.Time, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ent, ok := e.entries[key]
	if !ok || e.expired(ent, e.now()) {
		return time.Time{}, false
	}
	return ent.insertedAt, true
}

// Delete removes unconditionally and reports whether an entry was present.
func (e *Expiring[K, V]) Delete(key K) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.entries[key]
	delete(e.entries, key)
	return ok
}

// SweepExpired removes every expired entry and returns the number removed.
// Safe to call concurrently with any other operation.
func (e *Expiring[K, V]) SweepExpired() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	removed := 0
	for key, ent := range e.entries {
		if e.expired(ent, now) {
			delete(e.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of entries currently stored, expired or not.
func (e *Expiring[K, V]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.entries)
}

// Snapshot returns the live entries with their insertion times. The returned
// slices are copies; mutating them does not affect the registry.
func (e *Expiring[K, V]) Snapshot() []Item[K, V] {
	e.mu.RLock()
	defer e.mu.RUnlock()

	now := e.now()
	items := make([]Item[K, V], 0, len(e.entries))
	for key, ent := range e.entries {
		if e.expired(ent, now) {
			continue
		}
		items = append(items, Item[K, V]{Key: key, Value: ent.value, InsertedAt: ent.insertedAt})
	}
	return items
}

// TTL returns the registry's fixed time-to-live.
func (e *Expiring[K, V]) TTL() time.Duration {
	return e.ttl
}

// SetClock replaces the time source. Intended for tests only.
func (e *Expiring[K, V]) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

type Item[K comparable, V any] struct {
	Key        K
	Value      V
	InsertedAt time.Time
}
