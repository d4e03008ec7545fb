// Package walog implements the write-ahead logs (C8, §4.8): a
// per-family in-memory map with a configurable threshold that
// OverThreshold reports against. Entries reach the local persistent
// store only through an explicit ToSecondary call; a Log never spills
// on its own. Log is generic over its key/value types, so the log store
// never needs to import the page or node packages; no other package in
// this module instantiates it.
package walog

import "sync"

// Secondary is the local persistent store a Log's ToSecondary flushes
// into (the "berkeley-db-like key-value file" of §4.8). FileStore is the bundled reference implementation.
type Secondary[K comparable, V any] interface {
	Put(K, V) error
	Get(K) (V, bool, error)
	Remove(K) error
	Clear() error
	Iter(func(K, V) bool) error
}

// Log is a per-family write-ahead log: put/get/remove/clear/iter
// against an in-memory map, with an explicit ToSecondary operation to
// flush memory to a Secondary store and bound memory use ahead of
// commit (§4.8's to_secondary).
type Log[K comparable, V any] struct {
	mu        sync.Mutex
	mem       map[K]V
	order     []K
	removed   map[K]bool
	threshold int
	secondary Secondary[K, V]
}

// New constructs an empty log. threshold <= 0 makes OverThreshold
// always report false. Whatever the threshold, nothing is spilled
// automatically: entries move to the secondary store only on
// ToSecondary.
func New[K comparable, V any](threshold int, secondary Secondary[K, V]) *Log[K, V] {
	return &Log[K, V]{
		mem:       make(map[K]V),
		removed:   make(map[K]bool),
		threshold: threshold,
		secondary: secondary,
	}
}

// Put stages v under k in memory, clearing any pending tombstone.
func (l *Log[K, V]) Put(k K, v V) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.mem[k]; !exists {
		l.order = append(l.order, k)
	}
	l.mem[k] = v
	delete(l.removed, k)
}

// Get resolves k against memory first, then — unless k was removed in
// this log — the secondary store.
func (l *Log[K, V]) Get(k K) (V, bool, error) {
	l.mu.Lock()
	if v, ok := l.mem[k]; ok {
		l.mu.Unlock()
		return v, true, nil
	}
	removed := l.removed[k]
	secondary := l.secondary
	l.mu.Unlock()

	var zero V
	if removed || secondary == nil {
		return zero, false, nil
	}
	return secondary.Get(k)
}

// Remove deletes k from memory and marks it removed so a stale
// secondary copy is no longer visible through this log.
func (l *Log[K, V]) Remove(k K) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.mem, k)
	l.removed[k] = true
}

// Len reports the number of live entries currently held in memory.
func (l *Log[K, V]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.mem)
}

// OverThreshold reports whether the in-memory size has crossed the
// configured spill threshold.
func (l *Log[K, V]) OverThreshold() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.threshold > 0 && len(l.mem) > l.threshold
}

// ToSecondary flushes every in-memory entry (and pending removal) into
// the secondary store, then clears memory — the "flush to disk before
// commit to bound memory" operation of §4.8. It is a no-op if no
// secondary store was configured.
func (l *Log[K, V]) ToSecondary() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.secondary == nil {
		return nil
	}
	for _, k := range l.order {
		v, ok := l.mem[k]
		if !ok {
			continue
		}
		if err := l.secondary.Put(k, v); err != nil {
			return err
		}
	}
	for k := range l.removed {
		if err := l.secondary.Remove(k); err != nil {
			return err
		}
	}
	l.mem = make(map[K]V)
	l.order = nil
	l.removed = make(map[K]bool)
	return nil
}

// Iter visits every live entry — secondary entries first, then the
// in-memory overlay in insertion order, skipping anything shadowed or
// tombstoned in memory. Iteration stops early if fn returns false.
func (l *Log[K, V]) Iter(fn func(K, V) bool) error {
	l.mu.Lock()
	secondary := l.secondary
	mem := l.mem
	order := append([]K(nil), l.order...)
	removed := l.removed
	l.mu.Unlock()

	stop := false
	if secondary != nil {
		err := secondary.Iter(func(k K, v V) bool {
			if _, inMem := mem[k]; inMem || removed[k] {
				return true
			}
			if !fn(k, v) {
				stop = true
				return false
			}
			return true
		})
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	for _, k := range order {
		v, ok := mem[k]
		if !ok {
			continue
		}
		if !fn(k, v) {
			return nil
		}
	}
	return nil
}

// Clear deletes every entry from memory and, if configured, the
// secondary store — the "on close, all logs are deleted" rule of
// §4.8.
func (l *Log[K, V]) Clear() error {
	l.mu.Lock()
	l.mem = make(map[K]V)
	l.order = nil
	l.removed = make(map[K]bool)
	secondary := l.secondary
	l.mu.Unlock()

	if secondary != nil {
		return secondary.Clear()
	}
	return nil
}
