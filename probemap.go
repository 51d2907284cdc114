// Copyright 2025 The Probemap Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package probemap implements a mutex-guarded hash table mapping string keys
// to values of a single caller-chosen type. Collisions are resolved with
// open addressing and linear probing over a power-of-two slot array, which
// reduces index computation to a single mask operation. The table doubles in
// size before the number of live entries can exceed half the capacity, so
// probe chains stay short.
//
// Every operation serializes on a per-map mutex, making a Map safe for
// concurrent use by multiple goroutines. Deletion uses tombstones: a deleted
// slot keeps probe chains intact for later lookups and is reclaimed either
// by a subsequent insert or by a rehash once tombstones crowd the table.
//
// Keys are hashed with 64-bit FNV-1a by default; WithHash substitutes any
// other string hash (see the benchmarks for an xxhash configuration).
package probemap

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"
)

const (
	debug = false

	// initialCapacity is the slot count a Map starts out with. It must be a
	// power of two so that the capacity stays one across doublings.
	initialCapacity = 16
)

// A slot is in one of three states. Empty terminates probe chains. Deleted
// (a tombstone) keeps chains intact across removals: lookups probe past it,
// inserts may reclaim it.
type slotState uint8

const (
	slotEmpty slotState = iota
	slotFull
	slotDeleted
)

var (
	// ErrNilValue is returned by Put when the value is a nil reference.
	// Values are caller-owned and the map never finalizes them, but a nil
	// value would be indistinguishable from an absent one for callers that
	// ignore Get's second result.
	ErrNilValue = errors.New("probemap: value must be non-nil")

	// ErrCapacity is returned by Put when doubling the slot array would
	// overflow the addressable range. The map is left unchanged.
	ErrCapacity = errors.New("probemap: table capacity overflow")
)

// slot holds one key/value pair. The key is cleared when the slot leaves the
// full state so its backing bytes can be collected.
type slot[V any] struct {
	key   string
	value V
	state slotState
}

// Map is a hash table from string keys to values of type V with Put, Get,
// Delete, Len, Iter, and All operations. All operations are safe for
// concurrent use; they serialize on a single per-map mutex that is held for
// the full duration of each call. Construct a Map with New; the zero value
// is not usable.
type Map[V any] struct {
	// hash maps a key to the 64-bit value whose low bits select the starting
	// slot. It must be deterministic for the lifetime of the map: rehashing
	// re-probes every key with the same function.
	hash func(key string) uint64
	mu   sync.Mutex
	// slots is the probe array. len(slots) is the capacity, always a power
	// of two >= initialCapacity, so hash&(len(slots)-1) is the home slot.
	slots []slot[V]
	// used counts full slots, tombs counts tombstones. Invariant at the
	// start of every insert: used <= len(slots)/2.
	used  int
	tombs int
}

// New constructs an empty Map with capacity 16 (or the capacity requested
// via WithCapacity, rounded up to a power of two).
func New[V any](opts ...Option[V]) *Map[V] {
	m := &Map[V]{
		hash:  fnv1a,
		slots: make([]slot[V], initialCapacity),
	}
	for _, op := range opts {
		op.apply(m)
	}
	m.checkInvariants()
	return m
}

// Close releases the slot array, allowing the stored keys to be collected.
// Values are caller-owned and are not finalized. Close is idempotent, but
// any other use of the map after Close is invalid.
func (m *Map[V]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots = nil
	m.used = 0
	m.tombs = 0
}

// Get retrieves the value stored for key, returning ok=false if the key is
// not present. Get does not mutate the map.
func (m *Map[V]) Get(key string) (value V, ok bool) {
	h := m.hash(key)
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.slots) == 0 {
		return value, false
	}
	i, ok := m.find(h, key)
	if !ok {
		return value, false
	}
	return m.slots[i].value, true
}

// Put inserts an entry into the map, overwriting the existing value if an
// entry with the same key already exists. The value must be non-nil. On a
// non-nil error the map is unchanged.
func (m *Map[V]) Put(key string, value V) error {
	if isNil(any(value)) {
		return ErrNilValue
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.slots) == 0 {
		m.slots = make([]slot[V], initialCapacity)
	}
	if err := m.maybeRehash(); err != nil {
		return err
	}

	// Probe for the key, remembering the first tombstone on the way: if the
	// key turns out to be absent the insert can reclaim that slot instead of
	// consuming a fresh one.
	mask := uint64(len(m.slots) - 1)
	start := m.hash(key) & mask
	reuse := -1
	for i := start; ; {
		s := &m.slots[i]
		switch s.state {
		case slotEmpty:
			if reuse >= 0 {
				m.insertAt(uint64(reuse), key, value)
			} else {
				m.insertAt(i, key, value)
			}
			return nil
		case slotFull:
			if s.key == key {
				s.value = value
				return nil
			}
		case slotDeleted:
			if reuse < 0 {
				reuse = int(i)
			}
		}
		i = (i + 1) & mask
		if i == start {
			// The scan visited every slot without finding the key or an
			// empty slot. With the load factor bounded at one half this can
			// only mean the table state is corrupt.
			if reuse < 0 {
				panic("probemap: no free slot found; load-factor invariant violated")
			}
			m.insertAt(uint64(reuse), key, value)
			return nil
		}
	}
}

// insertAt stores a key known to be absent into the slot at index i, which
// must be empty or a tombstone.
func (m *Map[V]) insertAt(i uint64, key string, value V) {
	s := &m.slots[i]
	if s.state == slotDeleted {
		m.tombs--
	}
	s.key = key
	s.value = value
	s.state = slotFull
	m.used++
	if debug {
		fmt.Printf("put(%q): index=%d used=%d tombs=%d\n", key, i, m.used, m.tombs)
	}
	m.checkInvariants()
}

// Delete removes the entry for key, reporting whether the key was present.
// The vacated slot becomes a tombstone unless the slot after it is empty, in
// which case no probe chain can pass through it and it reverts straight to
// empty.
func (m *Map[V]) Delete(key string) bool {
	h := m.hash(key)
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.slots) == 0 {
		return false
	}
	i, ok := m.find(h, key)
	if !ok {
		return false
	}
	mask := uint64(len(m.slots) - 1)
	s := &m.slots[i]
	var zero V
	s.key = ""
	s.value = zero
	if m.slots[(i+1)&mask].state == slotEmpty {
		s.state = slotEmpty
	} else {
		s.state = slotDeleted
		m.tombs++
	}
	m.used--
	if debug {
		fmt.Printf("delete(%q): index=%d used=%d tombs=%d\n", key, i, m.used, m.tombs)
	}
	m.checkInvariants()
	return true
}

// Len returns the number of entries in the map. It takes the lock, so the
// count is exact with respect to concurrent mutation.
func (m *Map[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}

// capacity returns the current size of the slot array.
func (m *Map[V]) capacity() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

// find returns the index of the full slot holding key. Callers must hold mu
// and guarantee a non-empty slot array. The scan stops at the first empty
// slot, probing past tombstones, and wraps at most once around the array.
func (m *Map[V]) find(h uint64, key string) (uint64, bool) {
	mask := uint64(len(m.slots) - 1)
	start := h & mask
	for i := start; ; {
		s := &m.slots[i]
		if s.state == slotEmpty {
			return 0, false
		}
		if s.state == slotFull && s.key == key {
			return i, true
		}
		i = (i + 1) & mask
		if i == start {
			// Every slot is full or tombstoned. Unreachable while the load
			// factor stays below one half.
			if invariants {
				panic("probemap: probe wrapped the entire table\n" + m.debugString())
			}
			return 0, false
		}
	}
}

// maybeRehash reshapes the slot array so the insert that follows always
// finds a free slot. Capacity doubles once the live count reaches half of
// it; a tombstone-heavy table is instead rebuilt at the same capacity to
// shed the tombstones, keeping probe chains bounded under churn.
func (m *Map[V]) maybeRehash() error {
	capacity := len(m.slots)
	switch {
	case m.used >= capacity/2:
		if capacity > math.MaxInt/2 {
			return ErrCapacity
		}
		m.rehash(2 * capacity)
	case m.used+m.tombs >= capacity/2:
		m.rehash(capacity)
	}
	return nil
}

// rehash replaces the slot array with a fresh one of newCapacity slots and
// re-probes every live entry into it with the same hash function. Keys move
// by assignment, tombstones are dropped, and used is untouched: a rehash is
// purely an internal reshape.
func (m *Map[V]) rehash(newCapacity int) {
	old := m.slots
	m.slots = make([]slot[V], newCapacity)
	m.tombs = 0
	mask := uint64(newCapacity - 1)
	for j := range old {
		s := &old[j]
		if s.state != slotFull {
			continue
		}
		i := m.hash(s.key) & mask
		for m.slots[i].state == slotFull {
			i = (i + 1) & mask
		}
		m.slots[i] = slot[V]{key: s.key, value: s.value, state: slotFull}
	}
	if debug {
		fmt.Printf("rehash: capacity=%d->%d used=%d\n", len(old), newCapacity, m.used)
	}
	m.checkInvariants()
}

// isNil reports whether value is a nil reference. Values of non-nilable
// kinds are never nil.
func isNil(value any) bool {
	if value == nil {
		return true
	}
	switch v := reflect.ValueOf(value); v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map,
		reflect.Pointer, reflect.Slice, reflect.UnsafePointer:
		return v.IsNil()
	}
	return false
}

func (m *Map[V]) checkInvariants() {
	if invariants {
		capacity := len(m.slots)
		if capacity&(capacity-1) != 0 || capacity < initialCapacity {
			panic(fmt.Sprintf("invariant failed: capacity %d is not a power of two >= %d\n%s",
				capacity, initialCapacity, m.debugString()))
		}
		if m.used > capacity/2 {
			panic(fmt.Sprintf("invariant failed: %d live entries exceed half of capacity %d\n%s",
				m.used, capacity, m.debugString()))
		}

		// Count the slot states and verify that every stored key is
		// reachable by its own probe chain.
		var used, tombs int
		for j := range m.slots {
			s := &m.slots[j]
			switch s.state {
			case slotFull:
				used++
				if _, ok := m.find(m.hash(s.key), s.key); !ok {
					panic(fmt.Sprintf("invariant failed: slot(%d): %q not found by probing\n%s",
						j, s.key, m.debugString()))
				}
			case slotDeleted:
				tombs++
				if s.key != "" {
					panic(fmt.Sprintf("invariant failed: slot(%d): tombstone retains key %q\n%s",
						j, s.key, m.debugString()))
				}
			}
		}
		if used != m.used {
			panic(fmt.Sprintf("invariant failed: found %d full slots, but used count is %d\n%s",
				used, m.used, m.debugString()))
		}
		if tombs != m.tombs {
			panic(fmt.Sprintf("invariant failed: found %d tombstones, but tombs count is %d\n%s",
				tombs, m.tombs, m.debugString()))
		}
	}
}

func (m *Map[V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d  tombs=%d\n", len(m.slots), m.used, m.tombs)
	for i := range m.slots {
		switch s := &m.slots[i]; s.state {
		case slotEmpty:
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
		case slotDeleted:
			fmt.Fprintf(&buf, "  %4d: deleted\n", i)
		default:
			fmt.Fprintf(&buf, "  %4d: %q [hash=%016x]\n", i, s.key, m.hash(s.key))
		}
	}
	return buf.String()
}
