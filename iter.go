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

package probemap

// Iter enumerates the live entries of a Map in slot order, which is neither
// insertion order nor stable across rehashes. The iterator locks the map for
// each Next step only, so a full traversal is not atomic with respect to
// concurrent mutation: entries inserted or removed mid-iteration may or may
// not be observed. Use Map.All for a snapshot-isolated walk.
type Iter[V any] struct {
	m     *Map[V]
	index int
	done  bool
	key   string
	value V
}

// Iter returns an iterator positioned before the first slot. The iterator is
// one-shot: once Next has returned false it stays exhausted. It is valid
// only as long as the map it was created from.
func (m *Map[V]) Iter() *Iter[V] {
	return &Iter[V]{m: m}
}

// Next advances to the next live entry, reporting false once the slot array
// is exhausted. Each call observes the map as it is at call time.
func (it *Iter[V]) Next() bool {
	if it.done {
		return false
	}
	it.m.mu.Lock()
	defer it.m.mu.Unlock()
	for it.index < len(it.m.slots) {
		s := &it.m.slots[it.index]
		it.index++
		if s.state == slotFull {
			it.key = s.key
			it.value = s.value
			return true
		}
	}
	it.done = true
	return false
}

// Key returns the key of the entry most recently visited by Next.
func (it *Iter[V]) Key() string { return it.key }

// Value returns the value of the entry most recently visited by Next.
func (it *Iter[V]) Value() V { return it.value }

// All calls yield for every entry present in the map at the time of the
// call, stopping early if yield returns false. The entries are copied out
// under the lock before the first yield, so the iteration is isolated from
// concurrent mutation and yield may itself call back into the map.
func (m *Map[V]) All(yield func(key string, value V) bool) {
	m.mu.Lock()
	entries := make([]slot[V], 0, m.used)
	for i := range m.slots {
		if m.slots[i].state == slotFull {
			entries = append(entries, m.slots[i])
		}
	}
	m.mu.Unlock()

	for i := range entries {
		if !yield(entries[i].key, entries[i].value) {
			return
		}
	}
}
