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

// Option provides an interface to do work on a Map while it is being
// created.
type Option[V any] interface {
	apply(m *Map[V])
}

type hashOption[V any] struct {
	hash func(key string) uint64
}

func (op hashOption[V]) apply(m *Map[V]) {
	m.hash = op.hash
}

// WithHash is an option to specify the hash function to use for a Map[V].
// The default is 64-bit FNV-1a. The function must be deterministic for the
// lifetime of the map.
func WithHash[V any](hash func(key string) uint64) Option[V] {
	return hashOption[V]{hash}
}

type capacityOption[V any] struct {
	capacity int
}

func (op capacityOption[V]) apply(m *Map[V]) {
	target := initialCapacity
	for target < op.capacity {
		target *= 2
	}
	if target > len(m.slots) {
		m.slots = make([]slot[V], target)
	}
}

// WithCapacity is an option to pre-size a Map[V]. The requested capacity is
// rounded up to a power of two and never drops below the default of 16; a
// map of capacity c holds c/2 entries before its first growth.
func WithCapacity[V any](capacity int) Option[V] {
	return capacityOption[V]{capacity}
}
