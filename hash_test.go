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

import (
	"strconv"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"
)

func TestFNV1a(t *testing.T) {
	// Published 64-bit FNV-1a vectors.
	testCases := []struct {
		key      string
		expected uint64
	}{
		{"", 0xcbf29ce484222325},
		{"a", 0xaf63dc4c8601ec8c},
		{"b", 0xaf63df4c8601f1a5},
		{"c", 0xaf63de4c8601eff2},
		{"foobar", 0x85944171f73967e8},
	}
	for _, c := range testCases {
		t.Run(c.key, func(t *testing.T) {
			require.EqualValues(t, c.expected, fnv1a(c.key))
		})
	}
}

func TestWithHashXXHash(t *testing.T) {
	// Any deterministic string hash can stand in for FNV-1a.
	m := New[int](WithHash[int](xxhash.Sum64String))
	for i := 0; i < 100; i++ {
		require.NoError(t, m.Put(strconv.Itoa(i), i))
	}
	require.EqualValues(t, 100, m.Len())
	for i := 0; i < 100; i++ {
		v, ok := m.Get(strconv.Itoa(i))
		require.True(t, ok)
		require.EqualValues(t, i, v)
	}
	for i := 0; i < 100; i += 2 {
		require.True(t, m.Delete(strconv.Itoa(i)))
	}
	require.EqualValues(t, 50, m.Len())
}
