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

// 64-bit FNV-1a parameters. See
// https://en.wikipedia.org/wiki/Fowler–Noll–Vo_hash_function.
const (
	fnvOffset = 14695981039346656037
	fnvPrime  = 1099511628211
)

// fnv1a returns the 64-bit FNV-1a hash of key: starting from the offset
// basis, each byte is XORed into the hash which is then multiplied by the
// FNV prime. Deterministic and allocation free. It is the default hash for
// a Map; Get, Put, and rehash all use the same function so entries land in
// consistent slots relative to any capacity.
func fnv1a(key string) uint64 {
	h := uint64(fnvOffset)
	for i := 0; i < len(key); i++ {
		h ^= uint64(key[i])
		h *= fnvPrime
	}
	return h
}
