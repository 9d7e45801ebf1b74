// Copyright 2025 The deferred module authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package uniquerand implements a source of unique random numbers from a
// fixed integer range.
package uniquerand

import "math/rand"

// Int is a source of unique random numbers from the range [0, n).
// Each number is returned at most once, until it's explicitly put back.
//
// The zero value is a source over an empty range. Int is not safe for
// concurrent use.
type Int struct {
	n    int      // range upper bound, exclusive
	used []uint64 // bitset of returned numbers
	left int      // count of numbers still available
}

// Reset re-initializes the source to produce numbers from the range [0, n).
func (i *Int) Reset(n int) {
	if n < 0 {
		n = 0
	}
	words := (n + 63) / 64
	if cap(i.used) >= words {
		i.used = i.used[:words]
		for w := range i.used {
			i.used[w] = 0
		}
	} else {
		i.used = make([]uint64, words)
	}
	i.n = n
	i.left = n
}

// Get returns a random number from the range that hasn't been returned
// before (or has been put back since). ok is false once the range is
// exhausted.
func (i *Int) Get() (num int, ok bool) {
	if i.left == 0 {
		return 0, false
	}

	// random probe, then a circular scan from it for the next free number
	num = rand.Intn(i.n)
	for i.taken(num) {
		num++
		if num == i.n {
			num = 0
		}
	}

	i.used[num/64] |= 1 << (num % 64)
	i.left--
	return num, true
}

// Put returns num back to the source, so that a later Get can produce it
// again. It reports whether num was actually taken out before.
func (i *Int) Put(num int) bool {
	if num < 0 || num >= i.n || !i.taken(num) {
		return false
	}
	i.used[num/64] &^= 1 << (num % 64)
	i.left++
	return true
}

// Range returns the upper bound of the source's range.
func (i *Int) Range() int {
	return i.n
}

func (i *Int) taken(num int) bool {
	return i.used[num/64]&(1<<(num%64)) != 0
}
