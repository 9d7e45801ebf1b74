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

package uniquerand

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInt_Zero(t *testing.T) {
	var ur Int
	_, ok := ur.Get()
	require.False(t, ok)
	require.Zero(t, ur.Range())
}

func TestInt_Unique(t *testing.T) {
	// cross a word boundary of the bitset
	const n = 100

	var ur Int
	ur.Reset(n)
	require.Equal(t, n, ur.Range())

	seen := make(map[int]bool, n)
	for i := 0; i < n; i++ {
		num, ok := ur.Get()
		require.True(t, ok)
		require.GreaterOrEqual(t, num, 0)
		require.Less(t, num, n)
		require.False(t, seen[num])
		seen[num] = true
	}

	_, ok := ur.Get()
	require.False(t, ok)
}

func TestInt_Put(t *testing.T) {
	var ur Int
	ur.Reset(3)

	for i := 0; i < 3; i++ {
		_, ok := ur.Get()
		require.True(t, ok)
	}

	require.False(t, ur.Put(-1))
	require.False(t, ur.Put(3))
	require.True(t, ur.Put(1))
	require.False(t, ur.Put(1))

	num, ok := ur.Get()
	require.True(t, ok)
	require.Equal(t, 1, num)

	_, ok = ur.Get()
	require.False(t, ok)
}

func TestInt_Reset(t *testing.T) {
	var ur Int
	ur.Reset(5)
	for i := 0; i < 5; i++ {
		ur.Get()
	}

	// shrinking reuses the backing storage and clears it
	ur.Reset(2)
	seen := make(map[int]bool, 2)
	for i := 0; i < 2; i++ {
		num, ok := ur.Get()
		require.True(t, ok)
		require.False(t, seen[num])
		seen[num] = true
	}
	_, ok := ur.Get()
	require.False(t, ok)
}
