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

package status

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeferStatus_Zero(t *testing.T) {
	s := New(0)
	got := s.Load()
	require.True(t, IsChainEmpty(got))
	require.True(t, IsFateUnresolved(got))
	require.True(t, IsStatePending(got))
	require.False(t, IsFlagsOnce(got))
}

func TestDeferStatus_Flags(t *testing.T) {
	s := New(FlagsOnce)
	got := s.Load()
	require.True(t, IsFlagsOnce(got))
	require.True(t, IsStatePending(got))

	// flags survive settlement
	_, got = s.SetResolving()
	_, got = s.SetFulfilledResolved()
	require.True(t, IsFlagsOnce(got))

	// and the sync path
	s2 := New(FlagsOnce)
	got = s2.SetRejectedResolvedSync()
	require.True(t, IsFlagsOnce(got))
	require.True(t, IsStateRejected(got))
}

func TestDeferStatus_ChainUpgradeOnly(t *testing.T) {
	s := New(0)

	first, got := s.RegWait()
	require.True(t, first)
	require.True(t, IsChainAtLeastWait(got))

	first, got = s.RegRead()
	require.True(t, first)
	require.True(t, IsChainAtLeastRead(got))

	// a weaker registration never downgrades the section
	first, got = s.RegWait()
	require.False(t, first)
	require.True(t, IsChainAtLeastRead(got))

	first, got = s.RegFollow()
	require.True(t, first)
	require.True(t, IsChainFollow(got))

	first, _ = s.RegFollow()
	require.False(t, first)
}

func TestDeferStatus_SettleOnce(t *testing.T) {
	s := New(0)

	set, got := s.SetResolving()
	require.True(t, set)
	require.True(t, IsFateResolving(got))

	set, _ = s.SetResolving()
	require.False(t, set)

	set, got = s.SetFulfilledResolved()
	require.True(t, set)
	require.True(t, IsFateResolved(got))
	require.True(t, IsStateFulfilled(got))

	set, got = s.SetRejectedResolved()
	require.False(t, set)
	require.True(t, IsStateFulfilled(got))
}

func TestDeferStatus_SetHandled(t *testing.T) {
	s := New(0)
	s.SetResolving()
	s.SetRejectedResolved()

	set, got := s.SetHandled()
	require.True(t, set)
	require.True(t, IsFateHandled(got))
	require.True(t, IsStateRejected(got))

	set, _ = s.SetHandled()
	require.False(t, set)
}

func TestDeferStatus_SetHandledBeforeSettlement(t *testing.T) {
	s := New(0)
	require.Panics(t, func() { s.SetHandled() })

	// the word must not be left locked
	require.True(t, IsStatePending(s.Load()))
}

func TestDeferStatus_ConcurrentSettle(t *testing.T) {
	const attempts = 64

	s := New(0)
	wins := make(chan int, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if set, _ := s.SetResolving(); set {
				if i%2 == 0 {
					s.SetFulfilledResolved()
				} else {
					s.SetRejectedResolved()
				}
				wins <- i
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var winners []int
	for i := range wins {
		winners = append(winners, i)
	}
	require.Len(t, winners, 1)

	got := s.Load()
	require.True(t, IsFateResolved(got))
	if winners[0]%2 == 0 {
		require.True(t, IsStateFulfilled(got))
	} else {
		require.True(t, IsStateRejected(got))
	}
}
