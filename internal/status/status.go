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
	"runtime"
	"sync/atomic"
)

// DeferStatus packs the state, fate, chain, and flags info of a Deferred
// into a single word that's read and updated atomically.
type DeferStatus uint32

// The lock section, bit 0.
//
// No legitimate status value ever has this bit set, so swapping the whole
// word with locked marks the value as owned by a single updater until it's
// swapped back.
const locked uint32 = 1

// The chain section, bits [1:2].
// It records the strongest kind of call registered on the Deferred so far,
// and is only ever upgraded, never downgraded.
const (
	chainNone   uint32 = iota << 1
	chainWait   uint32 = iota << 1
	chainRead   uint32 = iota << 1
	chainFollow uint32 = iota << 1

	chainMask = chainFollow
)

// The fate section, bits [3:4].
const (
	fateUnresolved uint32 = iota << 3
	fateResolving  uint32 = iota << 3
	fateResolved   uint32 = iota << 3
	fateHandled    uint32 = iota << 3

	fateMask = fateHandled
)

// The state section, bits [5:6].
const (
	statePending   uint32 = iota << 5
	stateFulfilled uint32 = iota << 5
	stateRejected  uint32 = iota << 5

	stateMask = uint32(3 << 5)
)

// The flags section, bits [7:8].
// Flags are set at creation time and never change afterwards.
const (
	// FlagsOnce marks a Deferred whose result can be handled only once.
	FlagsOnce uint32 = 1 << (iota + 7)
	_                // reserved

	flagsMask = uint32(3 << 7)
)

// New returns a DeferStatus holding only the flags bits of the passed value.
func New(flags uint32) DeferStatus {
	return DeferStatus(flags & flagsMask)
}

// NewFrom returns a DeferStatus derived from an existing status value,
// carrying over only its flags bits.
func NewFrom(status uint32) DeferStatus {
	return New(status)
}

// acquire spins until it owns the status word, then returns its value.
// The waiting is handed to the scheduler instead of busy looping, as any
// holder only performs a handful of bit operations before releasing.
func (s *DeferStatus) acquire() uint32 {
	for {
		cur := atomic.SwapUint32((*uint32)(s), locked)
		if cur != locked {
			return cur
		}
		runtime.Gosched()
	}
}

// release stores the new status value and gives up ownership.
func (s *DeferStatus) release(ns uint32) {
	if !atomic.CompareAndSwapUint32((*uint32)(s), locked, ns) {
		panic("deferred: internal: status changed while locked")
	}
}

// Load returns the current status value, waiting out any in-flight update.
func (s *DeferStatus) Load() uint32 {
	for {
		cur := atomic.LoadUint32((*uint32)(s))
		if cur != locked {
			return cur
		}
		runtime.Gosched()
	}
}

// RegWait records that a wait call has been registered on this Deferred.
func (s *DeferStatus) RegWait() (first bool, status uint32) {
	return s.upgradeChain(chainWait)
}

// RegRead records that a read call (Res, Val, Err, State) has been
// registered on this Deferred.
func (s *DeferStatus) RegRead() (first bool, status uint32) {
	return s.upgradeChain(chainRead)
}

// RegFollow records that a follow call (Subscribe, Then, Catch, Delay) has
// been registered on this Deferred.
func (s *DeferStatus) RegFollow() (first bool, status uint32) {
	return s.upgradeChain(chainFollow)
}

func (s *DeferStatus) upgradeChain(mode uint32) (first bool, status uint32) {
	cs := s.acquire()
	ns := cs

	if ns&chainMask < mode {
		ns &^= chainMask
		ns |= mode
		first = true
	}

	s.release(ns)
	return first, ns
}

// SetResolving sets the fate to Resolving, only if it's still Unresolved.
// It's the gate that guarantees a Deferred settles exactly once: of all
// concurrent resolve and reject attempts, exactly one gets set = true.
func (s *DeferStatus) SetResolving() (set bool, status uint32) {
	cs := s.acquire()
	ns := cs

	if ns&fateMask == fateUnresolved {
		ns &^= fateMask
		ns |= fateResolving
		set = true
	}

	s.release(ns)
	return set, ns
}

// SetFulfilledResolved sets the state to Fulfilled and the fate to
// Resolved, only if the fate hasn't already reached Resolved.
func (s *DeferStatus) SetFulfilledResolved() (set bool, status uint32) {
	return s.settle(stateFulfilled)
}

// SetRejectedResolved sets the state to Rejected and the fate to Resolved,
// only if the fate hasn't already reached Resolved.
func (s *DeferStatus) SetRejectedResolved() (set bool, status uint32) {
	return s.settle(stateRejected)
}

func (s *DeferStatus) settle(state uint32) (set bool, status uint32) {
	cs := s.acquire()
	ns := cs

	if ns&fateMask < fateResolved {
		ns &^= stateMask | fateMask
		ns |= state | fateResolved
		set = true
	}

	s.release(ns)
	return set, ns
}

// SetFulfilledResolvedSync is the synchronous version of
// SetFulfilledResolved, for Deferreds that are settled before they are
// returned to their creator, and hence are still owned by one goroutine.
func (s *DeferStatus) SetFulfilledResolvedSync() (status uint32) {
	return s.settleSync(stateFulfilled)
}

// SetRejectedResolvedSync is the synchronous version of
// SetRejectedResolved.
func (s *DeferStatus) SetRejectedResolvedSync() (status uint32) {
	return s.settleSync(stateRejected)
}

func (s *DeferStatus) settleSync(state uint32) (status uint32) {
	ns := uint32(*s) & flagsMask
	ns |= state | fateResolved
	*s = DeferStatus(ns)
	return ns
}

// SetHandled sets the fate to Handled, without changing the state.
// It reports whether this call was the first one to handle the result.
func (s *DeferStatus) SetHandled() (set bool, status uint32) {
	cs := s.acquire()
	ns := cs

	if ns&stateMask == statePending || ns&fateMask < fateResolved {
		// release first, so a recovered panic doesn't leave the word locked.
		s.release(ns)
		panic("deferred: internal: SetHandled called before settlement")
	}

	if ns&fateMask < fateHandled {
		ns &^= fateMask
		ns |= fateHandled
		set = true
	}

	s.release(ns)
	return set, ns
}
