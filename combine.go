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

package deferred

import (
	"github.com/tidefall/deferred/internal/uniquerand"
)

// All returns a Deferred that fulfills with the values of all the
// Deferred values passed, in their original order, once all of them
// fulfill. If any of them rejects, the returned Deferred rejects with
// the first rejection in settlement order, without waiting for the rest.
// An empty list fulfills with an empty slice.
func All[T any](ds ...Deferred[T]) Deferred[[]T] {
	return allCall(ds)
}

func allCall[T any](ds []Deferred[T]) Deferred[[]T] {
	if len(ds) == 0 {
		d := newDeferSync[[]T](nil)
		d.fulfillSync(Val([]T{}))
		return d
	}

	next := newDeferInter[[]T](nil)
	go allHandler(next, ds)
	return next
}

func allHandler[T any](next *coreDeferred[[]T], ds []Deferred[T]) {
	// resChan is populated lazily, only if it's needed.
	var resChan chan IdxRes[T]

	// vals and rejErr, collectively, represent the resolve result.
	vals := make([]T, len(ds))
	var rejErr error
	var rejected bool

	// got counts the results that were read directly, without an
	// extension call.
	var got int

	collect := func(idx int, res Result[T]) (doneEarly bool) {
		got++
		if res.State() == Rejected {
			rejected = true
			rejErr = res.Err()
			return true
		}
		vals[idx] = res.Val()
		return false
	}

	// loopCnt records how many iterations happened in the loop below
	var loopCnt int

	// randIdx is responsible for returning a random, unique, index in
	// the provided list.
	var randIdx uniquerand.Int
	randIdx.Reset(len(ds))

loop:
	for idx, ok := randIdx.Get(); ok; idx, ok = randIdx.Get() {
		curr := ds[idx].impl()
		loopCnt++

		// Select with non-blocking or with blocking, based on whether we
		// might be interested to check other Deferred values for potential
		// immediate settlement.
		// Only do that if we haven't already looped over the list before,
		// otherwise we might end up in an (almost) infinite loop.
		blocking := loopCnt > len(ds)

		if blocking {
			select {
			case <-curr.syncChan:
				if collect(idx, getFinalRes(curr.res)) {
					break loop
				}
			case extQ := <-curr.extsChan:
				if resChan == nil {
					resChan = make(chan IdxRes[T])
				}
				queued := registerExtCall(curr, &extQ, idx, resChan, next.syncChan)
				curr.extsChan <- extQ
				if !queued && collect(idx, getFinalRes(curr.res)) {
					break loop
				}
			}
		} else {
			select {
			case <-curr.syncChan:
				if collect(idx, getFinalRes(curr.res)) {
					break loop
				}
			case extQ := <-curr.extsChan:
				if resChan == nil {
					resChan = make(chan IdxRes[T])
				}
				queued := registerExtCall(curr, &extQ, idx, resChan, next.syncChan)
				curr.extsChan <- extQ
				if !queued && collect(idx, getFinalRes(curr.res)) {
					break loop
				}
			default:
				// the Deferred hasn't settled, and another extension call
				// owns the extQueue value right now.
				// re-put the index to re-visit this case later.
				randIdx.Put(idx)
			}
		}
	}

	if !rejected {
		// collect the results of the Deferred values that were pending
		// when the loop visited them.
		pending := len(ds) - got
		for i := 0; i < pending; i++ {
			ir := <-resChan
			if ir.State() == Rejected {
				rejected = true
				rejErr = ir.Err()
				break
			}
			vals[ir.Idx] = ir.Val()
		}
	}

	if rejected {
		resolveToRejectedRes(next, Err[[]T](rejErr))
	} else {
		resolveToFulfilledRes(next, Val(vals))
	}
}

// Race returns a Deferred that settles identically to whichever of the
// Deferred values passed settles first. The eventual settlement of all
// others is ignored.
// An empty list returns a Deferred that never settles.
func Race[T any](ds ...Deferred[T]) Deferred[T] {
	return raceCall(ds)
}

func raceCall[T any](ds []Deferred[T]) Deferred[T] {
	if len(ds) == 0 {
		return newDeferBlocking[T]()
	}

	next := newDeferInter[T](nil)
	go raceHandler(next, ds)
	return next
}

func raceHandler[T any](next *coreDeferred[T], ds []Deferred[T]) {
	var resChan chan IdxRes[T]

	// res represents the resolve result.
	var res Result[T]

	var loopCnt int
	var randIdx uniquerand.Int
	randIdx.Reset(len(ds))

loop:
	for idx, ok := randIdx.Get(); ok; idx, ok = randIdx.Get() {
		curr := ds[idx].impl()
		loopCnt++
		blocking := loopCnt > len(ds)

		if blocking {
			select {
			case <-curr.syncChan:
				res = getFinalRes(curr.res)
				break loop
			case extQ := <-curr.extsChan:
				if resChan == nil {
					resChan = make(chan IdxRes[T])
				}
				queued := registerExtCall(curr, &extQ, idx, resChan, next.syncChan)
				curr.extsChan <- extQ
				if !queued {
					res = getFinalRes(curr.res)
					break loop
				}
			}
		} else {
			select {
			case <-curr.syncChan:
				res = getFinalRes(curr.res)
				break loop
			case extQ := <-curr.extsChan:
				if resChan == nil {
					resChan = make(chan IdxRes[T])
				}
				queued := registerExtCall(curr, &extQ, idx, resChan, next.syncChan)
				curr.extsChan <- extQ
				if !queued {
					res = getFinalRes(curr.res)
					break loop
				}
			default:
				randIdx.Put(idx)
			}
		}
	}

	// because this is a race, only one result is expected
	if res == nil {
		ir := <-resChan
		res = ir.Result
	}

	if res.State() == Rejected {
		resolveToRejectedRes(next, res)
	} else {
		resolveToFulfilledRes(next, res)
	}
}

// Any returns a Deferred that fulfills identically to the first of the
// Deferred values passed that fulfills, ignoring rejections along the
// way. If all of them reject, it rejects with a *MultiIdxError wrapping
// all the rejection errors, in settlement order.
// An empty list fulfills with no value.
func Any[T any](ds ...Deferred[T]) Deferred[T] {
	return anyCall(ds)
}

func anyCall[T any](ds []Deferred[T]) Deferred[T] {
	if len(ds) == 0 {
		d := newDeferSync[T](nil)
		d.fulfillSync(nil)
		return d
	}

	next := newDeferInter[T](nil)
	go anyHandler(next, ds)
	return next
}

func anyHandler[T any](next *coreDeferred[T], ds []Deferred[T]) {
	var resChan chan IdxRes[T]

	// res and errs, collectively, represent the resolve result.
	var res Result[T]
	var errs []error
	var got int

	collect := func(idx int, r Result[T]) (doneEarly bool) {
		got++
		if r.State() == Rejected {
			errs = append(errs, IdxError{Idx: idx, Err: r.Err()})
			return false
		}
		res = r
		return true
	}

	var loopCnt int
	var randIdx uniquerand.Int
	randIdx.Reset(len(ds))

loop:
	for idx, ok := randIdx.Get(); ok; idx, ok = randIdx.Get() {
		curr := ds[idx].impl()
		loopCnt++
		blocking := loopCnt > len(ds)

		if blocking {
			select {
			case <-curr.syncChan:
				if collect(idx, getFinalRes(curr.res)) {
					break loop
				}
			case extQ := <-curr.extsChan:
				if resChan == nil {
					resChan = make(chan IdxRes[T])
				}
				queued := registerExtCall(curr, &extQ, idx, resChan, next.syncChan)
				curr.extsChan <- extQ
				if !queued && collect(idx, getFinalRes(curr.res)) {
					break loop
				}
			}
		} else {
			select {
			case <-curr.syncChan:
				if collect(idx, getFinalRes(curr.res)) {
					break loop
				}
			case extQ := <-curr.extsChan:
				if resChan == nil {
					resChan = make(chan IdxRes[T])
				}
				queued := registerExtCall(curr, &extQ, idx, resChan, next.syncChan)
				curr.extsChan <- extQ
				if !queued && collect(idx, getFinalRes(curr.res)) {
					break loop
				}
			default:
				randIdx.Put(idx)
			}
		}
	}

	if res == nil {
		pending := len(ds) - got
		for i := 0; i < pending; i++ {
			ir := <-resChan
			if ir.State() == Rejected {
				errs = append(errs, IdxError{Idx: ir.Idx, Err: ir.Err()})
				continue
			}
			res = ir.Result
			break
		}
	}

	if res != nil {
		resolveToFulfilledRes(next, res)
	} else {
		resolveToRejectedRes(next, Err[T](&MultiIdxError{errs: errs}))
	}
}

// Join returns a Deferred that fulfills once all the Deferred values
// passed settle, with either outcome. The resulting IdxRes slice holds
// all the results, in settlement order; the original position of each
// is available through its Idx field.
// An empty list fulfills with an empty slice.
func Join[T any](ds ...Deferred[T]) Deferred[[]IdxRes[T]] {
	return joinCall(ds)
}

func joinCall[T any](ds []Deferred[T]) Deferred[[]IdxRes[T]] {
	if len(ds) == 0 {
		d := newDeferSync[[]IdxRes[T]](nil)
		d.fulfillSync(Val([]IdxRes[T]{}))
		return d
	}

	next := newDeferInter[[]IdxRes[T]](nil)
	go joinHandler(next, ds)
	return next
}

func joinHandler[T any](next *coreDeferred[[]IdxRes[T]], ds []Deferred[T]) {
	var resChan chan IdxRes[T]

	resArr := make([]IdxRes[T], 0, len(ds))

	var loopCnt int
	var randIdx uniquerand.Int
	randIdx.Reset(len(ds))

	for idx, ok := randIdx.Get(); ok; idx, ok = randIdx.Get() {
		curr := ds[idx].impl()
		loopCnt++
		blocking := loopCnt > len(ds)

		if blocking {
			select {
			case <-curr.syncChan:
				resArr = append(resArr, IdxRes[T]{Idx: idx, Result: getFinalRes(curr.res)})
			case extQ := <-curr.extsChan:
				if resChan == nil {
					resChan = make(chan IdxRes[T])
				}
				queued := registerExtCall(curr, &extQ, idx, resChan, next.syncChan)
				curr.extsChan <- extQ
				if !queued {
					resArr = append(resArr, IdxRes[T]{Idx: idx, Result: getFinalRes(curr.res)})
				}
			}
		} else {
			select {
			case <-curr.syncChan:
				resArr = append(resArr, IdxRes[T]{Idx: idx, Result: getFinalRes(curr.res)})
			case extQ := <-curr.extsChan:
				if resChan == nil {
					resChan = make(chan IdxRes[T])
				}
				queued := registerExtCall(curr, &extQ, idx, resChan, next.syncChan)
				curr.extsChan <- extQ
				if !queued {
					resArr = append(resArr, IdxRes[T]{Idx: idx, Result: getFinalRes(curr.res)})
				}
			default:
				randIdx.Put(idx)
			}
		}
	}

	pending := len(ds) - len(resArr)
	for i := 0; i < pending; i++ {
		resArr = append(resArr, <-resChan)
	}

	resolveToFulfilledRes(next, Val(resArr))
}
