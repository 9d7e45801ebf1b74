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
	"context"
	"time"
)

// New returns a Deferred that's settled by the provided producer,
// through its two capabilities: resolve fulfills the Deferred with a
// value, and reject rejects it with an error.
//
// The producer runs synchronously, on the calling goroutine, but it's
// free to hand either capability to other goroutines and call them
// later; any callback-driven operation converts to a Deferred this way,
// by calling resolve or reject from the operation's own completion
// callback.
//
// Only the first call to either capability settles the Deferred; all
// later calls are no-ops. If the producer panics before the Deferred is
// settled, the Deferred is rejected with a *PanicError value. A panic
// after settlement is swallowed.
//
// It will panic if a nil producer is passed.
func New[T any](producer func(resolve func(val T), reject func(err error))) Deferred[T] {
	return newCall[T](nil, producer)
}

func newCall[T any](
	g *groupCore,
	producer func(resolve func(val T), reject func(err error)),
) (dd Deferred[T]) {
	if producer == nil {
		panic(nilProducerPanicMsg)
	}

	d := newDeferInter[T](g)
	dd = d

	resolve := func(val T) {
		if set, _ := d.status.SetResolving(); !set {
			return
		}
		resolveToFulfilledRes(d, valResult[T]{val: val})
	}
	reject := func(err error) {
		if set, _ := d.status.SetResolving(); !set {
			return
		}
		resolveToRejectedRes(d, errResult[T]{err: err})
	}

	defer func() {
		if v := recover(); v != nil {
			// a producer panic after settlement is swallowed, as there's
			// no state left for it to affect.
			if set, _ := d.status.SetResolving(); set {
				resolveToRejectedRes(d, errResult[T]{err: &PanicError{V: v}})
			}
		}
	}()
	producer(resolve, reject)

	return dd
}

// Resolve returns an already-fulfilled Deferred holding val.
// It's used to originate a chain from a synchronous value.
func Resolve[T any](val T) Deferred[T] {
	return resolveCall[T](nil, val)
}

func resolveCall[T any](g *groupCore, val T) Deferred[T] {
	d := newDeferSync[T](g)
	d.fulfillSync(valResult[T]{val: val})
	return d
}

// Reject returns an already-rejected Deferred holding err.
//
// The returned Deferred will not run the uncaught error handling logic
// on its own, but any chain derived from it will, until the error is
// caught (by a Catch call) or the result is read (by a Res call).
func Reject[T any](err error) Deferred[T] {
	return rejectCall[T](nil, err)
}

func rejectCall[T any](g *groupCore, err error) Deferred[T] {
	d := newDeferSync[T](g)
	d.rejectSync(errResult[T]{err: err})
	return d
}

// Wrap returns a Deferred that's settled, synchronously, to the provided
// Result. It's rejected if res is a rejected Result, and fulfilled
// otherwise.
//
// The provided res value shouldn't be modified after this call.
func Wrap[T any](res Result[T]) Deferred[T] {
	return wrapCall[T](nil, res)
}

func wrapCall[T any](g *groupCore, res Result[T]) Deferred[T] {
	d := newDeferSync[T](g)
	d.resolveToResSync(res)
	return d
}

// Chan returns a Deferred that's settled to the first Result value
// received on resChan. It's rejected if that Result is a rejected one,
// and fulfilled otherwise.
// Closing resChan without sending settles the Deferred as fulfilled
// with no value.
//
// It will panic if a nil channel is passed.
func Chan[T any](resChan chan Result[T]) Deferred[T] {
	return chanCall[T](nil, resChan)
}

func chanCall[T any](g *groupCore, resChan <-chan Result[T]) Deferred[T] {
	if resChan == nil {
		panic(nilResChanPanicMsg)
	}

	g.reserveGoroutine()
	d := newDeferInter[T](g)
	go chanHandler(d, resChan)
	return d
}

func chanHandler[T any](d *coreDeferred[T], resChan <-chan Result[T]) {
	defer d.group.freeGoroutine()
	res := <-resChan
	if set, _ := d.status.SetResolving(); !set {
		return
	}
	resolveToRes(d, res)
}

// Ctx returns a Deferred that's rejected with ctx's error once ctx is
// done. If ctx can never be done, the returned Deferred never settles.
func Ctx[T any](ctx context.Context) Deferred[T] {
	return ctxCall[T](nil, ctx)
}

// Go runs the provided function, fun, on a new goroutine, and returns a
// Deferred that's fulfilled with no value once fun returns.
//
// If fun panics, the returned Deferred is rejected with a *PanicError
// value.
//
// It will panic if a nil function is passed.
func Go(fun func()) Deferred[any] {
	return goCall[any](nil, fun)
}

func goCall[T any](g *groupCore, cb goCallback[T, T]) Deferred[T] {
	if cb == nil {
		panic(nilCallbackPanicMsg)
	}

	g.reserveGoroutine()
	d := newDeferInter[T](g)
	ctx, cancel := g.callbackCtx()
	go runCallback[T, T](d, cb, nil, false, true, ctx, cancel)
	return d
}

// GoErr runs the provided function, fun, on a new goroutine, and returns
// a Deferred that's rejected with fun's returned error if it's non-nil,
// and fulfilled with no value otherwise.
//
// It will panic if a nil function is passed.
func GoErr(fun func() error) Deferred[any] {
	return goErrCall[any](nil, fun)
}

func goErrCall[T any](g *groupCore, cb goErrCallback[T, T]) Deferred[T] {
	if cb == nil {
		panic(nilCallbackPanicMsg)
	}

	g.reserveGoroutine()
	d := newDeferInter[T](g)
	ctx, cancel := g.callbackCtx()
	go runCallback[T, T](d, cb, nil, true, true, ctx, cancel)
	return d
}

// GoRes runs the provided function, fun, on a new goroutine, and returns
// a Deferred that's settled to the Result value fun returns. It's
// rejected if that Result is a rejected one, fulfilled otherwise, and
// rejected with a *PanicError value if fun panics.
//
// It will panic if a nil function is passed.
func GoRes[T any](fun func(ctx context.Context) Result[T]) Deferred[T] {
	return goResCall[T](nil, fun)
}

func goResCall[T any](g *groupCore, cb goResCallback[T, T]) Deferred[T] {
	if cb == nil {
		panic(nilCallbackPanicMsg)
	}

	g.reserveGoroutine()
	d := newDeferInter[T](g)
	ctx, cancel := g.callbackCtx()
	go runCallback[T, T](d, cb, nil, true, true, ctx, cancel)
	return d
}

// Delay returns a Deferred that's settled to the passed Result value,
// after waiting for at least duration d, accordingly.
// The conditions restrict which outcomes get delayed; with none passed,
// both do.
func Delay[T any](res Result[T], d time.Duration, cond ...DelayCond) Deferred[T] {
	return delayCall[T](nil, res, d, cond...)
}

func delayCall[T any](
	g *groupCore,
	res Result[T],
	d time.Duration,
	cond ...DelayCond,
) Deferred[T] {
	flags := getDelayFlags(cond)
	g.reserveGoroutine()
	dp := newDeferInter[T](g)
	go delayHandler(dp, res, d, flags)
	return dp
}

func delayHandler[T any](
	d *coreDeferred[T],
	res Result[T],
	dd time.Duration,
	flags delayFlags,
) {
	defer d.group.freeGoroutine()

	if res != nil && res.State() == Rejected {
		if flags.onError {
			time.Sleep(dd)
		}
		resolveToRejectedRes(d, res)
	} else {
		if flags.onSuccess {
			time.Sleep(dd)
		}
		resolveToFulfilledRes(d, res)
	}
}
