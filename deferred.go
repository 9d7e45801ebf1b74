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

	"github.com/tidefall/deferred/internal/status"
)

// coreDeferred is the default implementation of the Deferred interface.
//
// The zero value will block forever on any calls.
type coreDeferred[T any] struct {
	group *groupCore

	// closed when this Deferred settles.
	// this channel has one writer (one goroutine), which is the owner,
	// which will close it, but can have multiple readers.
	syncChan chan struct{}

	// carries the queue of subscriptions and extension calls registered
	// on this Deferred. it's never closed.
	// receiving the queue value gives exclusive ownership of it, until
	// it's sent back.
	extsChan chan extQueue[T]

	// holds the result of the Deferred.
	// written once, before the syncChan channel is closed.
	//
	// don't read it unless the syncChan is known to be closed.
	res Result[T]

	// holds the different states, fates, flags, and other data about
	// the Deferred.
	// refer to the docs of the DeferStatus type for more info.
	//
	// the res field is guaranteed to be immutable, after the fate value
	// is Resolved or Handled, so don't read it before then.
	status status.DeferStatus
}

// extQueue wil be owned, at any time, by a single goroutine.
type extQueue[T any] struct {
	// whether the call value is valid or not.
	valid bool

	// call is the default extension call.
	call extCall[T]

	// extra holds any other extension calls, in addition to the one in call.
	extra []extCall[T]

	// subs holds the subscriptions registered on this Deferred, in
	// registration order, that haven't been dispatched yet.
	subs []subCall[T]

	// whether a dispatcher goroutine is currently draining subs.
	dispatching bool
}

// extCall describes an extension call and how to communicate back to it.
type extCall[T any] struct {
	// idx is the index of this result's Deferred within the list passed
	// to the extension call.
	idx int

	// resChan is the channel used to send the result back to the
	// extension call.
	// this is a new, per extension call, unbuffered channel.
	resChan chan IdxRes[T]

	// syncChan is the channel used to communicate that the extension
	// call's Deferred has settled, so that the sending Deferred can
	// return.
	syncChan chan struct{}
}

type subKind int

const (
	subReaction subKind = iota
	subSettled
)

// subCall describes one subscription and the Deferred it resolves.
type subCall[T any] struct {
	kind subKind

	// reaction callbacks, for subReaction. either may be nil, in which
	// case the settlement passes through to next unchanged.
	onFulfilled fulfilledCallback[T, T]
	onRejected  rejectedCallback[T, T]

	// settlement callback, for subSettled.
	onSettled settledCallback[T, T]

	next   *coreDeferred[T]
	ctx    context.Context
	cancel context.CancelFunc
}

func (d *coreDeferred[T]) Val() T {
	return d.Res().Val()
}

func (d *coreDeferred[T]) Err() error {
	return d.Res().Err()
}

func (d *coreDeferred[T]) State() State {
	return d.Res().State()
}

func (d *coreDeferred[T]) Wait() {
	d.status.RegWait()
	_ = d.waitCall()
}

func (d *coreDeferred[T]) WaitChan() chan struct{} {
	c := make(chan struct{})

	go func(c chan struct{}) {
		d.status.RegWait()
		d.wait()
		close(c)
	}(c)

	return c
}

func (d *coreDeferred[T]) waitCall() (s uint32) {
	// wait for the Deferred to settle
	s = d.wait()

	if !status.IsChainAtLeastRead(s) && !status.IsFateHandled(s) &&
		status.IsStateRejected(s) {
		// the Deferred is rejected, not handled, and there are no chained
		// calls to handle it, run the uncaught error handling logic.
		d.uncaughtErrorWait()
	}

	return s
}

func (d *coreDeferred[T]) Res() Result[T] {
	d.status.RegRead()
	return d.resCall()
}

func (d *coreDeferred[T]) resCall() Result[T] {
	// wait for the Deferred to settle
	d.wait()

	// it's a call to handle the result, so set the 'Handled' flag.
	// also, keep track of whether this handle was valid(first) or not,
	// to decide whether we should return the actual result or an
	// erroneous one.
	validHandle, s := d.status.SetHandled()

	// if the Deferred isn't a one-time Deferred, all handle calls will
	// be valid
	if !status.IsFlagsOnce(s) {
		validHandle = true
	}

	// if the result has been used, return the expected error
	if !validHandle {
		return errResult[T]{err: ErrConsumed}
	}

	// the result can be accessed multiple times...
	return getFinalRes(d.res)
}

// getFinalRes returns the final result to be used when returned outside
// the scope of the internal functions here.
func getFinalRes[T any](res Result[T]) Result[T] {
	// if no result was set, then it's implicitly the empty result
	if res == nil {
		return emptyResult[T]{}
	}
	return res
}

func (d *coreDeferred[T]) Subscribe(
	onFulfilled func(ctx context.Context, val T) Result[T],
	onRejected func(ctx context.Context, err error) Result[T],
) Deferred[T] {
	return d.subscribeCall(onFulfilled, onRejected)
}

func (d *coreDeferred[T]) Then(
	onFulfilled func(ctx context.Context, val T) Result[T],
) Deferred[T] {
	if onFulfilled == nil {
		panic(nilCallbackPanicMsg)
	}
	return d.subscribeCall(onFulfilled, nil)
}

func (d *coreDeferred[T]) Catch(
	onRejected func(ctx context.Context, err error) Result[T],
) Deferred[T] {
	if onRejected == nil {
		panic(nilCallbackPanicMsg)
	}
	return d.subscribeCall(nil, onRejected)
}

func (d *coreDeferred[T]) subscribeCall(
	onFulfilled fulfilledCallback[T, T],
	onRejected rejectedCallback[T, T],
) Deferred[T] {
	if d.syncChan == nil {
		return newDeferBlocking[T]()
	}

	_, s := d.status.RegFollow()
	d.group.reserveGoroutine()
	next := newDeferFollow[T](d.group, s)
	ctx, cancel := d.group.callbackCtx()
	d.enqueueSub(subCall[T]{
		kind:        subReaction,
		onFulfilled: onFulfilled,
		onRejected:  onRejected,
		next:        next,
		ctx:         ctx,
		cancel:      cancel,
	})
	return next
}

func (d *coreDeferred[T]) Finally(
	onSettled func(ctx context.Context),
) Deferred[T] {
	if onSettled == nil {
		panic(nilCallbackPanicMsg)
	}
	if d.syncChan == nil {
		return newDeferBlocking[T]()
	}

	// Finally can't handle the result, so it only counts as a wait call
	// for the uncaught error handling logic.
	_, s := d.status.RegWait()
	d.group.reserveGoroutine()
	next := newDeferFollow[T](d.group, s)
	ctx, cancel := d.group.callbackCtx()
	d.enqueueSub(subCall[T]{
		kind:      subSettled,
		onSettled: onSettled,
		next:      next,
		ctx:       ctx,
		cancel:    cancel,
	})
	return next
}

// enqueueSub adds sub to the Deferred's subscription queue, and makes
// sure a dispatcher goroutine will drain it once the Deferred settles.
// The queue keeps subscriptions firing in registration order, whether
// they were registered before or after settlement.
func (d *coreDeferred[T]) enqueueSub(sub subCall[T]) {
	extQ := <-d.extsChan
	extQ.subs = append(extQ.subs, sub)
	if !extQ.dispatching && status.IsFateResolved(d.status.Load()) {
		// already settled, and no dispatcher is running, so the one that
		// ran at settlement (if any) has already exited.
		extQ.dispatching = true
		go d.dispatchSubs()
	}
	d.extsChan <- extQ
}

// dispatchSubs drains the subscription queue, running the queued
// subscriptions one by one, in registration order.
// It's started only after the Deferred settles, and only one instance
// runs at a time.
func (d *coreDeferred[T]) dispatchSubs() {
	for {
		extQ := <-d.extsChan
		if len(extQ.subs) == 0 {
			extQ.dispatching = false
			d.extsChan <- extQ
			return
		}
		subs := extQ.subs
		extQ.subs = nil
		d.extsChan <- extQ

		for i := range subs {
			d.runSub(subs[i])
		}
	}
}

// runSub runs a single subscription against the settled result.
func (d *coreDeferred[T]) runSub(sub subCall[T]) {
	// make sure we free this subscription's goroutine reservation
	defer d.group.freeGoroutine()

	s := d.status.Load()

	if sub.kind == subSettled {
		runSettledCallback(d, sub.next, sub.onSettled, s, sub.ctx, sub.cancel)
		return
	}

	if status.IsStateFulfilled(s) {
		if sub.onFulfilled == nil {
			sub.cancel()
			passThrough(d, sub.next, s)
			return
		}
		res, ok := handleFollow(d, sub.next)
		if !ok {
			sub.cancel()
			return
		}
		runCallback[T, T](sub.next, sub.onFulfilled, res, true, false, sub.ctx, sub.cancel)
		return
	}

	if sub.onRejected == nil {
		sub.cancel()
		passThrough(d, sub.next, s)
		return
	}
	res, ok := handleFollow(d, sub.next)
	if !ok {
		sub.cancel()
		return
	}
	runCallback[T, T](sub.next, sub.onRejected, res, true, false, sub.ctx, sub.cancel)
}

func runSettledCallback[T any](
	prev *coreDeferred[T],
	next *coreDeferred[T],
	cb settledCallback[T, T],
	prevStatus uint32,
	ctx context.Context,
	cancel context.CancelFunc,
) {
	// defer the return handler to pass prev's result through, or to
	// handle a panic in the callback
	defer passThroughReturns(prev, next, prevStatus)

	// make sure we close the context once we return from the callback
	defer cancel()

	cb.call(ctx, nil)
}

// passThroughReturns must be deferred.
func passThroughReturns[T any](
	prev *coreDeferred[T],
	next *coreDeferred[T],
	prevStatus uint32,
) {
	if set, _ := next.status.SetResolving(); !set {
		return
	}

	if v := recover(); v != nil {
		resolveToRejectedRes(next, errResult[T]{err: &PanicError{V: v}})
		return
	}

	if status.IsStateFulfilled(prevStatus) {
		resolveToFulfilledRes(next, prev.res)
	} else {
		resolveToRejectedRes(next, prev.res)
	}
}

func (d *coreDeferred[T]) Delay(
	dd time.Duration,
	cond ...DelayCond,
) Deferred[T] {
	if d.syncChan == nil {
		return newDeferBlocking[T]()
	}

	_, s := d.status.RegFollow()
	flags := getDelayFlags(cond)
	d.group.reserveGoroutine()
	next := newDeferFollow[T](d.group, s)
	go delayFollowCall(d, next, dd, flags)
	return next
}

// delayFollowCall sleeps on its own goroutine, so a delayed follow never
// holds up other subscriptions of the same Deferred.
func delayFollowCall[T any](
	prev *coreDeferred[T],
	next *coreDeferred[T],
	dd time.Duration,
	flags delayFlags,
) {
	// make sure we free this goroutine reservation
	defer prev.group.freeGoroutine()

	// wait for the previous Deferred to settle
	s := prev.wait()

	// mark prev as 'Handled', and check whether we should continue or not.
	res, ok := handleFollow(prev, next)
	if !ok {
		// not a valid handle. next is already resolved.
		return
	}

	if status.IsStateFulfilled(s) {
		if flags.onSuccess {
			time.Sleep(dd)
		}
		resolveToFulfilledRes(next, res)
	} else {
		if flags.onError {
			time.Sleep(dd)
		}
		resolveToRejectedRes(next, res)
	}
}
