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
	"fmt"

	"github.com/tidefall/deferred/internal/status"
)

// panic messages
const (
	nilCallbackPanicMsg = "deferred: the provided callback is nil"
	nilProducerPanicMsg = "deferred: the provided producer is nil"
	nilResChanPanicMsg  = "deferred: the provided resChan is nil"
)

// wait waits for the Deferred d to settle, by either blocking on
// receiving from the syncChan, or utilizing the fate value of the status.
//
// the Deferred is settled when the syncChan is closed, and the res field
// will have its result.
func (d *coreDeferred[T]) wait() (s uint32) {
	s = d.status.Load()

	// if the fate is 'Resolved' or 'Handled', don't wait, as they are
	// guaranteed to happen after the result is saved, and after the
	// syncChan is closed.
	if status.IsFateResolved(s) {
		return s
	}

	// the chan will always be closed by the owner of the Deferred,
	// after setting the res and status fields as expected.
	<-d.syncChan

	// return the up-to-date status value
	return d.status.Load()
}

// handleFollow marks prev's result as handled, on behalf of the follow
// call that resolves next.
// If the result turned out to be already consumed, next is rejected with
// ErrConsumed, and ok will be false.
func handleFollow[T any](prev, next *coreDeferred[T]) (res Result[T], ok bool) {
	// set the 'Handled' flag, and keep track of whether this handle is
	// valid(first) or not, to decide whether we should move forward and
	// use the actual result or reject with an erroneous one.
	validHandle, s := prev.status.SetHandled()

	// if the Deferred isn't a one-time Deferred, all handle calls will
	// be valid
	if !status.IsFlagsOnce(s) {
		validHandle = true
	}

	if !validHandle {
		resolveToRejectedRes(next, errResult[T]{err: ErrConsumed})
		return nil, false
	}

	return getFinalRes(prev.res), true
}

// passThrough settles next to prev's result, unchanged.
// it handles subscriptions whose relevant reaction is nil.
func passThrough[T any](prev, next *coreDeferred[T], prevStatus uint32) {
	// return if the Deferred is resolved or being resolved by another call
	if set, _ := next.status.SetResolving(); !set {
		return
	}

	switch {
	case status.IsStateFulfilled(prevStatus):
		resolveToFulfilledRes(next, prev.res)
	case status.IsStateRejected(prevStatus):
		resolveToRejectedRes(next, prev.res)
	default:
		panic(fmt.Sprintf("deferred: internal: unexpected state: '%b'", prevStatus))
	}
}

// handleReturns must be deferred.
// the callback function is called after a deferred call to this method.
// no internal call that may cause a panic should be called after this
// method.
func handleReturns[T any](d *coreDeferred[T], resP *Result[T]) {
	// make sure that only one call will resolve the Deferred, or return
	// if it's already resolved, so that we don't recover panics when we
	// don't need to.
	if set, _ := d.status.SetResolving(); !set {
		return
	}

	if v := recover(); v == nil {
		// the callback returned normally, or through a call to
		// runtime.Goexit.
		if resP != nil {
			// return from a callback that requires Result returning
			resolveToRes[T](d, *resP)
		} else {
			// return from a callback that doesn't support Result returning.
			// this is equivalent to returning Empty[T] explicitly.
			resolveToFulfilledRes[T](d, nil)
		}
	} else {
		// a panic happened, reject with the panic value.
		resolveToRejectedRes[T](d, errResult[T]{err: &PanicError{V: v}})
	}
}

// resolveToRes resolves the Deferred when the computation has finished
// normally, without a panic.
// the Deferred is either rejected or fulfilled, and if res is another
// Deferred, its eventual state is adopted instead.
//
// it will be called once on the same Deferred, as it's protected by the
// Resolving fate setter.
func resolveToRes[T any](d *coreDeferred[T], res Result[T]) (s uint32) {
	if inner, ok := res.(Deferred[T]); ok {
		return resolveToDeferred(d, inner)
	}
	if res != nil && res.State() == Rejected {
		return resolveToRejectedRes(d, res)
	}
	return resolveToFulfilledRes(d, res)
}

// resolveToDeferred adopts the eventual result of inner, flattening the
// chain instead of fulfilling with a Deferred as a value.
func resolveToDeferred[T any](d *coreDeferred[T], inner Deferred[T]) (s uint32) {
	if inner.impl() == d {
		return resolveToRejectedRes(d, errResult[T]{err: ErrCircularChain})
	}

	res := inner.Res()
	if res.State() == Rejected {
		return resolveToRejectedRes(d, res)
	}
	return resolveToFulfilledRes(d, res)
}

func resolveToRejectedRes[T any](d *coreDeferred[T], res Result[T]) (s uint32) {
	// save the result, update the status, and close the syncChan to
	// unblock all waiting calls.
	d.res = res
	_, s = d.status.SetRejectedResolved()
	close(d.syncChan)

	handleExtCalls(d)

	// if the Deferred is rejected, and the chain is empty (no follow,
	// read or wait calls), run the uncaught error handling logic now.
	// otherwise, delay it to the last call in the chain.
	if status.IsChainEmpty(s) {
		d.uncaughtError()
	}

	return s
}

func resolveToFulfilledRes[T any](d *coreDeferred[T], res Result[T]) (s uint32) {
	d.res = res
	_, s = d.status.SetFulfilledResolved()
	close(d.syncChan)

	handleExtCalls(d)
	return s
}

// handleExtCalls runs once at settlement. It answers all queued extension
// calls, and starts the dispatcher for any queued subscriptions.
// The queue value is sent back, so late subscriptions and extension
// calls keep working after settlement.
func handleExtCalls[T any](d *coreDeferred[T]) {
	extQ := <-d.extsChan

	if extQ.valid {
		// get the final and ready-to-use result
		res := getFinalRes(d.res)

		handleExtCall(extQ.call, res)
		for _, call := range extQ.extra {
			handleExtCall(call, res)
		}

		extQ.valid = false
		extQ.call = extCall[T]{}
		extQ.extra = nil
	}

	if len(extQ.subs) != 0 && !extQ.dispatching {
		extQ.dispatching = true
		go d.dispatchSubs()
	}

	d.extsChan <- extQ
}

func handleExtCall[T any](call extCall[T], res Result[T]) bool {
	select {
	case call.resChan <- IdxRes[T]{Idx: call.idx, Result: res}:
		return true
	case <-call.syncChan:
		// the extension call's Deferred has already settled, so it's no
		// longer interested in this result.
		return false
	}
}

func updateExtQueue[T any](
	q *extQueue[T],
	idx int,
	resChan chan IdxRes[T],
	syncChan chan struct{},
) {
	call := extCall[T]{
		idx:      idx,
		resChan:  resChan,
		syncChan: syncChan,
	}
	if !q.valid {
		q.valid = true
		q.call = call
	} else {
		q.extra = append(q.extra, call)
	}
}

// registerExtCall queues an extension call on curr, unless curr settled
// while the queue was held by the caller, after handleExtCalls already
// answered the queued calls. It reports whether the call was queued.
// When it returns false, curr's res field is safe to read directly.
func registerExtCall[T any](
	curr *coreDeferred[T],
	q *extQueue[T],
	idx int,
	resChan chan IdxRes[T],
	syncChan chan struct{},
) bool {
	if status.IsFateResolved(curr.status.Load()) {
		return false
	}
	updateExtQueue(q, idx, resChan, syncChan)
	return true
}

// uncaughtError runs at rejection time, when nothing is registered on
// the chain. Without a Group there's nothing to notify, and the rejection
// stays observable through any later call on the Deferred.
func (d *coreDeferred[T]) uncaughtError() {
	g := d.group
	if g == nil {
		return
	}

	// if there's a group cancel function, call it before the handler
	if g.cancel != nil {
		g.cancel()
	}

	if g.uncaughtErrorHandler != nil {
		g.uncaughtErrorHandler(&UncaughtError{err: getFinalRes(d.res).Err()})
	}
}

// uncaughtErrorWait runs from a Wait call that found the rejection still
// unhandled at the end of the chain.
func (d *coreDeferred[T]) uncaughtErrorWait() {
	uerr := &UncaughtError{err: getFinalRes(d.res).Err()}

	if g := d.group; g != nil {
		if g.cancel != nil {
			g.cancel()
		}
		if g.uncaughtErrorHandler != nil {
			g.uncaughtErrorHandler(uerr)
			return
		}
	}

	panic(uerr)
}

func (d *coreDeferred[T]) resolveToResSync(res Result[T]) (s uint32) {
	if res != nil && res.State() == Rejected {
		return d.rejectSync(res)
	}
	return d.fulfillSync(res)
}

func (d *coreDeferred[T]) rejectSync(res Result[T]) (s uint32) {
	d.res = res
	return d.status.SetRejectedResolvedSync()
}

func (d *coreDeferred[T]) fulfillSync(res Result[T]) (s uint32) {
	d.res = res
	return d.status.SetFulfilledResolvedSync()
}

func (d *coreDeferred[T]) privateImplementation() {}

func (d *coreDeferred[T]) impl() *coreDeferred[T] { return d }

// newDeferInter creates a new coreDeferred which is resolved internally,
// using an internally allocated channel.
func newDeferInter[T any](g *groupCore) *coreDeferred[T] {
	extsChan := make(chan extQueue[T], 1)
	extsChan <- extQueue[T]{}

	d := &coreDeferred[T]{
		group:    g,
		syncChan: make(chan struct{}),
		extsChan: extsChan,
	}
	if g != nil && g.onceResultHandling {
		d.status = status.New(status.FlagsOnce)
	}
	return d
}

// newDeferFollow creates a new coreDeferred, for one of the follow calls,
// carrying over the flags of the Deferred it follows.
func newDeferFollow[T any](g *groupCore, prevStatus uint32) *coreDeferred[T] {
	d := newDeferInter[T](g)
	d.status = status.NewFrom(prevStatus)
	return d
}

var closedChan = make(chan struct{})

func init() {
	close(closedChan)
}

// newDeferSync creates a new coreDeferred which is resolved synchronously,
// just after it's created.
func newDeferSync[T any](g *groupCore) *coreDeferred[T] {
	extsChan := make(chan extQueue[T], 1)
	extsChan <- extQueue[T]{}

	d := &coreDeferred[T]{
		group:    g,
		syncChan: closedChan,
		extsChan: extsChan,
	}
	if g != nil && g.onceResultHandling {
		d.status = status.New(status.FlagsOnce)
	}
	return d
}

// newDeferBlocking creates a new coreDeferred which never settles.
func newDeferBlocking[T any]() *coreDeferred[T] {
	return &coreDeferred[T]{}
}
