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

// Deferred represents a value that becomes available, or fails, at some
// point after it's created. It starts out pending, and settles exactly
// once, to either fulfilled with a value or rejected with an error.
//
// The default implementation is the coreDeferred type.
//
// It's a private interface, which can only be implemented by embedding a
// type that implements it from this module.
type Deferred[T any] interface {
	// Result is the result of this Deferred, once it settles.
	// Accessing any of its methods will block until then.
	// Having Deferred implement Result means a Deferred can be returned
	// from a callback, and the new Deferred will adopt its eventual state,
	// instead of nesting it as a value.
	Result[T]

	// Wait blocks until the Deferred settles.
	//
	// If the Deferred is rejected, and no call has handled or read its
	// result by the time Wait returns, the uncaught error handling logic
	// runs, which panics with an *UncaughtError value unless the Deferred
	// belongs to a Group with an UncaughtErrorHandler set.
	Wait()

	// WaitChan returns a newly created channel that's closed once the
	// Deferred settles. Unlike Wait, it never runs the uncaught error
	// handling logic.
	WaitChan() chan struct{}

	// Res blocks until the Deferred settles, and returns its Result.
	//
	// The returned Result is never nil. Reading the result counts as
	// handling it, so a rejected Deferred whose Res is called won't
	// trigger the uncaught error handling logic.
	Res() Result[T]

	// Subscribe registers the pair of reactions on this Deferred and
	// returns a new Deferred that settles based on their outcome.
	//
	// Once this Deferred is fulfilled, onFulfilled is called with its
	// value; once it's rejected, onRejected is called with its error.
	// Either callback may be nil, in which case the corresponding
	// settlement passes through to the returned Deferred unchanged.
	// This is what lets a rejection skip forward, past any number of
	// fulfillment-only subscriptions, to the nearest rejection handler.
	//
	// The called reaction resolves the returned Deferred: a Result with a
	// nil error fulfills it, a Result with a non-nil error rejects it, a
	// nil Result fulfills it with no value, and a panic rejects it with a
	// *PanicError value.
	//
	// Reactions never run on the goroutine that calls Subscribe, even if
	// this Deferred has already settled. Reactions registered on the same
	// Deferred run in registration order.
	Subscribe(
		onFulfilled func(ctx context.Context, val T) Result[T],
		onRejected func(ctx context.Context, err error) Result[T],
	) Deferred[T]

	// Then is Subscribe with only the fulfillment reaction.
	// It will panic if a nil callback is passed.
	Then(onFulfilled func(ctx context.Context, val T) Result[T]) Deferred[T]

	// Catch is Subscribe with only the rejection reaction.
	// It will panic if a nil callback is passed.
	Catch(onRejected func(ctx context.Context, err error) Result[T]) Deferred[T]

	// Finally calls onSettled once this Deferred settles, with either
	// outcome, and returns a new Deferred that adopts this Deferred's
	// result unchanged. It can't handle the result, so a rejection still
	// needs a Catch or a Res call somewhere in the chain.
	//
	// If onSettled panics, the returned Deferred is rejected with a
	// *PanicError value instead.
	//
	// It will panic if a nil callback is passed.
	Finally(onSettled func(ctx context.Context)) Deferred[T]

	// Delay returns a Deferred that settles to this Deferred's result,
	// after waiting for at least duration d past this Deferred's
	// settlement. The conditions restrict which outcomes get delayed;
	// with none passed, both do.
	Delay(d time.Duration, cond ...DelayCond) Deferred[T]

	// this is a private interface that's specific to the different types
	// and functions in this module, and knows about them.
	privateImplementation()

	impl() *coreDeferred[T]
}

// State describes the settlement state of a Deferred or a Result.
type State int

const (
	// the order here matter
	Pending State = iota
	Fulfilled
	Rejected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	default:
		return "<unknown>"
	}
}
