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

import "context"

type callbackFunc[PrevT, NextT any] interface {
	call(ctx context.Context, res Result[PrevT]) Result[NextT]
}

type goCallback[PrevT, NextT any] func()
type goErrCallback[PrevT, NextT any] func() error
type goResCallback[PrevT, NextT any] func(ctx context.Context) Result[NextT]
type fulfilledCallback[PrevT, NextT any] func(ctx context.Context, val PrevT) Result[NextT]
type rejectedCallback[PrevT, NextT any] func(ctx context.Context, err error) Result[NextT]
type settledCallback[PrevT, NextT any] func(ctx context.Context)

func (cb goCallback[PrevT, NextT]) call(ctx context.Context, res Result[PrevT]) Result[NextT] {
	cb()
	return nil
}
func (cb goErrCallback[PrevT, NextT]) call(ctx context.Context, res Result[PrevT]) Result[NextT] {
	if err := cb(); err != nil {
		return Err[NextT](err)
	}
	return nil
}
func (cb goResCallback[PrevT, NextT]) call(ctx context.Context, res Result[PrevT]) Result[NextT] {
	return cb(ctx)
}
func (cb fulfilledCallback[PrevT, NextT]) call(ctx context.Context, res Result[PrevT]) Result[NextT] {
	return cb(ctx, res.Val())
}
func (cb rejectedCallback[PrevT, NextT]) call(ctx context.Context, res Result[PrevT]) Result[NextT] {
	return cb(ctx, res.Err())
}
func (cb settledCallback[PrevT, NextT]) call(ctx context.Context, res Result[PrevT]) Result[NextT] {
	cb(ctx)
	return nil
}

func runCallback[PrevT, NextT any](
	next *coreDeferred[NextT],
	cb callbackFunc[PrevT, NextT],
	prevRes Result[PrevT],
	supportNewResult bool,
	freeAfterDone bool,
	ctx context.Context,
	cancel context.CancelFunc,
) {
	// create the Result pointer, to keep track of any result returned
	var newResP *Result[NextT]
	if supportNewResult {
		newResP = new(Result[NextT])
	}

	// make sure we free this goroutine reservation if it's required
	if freeAfterDone {
		defer next.group.freeGoroutine()
	}

	// defer the return handler to handle panics and runtime.Goexit calls
	defer handleReturns(next, newResP)

	// make sure we close the context once we return from the callback
	defer cancel()

	// run the callback and extract the result
	newRes := cb.call(ctx, getFinalRes(prevRes))

	// if the callback doesn't support Result returning, return early, as
	// the rest of the logic isn't relevant anymore.
	if !supportNewResult {
		return
	}

	// set the Deferred result to the returned value
	*newResP = newRes
}
