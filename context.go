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

func ctxCall[T any](g *groupCore, ctx context.Context) Deferred[T] {
	if ctx == nil || ctx.Done() == nil {
		// since this ctx value can never be done, the equivalent outcome
		// is a Deferred that never settles.
		// return that equivalent value without creating any unneeded
		// resources.
		return newDeferBlocking[T]()
	}

	g.reserveGoroutine()
	d := newDeferInter[T](g)
	go ctxHandler(d, ctx)
	return d
}

func ctxHandler[T any](d *coreDeferred[T], ctx context.Context) {
	defer d.group.freeGoroutine()
	<-ctx.Done()
	resolveToRejectedRes(d, ctxResult[T]{ctx: ctx})
}
