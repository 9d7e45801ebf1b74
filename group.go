package deferred

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

type GroupConfig struct {
	// UncaughtErrorHandler is called with an *UncaughtError value whenever
	// a rejection reaches the end of a chain without being handled, by a
	// Catch call or a result read.
	// If it's not set, a Wait call on such a chain panics with the
	// *UncaughtError value instead.
	UncaughtErrorHandler func(err error)

	// Size is the allowed number of goroutines which this group can run.
	// This includes goroutines created for both, constructor calls(Go,
	// GoRes, etc.) and follow calls(Subscribe, Then, Catch, etc.).
	// If it's 0 or less, then the group size is unlimited.
	Size int

	// CancelAllCtxOnFailure, if true, will result in canceling all Context
	// values passed to all callbacks, once any rejection ends a chain
	// without being handled.
	// The default behavior is never canceling the callbacks' Context value
	// on any failures.
	CancelAllCtxOnFailure bool

	// NeverCancelCallbackCtx, if true, will result in passing a never
	// canceled Context value to all callbacks.
	// If CancelAllCtxOnFailure is true, this will be set to false.
	NeverCancelCallbackCtx bool

	// OnceResultHandling is used to enforce that the result of any
	// Deferred in the group is handled only once.
	// Any further attempt to use the result will return an erroneous
	// Result value with its Err method returning ErrConsumed.
	OnceResultHandling bool
}

// Group ties a set of Deferred values together, bounding the goroutines
// they run, and carrying the shared handling and Context behavior of
// their callbacks.
type Group[T any] struct {
	core groupCore
}

func NewGroup[T any](c ...*GroupConfig) *Group[T] {
	g := &Group[T]{}

	if len(c) != 0 && c[0] != nil {
		cfg := c[0]

		if cb := cfg.UncaughtErrorHandler; cb != nil {
			g.core.uncaughtErrorHandler = cb
		}

		if size := cfg.Size; size > 0 {
			g.core.sem = semaphore.NewWeighted(int64(size))
		}

		if cfg.CancelAllCtxOnFailure {
			g.core.ctx, g.core.cancel = context.WithCancel(context.Background())
		}

		if cfg.NeverCancelCallbackCtx && !cfg.CancelAllCtxOnFailure {
			g.core.neverCancelCallbackCtx = true
		}

		if cfg.OnceResultHandling {
			g.core.onceResultHandling = true
		}
	}

	return g
}

func (g *Group[T]) New(producer func(resolve func(val T), reject func(err error))) Deferred[T] {
	return newCall[T](&g.core, producer)
}

func (g *Group[T]) Resolve(val T) Deferred[T] {
	return resolveCall[T](&g.core, val)
}

func (g *Group[T]) Reject(err error) Deferred[T] {
	return rejectCall[T](&g.core, err)
}

func (g *Group[T]) Wrap(res Result[T]) Deferred[T] {
	return wrapCall[T](&g.core, res)
}

func (g *Group[T]) Chan(resChan chan Result[T]) Deferred[T] {
	return chanCall[T](&g.core, resChan)
}

func (g *Group[T]) Ctx(ctx context.Context) Deferred[T] {
	return ctxCall[T](&g.core, ctx)
}

func (g *Group[T]) Go(fun func()) Deferred[T] {
	return goCall[T](&g.core, fun)
}

func (g *Group[T]) GoErr(fun func() error) Deferred[T] {
	return goErrCall[T](&g.core, fun)
}

func (g *Group[T]) GoRes(fun func(ctx context.Context) Result[T]) Deferred[T] {
	return goResCall[T](&g.core, fun)
}

func (g *Group[T]) Delay(res Result[T], d time.Duration, cond ...DelayCond) Deferred[T] {
	return delayCall[T](&g.core, res, d, cond...)
}

// Wait blocks until all the goroutines of the group's Deferred values
// have finished.
func (g *Group[T]) Wait() {
	g.core.wg.Wait()
}

type groupCore struct {
	uncaughtErrorHandler func(err error)

	wg  sync.WaitGroup
	sem *semaphore.Weighted

	neverCancelCallbackCtx bool
	onceResultHandling     bool

	// ctx will be non-nil if the group is meant to close all Context
	// values once any of its chains ends with an unhandled rejection.
	ctx    context.Context
	cancel context.CancelFunc
}

func (g *groupCore) reserveGoroutine() {
	if g == nil {
		return
	}
	// add to the wait group before waiting, to make sure that this
	// goroutine reservation is accounted for.
	g.wg.Add(1)
	if g.sem != nil {
		// the background context means this can't fail.
		_ = g.sem.Acquire(context.Background(), 1)
	}
}

func (g *groupCore) freeGoroutine() {
	if g == nil {
		return
	}
	g.wg.Done()
	if g.sem != nil {
		g.sem.Release(1)
	}
}

func noop() {}

// callbackCtx returns the effective Context for a callback, and its
// CancelFunc, if one is needed.
func (g *groupCore) callbackCtx() (context.Context, context.CancelFunc) {
	if g == nil {
		return context.WithCancel(context.Background())
	}
	if g.ctx == nil || g.neverCancelCallbackCtx {
		return context.Background(), noop
	}
	return context.WithCancel(g.ctx)
}
