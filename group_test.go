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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGroup_Wait(t *testing.T) {
	g := NewGroup[int]()

	var done atomic.Int32
	for i := 0; i < 8; i++ {
		g.Go(func() {
			time.Sleep(5 * time.Millisecond)
			done.Add(1)
		})
	}

	g.Wait()
	require.EqualValues(t, 8, done.Load())
}

func TestGroup_SizeBudget(t *testing.T) {
	const budget = 2
	const total = 6

	g := NewGroup[int](&GroupConfig{Size: budget})

	var running, peak atomic.Int32

	var launchers sync.WaitGroup
	ds := make(chan Deferred[int], total)
	for i := 0; i < total; i++ {
		launchers.Add(1)
		go func() {
			defer launchers.Done()
			// the constructor itself blocks while the budget is full
			ds <- g.Go(func() {
				cur := running.Add(1)
				for {
					p := peak.Load()
					if cur <= p || peak.CompareAndSwap(p, cur) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				running.Add(-1)
			})
		}()
	}
	launchers.Wait()
	close(ds)

	for d := range ds {
		d.Wait()
	}

	require.LessOrEqual(t, peak.Load(), int32(budget))
	require.Positive(t, peak.Load())
}

func TestGroup_UncaughtErrorHandler(t *testing.T) {
	caught := make(chan error, 4)
	g := NewGroup[int](&GroupConfig{
		UncaughtErrorHandler: func(err error) { caught <- err },
	})

	d := g.GoErr(func() error { return errTest })
	require.NotPanics(t, func() { d.Wait() })

	select {
	case err := <-caught:
		var uerr *UncaughtError
		require.ErrorAs(t, err, &uerr)
		require.ErrorIs(t, err, errTest)
	case <-time.After(time.Second):
		t.Fatal("handler never called")
	}
}

func TestGroup_CancelAllCtxOnFailure(t *testing.T) {
	g := NewGroup[int](&GroupConfig{CancelAllCtxOnFailure: true})

	d1 := g.GoRes(func(ctx context.Context) Result[int] {
		select {
		case <-ctx.Done():
			return Val(1)
		case <-time.After(time.Second):
			return Err[int](errTest)
		}
	})

	// an unhandled rejection cancels every callback context of the group
	g.GoErr(func() error { return errTest })

	require.Equal(t, 1, d1.Val())
}

func TestGroup_CallbackCtx(t *testing.T) {
	t.Run("default group context is never done", func(t *testing.T) {
		g := NewGroup[int]()
		d := g.GoRes(func(ctx context.Context) Result[int] {
			if ctx.Done() == nil {
				return Val(1)
			}
			return Err[int](errTest)
		})
		require.Equal(t, 1, d.Val())
	})

	t.Run("NeverCancelCallbackCtx", func(t *testing.T) {
		g := NewGroup[int](&GroupConfig{
			NeverCancelCallbackCtx: true,
			CancelAllCtxOnFailure:  false,
		})
		d := g.GoRes(func(ctx context.Context) Result[int] {
			if ctx.Done() == nil {
				return Val(1)
			}
			return Err[int](errTest)
		})
		require.Equal(t, 1, d.Val())
	})
}

func TestGroup_OnceResultHandling(t *testing.T) {
	g := NewGroup[int](&GroupConfig{OnceResultHandling: true})

	d := g.GoRes(func(ctx context.Context) Result[int] {
		return Val(9)
	})

	first := d.Res()
	require.NoError(t, first.Err())
	require.Equal(t, 9, first.Val())

	second := d.Res()
	require.ErrorIs(t, second.Err(), ErrConsumed)
}

func TestGroup_Constructors(t *testing.T) {
	g := NewGroup[int]()

	t.Run("New", func(t *testing.T) {
		d := g.New(func(resolve func(val int), reject func(err error)) {
			resolve(1)
		})
		require.Equal(t, 1, d.Val())
	})

	t.Run("Resolve and Reject", func(t *testing.T) {
		require.Equal(t, 2, g.Resolve(2).Val())
		require.ErrorIs(t, g.Reject(errTest).Err(), errTest)
	})

	t.Run("Wrap", func(t *testing.T) {
		require.Equal(t, 3, g.Wrap(Val(3)).Val())
	})

	t.Run("Chan", func(t *testing.T) {
		resChan := make(chan Result[int], 1)
		resChan <- Val(4)
		require.Equal(t, 4, g.Chan(resChan).Val())
	})

	t.Run("Ctx", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.ErrorIs(t, g.Ctx(ctx).Err(), context.Canceled)
	})

	t.Run("Delay", func(t *testing.T) {
		require.Equal(t, 5, g.Delay(Val(5), time.Millisecond).Val())
	})

	g.Wait()
}
