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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAll(t *testing.T) {
	t.Run("input order regardless of settlement order", func(t *testing.T) {
		// the first input settles well after the second
		d1 := Delay(Val(1), 50*time.Millisecond)
		d2 := Resolve(2)
		d3 := Delay(Val(3), 10*time.Millisecond)

		res := All(d1, d2, d3).Res()
		require.Equal(t, Fulfilled, res.State())
		require.Equal(t, []int{1, 2, 3}, res.Val())
	})

	t.Run("first rejection in settlement order", func(t *testing.T) {
		errB := errors.New("error b")
		errC := errors.New("error c")

		d1 := Delay(Val(1), 120*time.Millisecond)
		d2 := Delay(Err[int](errB), 20*time.Millisecond)
		d3 := Delay(Err[int](errC), 70*time.Millisecond)

		start := time.Now()
		res := All(d1, d2, d3).Res()

		require.Equal(t, Rejected, res.State())
		require.Equal(t, errB, res.Err())

		// it must not have waited for the slowest input
		require.Less(t, time.Since(start), 120*time.Millisecond)

		// keep the remaining chains observed
		_ = d1.Err()
		_ = d3.Err()
	})

	t.Run("empty list fulfills with empty slice", func(t *testing.T) {
		res := All[int]().Res()
		require.Equal(t, Fulfilled, res.State())
		require.Empty(t, res.Val())
		require.NotNil(t, res.Val())
	})

	t.Run("single", func(t *testing.T) {
		require.Equal(t, []string{"a"}, All(Resolve("a")).Val())
	})
}

func TestRace(t *testing.T) {
	t.Run("first rejection wins", func(t *testing.T) {
		d1 := Delay(Err[int](errTest), 10*time.Millisecond)
		d2 := Delay(Val(2), 60*time.Millisecond)

		res := Race(d1, d2).Res()
		require.Equal(t, Rejected, res.State())
		require.ErrorIs(t, res.Err(), errTest)

		_ = d2.Val()
	})

	t.Run("first fulfillment wins", func(t *testing.T) {
		d1 := Delay(Val(1), 10*time.Millisecond)
		d2 := Delay(Err[int](errTest), 60*time.Millisecond)

		res := Race(d1, d2).Res()
		require.Equal(t, Fulfilled, res.State())
		require.Equal(t, 1, res.Val())

		_ = d2.Err()
	})

	t.Run("already settled input", func(t *testing.T) {
		d1 := Resolve(1)
		d2 := Delay(Val(2), 50*time.Millisecond)

		require.Equal(t, 1, Race(d1, d2).Val())
		_ = d2.Val()
	})

	t.Run("empty list never settles", func(t *testing.T) {
		d := Race[int]()
		select {
		case <-d.WaitChan():
			t.Fatal("settled unexpectedly")
		case <-time.After(30 * time.Millisecond):
		}
	})
}

func TestAny(t *testing.T) {
	t.Run("first fulfillment wins over earlier rejections", func(t *testing.T) {
		d1 := Delay(Err[int](errTest), 10*time.Millisecond)
		d2 := Delay(Val(2), 40*time.Millisecond)

		res := Any(d1, d2).Res()
		require.Equal(t, Fulfilled, res.State())
		require.Equal(t, 2, res.Val())
	})

	t.Run("all rejected", func(t *testing.T) {
		errA := errors.New("error a")
		errB := errors.New("error b")

		res := Any(Reject[int](errA), Reject[int](errB)).Res()
		require.Equal(t, Rejected, res.State())

		var merr *MultiIdxError
		require.ErrorAs(t, res.Err(), &merr)
		require.Len(t, merr.Errors(), 2)
		require.ErrorIs(t, res.Err(), errA)
		require.ErrorIs(t, res.Err(), errB)

		var ierr IdxError
		require.ErrorAs(t, res.Err(), &ierr)
	})

	t.Run("empty list fulfills", func(t *testing.T) {
		require.Equal(t, Fulfilled, Any[int]().Res().State())
	})
}

func TestJoin(t *testing.T) {
	t.Run("waits all and never rejects", func(t *testing.T) {
		d1 := Delay(Val(1), 30*time.Millisecond)
		d2 := Reject[int](errTest)
		d3 := Resolve(3)

		res := Join(d1, d2, d3).Res()
		require.Equal(t, Fulfilled, res.State())

		all := res.Val()
		require.Len(t, all, 3)

		byIdx := make(map[int]IdxRes[int], len(all))
		for _, ir := range all {
			byIdx[ir.Idx] = ir
		}
		require.Equal(t, 1, byIdx[0].Val())
		require.ErrorIs(t, byIdx[1].Err(), errTest)
		require.Equal(t, 3, byIdx[2].Val())
	})

	t.Run("empty list fulfills with empty slice", func(t *testing.T) {
		res := Join[int]().Res()
		require.Equal(t, Fulfilled, res.State())
		require.Empty(t, res.Val())
	})
}

func TestCombinators_WithSubscriptions(t *testing.T) {
	// combinator registrations and subscriptions share the same queue,
	// and must not starve each other.
	resChan := make(chan Result[int], 1)
	d := Chan(resChan)

	next := d.Then(func(ctx context.Context, val int) Result[int] {
		return Val(val * 10)
	})
	all := All(d, Resolve(2))

	resChan <- Val(1)

	require.Equal(t, 10, next.Val())
	require.Equal(t, []int{1, 2}, all.Val())
}
