package deferred

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConsumed will be returned when reading the result of a Deferred
	// that belongs to a Group with OnceResultHandling set, after the
	// result has already been handled once.
	ErrConsumed = errors.New("deferred: result already consumed")

	// ErrCircularChain will be returned when a callback resolves its
	// Deferred to the same Deferred, which could never settle otherwise.
	ErrCircularChain = errors.New("deferred: chained to itself")
)

// PanicError wraps a value recovered from a panic in a producer or a
// reaction callback. The Deferred whose callback panicked is rejected
// with a PanicError holding that value.
type PanicError struct {
	V any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("deferred: callback panicked: %v", e.V)
}

// UncaughtError wraps an error that happened in a Deferred chain, but
// hasn't been caught, by the end of that chain.
type UncaughtError struct {
	err error
}

func (e *UncaughtError) Error() string {
	return fmt.Sprintf("deferred: uncaught error in the chain: %s", e.err)
}

func (e *UncaughtError) Unwrap() error {
	return e.err
}

// IdxError is a positional error view, that represents the rejection of
// the Deferred at index Idx in the original list provided.
type IdxError struct {
	Idx int
	Err error
}

func (e IdxError) Error() string {
	return fmt.Sprintf("deferred: [%d] %s", e.Idx, e.Err)
}

func (e IdxError) Unwrap() error { return e.Err }

// MultiIdxError wraps the rejection errors of all the Deferred values
// passed to Any, when none of them fulfilled.
// The wrapped errors are IdxError values, in settlement order.
type MultiIdxError struct {
	errs []error
}

func (e *MultiIdxError) Error() string {
	b := strings.Builder{}
	for i, err := range e.errs {
		if i != 0 {
			b.WriteString("; ")
		}
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *MultiIdxError) Unwrap() []error { return e.errs }

func (e *MultiIdxError) Errors() []error { return e.errs }
