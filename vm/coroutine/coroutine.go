// Package coroutine provides asymmetric coroutines on top of iter.Pull.
//
// A coroutine runs its body on a separate goroutine, but control is handed
// back and forth explicitly: exactly one side runs at any time, so code
// inside the body may touch the same state as its resumer without
// locking.
package coroutine

import (
	"errors"
	"iter"
)

// errStopped unwinds a suspended body when its coroutine is stopped.
var errStopped = errors.New("coroutine stopped")

// step is what the body hands to its resumer: a yielded value, or the
// body's final result.
type step[O any] struct {
	val   O
	final bool
}

// Coroutine is a suspended computation that receives values of type I on
// every resume and produces values of type O on every yield.
type Coroutine[I, O any] struct {
	next func() (step[O], bool)
	stop func()

	in      I
	started bool
	done    bool
}

// Spawn creates a coroutine. The body does not start until the first
// Resume, whose value it receives as first. Each call to yield suspends
// the body, hands its argument to the pending Resume, and returns the
// value of the next Resume. The body's return value is the result of the
// last Resume.
func Spawn[I, O any](body func(first I, yield func(O) I) O) *Coroutine[I, O] {
	c := &Coroutine[I, O]{}
	seq := func(emit func(step[O]) bool) {
		defer func() {
			if r := recover(); r != nil && r != errStopped {
				panic(r)
			}
		}()
		yield := func(v O) I {
			if !emit(step[O]{val: v}) {
				panic(errStopped)
			}
			return c.in
		}
		out := body(c.in, yield)
		emit(step[O]{val: out, final: true})
	}
	c.next, c.stop = iter.Pull(iter.Seq[step[O]](seq))
	return c
}

// Resume runs the body until it yields or returns. done reports that the
// body returned; out is then its result and the coroutine is finished.
// Resuming a finished coroutine returns the zero value and done.
func (c *Coroutine[I, O]) Resume(in I) (out O, done bool) {
	if c.done {
		return out, true
	}
	c.in = in
	c.started = true
	s, ok := c.next()
	if !ok || s.final {
		c.done = true
		c.stop()
		return s.val, true
	}
	return s.val, false
}

// Started reports whether Resume has been called.
func (c *Coroutine[I, O]) Started() bool { return c.started }

// Done reports whether the body has returned or the coroutine was stopped.
func (c *Coroutine[I, O]) Done() bool { return c.done }

// Stop abandons a suspended body. Deferred calls in the body run as its
// stack unwinds. Stopping a finished coroutine does nothing.
func (c *Coroutine[I, O]) Stop() {
	if c.done {
		return
	}
	c.done = true
	c.stop()
}
