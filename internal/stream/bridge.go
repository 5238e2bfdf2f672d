// Package stream implements the bounded handoff between a generation goroutine
// and the request handler that drains it.
//
// A stream has one Writer (the producer) and one Reader (the consumer). The
// Writer pushes fragments in order and ends the stream exactly once with
// Close. The Reader drains fragments and may Abandon the stream at any time,
// which unblocks a producer waiting on a full backlog.
package stream

import (
	"context"
	"errors"
	"io"
	"sync"
)

// DefaultCapacity is the backlog size used when New is given a non-positive capacity.
const DefaultCapacity = 16

var (
	// ErrAbandoned is returned by Push once the reader has given up.
	ErrAbandoned = errors.New("stream: reader abandoned")
	// ErrClosed is returned by Push after Close.
	ErrClosed = errors.New("stream: push after close")
)

// Fragment is a piece of decoded text, in generation order.
type Fragment struct {
	Text string
}

type bridge struct {
	ch        chan Fragment
	abandoned chan struct{}

	abandonOnce sync.Once
	closeOnce   sync.Once
	// terminal is written once before ch is closed and read only after.
	terminal error
}

// Writer is the producer side. It must be used by a single goroutine.
type Writer struct {
	b      *bridge
	closed bool
}

// Reader is the consumer side.
type Reader struct {
	b *bridge
}

// New returns the two ends of a stream holding at most capacity undelivered fragments.
func New(capacity int) (*Writer, *Reader) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b := &bridge{
		ch:        make(chan Fragment, capacity),
		abandoned: make(chan struct{}),
	}
	return &Writer{b: b}, &Reader{b: b}
}

// Push hands f to the reader, blocking while the backlog is full.
func (w *Writer) Push(ctx context.Context, f Fragment) error {
	if w.closed {
		return ErrClosed
	}
	select {
	case <-w.b.abandoned:
		return ErrAbandoned
	default:
	}
	select {
	case w.b.ch <- f:
		return nil
	case <-w.b.abandoned:
		return ErrAbandoned
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the stream. A nil err is a normal end-of-stream, anything else is
// delivered to the reader as the terminal error. Only the first call has effect.
func (w *Writer) Close(err error) {
	w.b.closeOnce.Do(func() {
		if err == nil {
			err = io.EOF
		}
		w.b.terminal = err
		w.closed = true
		close(w.b.ch)
	})
}

// Done is closed when the reader abandons the stream.
func (w *Writer) Done() <-chan struct{} { return w.b.abandoned }

// Backlog reports the number of fragments pushed but not yet read.
func (w *Writer) Backlog() int { return len(w.b.ch) }

// Next returns the next fragment. At the end of the stream it returns io.EOF,
// or the error the writer closed with; every later call returns the same error.
func (r *Reader) Next(ctx context.Context) (Fragment, error) {
	select {
	case f, ok := <-r.b.ch:
		if !ok {
			return Fragment{}, r.b.terminal
		}
		return f, nil
	case <-ctx.Done():
		return Fragment{}, ctx.Err()
	}
}

// Abandon tells the writer no more fragments will be read. Safe to call more than once.
func (r *Reader) Abandon() {
	r.b.abandonOnce.Do(func() { close(r.b.abandoned) })
}
