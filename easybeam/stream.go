// Copyright (c) Microsoft. All rights reserved.

package easybeam

import (
	"context"
	"sync"
	"sync/atomic"
)

// StreamState is a step in the lifecycle of a [Stream].
//
//	Initializing -> Open -> {ClosingNormal | ClosingError | Cancelled} -> Closed
//
// Initializing may also move straight to ClosingError or Cancelled.
type StreamState int32

const (
	StreamInitializing StreamState = iota
	StreamOpen
	StreamClosingNormal
	StreamClosingError
	StreamCancelled
	StreamClosed
)

func (s StreamState) String() string {
	switch s {
	case StreamInitializing:
		return "initializing"
	case StreamOpen:
		return "open"
	case StreamClosingNormal:
		return "closing"
	case StreamClosingError:
		return "closing-error"
	case StreamCancelled:
		return "cancelled"
	case StreamClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StreamHandler receives the output of a [Stream]. Nil functions are skipped.
//
// Callbacks run on the stream's own goroutine, never concurrently with each
// other and never after OnClose. Callers that touch their own state must
// synchronize or redispatch.
type StreamHandler struct {
	// OnResponse is called once per decoded envelope, in arrival order.
	OnResponse func(*ResponseEnvelope)

	// OnClose is called exactly once when the stream ends, however it ends.
	OnClose func()

	// OnError is called for undecodable events (the stream continues) and
	// once for the failure that terminates a stream.
	OnError func(error)
}

// Stream is the handle of one streaming call. It is returned before any
// event is read, so it can always be used to cancel.
//
// A Stream drives its connection from a dedicated goroutine; see
// [NewStream].
type Stream struct {
	handler StreamHandler
	state   atomic.Int32
	cancel  context.CancelFunc
	done    chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

// NewStream creates a Stream and starts run on a new goroutine. run owns the
// connection: it calls [Stream.Open] once connected and [Stream.Emit] for
// every envelope. Returning nil ends the stream normally; returning an error
// reports it through OnError unless the stream was cancelled.
func NewStream(ctx context.Context, h StreamHandler, run func(ctx context.Context, s *Stream) error) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		handler: h,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.state.Store(int32(StreamInitializing))

	go func() {
		err := run(ctx, s)
		s.finish(ctx, err)
	}()
	return s
}

// State returns the current lifecycle state.
func (s *Stream) State() StreamState {
	return StreamState(s.state.Load())
}

// Cancel tears down the connection. It is safe to call any number of times
// and from any goroutine, including from inside a callback. OnClose still
// fires exactly once.
func (s *Stream) Cancel() {
	s.transition(StreamCancelled)
	s.cancel()
}

// Done is closed after OnClose has returned.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the stream is closed or ctx is done, and returns the
// error that terminated the stream, if any.
func (s *Stream) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the error that terminated the stream. It is nil while the
// stream is running, after a normal close, and after cancellation.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Open moves the stream from Initializing to Open. It reports false when the
// stream was cancelled first.
func (s *Stream) Open() bool {
	return s.state.CompareAndSwap(int32(StreamInitializing), int32(StreamOpen))
}

// Emit hands env to OnResponse. Envelopes are dropped once the stream has
// left the Open state; the return value reports whether env was delivered.
func (s *Stream) Emit(env *ResponseEnvelope) bool {
	if s.State() != StreamOpen {
		return false
	}
	if s.handler.OnResponse != nil {
		s.handler.OnResponse(env)
	}
	return true
}

// Report hands a non-fatal error to OnError while the stream is active.
func (s *Stream) Report(err error) {
	if !s.active() {
		return
	}
	if s.handler.OnError != nil {
		s.handler.OnError(err)
	}
}

func (s *Stream) active() bool {
	st := s.State()
	return st == StreamInitializing || st == StreamOpen
}

// transition moves an active stream to next. It returns false when the
// stream had already left Initializing/Open.
func (s *Stream) transition(next StreamState) bool {
	for {
		cur := s.state.Load()
		if st := StreamState(cur); st != StreamInitializing && st != StreamOpen {
			return false
		}
		if s.state.CompareAndSwap(cur, int32(next)) {
			return true
		}
	}
}

func (s *Stream) finish(ctx context.Context, err error) {
	switch {
	case err == nil:
		s.transition(StreamClosingNormal)
	case ctx.Err() != nil:
		s.transition(StreamCancelled)
	default:
		if s.transition(StreamClosingError) {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			if s.handler.OnError != nil {
				s.handler.OnError(err)
			}
		}
	}
	s.cancel()

	s.closeOnce.Do(func() {
		if s.handler.OnClose != nil {
			s.handler.OnClose()
		}
		s.state.Store(int32(StreamClosed))
		close(s.done)
	})
}
