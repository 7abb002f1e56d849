// Copyright (c) Microsoft. All rights reserved.

package client

import (
	"context"
	"io"
	"time"

	"github.com/easybeam-ai/easybeam-go/easybeam"
)

// timeoutPolicy is a duration where zero means unbounded.
type timeoutPolicy time.Duration

func (d timeoutPolicy) apply(ctx context.Context) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(d))
}

// watchdog cancels a context with [easybeam.ErrIdleTimeout] once it has not
// been kicked for the policy's duration.
type watchdog struct {
	timer *time.Timer
	d     time.Duration
}

func (d timeoutPolicy) watch(cancel context.CancelCauseFunc) *watchdog {
	if d <= 0 {
		return &watchdog{}
	}
	w := &watchdog{d: time.Duration(d)}
	w.timer = time.AfterFunc(w.d, func() { cancel(easybeam.ErrIdleTimeout) })
	return w
}

func (w *watchdog) kick() {
	if w.timer != nil {
		w.timer.Reset(w.d)
	}
}

func (w *watchdog) stop() {
	if w.timer != nil {
		w.timer.Stop()
	}
}

// idleReader kicks the watchdog whenever bytes arrive.
type idleReader struct {
	r io.Reader
	w *watchdog
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.w.kick()
	}
	return n, err
}
