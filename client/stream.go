// Copyright (c) Microsoft. All rights reserved.

package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/easybeam-ai/easybeam-go/easybeam"
	"github.com/easybeam-ai/easybeam-go/internal/sse"
)

// Stream starts a streaming call against endpoint and returns its handle
// immediately; the connection is opened on the stream's own goroutine.
//
// Every envelope is passed to h.OnResponse in arrival order. An event that
// cannot be decoded is reported to h.OnError and the stream keeps going.
// A failure to connect, a non-2xx status or a broken connection is reported
// to h.OnError once and ends the stream. h.OnClose fires exactly once.
//
// Cancelling ctx has the same effect as [easybeam.Stream.Cancel].
func (c *Client) Stream(ctx context.Context, endpoint Endpoint, id string, req easybeam.Request, h easybeam.StreamHandler) *easybeam.Stream {
	return easybeam.NewStream(ctx, h, func(ctx context.Context, s *easybeam.Stream) error {
		return c.runStream(ctx, s, endpoint, id, req)
	})
}

// StreamPrompt streams a prompt.
func (c *Client) StreamPrompt(ctx context.Context, id string, req easybeam.Request, h easybeam.StreamHandler) *easybeam.Stream {
	return c.Stream(ctx, EndpointPrompt, id, req, h)
}

// StreamAgent streams an agent.
func (c *Client) StreamAgent(ctx context.Context, id string, req easybeam.Request, h easybeam.StreamHandler) *easybeam.Stream {
	return c.Stream(ctx, EndpointAgent, id, req, h)
}

// StreamPortal streams a portal.
func (c *Client) StreamPortal(ctx context.Context, id string, req easybeam.Request, h easybeam.StreamHandler) *easybeam.Stream {
	return c.Stream(ctx, EndpointPortal, id, req, h)
}

// StreamWorkflow streams a workflow.
func (c *Client) StreamWorkflow(ctx context.Context, id string, req easybeam.Request, h easybeam.StreamHandler) *easybeam.Stream {
	return c.Stream(ctx, EndpointWorkflow, id, req, h)
}

// runStream drives one stream from request construction to end of input.
// A nil return means the server finished the stream.
func (c *Client) runStream(ctx context.Context, s *easybeam.Stream, endpoint Endpoint, id string, req easybeam.Request) (err error) {
	logger := c.logger.With("endpoint", endpoint, "id", id)

	path, body, err := buildRequest(endpoint, id, req, true)
	if err != nil {
		return err
	}

	connCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	wd := c.idleTimeout.watch(cancel)
	defer wd.stop()

	resp, err := c.tp.do(connCtx, http.MethodPost, path, body, true)
	if err != nil {
		return idleCause(connCtx, "connect", err)
	}
	defer resp.Body.Close()

	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "text/event-stream" {
		return fmt.Errorf("%w: %q", easybeam.ErrUnexpectedContentType, resp.Header.Get("Content-Type"))
	}

	if !s.Open() {
		return nil
	}
	logger.DebugContext(ctx, "stream opened", "status", resp.StatusCode)

	var delivered, rejected int
	defer func() {
		logger.DebugContext(ctx, "stream ended",
			"delivered", delivered,
			"rejected", rejected,
			"error", err,
		)
	}()

	dec := sse.NewDecoder(&idleReader{r: resp.Body, w: wd})
	for {
		ev, err := dec.Next()
		switch {
		case errors.Is(err, sse.ErrDone), errors.Is(err, io.EOF):
			return nil
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return idleCause(connCtx, "read", err)
		}

		env, err := easybeam.DecodeResponse([]byte(ev.Data))
		if err != nil {
			rejected++
			logger.WarnContext(ctx, "undecodable stream event", "error", err)
			s.Report(err)
			continue
		}
		if s.Emit(env) {
			delivered++
		}
	}
}

// idleCause turns a failure caused by the idle watchdog into ErrIdleTimeout
// and wraps everything else as a transport error for op.
func idleCause(ctx context.Context, op string, err error) error {
	if errors.Is(context.Cause(ctx), easybeam.ErrIdleTimeout) {
		return &easybeam.TransportError{Op: op, Err: easybeam.ErrIdleTimeout}
	}
	var te *easybeam.TransportError
	if errors.As(err, &te) {
		return err
	}
	var se *easybeam.StatusError
	if errors.As(err, &se) || errors.Is(err, easybeam.ErrConfig) {
		return err
	}
	return &easybeam.TransportError{Op: op, Err: err}
}
