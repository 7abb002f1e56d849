// Copyright (c) Microsoft. All rights reserved.

package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/easybeam-ai/easybeam-go/easybeam"
)

// Call describes one blocking request as it travels through the middleware
// pipeline.
type Call struct {
	Endpoint Endpoint
	ID       string
	Request  easybeam.Request
}

// Handler performs a blocking call.
type Handler func(ctx context.Context, call *Call) (*easybeam.ResponseEnvelope, error)

// Middleware wraps a [Handler] to add cross-cutting behavior.
// Middleware should call next to continue the chain, or return early to short-circuit.
type Middleware func(next Handler) Handler

// chainMiddleware applies middleware in order (first in list = outermost wrapper).
func chainMiddleware(handler Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i](handler)
	}
	return handler
}

// LoggingMiddleware returns a [Middleware] that logs blocking calls using slog.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, call *Call) (*easybeam.ResponseEnvelope, error) {
			start := time.Now()
			logger.InfoContext(ctx, "easybeam call started",
				"endpoint", call.Endpoint,
				"id", call.ID,
				"message_count", len(call.Request.Messages),
			)

			resp, err := next(ctx, call)

			duration := time.Since(start)
			if err != nil {
				logger.ErrorContext(ctx, "easybeam call failed",
					"endpoint", call.Endpoint,
					"duration", duration,
					"error", err,
				)
				return nil, err
			}

			logger.InfoContext(ctx, "easybeam call completed",
				"endpoint", call.Endpoint,
				"duration", duration,
				"chat_id", resp.ChatID,
				"message_id", resp.NewMessage.ID,
			)
			return resp, nil
		}
	}
}
