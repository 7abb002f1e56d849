// Copyright (c) Microsoft. All rights reserved.

// Package client provides the Easybeam API client: blocking and streaming
// calls to prompts, agents, portals and workflows, and review submission.
//
// Create a client with [New]:
//
//	c := client.New(os.Getenv("EASYBEAM_TOKEN"))
//	resp, err := c.GetPrompt(ctx, "prompt-id", easybeam.Request{
//	    Messages: []easybeam.Message{easybeam.NewUserMessage("hi")},
//	})
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/easybeam-ai/easybeam-go/easybeam"
)

// Client talks to the Easybeam API. It holds no per-call state and is safe
// for concurrent use; every stream owns its own connection.
type Client struct {
	tp          transport
	logger      *slog.Logger
	timeout     timeoutPolicy
	idleTimeout timeoutPolicy
	handler     Handler
}

// New creates a [Client] authenticating with token.
//
//	c := client.New(os.Getenv("EASYBEAM_TOKEN"),
//	    client.WithStreamIdleTimeout(time.Minute),
//	)
func New(token string, opts ...Option) *Client {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		tp:          newHTTPTransport(token, cfg, logger),
		logger:      logger,
		timeout:     timeoutPolicy(cfg.timeout),
		idleTimeout: timeoutPolicy(cfg.idleTimeout),
	}
	c.handler = chainMiddleware(c.coreGet, cfg.middleware...)
	return c
}

// newWithTransport creates a Client with a custom transport (for testing).
func newWithTransport(tp transport, opts ...Option) *Client {
	c := New("", opts...)
	c.tp = tp
	return c
}

// Get performs one blocking call against endpoint and returns the decoded
// envelope. Cancelling ctx aborts the request.
func (c *Client) Get(ctx context.Context, endpoint Endpoint, id string, req easybeam.Request) (*easybeam.ResponseEnvelope, error) {
	return c.handler(ctx, &Call{Endpoint: endpoint, ID: id, Request: req})
}

// GetPrompt performs a blocking call to a prompt.
func (c *Client) GetPrompt(ctx context.Context, id string, req easybeam.Request) (*easybeam.ResponseEnvelope, error) {
	return c.Get(ctx, EndpointPrompt, id, req)
}

// GetAgent performs a blocking call to an agent.
func (c *Client) GetAgent(ctx context.Context, id string, req easybeam.Request) (*easybeam.ResponseEnvelope, error) {
	return c.Get(ctx, EndpointAgent, id, req)
}

// GetPortal performs a blocking call to a portal.
func (c *Client) GetPortal(ctx context.Context, id string, req easybeam.Request) (*easybeam.ResponseEnvelope, error) {
	return c.Get(ctx, EndpointPortal, id, req)
}

// GetWorkflow performs a blocking call to a workflow.
func (c *Client) GetWorkflow(ctx context.Context, id string, req easybeam.Request) (*easybeam.ResponseEnvelope, error) {
	return c.Get(ctx, EndpointWorkflow, id, req)
}

// coreGet is the base implementation called by the middleware chain.
func (c *Client) coreGet(ctx context.Context, call *Call) (*easybeam.ResponseEnvelope, error) {
	path, body, err := buildRequest(call.Endpoint, call.ID, call.Request, false)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.timeout.apply(ctx)
	defer cancel()

	resp, err := c.tp.do(ctx, http.MethodPost, path, body, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &easybeam.TransportError{Op: "read", Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, easybeam.ErrEmptyResponse
	}

	env, err := easybeam.DecodeResponse(data)
	if err != nil {
		return nil, err
	}

	// A response that raced cancellation is not delivered.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return env, nil
}

// Review submits a quality rating for a finished exchange.
func (c *Client) Review(ctx context.Context, r easybeam.Review) error {
	body, err := buildReview(r)
	if err != nil {
		return err
	}

	ctx, cancel := c.timeout.apply(ctx)
	defer cancel()

	resp, err := c.tp.do(ctx, http.MethodPost, "/review", body, false)
	if err != nil {
		return fmt.Errorf("submit review: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.DebugContext(ctx, "review submitted", "chat_id", r.ChatID)
	return nil
}
