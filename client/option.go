// Copyright (c) Microsoft. All rights reserved.

package client

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

const (
	defaultBaseURL     = "https://api.easybeam.ai/v1"
	defaultTimeout     = 30 * time.Second
	defaultIdleTimeout = 30 * time.Second
)

// clientConfig holds resolved configuration for a [Client].
type clientConfig struct {
	baseURL     string
	httpClient  *http.Client
	headers     map[string]string
	timeout     time.Duration
	idleTimeout time.Duration
	logger      *slog.Logger
	credential  azcore.TokenCredential
	scopes      []string
	middleware  []Middleware
}

func defaultConfig() *clientConfig {
	return &clientConfig{
		baseURL:     defaultBaseURL,
		timeout:     defaultTimeout,
		idleTimeout: defaultIdleTimeout,
	}
}

// Option configures a [Client].
type Option func(*clientConfig)

// WithBaseURL overrides the API base URL (e.g., for a staging deployment or
// a local mock server).
func WithBaseURL(url string) Option {
	return func(c *clientConfig) { c.baseURL = url }
}

// WithHTTPClient provides a custom http.Client for requests. The client must
// not set an overall Timeout if it is used for streaming.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = client }
}

// WithHeaders adds custom headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *clientConfig) { c.headers = headers }
}

// WithTimeout bounds blocking calls and reviews. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.timeout = d }
}

// WithStreamIdleTimeout bounds how long a stream may go without receiving
// any bytes before it fails with [easybeam.ErrIdleTimeout]. Zero disables it.
func WithStreamIdleTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.idleTimeout = d }
}

// WithLogger sets the logger used for request and stream lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) { c.logger = logger }
}

// WithTokenCredential obtains the bearer token from cred for every request
// instead of using the static token passed to [New].
func WithTokenCredential(cred azcore.TokenCredential, scopes ...string) Option {
	return func(c *clientConfig) {
		c.credential = cred
		c.scopes = scopes
	}
}

// WithMiddleware adds middleware to the blocking call pipeline.
// Middleware is applied in the order provided (first = outermost).
func WithMiddleware(mw ...Middleware) Option {
	return func(c *clientConfig) { c.middleware = append(c.middleware, mw...) }
}
