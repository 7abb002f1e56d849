// Copyright (c) Microsoft. All rights reserved.

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	"github.com/easybeam-ai/easybeam-go/easybeam"
)

const maxErrorBody = 64 * 1024

// transport is an unexported interface for HTTP communication.
// The default implementation uses net/http; tests inject a mock.
type transport interface {
	do(ctx context.Context, method, path string, body any, stream bool) (*http.Response, error)
}

// httpTransport is the default transport using net/http.
type httpTransport struct {
	client     *http.Client
	baseURL    string
	token      string
	headers    map[string]string
	credential azcore.TokenCredential
	scopes     []string
	logger     *slog.Logger
}

func newHTTPTransport(token string, cfg *clientConfig, logger *slog.Logger) *httpTransport {
	t := &httpTransport{
		client:     cfg.httpClient,
		baseURL:    strings.TrimRight(cfg.baseURL, "/"),
		token:      token,
		headers:    cfg.headers,
		credential: cfg.credential,
		scopes:     cfg.scopes,
		logger:     logger,
	}
	if t.client == nil {
		t.client = newDefaultHTTPClient()
	}
	return t
}

// newDefaultHTTPClient bounds connection setup but not the body, since
// streams stay open for as long as the server keeps writing.
func newDefaultHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   30 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}
}

func (t *httpTransport) do(ctx context.Context, method, path string, body any, stream bool) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal request: %v", easybeam.ErrConfig, err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", easybeam.ErrConfig, err)
	}

	req.Header.Set("Content-Type", "application/json")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Cache-Control", "no-cache")
	}

	token, err := t.bearer(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &easybeam.TransportError{Op: "connect", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, parseErrorResponse(resp)
	}

	return resp, nil
}

// bearer returns the static token, or a fresh one from the credential.
func (t *httpTransport) bearer(ctx context.Context) (string, error) {
	if t.credential == nil {
		return t.token, nil
	}
	t.logger.DebugContext(ctx, "acquiring token from credential", "scopes", t.scopes)
	tok, err := t.credential.GetToken(ctx, policy.TokenRequestOptions{Scopes: t.scopes})
	if err != nil {
		return "", &easybeam.TransportError{Op: "token", Err: err}
	}
	t.logger.DebugContext(ctx, "using credential token", "token_expires_on", tok.ExpiresOn)
	return tok.Token, nil
}

// parseErrorResponse reads an error response body and returns a typed error.
// The message is the server's error text when the body is a JSON error
// object, otherwise the raw body.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var apiErr struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	_ = json.Unmarshal(body, &apiErr)

	msg := apiErr.Message
	if len(apiErr.Error) > 0 {
		var s string
		var obj struct {
			Message string `json:"message"`
		}
		switch {
		case json.Unmarshal(apiErr.Error, &s) == nil && s != "":
			msg = s
		case json.Unmarshal(apiErr.Error, &obj) == nil && obj.Message != "":
			msg = obj.Message
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}

	return easybeam.StatusErrorFor(resp.StatusCode, resp.Status, msg)
}
