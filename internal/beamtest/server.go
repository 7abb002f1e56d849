// Copyright (c) Microsoft. All rights reserved.

// Package beamtest provides an in-process fake of the Easybeam API for tests
// and local development.
package beamtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/easybeam-ai/easybeam-go/easybeam"
)

// Script describes how the fake answers one call.
type Script struct {
	// Status is the response status; zero means 200.
	Status int

	// ContentType overrides the response content type.
	ContentType string

	// Body is written as-is for blocking calls and error statuses.
	Body string

	// Events are streamed as "data:" payloads, one event each. Use
	// [Envelope] to produce well-formed ones.
	Events []string

	// Done appends the [DONE] sentinel after Events.
	Done bool

	// Hold, when set, delays the response until it is closed or the client
	// goes away.
	Hold <-chan struct{}

	// Delay is slept between events.
	Delay time.Duration
}

// RecordedRequest is a call received by the fake.
type RecordedRequest struct {
	Method   string
	Path     string
	Endpoint string
	ID       string
	Header   http.Header
	Body     []byte
}

// Decode decodes the recorded JSON body into v.
func (r RecordedRequest) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// CallBody is the decoded body of a prompt, agent, portal or workflow call.
type CallBody struct {
	Variables map[string]string  `json:"variables"`
	Messages  []easybeam.Message `json:"messages"`
	Stream    bool               `json:"stream"`
	UserID    string             `json:"userId,omitempty"`
}

// Responder chooses a script for a call. It is used when no script was
// registered for the endpoint and id.
type Responder func(endpoint, id string, body CallBody) Script

// Handler is the fake API as an http.Handler.
type Handler struct {
	router chi.Router

	mu        sync.Mutex
	scripts   map[string]Script
	review    Script
	responder Responder
	token     string
	requests  []RecordedRequest
}

// NewHandler returns a fake with no scripts. Unscripted calls get 404.
func NewHandler() *Handler {
	h := &Handler{scripts: map[string]Script{}}
	r := chi.NewRouter()
	r.Use(h.authenticate)
	r.Post("/review", h.handleReview)
	r.Post("/{endpoint}/{id}", h.handleCall)
	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Script registers the answer for endpoint/id.
func (h *Handler) Script(endpoint, id string, s Script) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scripts[endpoint+"/"+id] = s
}

// ReviewScript sets the answer for review submissions.
func (h *Handler) ReviewScript(s Script) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.review = s
}

// Respond installs a fallback for unscripted calls.
func (h *Handler) Respond(fn Responder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responder = fn
}

// RequireToken makes the fake answer 401 unless requests carry
// "Authorization: Bearer <token>". An empty token disables the check.
func (h *Handler) RequireToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
}

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		token := h.token
		h.mu.Unlock()
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"invalid token"}`)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Requests returns the calls received so far.
func (h *Handler) Requests() []RecordedRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := make([]RecordedRequest, len(h.requests))
	copy(cp, h.requests)
	return cp
}

func (h *Handler) record(r *http.Request, endpoint, id string) RecordedRequest {
	body, _ := io.ReadAll(r.Body)
	rec := RecordedRequest{
		Method:   r.Method,
		Path:     r.URL.Path,
		Endpoint: endpoint,
		ID:       id,
		Header:   r.Header.Clone(),
		Body:     body,
	}
	h.mu.Lock()
	h.requests = append(h.requests, rec)
	h.mu.Unlock()
	return rec
}

func (h *Handler) handleCall(w http.ResponseWriter, r *http.Request) {
	endpoint, id := chi.URLParam(r, "endpoint"), chi.URLParam(r, "id")
	rec := h.record(r, endpoint, id)

	h.mu.Lock()
	s, ok := h.scripts[endpoint+"/"+id]
	responder := h.responder
	h.mu.Unlock()

	if !ok {
		var body CallBody
		if responder == nil || json.Unmarshal(rec.Body, &body) != nil {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		s = responder(endpoint, id, body)
	}
	serve(w, r, s)
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	h.record(r, "review", "")
	h.mu.Lock()
	s := h.review
	h.mu.Unlock()
	serve(w, r, s)
}

func serve(w http.ResponseWriter, r *http.Request, s Script) {
	if s.Hold != nil {
		select {
		case <-s.Hold:
		case <-r.Context().Done():
			return
		}
	}

	status := s.Status
	if status == 0 {
		status = http.StatusOK
	}
	streaming := len(s.Events) > 0 || s.Done

	if status >= 300 || !streaming {
		ct := s.ContentType
		if ct == "" {
			ct = "application/json"
		}
		w.Header().Set("Content-Type", ct)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, s.Body)
		return
	}

	ct := s.ContentType
	if ct == "" {
		ct = "text/event-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	flusher, _ := w.(http.Flusher)

	events := s.Events
	if s.Done {
		events = append(events[:len(events):len(events)], "[DONE]")
	}
	for _, data := range events {
		if s.Delay > 0 {
			select {
			case <-time.After(s.Delay):
			case <-r.Context().Done():
				return
			}
		}
		if _, err := io.WriteString(w, Frame(data)); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// Frame renders data as one server-sent event.
func Frame(data string) string {
	var b strings.Builder
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	return b.String()
}

// Envelope encodes a response envelope as an event payload.
func Envelope(chatID string, msg easybeam.Message, finished bool) string {
	b, err := json.Marshal(easybeam.ResponseEnvelope{
		NewMessage:     msg,
		ChatID:         chatID,
		StreamFinished: finished,
	})
	if err != nil {
		panic(err)
	}
	return string(b)
}

// Server is the fake API listening on a local address.
type Server struct {
	*Handler
	*httptest.Server
}

// NewServer starts a fake API. Callers must Close it.
func NewServer() *Server {
	h := NewHandler()
	return &Server{Handler: h, Server: httptest.NewServer(h)}
}
