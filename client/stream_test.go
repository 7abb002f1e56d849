// Copyright (c) Microsoft. All rights reserved.

package client_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/easybeam-ai/easybeam-go/client"
	"github.com/easybeam-ai/easybeam-go/easybeam"
	"github.com/easybeam-ai/easybeam-go/internal/beamtest"
)

// streamRecorder collects callbacks from one stream.
type streamRecorder struct {
	mu        sync.Mutex
	responses []*easybeam.ResponseEnvelope
	errs      []error
	closes    int
}

func (r *streamRecorder) handler() easybeam.StreamHandler {
	return easybeam.StreamHandler{
		OnResponse: func(env *easybeam.ResponseEnvelope) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.responses = append(r.responses, env)
		},
		OnError: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		},
		OnClose: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.closes++
		},
	}
}

func (r *streamRecorder) snapshot() ([]*easybeam.ResponseEnvelope, []error, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*easybeam.ResponseEnvelope(nil), r.responses...), append([]error(nil), r.errs...), r.closes
}

func newFake(t *testing.T, opts ...client.Option) (*beamtest.Server, *client.Client) {
	t.Helper()
	srv := beamtest.NewServer()
	t.Cleanup(srv.Close)
	opts = append([]client.Option{
		client.WithBaseURL(srv.URL),
		client.WithHTTPClient(srv.Client()),
	}, opts...)
	return srv, client.New("test-token", opts...)
}

func waitStream(t *testing.T, s *easybeam.Stream) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		s.Cancel()
		t.Fatal("stream did not close")
	}
}

func assistant(id, content string) easybeam.Message {
	m := easybeam.NewMessage(easybeam.RoleAssistant, content)
	m.ID = id
	return m
}

func TestClient_Stream_Events(t *testing.T) {
	srv, c := newFake(t)
	srv.Script("prompt", "p-1", beamtest.Script{
		Events: []string{
			beamtest.Envelope("chat-1", assistant("m1", "Hel"), false),
			beamtest.Envelope("chat-1", assistant("m1", "Hello"), true),
		},
		Done: true,
	})

	rec := &streamRecorder{}
	s := c.StreamPrompt(context.Background(), "p-1", easybeam.Request{
		Messages: []easybeam.Message{easybeam.NewUserMessage("hi")},
	}, rec.handler())
	waitStream(t, s)

	responses, errs, closes := rec.snapshot()
	if len(responses) != 2 {
		t.Fatalf("got %d responses, want 2", len(responses))
	}
	if responses[0].NewMessage.Content != "Hel" || responses[1].NewMessage.Content != "Hello" {
		t.Errorf("contents = %q, %q", responses[0].NewMessage.Content, responses[1].NewMessage.Content)
	}
	if responses[0].NewMessage.ID != responses[1].NewMessage.ID {
		t.Error("updates should share the message id")
	}
	if responses[0].StreamFinished || !responses[1].StreamFinished {
		t.Error("streamFinished flags not preserved")
	}
	if len(errs) != 0 || closes != 1 {
		t.Errorf("errs=%v closes=%d", errs, closes)
	}
	if s.Err() != nil {
		t.Errorf("Err() = %v", s.Err())
	}
}

func TestClient_Stream_Request(t *testing.T) {
	srv, c := newFake(t)
	srv.Script("agent", "a-1", beamtest.Script{Done: true})

	s := c.StreamAgent(context.Background(), "a-1", easybeam.Request{
		UserID:    "u-1",
		Variables: map[string]string{"tone": "dry"},
	}, easybeam.StreamHandler{})
	waitStream(t, s)

	reqs := srv.Requests()
	if len(reqs) != 1 {
		t.Fatalf("got %d requests", len(reqs))
	}
	req := reqs[0]
	if req.Path != "/agent/a-1" {
		t.Errorf("path = %q", req.Path)
	}
	if got := req.Header.Get("Accept"); got != "text/event-stream" {
		t.Errorf("Accept = %q", got)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer test-token" {
		t.Errorf("Authorization = %q", got)
	}

	var body beamtest.CallBody
	if err := req.Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body.Stream || body.UserID != "u-1" || body.Variables["tone"] != "dry" {
		t.Errorf("body = %+v", body)
	}
	if body.Messages == nil {
		t.Error("messages should be an empty array, not null")
	}
}

func TestClient_Stream_DoneProducesNoResponse(t *testing.T) {
	srv, c := newFake(t)
	srv.Script("portal", "x", beamtest.Script{Done: true})

	rec := &streamRecorder{}
	waitStream(t, c.StreamPortal(context.Background(), "x", easybeam.Request{}, rec.handler()))

	responses, errs, closes := rec.snapshot()
	if len(responses) != 0 || len(errs) != 0 || closes != 1 {
		t.Errorf("responses=%d errs=%v closes=%d", len(responses), errs, closes)
	}
}

func TestClient_Stream_EOFWithoutDone(t *testing.T) {
	srv, c := newFake(t)
	srv.Script("workflow", "w", beamtest.Script{
		Events: []string{beamtest.Envelope("chat-1", assistant("m1", "only"), true)},
	})

	rec := &streamRecorder{}
	s := c.StreamWorkflow(context.Background(), "w", easybeam.Request{}, rec.handler())
	waitStream(t, s)

	responses, errs, closes := rec.snapshot()
	if len(responses) != 1 || len(errs) != 0 || closes != 1 {
		t.Errorf("responses=%d errs=%v closes=%d", len(responses), errs, closes)
	}
	if s.Err() != nil {
		t.Errorf("Err() = %v", s.Err())
	}
}

func TestClient_Stream_MalformedEventIsNonFatal(t *testing.T) {
	srv, c := newFake(t)
	srv.Script("prompt", "p", beamtest.Script{
		Events: []string{
			`{"newMessage":`,
			`{"chatId":"chat-1"}`,
			beamtest.Envelope("chat-1", assistant("m1", "fine"), true),
		},
		Done: true,
	})

	rec := &streamRecorder{}
	s := c.StreamPrompt(context.Background(), "p", easybeam.Request{}, rec.handler())
	waitStream(t, s)

	responses, errs, closes := rec.snapshot()
	if len(responses) != 1 || responses[0].NewMessage.Content != "fine" {
		t.Errorf("responses = %d", len(responses))
	}
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2", len(errs))
	}
	for _, err := range errs {
		if !errors.Is(err, easybeam.ErrDecode) {
			t.Errorf("err = %v, want decode error", err)
		}
	}
	if closes != 1 || s.Err() != nil {
		t.Errorf("closes=%d Err()=%v", closes, s.Err())
	}
}

func TestClient_Stream_StatusError(t *testing.T) {
	srv, c := newFake(t)
	srv.RequireToken("another-token")

	rec := &streamRecorder{}
	s := c.StreamPrompt(context.Background(), "p", easybeam.Request{}, rec.handler())
	waitStream(t, s)

	responses, errs, closes := rec.snapshot()
	if len(responses) != 0 || len(errs) != 1 || closes != 1 {
		t.Fatalf("responses=%d errs=%v closes=%d", len(responses), errs, closes)
	}
	var se *easybeam.StatusError
	if !errors.As(errs[0], &se) || se.StatusCode != 401 {
		t.Errorf("err = %v, want StatusError 401", errs[0])
	}
	if !errors.Is(s.Err(), easybeam.ErrAuth) {
		t.Errorf("Err() = %v", s.Err())
	}
}

func TestClient_Stream_NotFound(t *testing.T) {
	_, c := newFake(t)

	s := c.StreamPrompt(context.Background(), "unscripted", easybeam.Request{}, easybeam.StreamHandler{})
	waitStream(t, s)
	if !errors.Is(s.Err(), easybeam.ErrNotFound) {
		t.Errorf("Err() = %v", s.Err())
	}
}

func TestClient_Stream_UnexpectedContentType(t *testing.T) {
	srv, c := newFake(t)
	srv.Script("prompt", "p", beamtest.Script{
		ContentType: "application/json",
		Events:      []string{beamtest.Envelope("c", assistant("m1", "x"), true)},
	})

	rec := &streamRecorder{}
	s := c.StreamPrompt(context.Background(), "p", easybeam.Request{}, rec.handler())
	waitStream(t, s)

	responses, errs, closes := rec.snapshot()
	if len(responses) != 0 || len(errs) != 1 || closes != 1 {
		t.Errorf("responses=%d errs=%v closes=%d", len(responses), errs, closes)
	}
	if !errors.Is(s.Err(), easybeam.ErrUnexpectedContentType) {
		t.Errorf("Err() = %v", s.Err())
	}
}

func TestClient_Stream_InvalidCallNeverOpens(t *testing.T) {
	srv, c := newFake(t)

	rec := &streamRecorder{}
	s := c.StreamPrompt(context.Background(), "", easybeam.Request{}, rec.handler())
	waitStream(t, s)

	_, errs, closes := rec.snapshot()
	if len(errs) != 1 || !errors.Is(errs[0], easybeam.ErrConfig) || closes != 1 {
		t.Errorf("errs=%v closes=%d", errs, closes)
	}
	if len(srv.Requests()) != 0 {
		t.Error("invalid call reached the server")
	}
}

func TestClient_Stream_CancelBeforeEvents(t *testing.T) {
	srv, c := newFake(t)
	hold := make(chan struct{})
	defer close(hold)
	srv.Script("prompt", "p", beamtest.Script{
		Hold:   hold,
		Events: []string{beamtest.Envelope("c", assistant("m1", "late"), true)},
		Done:   true,
	})

	rec := &streamRecorder{}
	s := c.StreamPrompt(context.Background(), "p", easybeam.Request{}, rec.handler())
	s.Cancel()
	s.Cancel()
	waitStream(t, s)
	s.Cancel()

	responses, errs, closes := rec.snapshot()
	if len(responses) != 0 || len(errs) != 0 || closes != 1 {
		t.Errorf("responses=%d errs=%v closes=%d", len(responses), errs, closes)
	}
	if s.State() != easybeam.StreamClosed || s.Err() != nil {
		t.Errorf("state=%v Err()=%v", s.State(), s.Err())
	}
}

func TestClient_Stream_CancelMidStream(t *testing.T) {
	srv, c := newFake(t)
	srv.Script("prompt", "p", beamtest.Script{
		Events: []string{
			beamtest.Envelope("c", assistant("m1", "a"), false),
			beamtest.Envelope("c", assistant("m1", "ab"), false),
			beamtest.Envelope("c", assistant("m1", "abc"), true),
		},
		Delay: 50 * time.Millisecond,
		Done:  true,
	})

	rec := &streamRecorder{}
	var s *easybeam.Stream
	first := make(chan struct{})
	h := rec.handler()
	onResponse := h.OnResponse
	h.OnResponse = func(env *easybeam.ResponseEnvelope) {
		onResponse(env)
		if env.NewMessage.Content == "a" {
			close(first)
		}
	}
	s = c.StreamPrompt(context.Background(), "p", easybeam.Request{}, h)
	<-first
	s.Cancel()
	waitStream(t, s)

	responses, errs, closes := rec.snapshot()
	if len(responses) != 1 || len(errs) != 0 || closes != 1 {
		t.Errorf("responses=%d errs=%v closes=%d", len(responses), errs, closes)
	}
}

func TestClient_Stream_ParentContextCancel(t *testing.T) {
	srv, c := newFake(t)
	hold := make(chan struct{})
	defer close(hold)
	srv.Script("prompt", "p", beamtest.Script{Hold: hold, Done: true})

	ctx, cancel := context.WithCancel(context.Background())
	rec := &streamRecorder{}
	s := c.StreamPrompt(ctx, "p", easybeam.Request{}, rec.handler())
	cancel()
	waitStream(t, s)

	if _, errs, closes := rec.snapshot(); len(errs) != 0 || closes != 1 {
		t.Errorf("errs=%v closes=%d", errs, closes)
	}
}

func TestClient_Stream_IdleTimeout(t *testing.T) {
	srv, c := newFake(t, client.WithStreamIdleTimeout(50*time.Millisecond))
	hold := make(chan struct{})
	defer close(hold)
	srv.Script("prompt", "p", beamtest.Script{Hold: hold, Done: true})

	rec := &streamRecorder{}
	s := c.StreamPrompt(context.Background(), "p", easybeam.Request{}, rec.handler())
	waitStream(t, s)

	_, errs, closes := rec.snapshot()
	if len(errs) != 1 || closes != 1 {
		t.Fatalf("errs=%v closes=%d", errs, closes)
	}
	if !errors.Is(errs[0], easybeam.ErrIdleTimeout) || !errors.Is(errs[0], easybeam.ErrTransport) {
		t.Errorf("err = %v, want idle timeout", errs[0])
	}
}

func TestClient_Stream_IdleTimeoutBetweenEvents(t *testing.T) {
	srv, c := newFake(t, client.WithStreamIdleTimeout(50*time.Millisecond))
	srv.Script("prompt", "p", beamtest.Script{
		Events: []string{
			beamtest.Envelope("c", assistant("m1", "a"), false),
			beamtest.Envelope("c", assistant("m1", "ab"), true),
		},
		Delay: 20 * time.Millisecond,
		Done:  true,
	})

	rec := &streamRecorder{}
	s := c.StreamPrompt(context.Background(), "p", easybeam.Request{}, rec.handler())
	waitStream(t, s)

	responses, errs, _ := rec.snapshot()
	if len(responses) != 2 || len(errs) != 0 {
		t.Errorf("responses=%d errs=%v", len(responses), errs)
	}
}

func TestClient_Stream_ConcurrentStreamsAreIndependent(t *testing.T) {
	srv, c := newFake(t)
	hold := make(chan struct{})
	defer close(hold)
	srv.Script("prompt", "slow", beamtest.Script{Hold: hold, Done: true})
	srv.Script("prompt", "fast", beamtest.Script{
		Events: []string{beamtest.Envelope("c2", assistant("m2", "fast"), true)},
		Done:   true,
	})

	slowRec, fastRec := &streamRecorder{}, &streamRecorder{}
	slow := c.StreamPrompt(context.Background(), "slow", easybeam.Request{}, slowRec.handler())
	fast := c.StreamPrompt(context.Background(), "fast", easybeam.Request{}, fastRec.handler())

	waitStream(t, fast)
	if responses, _, closes := fastRec.snapshot(); len(responses) != 1 || closes != 1 {
		t.Errorf("fast: responses=%d closes=%d", len(responses), closes)
	}
	if slow.State() == easybeam.StreamClosed {
		t.Error("slow stream closed with the fast one")
	}

	slow.Cancel()
	waitStream(t, slow)
	if responses, errs, closes := slowRec.snapshot(); len(responses) != 0 || len(errs) != 0 || closes != 1 {
		t.Errorf("slow: responses=%d errs=%v closes=%d", len(responses), errs, closes)
	}
}

func TestClient_Stream_ConversationReconciles(t *testing.T) {
	srv, c := newFake(t)
	srv.Script("prompt", "p", beamtest.Script{
		Events: []string{
			beamtest.Envelope("chat-9", assistant("m1", "Hi"), false),
			beamtest.Envelope("chat-9", assistant("m1", "Hi there"), true),
		},
		Done: true,
	})

	conv := easybeam.NewConversation(easybeam.NewUserMessage("hello"))
	s := c.StreamPrompt(context.Background(), "p", easybeam.Request{Messages: conv.Messages()}, easybeam.StreamHandler{
		OnResponse: func(env *easybeam.ResponseEnvelope) { conv.Apply(env) },
	})
	waitStream(t, s)

	if conv.Len() != 2 {
		t.Fatalf("len = %d, want 2", conv.Len())
	}
	if last, _ := conv.Last(); last.Content != "Hi there" {
		t.Errorf("last = %q", last.Content)
	}
	if conv.ChatID() != "chat-9" {
		t.Errorf("ChatID() = %q", conv.ChatID())
	}
}
