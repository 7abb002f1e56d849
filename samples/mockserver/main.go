// Copyright (c) Microsoft. All rights reserved.

// Command mockserver runs a local fake of the Easybeam API so the chat
// sample can be used offline. Every prompt, agent, portal and workflow echoes
// the last user message back, streaming it word by word under one message id.
//
// Usage:
//
//	go run ./samples/mockserver                  # listens on :8080
//	go run ./samples/mockserver --port 9000 --delay 50ms
//
// Then point the chat sample at it:
//
//	EASYBEAM_BASE_URL=http://localhost:8080 EASYBEAM_TOKEN=dev go run ./samples/chat
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/easybeam-ai/easybeam-go/easybeam"
	"github.com/easybeam-ai/easybeam-go/internal/beamtest"
)

func main() {
	port := flag.String("port", "8080", "HTTP listen port")
	delay := flag.Duration("delay", 80*time.Millisecond, "pause between streamed words")
	flag.Parse()

	// Load .env file if present (ignored if missing).
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	h := beamtest.NewHandler()
	h.RequireToken(os.Getenv("MOCK_TOKEN"))
	h.ReviewScript(beamtest.Script{Body: `{}`})
	h.Respond(echo(*delay, logger))

	addr := fmt.Sprintf(":%s", *port)
	logger.Info("mock easybeam listening", "addr", addr)
	if err := http.ListenAndServe(addr, h); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// echo answers with the last user message, growing one word per event.
func echo(delay time.Duration, logger *slog.Logger) beamtest.Responder {
	return func(endpoint, id string, body beamtest.CallBody) beamtest.Script {
		logger.Info("call", "endpoint", endpoint, "id", id,
			"messages", len(body.Messages), "stream", body.Stream)

		text := "(nothing to echo)"
		for i := len(body.Messages) - 1; i >= 0; i-- {
			if body.Messages[i].Role == easybeam.RoleUser {
				text = body.Messages[i].Content
				break
			}
		}

		chatID := uuid.NewString()
		reply := easybeam.NewMessage(easybeam.RoleAssistant, "")
		reply.ProviderID = "mock"

		if !body.Stream {
			return beamtest.Script{Body: beamtest.Envelope(chatID, reply.WithContent(text), true)}
		}

		words := strings.Fields(text)
		events := make([]string, 0, len(words))
		for i := range words {
			partial := reply.WithContent(strings.Join(words[:i+1], " "))
			events = append(events, beamtest.Envelope(chatID, partial, i == len(words)-1))
		}
		return beamtest.Script{Events: events, Done: true, Delay: delay}
	}
}
