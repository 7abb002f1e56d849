// Copyright (c) Microsoft. All rights reserved.

// Command chat is a terminal chat against an Easybeam prompt, agent, portal
// or workflow.
//
// Usage:
//
//	export EASYBEAM_TOKEN=...
//	export EASYBEAM_ID=<prompt id>
//	export EASYBEAM_ENDPOINT=prompt     # optional: prompt|agent|portal|workflow
//	go run ./samples/chat
//
// Usage with an Entra ID protected deployment:
//
//	export EASYBEAM_BASE_URL=https://easybeam.example.com/v1
//	export EASYBEAM_TOKEN_SCOPE=api://easybeam/.default
//	go run ./samples/chat
//
// Type a message for a blocking call, "stream <message>" to stream the
// reply, "review <score> [text]" to rate the conversation, "quit" to exit.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/joho/godotenv"

	"github.com/easybeam-ai/easybeam-go/client"
	"github.com/easybeam-ai/easybeam-go/easybeam"
)

func main() {
	// Load .env file if present (ignored if missing).
	_ = godotenv.Load()
	cfg := loadConfig()

	// Enable debug logging if requested
	if cfg.Debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	endpoint := client.Endpoint(cfg.Endpoint)
	if !endpoint.Valid() {
		log.Fatalf("EASYBEAM_ENDPOINT %q is not one of prompt, agent, portal, workflow", cfg.Endpoint)
	}

	c := newClient(cfg)
	conv := easybeam.NewConversation()

	fmt.Printf("Chatting with %s %q (type 'quit' to exit, 'stream' prefix for streaming)\n\n", endpoint, cfg.ID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "quit" || input == "exit" {
			break
		}

		switch {
		case strings.HasPrefix(input, "review "):
			review(c, conv, cfg.UserID, strings.TrimPrefix(input, "review "))
		case strings.HasPrefix(input, "stream "):
			conv.Append(easybeam.NewUserMessage(strings.TrimPrefix(input, "stream ")))
			stream(c, conv, endpoint, cfg)
		default:
			conv.Append(easybeam.NewUserMessage(input))
			get(c, conv, endpoint, cfg)
		}
		fmt.Println()
	}
}

// newClient authenticates with EASYBEAM_TOKEN, or with Entra ID when only
// EASYBEAM_TOKEN_SCOPE is set.
func newClient(cfg config) *client.Client {
	opts := []client.Option{
		client.WithStreamIdleTimeout(cfg.IdleTimeout),
		client.WithMiddleware(client.LoggingMiddleware(slog.Default())),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, client.WithBaseURL(cfg.BaseURL))
	}

	if cfg.Token == "" {
		if cfg.TokenScope == "" {
			log.Fatal("Set EASYBEAM_TOKEN or EASYBEAM_TOKEN_SCOPE")
		}
		fmt.Println("Using Entra ID authentication (DefaultAzureCredential)")
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			log.Fatalf("Failed to create Azure credential: %v", err)
		}
		opts = append(opts, client.WithTokenCredential(cred, cfg.TokenScope))
	}
	return client.New(cfg.Token, opts...)
}

func request(conv *easybeam.Conversation, cfg config) easybeam.Request {
	return easybeam.Request{
		UserID:    cfg.UserID,
		Variables: cfg.Variables,
		Messages:  conv.Messages(),
	}
}

func get(c *client.Client, conv *easybeam.Conversation, endpoint client.Endpoint, cfg config) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	resp, err := c.Get(ctx, endpoint, cfg.ID, request(conv, cfg))
	if err != nil {
		log.Printf("Error: %v", err)
		return
	}
	conv.Apply(resp)
	fmt.Printf("Assistant: %s\n", resp.NewMessage.Content)
	printUsage(resp.NewMessage)
}

// stream prints each update as the suffix it adds to the message it
// replaces. Ctrl-C cancels the stream.
func stream(c *client.Client, conv *easybeam.Conversation, endpoint client.Endpoint, cfg config) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	printed := map[string]string{}
	var last easybeam.Message

	fmt.Print("Assistant: ")
	s := c.Stream(ctx, endpoint, cfg.ID, request(conv, cfg), easybeam.StreamHandler{
		OnResponse: func(r *easybeam.ResponseEnvelope) {
			conv.Apply(r)
			msg := r.NewMessage
			prev := printed[msg.ID]
			if strings.HasPrefix(msg.Content, prev) {
				fmt.Print(msg.Content[len(prev):])
			} else {
				fmt.Printf("\nAssistant: %s", msg.Content)
			}
			printed[msg.ID] = msg.Content
			last = msg
		},
		OnError: func(err error) {
			log.Printf("\nStream error: %v", err)
		},
		OnClose: func() {
			fmt.Println()
		},
	})

	<-s.Done()
	if s.Err() == nil && last.ID != "" {
		printUsage(last)
	}
}

func review(c *client.Client, conv *easybeam.Conversation, userID, args string) {
	chatID := conv.ChatID()
	if chatID == "" {
		fmt.Println("Nothing to review yet.")
		return
	}

	scoreArg, text, _ := strings.Cut(strings.TrimSpace(args), " ")
	score, err := strconv.Atoi(scoreArg)
	if err != nil {
		fmt.Println("Usage: review <score> [text]")
		return
	}

	err = c.Review(context.Background(), easybeam.Review{
		ChatID: chatID,
		UserID: userID,
		Score:  &score,
		Text:   strings.TrimSpace(text),
	})
	if err != nil {
		log.Printf("Error: %v", err)
		return
	}
	fmt.Printf("Review submitted for chat %s.\n", chatID)
}

func printUsage(m easybeam.Message) {
	if m.InputTokens == nil && m.OutputTokens == nil && m.Cost == nil {
		return
	}
	var parts []string
	if m.InputTokens != nil {
		parts = append(parts, fmt.Sprintf("%.0f in", *m.InputTokens))
	}
	if m.OutputTokens != nil {
		parts = append(parts, fmt.Sprintf("%.0f out", *m.OutputTokens))
	}
	if m.Cost != nil {
		parts = append(parts, fmt.Sprintf("$%.4f", *m.Cost))
	}
	fmt.Printf("  [%s]\n", strings.Join(parts, ", "))
}
