// Copyright (c) Microsoft. All rights reserved.

// Package easybeam provides the types shared by the Easybeam client: chat
// messages and their wire codec, response envelopes, the error taxonomy, the
// [Stream] lifecycle handle and a [Conversation] that reconciles streamed
// updates.
//
// # Quick Start
//
// Create a client from the client package and stream a prompt:
//
//	c := client.New(os.Getenv("EASYBEAM_TOKEN"))
//	conv := easybeam.NewConversation(easybeam.NewUserMessage("Hello!"))
//
//	stream := c.StreamPrompt(ctx, "prompt-id", easybeam.Request{
//	    Messages: conv.Messages(),
//	}, easybeam.StreamHandler{
//	    OnResponse: func(r *easybeam.ResponseEnvelope) { conv.Apply(r) },
//	    OnError:    func(err error) { log.Print(err) },
//	    OnClose:    func() { log.Print("done") },
//	})
//	defer stream.Cancel()
//
// # Streams
//
// A [Stream] moves through Initializing, Open, one of ClosingNormal,
// ClosingError or Cancelled, and finally Closed. OnClose fires exactly once
// on every path. Envelopes are delivered in arrival order; an envelope
// whose message id was already delivered is an update of that message.
//
// # Errors
//
// Every error matches [ErrEasybeam]. Use errors.Is with [ErrConfig],
// [ErrTransport], [ErrStatus] or [ErrDecode] to classify a failure, and
// errors.As with [StatusError], [TransportError] or [DecodeError] for
// details.
package easybeam
