// Copyright (c) Microsoft. All rights reserved.

package easybeam

// Request carries the inputs shared by blocking and streaming calls.
type Request struct {
	// UserID optionally attributes the exchange to an end user.
	UserID string

	// Variables fills the template variables of the remote prompt.
	Variables map[string]string

	// Messages is the conversation so far, oldest first.
	Messages []Message
}

// Review is a quality rating for a completed exchange.
type Review struct {
	ChatID string
	UserID string
	Score  *int
	Text   string
}
