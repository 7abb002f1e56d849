// Copyright (c) Microsoft. All rights reserved.

package easybeam

import "sync"

// Conversation is a caller-held, ordered list of messages that applies
// streamed envelopes by message id: an envelope whose id is already present
// replaces that message, any other envelope is appended.
//
// It is safe for concurrent use, so it can be updated directly from
// [StreamHandler] callbacks.
type Conversation struct {
	mu       sync.Mutex
	chatID   string
	messages []Message
}

// NewConversation creates a conversation seeded with msgs.
func NewConversation(msgs ...Message) *Conversation {
	c := &Conversation{}
	c.messages = append(c.messages, msgs...)
	return c
}

// Append adds m at the end, regardless of its id.
func (c *Conversation) Append(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, m)
}

// Apply reconciles env into the conversation and records its chat id. It
// returns the index of the affected message and whether it was replaced.
func (c *Conversation) Apply(env *ResponseEnvelope) (index int, replaced bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if env.ChatID != "" {
		c.chatID = env.ChatID
	}
	for i := range c.messages {
		if c.messages[i].ID == env.NewMessage.ID {
			c.messages[i] = env.NewMessage
			return i, true
		}
	}
	c.messages = append(c.messages, env.NewMessage)
	return len(c.messages) - 1, false
}

// ChatID returns the server-assigned chat id, or empty before the first
// applied envelope.
func (c *Conversation) ChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatID
}

// Messages returns a copy of the messages in order.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]Message, len(c.messages))
	copy(cp, c.messages)
	return cp
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Last returns the newest message, if any.
func (c *Conversation) Last() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}
