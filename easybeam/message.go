// Copyright (c) Microsoft. All rights reserved.

package easybeam

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a [Message].
type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"

	// RoleUnknown is what any role string the client does not recognize
	// decodes to, so new server roles never break decoding.
	RoleUnknown Role = "UNKNOWN"
)

// Known reports whether r is one of the roles the client understands.
func (r Role) Known() bool {
	return r == RoleUser || r == RoleAssistant
}

// ParseRole maps a wire role to a Role. Matching is case-insensitive and the
// legacy "AI" value is treated as RoleAssistant.
func ParseRole(s string) Role {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "USER":
		return RoleUser
	case "ASSISTANT", "AI":
		return RoleAssistant
	default:
		return RoleUnknown
	}
}

// TimeFormat is the wire format of Message.CreatedAt.
const TimeFormat = time.RFC3339Nano

// Message is one turn of a conversation. ID is stable across every update to
// the same logical turn, which is what callers reconcile on.
//
// Message is a value type; methods that change it return a copy.
type Message struct {
	ID         string
	Role       Role
	Content    string
	CreatedAt  time.Time
	ProviderID string

	// Optional usage figures. Nil means the server did not report them.
	InputTokens  *float64
	OutputTokens *float64
	Cost         *float64
}

// NewUserMessage creates a user turn with a fresh id and the current time.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewMessage creates a turn with a fresh id and the current time.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC().Round(0),
	}
}

// WithContent returns a copy of m carrying content.
func (m Message) WithContent(content string) Message {
	m.Content = content
	return m
}

type messageJSON struct {
	ID           string   `json:"id"`
	Role         Role     `json:"role"`
	Content      string   `json:"content"`
	CreatedAt    string   `json:"createdAt"`
	ProviderID   string   `json:"providerId,omitempty"`
	InputTokens  *float64 `json:"inputTokens,omitempty"`
	OutputTokens *float64 `json:"outputTokens,omitempty"`
	Cost         *float64 `json:"cost,omitempty"`
}

// MarshalJSON encodes m in the wire shape used by the Easybeam API.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(messageJSON{
		ID:           m.ID,
		Role:         m.Role,
		Content:      m.Content,
		CreatedAt:    m.CreatedAt.UTC().Format(TimeFormat),
		ProviderID:   m.ProviderID,
		InputTokens:  m.InputTokens,
		OutputTokens: m.OutputTokens,
		Cost:         m.Cost,
	})
}

// UnmarshalJSON decodes the wire shape. It returns a *DecodeError when id,
// role, content or createdAt is missing or malformed.
func (m *Message) UnmarshalJSON(data []byte) error {
	obj, err := decodeObject(data)
	if err != nil {
		return err
	}

	var out Message
	if out.ID, err = requiredString(obj, "id"); err != nil {
		return err
	}
	if out.Content, err = requiredString(obj, "content"); err != nil {
		return err
	}
	role, err := requiredString(obj, "role")
	if err != nil {
		return err
	}
	out.Role = ParseRole(role)

	created, err := requiredString(obj, "createdAt")
	if err != nil {
		return err
	}
	t, err := time.Parse(TimeFormat, created)
	if err != nil {
		return decodeErr("createdAt", "not an RFC 3339 instant: "+strconv.Quote(created))
	}
	out.CreatedAt = t.UTC()

	out.ProviderID = optionalString(obj, "providerId")
	out.InputTokens = optionalNumber(obj, "inputTokens")
	out.OutputTokens = optionalNumber(obj, "outputTokens")
	out.Cost = optionalNumber(obj, "cost")

	*m = out
	return nil
}

// EncodeMessage returns the wire encoding of m.
func EncodeMessage(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage decodes a single wire message.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := m.UnmarshalJSON(data); err != nil {
		return Message{}, err
	}
	return m, nil
}

func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, &DecodeError{Reason: "invalid JSON object", Err: err}
	}
	if obj == nil {
		return nil, decodeErr("", "expected a JSON object, got null")
	}
	return obj, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func requiredString(obj map[string]json.RawMessage, key string) (string, error) {
	raw, ok := obj[key]
	if !ok || isNull(raw) {
		return "", decodeErr(key, "missing")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", decodeErr(key, "expected a string")
	}
	return s, nil
}

func optionalString(obj map[string]json.RawMessage, key string) string {
	var s string
	if raw, ok := obj[key]; ok && !isNull(raw) {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

// optionalNumber accepts JSON numbers and numeric strings. Anything else,
// including NaN and infinities, is treated as absent.
func optionalNumber(obj map[string]json.RawMessage, key string) *float64 {
	raw, ok := obj[key]
	if !ok || isNull(raw) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return nil
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return nil
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
