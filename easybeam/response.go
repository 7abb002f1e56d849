// Copyright (c) Microsoft. All rights reserved.

package easybeam

import "encoding/json"

// ResponseEnvelope is one unit of server output: the newest state of a
// message plus the session it belongs to. Envelopes are produced by decoding;
// callers do not build them.
type ResponseEnvelope struct {
	NewMessage Message

	// ChatID identifies the conversation. It is assigned by the server on
	// the first response and stays the same afterwards.
	ChatID string

	// StreamFinished is true only on the last envelope of a stream.
	StreamFinished bool
}

type responseJSON struct {
	NewMessage     Message `json:"newMessage"`
	ChatID         string  `json:"chatId"`
	StreamFinished bool    `json:"streamFinished"`
}

// MarshalJSON encodes r in the server's wire shape.
func (r ResponseEnvelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(responseJSON(r))
}

// UnmarshalJSON decodes the wire shape. newMessage and chatId are required;
// a missing or non-boolean streamFinished decodes to false.
func (r *ResponseEnvelope) UnmarshalJSON(data []byte) error {
	obj, err := decodeObject(data)
	if err != nil {
		return err
	}

	raw, ok := obj["newMessage"]
	if !ok || isNull(raw) {
		return decodeErr("newMessage", "missing")
	}
	var msg Message
	if err := msg.UnmarshalJSON(raw); err != nil {
		return nested("newMessage", err)
	}

	chatID, err := requiredString(obj, "chatId")
	if err != nil {
		return err
	}

	var finished bool
	if raw, ok := obj["streamFinished"]; ok {
		_ = json.Unmarshal(raw, &finished)
	}

	*r = ResponseEnvelope{NewMessage: msg, ChatID: chatID, StreamFinished: finished}
	return nil
}

// DecodeResponse decodes one envelope from data.
func DecodeResponse(data []byte) (*ResponseEnvelope, error) {
	var r ResponseEnvelope
	if err := r.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return &r, nil
}
