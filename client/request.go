// Copyright (c) Microsoft. All rights reserved.

package client

import (
	"fmt"
	"net/url"

	"github.com/easybeam-ai/easybeam-go/easybeam"
)

// Endpoint is a family of remotely hosted executables.
type Endpoint string

const (
	EndpointPrompt   Endpoint = "prompt"
	EndpointAgent    Endpoint = "agent"
	EndpointPortal   Endpoint = "portal"
	EndpointWorkflow Endpoint = "workflow"
)

// Valid reports whether e is one of the known endpoint families.
func (e Endpoint) Valid() bool {
	switch e {
	case EndpointPrompt, EndpointAgent, EndpointPortal, EndpointWorkflow:
		return true
	}
	return false
}

// requestBody is the JSON body shared by blocking and streaming calls.
type requestBody struct {
	Variables map[string]string  `json:"variables"`
	Messages  []easybeam.Message `json:"messages"`
	Stream    bool               `json:"stream"`
	UserID    string             `json:"userId,omitempty"`
}

// reviewBody is the JSON body of a review submission.
type reviewBody struct {
	ChatID      string `json:"chatId"`
	UserID      string `json:"userId,omitempty"`
	ReviewScore *int   `json:"reviewScore,omitempty"`
	ReviewText  string `json:"reviewText,omitempty"`
}

// buildRequest validates the call and returns its path and body. Variables
// and messages are always encoded as an object and an array, never null.
func buildRequest(endpoint Endpoint, id string, req easybeam.Request, stream bool) (string, *requestBody, error) {
	if !endpoint.Valid() {
		return "", nil, fmt.Errorf("%w: unknown endpoint %q", easybeam.ErrConfig, endpoint)
	}
	if id == "" {
		return "", nil, fmt.Errorf("%w: empty %s id", easybeam.ErrConfig, endpoint)
	}

	vars := req.Variables
	if vars == nil {
		vars = map[string]string{}
	}
	msgs := req.Messages
	if msgs == nil {
		msgs = []easybeam.Message{}
	}

	path := "/" + string(endpoint) + "/" + url.PathEscape(id)
	return path, &requestBody{
		Variables: vars,
		Messages:  msgs,
		Stream:    stream,
		UserID:    req.UserID,
	}, nil
}

func buildReview(r easybeam.Review) (*reviewBody, error) {
	if r.ChatID == "" {
		return nil, fmt.Errorf("%w: review needs a chat id", easybeam.ErrConfig)
	}
	return &reviewBody{
		ChatID:      r.ChatID,
		UserID:      r.UserID,
		ReviewScore: r.Score,
		ReviewText:  r.Text,
	}, nil
}
