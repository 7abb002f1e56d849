// Copyright (c) Microsoft. All rights reserved.

package easybeam

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is.
var (
	// ErrEasybeam is the base error for every failure reported by this module.
	ErrEasybeam = errors.New("easybeam")

	// ErrConfig indicates a request could not be constructed. It is reported
	// before any network I/O takes place.
	ErrConfig = fmt.Errorf("%w: config", ErrEasybeam)

	// ErrTransport indicates a connection-level failure while opening or
	// reading a request or stream.
	ErrTransport = fmt.Errorf("%w: transport", ErrEasybeam)

	// ErrIdleTimeout indicates a stream produced no data for longer than the
	// configured idle timeout.
	ErrIdleTimeout = fmt.Errorf("%w: idle timeout", ErrTransport)

	// ErrUnexpectedContentType indicates a stream was accepted with a 2xx
	// status but the server did not answer with text/event-stream.
	ErrUnexpectedContentType = fmt.Errorf("%w: unexpected content type", ErrTransport)

	// ErrStatus is the base error for non-2xx responses.
	ErrStatus = fmt.Errorf("%w: status", ErrEasybeam)

	// ErrAuth indicates an authentication or authorization failure (401/403).
	ErrAuth = fmt.Errorf("%w: authentication", ErrStatus)

	// ErrInvalidRequest indicates the server rejected the request body (400).
	ErrInvalidRequest = fmt.Errorf("%w: invalid request", ErrStatus)

	// ErrNotFound indicates the addressed prompt, agent, portal or workflow
	// does not exist (404).
	ErrNotFound = fmt.Errorf("%w: not found", ErrStatus)

	// ErrRateLimited indicates the server throttled the request (429).
	ErrRateLimited = fmt.Errorf("%w: rate limited", ErrStatus)

	// ErrDecode indicates a payload did not match the expected shape.
	ErrDecode = fmt.Errorf("%w: decode", ErrEasybeam)

	// ErrEmptyResponse indicates a successful blocking response carried no body.
	ErrEmptyResponse = fmt.Errorf("%w: empty response body", ErrEasybeam)
)

// StatusError describes a non-2xx response. Use errors.As to extract it from
// a wrapped error chain.
type StatusError struct {
	StatusCode int
	Status     string
	Message    string
	Err        error
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("easybeam: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("easybeam: status %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	if e.Err == nil {
		return ErrStatus
	}
	return e.Err
}

// StatusErrorFor builds a StatusError whose Err is the sentinel matching code.
func StatusErrorFor(code int, status, message string) *StatusError {
	e := &StatusError{StatusCode: code, Status: status, Message: message}
	switch code {
	case 400:
		e.Err = ErrInvalidRequest
	case 401, 403:
		e.Err = ErrAuth
	case 404:
		e.Err = ErrNotFound
	case 429:
		e.Err = ErrRateLimited
	default:
		e.Err = ErrStatus
	}
	return e
}

// TransportError describes a connection-level failure. Op names the step
// that failed ("connect", "read", ...).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("easybeam: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is matches ErrTransport and ErrEasybeam regardless of the underlying cause.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport || target == ErrEasybeam
}

// DecodeError describes a payload that could not be decoded. Field is the
// dotted path of the offending member, empty when the payload as a whole is
// not valid JSON.
type DecodeError struct {
	Field  string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("easybeam: decode: %s", e.Reason)
	}
	return fmt.Sprintf("easybeam: decode %s: %s", e.Field, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode || target == ErrEasybeam
}

func decodeErr(field, reason string) *DecodeError {
	return &DecodeError{Field: field, Reason: reason}
}

// nested prefixes the field path of a DecodeError with parent.
func nested(parent string, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		field := parent
		if de.Field != "" {
			field = parent + "." + de.Field
		}
		return &DecodeError{Field: field, Reason: de.Reason, Err: de.Err}
	}
	return err
}
