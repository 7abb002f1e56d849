// Copyright (c) Microsoft. All rights reserved.

// Package sse splits a text/event-stream body into events.
package sse

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// DoneToken is the payload that marks the end of a stream.
const DoneToken = "[DONE]"

// ErrDone is returned by [Decoder.Next] when the stream sent [DoneToken].
var ErrDone = errors.New("sse: done")

const maxLineSize = 1024 * 1024

// Event is one dispatched server-sent event.
type Event struct {
	ID   string
	Type string
	Data string
}

// Decoder reads events from a text/event-stream body. Frames may be split
// across reads arbitrarily; the decoder buffers until a blank line completes
// an event. A Decoder is not safe for concurrent use.
type Decoder struct {
	scanner *bufio.Scanner
	done    bool
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Decoder{scanner: scanner}
}

// Next returns the next event carrying data. It returns ErrDone once the
// terminal token arrives and io.EOF when the input ends without it; both are
// sticky. An event still incomplete at end of input is discarded.
func (d *Decoder) Next() (Event, error) {
	if d.done {
		return Event{}, ErrDone
	}

	var (
		ev      Event
		data    strings.Builder
		hasData bool
	)
	for d.scanner.Scan() {
		line := d.scanner.Text()

		if line == "" {
			if !hasData {
				ev = Event{}
				continue
			}
			ev.Data = data.String()
			if strings.TrimSpace(ev.Data) == DoneToken {
				d.done = true
				return Event{}, ErrDone
			}
			return ev, nil
		}

		field, value := parseLine(line)
		switch field {
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "event":
			ev.Type = value
		case "id":
			ev.ID = value
		}
	}

	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

// parseLine splits "field: value". Comment lines (leading ':') yield an
// empty field; a line without a colon is a field with an empty value.
func parseLine(line string) (field, value string) {
	i := strings.IndexByte(line, ':')
	switch {
	case i == 0:
		return "", ""
	case i < 0:
		return line, ""
	}
	field, value = line[:i], line[i+1:]
	value = strings.TrimPrefix(value, " ")
	return field, value
}
