// Package sse implements the upstream agent event-stream wire format: blocks
// of "event: "/"data: " lines delimited by a blank line, with JSON payloads.
// One block-buffering state machine serves both the buffered mode (a complete
// body parsed in one pass) and the incremental mode (bytes arriving in
// arbitrary chunks).
//
// All callbacks fire synchronously on the goroutine reading the stream; a
// callback that blocks stalls stream consumption.
package sse

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
)

const (
	eventPrefix = "event: "
	dataPrefix  = "data: "
)

// Event is one decoded stream event. Data holds the decoded JSON payload.
type Event struct {
	Type string
	Data any
}

// Parser accumulates chunks until complete blank-line-delimited blocks are
// available. A trailing partial block at stream end is discarded, never
// parsed as a partial event.
type Parser struct {
	buf       []byte
	pendingCR bool
}

// Feed appends one chunk and returns every event completed by it. Line
// endings are normalized across chunk boundaries before block detection.
func (p *Parser) Feed(chunk []byte) []Event {
	if len(chunk) == 0 {
		return nil
	}

	// a \r\n pair split across chunks must not become two newlines
	if p.pendingCR && chunk[0] == '\n' {
		chunk = chunk[1:]
	}
	p.pendingCR = len(chunk) > 0 && chunk[len(chunk)-1] == '\r'

	normalized := bytes.ReplaceAll(chunk, []byte("\r\n"), []byte("\n"))
	normalized = bytes.ReplaceAll(normalized, []byte("\r"), []byte("\n"))
	p.buf = append(p.buf, normalized...)

	var events []Event
	for {
		idx := bytes.Index(p.buf, []byte("\n\n"))
		if idx < 0 {
			break
		}
		block := p.buf[:idx]
		p.buf = p.buf[idx+2:]
		if ev, ok := parseBlock(string(block)); ok {
			events = append(events, ev)
		}
	}
	return events
}

// ParseBody parses a complete SSE body in one pass. Unlike the incremental
// mode, a final block without a trailing blank line is still parsed because
// the body is known to be whole.
func ParseBody(body []byte) []Event {
	normalized := bytes.ReplaceAll(body, []byte("\r\n"), []byte("\n"))
	normalized = bytes.ReplaceAll(normalized, []byte("\r"), []byte("\n"))

	var events []Event
	for _, block := range strings.Split(string(normalized), "\n\n") {
		if ev, ok := parseBlock(block); ok {
			events = append(events, ev)
		}
	}
	return events
}

// IsEventStream reports whether a response body begins with an SSE event
// marker. The decision is made once; callers dispatch on it statically.
func IsEventStream(body []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(body, " \t\r\n"), []byte("event:"))
}

// parseBlock decodes one event block. A block missing either the event line
// or the data line is discarded silently.
func parseBlock(block string) (Event, bool) {
	var eventType string
	var payload any
	var hasData bool

	for _, line := range strings.Split(block, "\n") {
		switch {
		case strings.HasPrefix(line, eventPrefix):
			eventType = strings.TrimPrefix(line, eventPrefix)
		case strings.HasPrefix(line, dataPrefix):
			raw := strings.TrimPrefix(line, dataPrefix)
			if err := json.Unmarshal([]byte(raw), &payload); err != nil {
				continue
			}
			hasData = true
		}
	}

	if eventType == "" || !hasData {
		return Event{}, false
	}
	return Event{Type: eventType, Data: payload}, true
}

// readChunkSize is deliberately small enough that events are surfaced while
// the connection is still open.
const readChunkSize = 4096

// Stream drains r incrementally, invoking handle for each completed event in
// arrival order. The trailing partial block, if any, is dropped at EOF.
func Stream(r io.Reader, handle func(Event)) error {
	parser := &Parser{}
	chunk := make([]byte, readChunkSize)

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			for _, ev := range parser.Feed(chunk[:n]) {
				handle(ev)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
