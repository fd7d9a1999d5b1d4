package sse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStream = "event: start\ndata: {\"thread_id\":\"t-1\"}\n\n" +
	"event: message\ndata: {\"text\":\"Hello\"}\n\n" +
	"event: end\ndata: {}\n\n"

func TestParseBody(t *testing.T) {
	events := ParseBody([]byte(sampleStream))

	require.Len(t, events, 3)
	assert.Equal(t, "start", events[0].Type)
	assert.Equal(t, "message", events[1].Type)
	assert.Equal(t, "end", events[2].Type)

	payload, ok := events[0].Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "t-1", payload["thread_id"])
}

func TestParseBodyFinalBlockWithoutTrailingBlankLine(t *testing.T) {
	body := "event: start\ndata: {\"thread_id\":\"t-1\"}\n\n" +
		"event: end\ndata: {}"

	events := ParseBody([]byte(body))
	require.Len(t, events, 2)
	assert.Equal(t, "end", events[1].Type)
}

func TestParseBodyNormalizesLineEndings(t *testing.T) {
	crlf := strings.ReplaceAll(sampleStream, "\n", "\r\n")
	cr := strings.ReplaceAll(sampleStream, "\n", "\r")

	assert.Len(t, ParseBody([]byte(crlf)), 3)
	assert.Len(t, ParseBody([]byte(cr)), 3)
}

func TestParseBodyDiscardsMalformedBlocks(t *testing.T) {
	body := "event: message\ndata: not json\n\n" + // bad payload
		"data: {\"text\":\"no event line\"}\n\n" + // missing event
		"event: orphan\n\n" + // missing data
		"event: message\ndata: {\"text\":\"ok\"}\n\n"

	events := ParseBody([]byte(body))
	require.Len(t, events, 1)
	assert.Equal(t, "message", events[0].Type)
}

func TestParserChunkSplitInvariance(t *testing.T) {
	full := ParseBody([]byte(sampleStream))

	// the same events must come out regardless of where chunk boundaries fall
	for _, size := range []int{1, 2, 3, 5, 7, 16, 64} {
		parser := &Parser{}
		var events []Event
		data := []byte(sampleStream)
		for start := 0; start < len(data); start += size {
			end := start + size
			if end > len(data) {
				end = len(data)
			}
			events = append(events, parser.Feed(data[start:end])...)
		}
		require.Len(t, events, len(full), "chunk size %d", size)
		for i := range full {
			assert.Equal(t, full[i].Type, events[i].Type, "chunk size %d", size)
		}
	}
}

func TestParserCRLFSplitAcrossChunks(t *testing.T) {
	parser := &Parser{}

	// \r arrives at the end of one chunk, \n at the start of the next
	var events []Event
	events = append(events, parser.Feed([]byte("event: message\r\ndata: {\"text\":\"hi\"}\r"))...)
	events = append(events, parser.Feed([]byte("\n\r\n"))...)

	require.Len(t, events, 1)
	assert.Equal(t, "message", events[0].Type)
}

func TestParserDropsTrailingPartialBlock(t *testing.T) {
	parser := &Parser{}
	events := parser.Feed([]byte("event: start\ndata: {\"thread_id\":\"t\"}\n\nevent: message\ndata: {\"te"))

	// incremental mode never parses an unterminated block
	require.Len(t, events, 1)
	assert.Equal(t, "start", events[0].Type)
}

func TestIsEventStream(t *testing.T) {
	assert.True(t, IsEventStream([]byte("event: start\ndata: {}\n\n")))
	assert.True(t, IsEventStream([]byte("\n  event: start\ndata: {}\n\n")))
	assert.False(t, IsEventStream([]byte(`{"response":{}}`)))
	assert.False(t, IsEventStream([]byte("")))
}

func TestStreamHandlesEventsInArrivalOrder(t *testing.T) {
	var types []string
	err := Stream(strings.NewReader(sampleStream), func(ev Event) {
		types = append(types, ev.Type)
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"start", "message", "end"}, types)
}
