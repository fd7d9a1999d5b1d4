package upstream

import (
	"encoding/json"
	"fmt"

	"commerce-search-api/internal/sse"
)

// BodyKind tags the two response shapes the agent endpoints produce.
type BodyKind int

const (
	BodyJSON BodyKind = iota
	BodySSE
)

// Body is the tagged union decided once when a response is read; callers
// dispatch on Kind statically instead of re-sniffing.
type Body struct {
	Kind BodyKind
	JSON map[string]any
	SSE  []byte
}

// SniffBody classifies a complete response body. Anything that does not open
// with an SSE event marker must be a JSON object.
func SniffBody(raw []byte) (*Body, error) {
	if sse.IsEventStream(raw) {
		return &Body{Kind: BodySSE, SSE: raw}, nil
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	return &Body{Kind: BodyJSON, JSON: decoded}, nil
}
