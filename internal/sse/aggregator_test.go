package sse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func applyAll(t *testing.T, events []Event, onEvent Callback) Aggregate {
	t.Helper()
	aggregator := NewAggregator(onEvent)
	for _, ev := range events {
		aggregator.Apply(ev)
	}
	return aggregator.Result()
}

func TestAggregatorEventTable(t *testing.T) {
	events := []Event{
		{Type: "start", Data: map[string]any{"thread_id": "t-7"}},
		{Type: "message", Data: map[string]any{"text": "Here are "}},
		{Type: "message", Data: map[string]any{"text": "two options."}},
		{Type: "search_result", Data: map[string]any{
			"response": map[string]any{"results": []any{
				map[string]any{"data": map[string]any{"id": "p1"}},
				map[string]any{"data": map[string]any{"id": "p2"}},
			}},
		}},
		{Type: "suggestions", Data: map[string]any{"questions": []any{"More colors?"}}},
		{Type: "end", Data: map[string]any{"follow_up_questions": []any{"Anything else?"}}},
	}

	agg := applyAll(t, events, nil)

	assert.Equal(t, "t-7", agg.ThreadID)
	assert.Equal(t, "Here are two options.", agg.Text)
	require.Len(t, agg.Products, 2)
	assert.Equal(t, "p1", agg.Products[0].ID)
	assert.Equal(t, []string{"More colors?", "Anything else?"}, agg.FollowUpQuestions)
}

func TestAggregatorStartCamelCaseThreadID(t *testing.T) {
	agg := applyAll(t, []Event{
		{Type: "start", Data: map[string]any{"threadId": "camel-1"}},
	}, nil)
	assert.Equal(t, "camel-1", agg.ThreadID)
}

func TestAggregatorProductSourcePreference(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		wantIDs []string
	}{
		{
			"response.results wins",
			map[string]any{
				"response": map[string]any{"results": []any{map[string]any{"data": map[string]any{"id": "a"}}}},
				"products": []any{map[string]any{"data": map[string]any{"id": "b"}}},
			},
			[]string{"a"},
		},
		{
			"data wraps a single record",
			map[string]any{"data": map[string]any{"data": map[string]any{"id": "c"}}},
			[]string{"c"},
		},
		{
			"products list",
			map[string]any{"products": []any{map[string]any{"data": map[string]any{"id": "d"}}}},
			[]string{"d"},
		},
		{
			"results list",
			map[string]any{"results": []any{map[string]any{"data": map[string]any{"id": "e"}}}},
			[]string{"e"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products := ExtractProducts(tt.payload)
			require.Len(t, products, len(tt.wantIDs))
			for i, id := range tt.wantIDs {
				assert.Equal(t, id, products[i].ID)
			}
		})
	}
}

func TestAggregatorAppendOnlyNoDedup(t *testing.T) {
	dup := map[string]any{"results": []any{map[string]any{"data": map[string]any{"id": "same"}}}}
	agg := applyAll(t, []Event{
		{Type: "search_result", Data: dup},
		{Type: "search_results", Data: dup},
		{Type: "follow_up", Data: []any{"Twice?"}},
		{Type: "follow_up_questions", Data: []any{"Twice?"}},
	}, nil)

	assert.Len(t, agg.Products, 2)
	assert.Equal(t, []string{"Twice?", "Twice?"}, agg.FollowUpQuestions)
}

func TestAggregatorIgnoresUnknownEvents(t *testing.T) {
	var seen []string
	agg := applyAll(t, []Event{
		{Type: "heartbeat", Data: map[string]any{}},
		{Type: "message", Data: map[string]any{"text": "hi"}},
	}, func(eventType string, _ map[string]any) {
		seen = append(seen, eventType)
	})

	assert.Equal(t, "hi", agg.Text)
	// unknown events are not mirrored to the callback
	assert.Equal(t, []string{"message"}, seen)
}

func TestAggregateBodyDoesNotFireComplete(t *testing.T) {
	body := "event: message\ndata: {\"text\":\"done\"}\n\n"

	var types []string
	agg := AggregateBody([]byte(body), func(eventType string, _ map[string]any) {
		types = append(types, eventType)
	})

	assert.Equal(t, "done", agg.Text)
	assert.Equal(t, []string{"message"}, types)
}

func TestAggregateStreamFiresCompleteLast(t *testing.T) {
	body := "event: start\ndata: {\"thread_id\":\"t\"}\n\n" +
		"event: message\ndata: {\"text\":\"hello\"}\n\n"

	var types []string
	var final map[string]any
	agg, err := AggregateStream(strings.NewReader(body), func(eventType string, data map[string]any) {
		types = append(types, eventType)
		if eventType == CompleteEvent {
			final = data
		}
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"start", "message", CompleteEvent}, types)
	assert.Equal(t, "hello", agg.Text)
	require.NotNil(t, final)
	assert.Equal(t, "t", final["thread_id"])
	assert.Equal(t, "hello", final["text"])
}

func TestAggregateResultNeverNil(t *testing.T) {
	agg := AggregateBody(nil, nil)
	assert.NotNil(t, agg.Products)
	assert.NotNil(t, agg.FollowUpQuestions)

	m := agg.ToMap()
	assert.Equal(t, "", m["thread_id"])
	assert.Equal(t, []string{}, m["follow_up_questions"])
}
