package sse

import (
	"io"

	"commerce-search-api/internal/models"
	"commerce-search-api/internal/normalize"
)

// Callback receives every decoded event in arrival order. The data map is
// event-type specific; see Aggregator.apply for the shapes.
type Callback func(eventType string, data map[string]any)

// CompleteEvent is the synthetic event fired once at the end of an
// incremental stream, carrying the final aggregate.
const CompleteEvent = "complete"

// productSources and questionSources fix the payload-field preference order
// for result and follow-up events.
var (
	productSources  = []string{"response.results", "data", "products", "results"}
	questionSources = []string{"questions", "suggestions"}
)

// Aggregate is the append-only conversation state built over one agent call.
// Text grows monotonically; products and follow-ups are never reordered or
// deduplicated, so an upstream duplicate appears twice.
type Aggregate struct {
	ThreadID          string
	Text              string
	Products          []models.Product
	FollowUpQuestions []string
}

func (a Aggregate) ToMap() map[string]any {
	products := make([]map[string]any, 0, len(a.Products))
	for _, p := range a.Products {
		products = append(products, p.ToMap())
	}
	followUps := a.FollowUpQuestions
	if followUps == nil {
		followUps = []string{}
	}
	return map[string]any{
		"thread_id":           a.ThreadID,
		"text":                a.Text,
		"products":            products,
		"follow_up_questions": followUps,
	}
}

// Aggregator folds events into an Aggregate and mirrors each handled event to
// an optional live callback.
type Aggregator struct {
	agg     Aggregate
	onEvent Callback
}

func NewAggregator(onEvent Callback) *Aggregator {
	return &Aggregator{onEvent: onEvent}
}

func (a *Aggregator) Result() Aggregate {
	if a.agg.Products == nil {
		a.agg.Products = []models.Product{}
	}
	if a.agg.FollowUpQuestions == nil {
		a.agg.FollowUpQuestions = []string{}
	}
	return a.agg
}

// Apply folds one event into the aggregate. Unknown event types are ignored
// and not mirrored to the callback.
func (a *Aggregator) Apply(ev Event) {
	payload, _ := ev.Data.(map[string]any)

	switch ev.Type {
	case "start":
		a.agg.ThreadID = firstPayloadString(payload, []string{"thread_id", "threadId"})
		a.emit(ev.Type, map[string]any{"thread_id": a.agg.ThreadID})

	case "message":
		delta, _ := payload["text"].(string)
		a.agg.Text += delta
		a.emit(ev.Type, map[string]any{"text": delta, "accumulated": a.agg.Text})

	case "search_result", "search_results":
		batch := ExtractProducts(payload)
		a.agg.Products = append(a.agg.Products, batch...)
		a.emit(ev.Type, map[string]any{"products": batch})

	case "suggestions", "follow_up", "follow_up_questions":
		batch := extractQuestions(ev.Data)
		a.agg.FollowUpQuestions = append(a.agg.FollowUpQuestions, batch...)
		a.emit(ev.Type, map[string]any{"questions": batch})

	case "end":
		for _, key := range []string{"follow_up_questions", "suggestions"} {
			if list, ok := payload[key].([]any); ok {
				a.agg.FollowUpQuestions = append(a.agg.FollowUpQuestions, normalize.Questions(list)...)
			}
		}
		if payload == nil {
			payload = map[string]any{}
		}
		a.emit(ev.Type, payload)
	}
}

func (a *Aggregator) emit(eventType string, data map[string]any) {
	if a.onEvent != nil {
		a.onEvent(eventType, data)
	}
}

// ExtractProducts pulls a product batch out of a result payload, trying
// response.results, then data (wrapped as a single record), then products,
// then results. Shared with the agent client's plain-JSON path.
func ExtractProducts(payload map[string]any) []models.Product {
	if payload == nil {
		return []models.Product{}
	}

	for _, source := range productSources {
		switch source {
		case "response.results":
			if response, ok := payload["response"].(map[string]any); ok {
				if results, ok := response["results"].([]any); ok {
					return normalize.Products(results)
				}
			}
		case "data":
			if data, ok := payload["data"].(map[string]any); ok {
				return normalize.Products([]any{data})
			}
		default:
			if results, ok := payload[source].([]any); ok {
				return normalize.Products(results)
			}
		}
	}
	return []models.Product{}
}

// extractQuestions resolves the question list for suggestion events: the
// questions field, then suggestions, else the whole payload when list-shaped.
func extractQuestions(data any) []string {
	if payload, ok := data.(map[string]any); ok {
		for _, key := range questionSources {
			if list, ok := payload[key].([]any); ok {
				return normalize.Questions(list)
			}
		}
		return []string{}
	}
	if list, ok := data.([]any); ok {
		return normalize.Questions(list)
	}
	return []string{}
}

func firstPayloadString(payload map[string]any, keys []string) string {
	for _, key := range keys {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// AggregateBody folds a complete SSE body in one pass (buffered mode). No
// synthetic complete event fires here; the caller already has the full body.
func AggregateBody(body []byte, onEvent Callback) Aggregate {
	aggregator := NewAggregator(onEvent)
	for _, ev := range ParseBody(body) {
		aggregator.Apply(ev)
	}
	return aggregator.Result()
}

// AggregateStream drains r incrementally (streaming mode), invoking onEvent
// for every decoded event in arrival order and finishing with a synthetic
// complete event carrying the final aggregate.
func AggregateStream(r io.Reader, onEvent Callback) (Aggregate, error) {
	aggregator := NewAggregator(onEvent)
	err := Stream(r, aggregator.Apply)
	agg := aggregator.Result()
	if err != nil {
		return agg, err
	}
	if onEvent != nil {
		onEvent(CompleteEvent, agg.ToMap())
	}
	return agg, nil
}
