package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"commerce-search-api/internal/models"
	"commerce-search-api/internal/normalize"
	"commerce-search-api/internal/sse"
	"commerce-search-api/internal/upstream"
)

// agentMessageSources and productAnswerSources fix the response-field
// preference orders for the two agent reply shapes.
var (
	agentMessageSources  = []string{"message", "response.message", "text"}
	productAnswerSources = []string{"value", "answer", "response.answer", "text"}
)

const (
	defaultNumResultEvents    = 2
	defaultNumResultsPerEvent = 4
)

// AgentService wraps the conversational shopping-agent and product-insight
// endpoints. Unlike the search read paths, the primary ask operations
// propagate typed errors: an answer is the deliverable, not a decoration.
type AgentService struct {
	client *upstream.Client
}

func NewAgentService(client *upstream.Client) *AgentService {
	return &AgentService{client: client}
}

// AgentOptions tunes one agent exchange. PreFilterExpression may be a string
// (passed through verbatim) or an object (JSON-encoded at the transport
// boundary).
type AgentOptions struct {
	Guard               bool
	NumResultEvents     int
	NumResultsPerEvent  int
	PreFilterExpression any
	UserID              string
	Attribution         *upstream.Attribution
}

// AskShoppingAgent issues one shopping-agent request and aggregates the
// reply. The response body may be a complete SSE transcript or plain JSON;
// the shape is decided once and dispatched statically.
func (a *AgentService) AskShoppingAgent(ctx context.Context, query, threadID string, opts AgentOptions) (*models.AgentResponse, error) {
	if err := a.requireDomain(); err != nil {
		return nil, err
	}

	body, err := a.client.AgentFetch(ctx, "/v1/intent/"+upstream.PercentEncode(query), a.agentParams(threadID, opts), opts.Attribution)
	if err != nil {
		return nil, err
	}

	return a.agentResponse(body), nil
}

// AskShoppingAgentStreaming issues the same request over a live connection.
// onEvent fires synchronously for every decoded event in arrival order, then
// once more with the synthetic complete event. The return value matches the
// non-streaming call.
func (a *AgentService) AskShoppingAgentStreaming(ctx context.Context, query string, onEvent sse.Callback, threadID string, opts AgentOptions) (*models.AgentResponse, error) {
	if err := a.requireDomain(); err != nil {
		return nil, err
	}

	stream, err := a.client.AgentStream(ctx, "/v1/intent/"+upstream.PercentEncode(query), a.agentParams(threadID, opts), opts.Attribution)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	agg, err := sse.AggregateStream(stream, onEvent)
	if err != nil {
		return nil, fmt.Errorf("consume agent stream: %w", err)
	}

	return responseFromAggregate(agg), nil
}

// ProductQuestions fetches suggested questions for a product. Suggestions
// are cosmetic, so every failure degrades to an empty list.
func (a *AgentService) ProductQuestions(ctx context.Context, itemID string, opts AgentOptions) []string {
	if a.client.AgentDomain() == "" {
		return []string{}
	}

	params := a.agentParams("", opts)
	params["item_id"] = itemID

	body, err := a.client.AgentFetch(ctx, "/v1/item_questions/"+upstream.PercentEncode(itemID), params, opts.Attribution)
	if err != nil {
		log.Printf("Product questions fetch failed for %s: %v", itemID, err)
		return []string{}
	}

	return questionList(body)
}

// AskProductQuestion asks the product-insight agent one question. Failures
// propagate: the answer is the primary deliverable.
func (a *AgentService) AskProductQuestion(ctx context.Context, question, itemID, threadID string, opts AgentOptions) (*models.ProductAnswer, error) {
	if err := a.requireDomain(); err != nil {
		return nil, err
	}

	params := a.agentParams(threadID, opts)
	params["item_id"] = itemID
	params["question"] = question

	body, err := a.client.AgentFetch(ctx, "/v1/item_questions/"+upstream.PercentEncode(itemID)+"/ask", params, opts.Attribution)
	if err != nil {
		return nil, err
	}

	if body.Kind == upstream.BodySSE {
		agg := sse.AggregateBody(body.SSE, nil)
		return &models.ProductAnswer{
			Answer:            agg.Text,
			ThreadID:          agg.ThreadID,
			FollowUpQuestions: agg.FollowUpQuestions,
			Raw:               agg.ToMap(),
		}, nil
	}

	return &models.ProductAnswer{
		Answer:            firstResponseString(body.JSON, productAnswerSources),
		ThreadID:          firstResponseString(body.JSON, []string{"thread_id"}),
		FollowUpQuestions: followUps(body.JSON),
		Raw:               body.JSON,
	}, nil
}

// complementarySlots maps a product category, by substring match, to the
// four "goes with" category slots the agent is asked to fill.
var complementarySlots = []struct {
	match string
	slots []string
}{
	{"pants", []string{"shirt", "jacket", "shoes", "belt"}},
	{"shirt", []string{"pants", "jacket", "shoes", "watch"}},
	{"dress", []string{"jacket", "shoes", "bag", "necklace"}},
	{"jacket", []string{"shirt", "pants", "shoes", "scarf"}},
	{"shoes", []string{"pants", "shirt", "socks", "belt"}},
}

var defaultComplementarySlots = []string{"shirt", "pants", "shoes", "accessory"}

// SearchComplementaryProducts asks the agent for products that go with the
// given one, one per complementary category slot. This feeds a nice-to-have
// widget: a missing agent domain or any failure yields an empty list.
func (a *AgentService) SearchComplementaryProducts(ctx context.Context, productName string, limit int, category string, opts AgentOptions) []models.Product {
	if a.client.AgentDomain() == "" {
		return []models.Product{}
	}
	if limit <= 0 {
		limit = len(defaultComplementarySlots)
	}

	slots := slotsForCategory(category)
	prompt := fmt.Sprintf("Recommend exactly %d products that complement %q: one %s.",
		limit, productName, strings.Join(slots, ", one "))

	response, err := a.AskShoppingAgent(ctx, prompt, "", opts)
	if err != nil {
		log.Printf("Complementary product search failed for %q: %v", productName, err)
		return []models.Product{}
	}

	products := response.Products
	if len(products) > limit {
		products = products[:limit]
	}
	return products
}

func slotsForCategory(category string) []string {
	lowered := strings.ToLower(category)
	for _, entry := range complementarySlots {
		if strings.Contains(lowered, entry.match) {
			return entry.slots
		}
	}
	return defaultComplementarySlots
}

// requireDomain fails fast, before any network call, when the agent domain
// is not configured.
func (a *AgentService) requireDomain() error {
	if a.client.AgentDomain() == "" {
		return &models.ConfigurationError{Setting: "agent domain", Reason: "required for agent requests"}
	}
	return nil
}

func (a *AgentService) agentParams(threadID string, opts AgentOptions) upstream.Params {
	numEvents := opts.NumResultEvents
	if numEvents <= 0 {
		numEvents = defaultNumResultEvents
	}
	perEvent := opts.NumResultsPerEvent
	if perEvent <= 0 {
		perEvent = defaultNumResultsPerEvent
	}

	params := upstream.Params{
		"domain":                a.client.AgentDomain(),
		"guard":                 opts.Guard,
		"num_result_events":     numEvents,
		"num_results_per_event": perEvent,
	}
	if threadID != "" {
		params["thread_id"] = threadID
	}
	if opts.PreFilterExpression != nil {
		// strings pass through verbatim; objects are JSON-encoded when the
		// query string is assembled
		params["pre_filter_expression"] = opts.PreFilterExpression
	}
	if opts.UserID != "" {
		params["ui"] = opts.UserID
	}
	return params
}

func (a *AgentService) agentResponse(body *upstream.Body) *models.AgentResponse {
	if body.Kind == upstream.BodySSE {
		return responseFromAggregate(sse.AggregateBody(body.SSE, nil))
	}

	return &models.AgentResponse{
		Message:           firstResponseString(body.JSON, agentMessageSources),
		Products:          sse.ExtractProducts(body.JSON),
		ThreadID:          firstResponseString(body.JSON, []string{"thread_id"}),
		FollowUpQuestions: followUps(body.JSON),
		Raw:               body.JSON,
	}
}

func responseFromAggregate(agg sse.Aggregate) *models.AgentResponse {
	return &models.AgentResponse{
		Message:           agg.Text,
		Products:          agg.Products,
		ThreadID:          agg.ThreadID,
		FollowUpQuestions: agg.FollowUpQuestions,
		Raw:               agg.ToMap(),
	}
}

// firstResponseString resolves a dotted-path preference order against a
// decoded JSON body.
func firstResponseString(body map[string]any, paths []string) string {
	for _, path := range paths {
		current := any(body)
		found := true
		for _, segment := range strings.Split(path, ".") {
			m, ok := current.(map[string]any)
			if !ok {
				found = false
				break
			}
			current, ok = m[segment]
			if !ok {
				found = false
				break
			}
		}
		if found {
			if s, ok := current.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func followUps(body map[string]any) []string {
	for _, key := range []string{"follow_up_questions", "suggestions"} {
		if list, ok := body[key].([]any); ok {
			return normalize.Questions(list)
		}
	}
	return []string{}
}

func questionList(body *upstream.Body) []string {
	if body.Kind == upstream.BodySSE {
		return sse.AggregateBody(body.SSE, nil).FollowUpQuestions
	}

	for _, key := range []string{"questions", "suggestions"} {
		if list, ok := body.JSON[key].([]any); ok {
			return normalize.Questions(list)
		}
	}
	if response, ok := body.JSON["response"].(map[string]any); ok {
		if list, ok := response["questions"].([]any); ok {
			return normalize.Questions(list)
		}
	}
	return []string{}
}
