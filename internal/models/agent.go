package models

// AgentResponse is the aggregated outcome of one shopping-agent exchange.
// ThreadID must be persisted by the caller to continue the conversation.
type AgentResponse struct {
	Message           string         `json:"message"`
	Products          []Product      `json:"products"`
	ThreadID          string         `json:"thread_id"`
	FollowUpQuestions []string       `json:"follow_up_questions"`
	Raw               map[string]any `json:"-"`
}

func (a *AgentResponse) ToMap() map[string]any {
	followUps := a.FollowUpQuestions
	if followUps == nil {
		followUps = []string{}
	}
	return map[string]any{
		"message":             a.Message,
		"products":            productMaps(a.Products),
		"thread_id":           a.ThreadID,
		"follow_up_questions": followUps,
	}
}

// ProductAnswer is the outcome of one product-insight question.
type ProductAnswer struct {
	Answer            string         `json:"answer"`
	ThreadID          string         `json:"thread_id"`
	FollowUpQuestions []string       `json:"follow_up_questions"`
	Raw               map[string]any `json:"-"`
}

func (a *ProductAnswer) ToMap() map[string]any {
	followUps := a.FollowUpQuestions
	if followUps == nil {
		followUps = []string{}
	}
	return map[string]any{
		"answer":              a.Answer,
		"thread_id":           a.ThreadID,
		"follow_up_questions": followUps,
	}
}
