package normalize

// questionTextSources covers the field names upstream uses for question text.
var questionTextSources = []string{"value", "question", "text"}

// Questions normalizes a heterogeneous question list where each entry may be
// a bare string or an object carrying the text under value, question or text.
func Questions(raw []any) []string {
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		switch v := entry.(type) {
		case string:
			if v != "" {
				out = append(out, v)
			}
		case map[string]any:
			if text := firstString(v, questionTextSources); text != "" {
				out = append(out, text)
			}
		}
	}
	return out
}
