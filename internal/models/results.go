package models

import "math"

// DefaultPerPage is the page size used when a caller supplies none.
const DefaultPerPage = 24

// ResultMeta carries upstream identifiers useful for attribution and debugging.
type ResultMeta struct {
	RequestID string `json:"request_id"`
	ResultID  string `json:"result_id"`
}

// SearchResultSet is the canonical search/browse result contract.
type SearchResultSet struct {
	Products []Product        `json:"products"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PerPage  int              `json:"per_page"`
	Facets   map[string]Facet `json:"facets"`
	Groups   []Group          `json:"groups"`
	Meta     ResultMeta       `json:"metadata"`
}

// NewEmptySearchResult is the value every read operation degrades to on failure.
func NewEmptySearchResult() *SearchResultSet {
	return &SearchResultSet{
		Products: []Product{},
		Total:    0,
		Page:     1,
		PerPage:  DefaultPerPage,
		Facets:   map[string]Facet{},
		Groups:   []Group{},
	}
}

func (r *SearchResultSet) TotalPages() int {
	if r.PerPage <= 0 {
		return 0
	}
	return int(math.Ceil(float64(r.Total) / float64(r.PerPage)))
}

func (r *SearchResultSet) HasMore() bool {
	if r.PerPage <= 0 {
		return false
	}
	return r.Page*r.PerPage < r.Total
}

// NextPageNumber returns page+1 while more results exist, 0 otherwise.
func (r *SearchResultSet) NextPageNumber() int {
	if r.HasMore() {
		return r.Page + 1
	}
	return 0
}

func (r *SearchResultSet) IsEmpty() bool {
	return len(r.Products) == 0
}

func (r *SearchResultSet) ToMap() map[string]any {
	return map[string]any{
		"products":    productMaps(r.Products),
		"total":       r.Total,
		"page":        r.Page,
		"per_page":    r.PerPage,
		"total_pages": r.TotalPages(),
		"facets":      facetMaps(r.Facets),
		"groups":      groupMaps(r.Groups),
		"metadata": map[string]any{
			"request_id": r.Meta.RequestID,
			"result_id":  r.Meta.ResultID,
		},
	}
}

// Suggestion is one autocomplete term suggestion.
type Suggestion struct {
	Term         string         `json:"term"`
	MatchedTerms []string       `json:"matched_terms"`
	Data         map[string]any `json:"data"`
}

// CategoryMatch is one category hit in an autocomplete response.
type CategoryMatch struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// AutocompleteResultSet carries both the query-driven population
// (suggestions/products/categories) and the zero-state triple
// (trending/popular/top categories). The two are filled by different entry
// points but share this contract.
type AutocompleteResultSet struct {
	Suggestions     []Suggestion    `json:"suggestions"`
	Products        []Product       `json:"products"`
	Categories      []CategoryMatch `json:"categories"`
	Trending        []Suggestion    `json:"trending"`
	PopularProducts []Product       `json:"popular_products"`
	TopCategories   []CategoryMatch `json:"top_categories"`
}

func NewEmptyAutocompleteResult() *AutocompleteResultSet {
	return &AutocompleteResultSet{
		Suggestions:     []Suggestion{},
		Products:        []Product{},
		Categories:      []CategoryMatch{},
		Trending:        []Suggestion{},
		PopularProducts: []Product{},
		TopCategories:   []CategoryMatch{},
	}
}

// IsEmpty reports whether both populations are empty.
func (r *AutocompleteResultSet) IsEmpty() bool {
	return r.IsAutocompleteEmpty() &&
		len(r.Trending) == 0 && len(r.PopularProducts) == 0 && len(r.TopCategories) == 0
}

// IsAutocompleteEmpty ignores the zero-state triple.
func (r *AutocompleteResultSet) IsAutocompleteEmpty() bool {
	return len(r.Suggestions) == 0 && len(r.Products) == 0 && len(r.Categories) == 0
}

func (r *AutocompleteResultSet) ToMap() map[string]any {
	return map[string]any{
		"suggestions":      suggestionMaps(r.Suggestions),
		"products":         productMaps(r.Products),
		"categories":       categoryMaps(r.Categories),
		"trending":         suggestionMaps(r.Trending),
		"popular_products": productMaps(r.PopularProducts),
		"top_categories":   categoryMaps(r.TopCategories),
	}
}

func suggestionMaps(suggestions []Suggestion) []map[string]any {
	out := make([]map[string]any, 0, len(suggestions))
	for _, s := range suggestions {
		matched := s.MatchedTerms
		if matched == nil {
			matched = []string{}
		}
		data := s.Data
		if data == nil {
			data = map[string]any{}
		}
		out = append(out, map[string]any{
			"term":          s.Term,
			"matched_terms": matched,
			"data":          data,
		})
	}
	return out
}

func categoryMaps(categories []CategoryMatch) []map[string]any {
	out := make([]map[string]any, 0, len(categories))
	for _, c := range categories {
		out = append(out, map[string]any{
			"id":    c.ID,
			"name":  c.Name,
			"path":  c.Path,
			"count": c.Count,
		})
	}
	return out
}

// RecommendationResultSet is the canonical recommendation-pod contract.
// PodID is always the requested pod, never inferred from the response.
type RecommendationResultSet struct {
	PodID    string     `json:"pod_id"`
	Title    string     `json:"title"`
	Products []Product  `json:"products"`
	Total    int        `json:"total"`
	Meta     ResultMeta `json:"metadata"`
}

func NewEmptyRecommendationResult(podID string) *RecommendationResultSet {
	return &RecommendationResultSet{
		PodID:    podID,
		Products: []Product{},
	}
}

func (r *RecommendationResultSet) IsEmpty() bool {
	return len(r.Products) == 0
}

func (r *RecommendationResultSet) ToMap() map[string]any {
	return map[string]any{
		"pod_id":   r.PodID,
		"title":    r.Title,
		"products": productMaps(r.Products),
		"total":    r.Total,
		"metadata": map[string]any{
			"request_id": r.Meta.RequestID,
			"result_id":  r.Meta.ResultID,
		},
	}
}
