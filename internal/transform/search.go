// Package transform assembles canonical result sets from decoded upstream
// response bodies. Transformers build each DTO in a single pass; nothing is
// mutated after construction.
package transform

import (
	"commerce-search-api/internal/models"
	"commerce-search-api/internal/normalize"
)

// Group bounds applied to the category tree embedded in search responses.
// BrowseGroups passes caller-supplied bounds instead.
const (
	defaultMaxGroups        = 20
	defaultMaxGroupChildren = 10
)

// SearchResult assembles the canonical search/browse result set. Page and
// perPage are the requested values; the upstream response does not echo them
// reliably.
func SearchResult(body map[string]any, page, perPage int) *models.SearchResultSet {
	result := models.NewEmptySearchResult()
	if page > 0 {
		result.Page = page
	}
	if perPage > 0 {
		result.PerPage = perPage
	}

	response := mapValue(body, "response")
	if response == nil {
		return result
	}

	result.Products = normalize.Products(sliceValue(response, "results"))
	result.Total = intValue(response, "total_num_results")
	result.Facets = normalize.Facets(sliceValue(response, "facets"))
	result.Groups = normalize.Groups(sliceValue(response, "groups"), defaultMaxGroups, defaultMaxGroupChildren)
	result.Meta = resultMeta(body)

	return result
}

func resultMeta(body map[string]any) models.ResultMeta {
	request := mapValue(body, "request")
	return models.ResultMeta{
		RequestID: stringValue(request, "request_id"),
		ResultID:  stringValue(body, "result_id"),
	}
}

func mapValue(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]any)
	return v
}

func sliceValue(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	v, _ := m[key].([]any)
	return v
}

func stringValue(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	v, _ := m[key].(string)
	return v
}

func intValue(m map[string]any, key string) int {
	if m == nil {
		return 0
	}
	switch n := m[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}
