package transform

import (
	"commerce-search-api/internal/models"
	"commerce-search-api/internal/normalize"
)

// Section display names used by the autocomplete endpoint.
const (
	ProductsSection    = "Products"
	SuggestionsSection = "Search Suggestions"
	CategoriesSection  = "Categories"
)

// Autocomplete assembles the query-driven autocomplete population.
func Autocomplete(body map[string]any) *models.AutocompleteResultSet {
	result := models.NewEmptyAutocompleteResult()

	sections := mapValue(body, "sections")
	if sections == nil {
		return result
	}

	result.Suggestions = suggestions(sliceValue(sections, SuggestionsSection))
	result.Products = normalize.Products(sliceValue(sections, ProductsSection))
	result.Categories = categories(sliceValue(sections, CategoriesSection))

	return result
}

// ZeroState assembles the zero-state triple from the same wire shape. The
// populations are disjoint by construction: each entry point fills only its
// own side of the contract.
func ZeroState(body map[string]any) *models.AutocompleteResultSet {
	result := models.NewEmptyAutocompleteResult()

	sections := mapValue(body, "sections")
	if sections == nil {
		return result
	}

	result.Trending = suggestions(sliceValue(sections, SuggestionsSection))
	result.PopularProducts = normalize.Products(sliceValue(sections, ProductsSection))
	result.TopCategories = categories(sliceValue(sections, CategoriesSection))

	return result
}

func suggestions(raw []any) []models.Suggestion {
	out := make([]models.Suggestion, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		term := stringValue(m, "value")
		if term == "" {
			continue
		}

		data := mapValue(m, "data")
		if data == nil {
			data = map[string]any{}
		}

		out = append(out, models.Suggestion{
			Term:         term,
			MatchedTerms: stringList(sliceValue(m, "matched_terms")),
			Data:         data,
		})
	}
	return out
}

func categories(raw []any) []models.CategoryMatch {
	out := make([]models.CategoryMatch, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		data := mapValue(m, "data")
		id := stringValue(data, "id")
		if id == "" {
			id = stringValue(m, "value")
		}
		if id == "" {
			continue
		}

		out = append(out, models.CategoryMatch{
			ID:    id,
			Name:  stringValue(m, "value"),
			Path:  stringValue(data, "path"),
			Count: intValue(data, "count"),
		})
	}
	return out
}

func stringList(raw []any) []string {
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		if s, ok := entry.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
