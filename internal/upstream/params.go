package upstream

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"commerce-search-api/internal/models"
)

// Catalog sections sharing the single upstream index.
const (
	DefaultSection = "Products"
	RecipesSection = "Recipes"
)

const defaultSortOrder = "descending"

// Params is the pre-encoding parameter set. Object values stay objects until
// the query string is assembled; only Encode turns them into compact JSON.
type Params map[string]any

// Encode serializes the parameter set for the wire. Scalars pass through,
// everything else becomes a compact JSON string.
func (p Params) Encode() url.Values {
	values := url.Values{}
	for key, v := range p {
		switch typed := v.(type) {
		case string:
			values.Set(key, typed)
		case int:
			values.Set(key, fmt.Sprintf("%d", typed))
		case int64:
			values.Set(key, fmt.Sprintf("%d", typed))
		case float64:
			values.Set(key, fmt.Sprintf("%g", typed))
		case bool:
			values.Set(key, fmt.Sprintf("%t", typed))
		default:
			encoded, err := json.Marshal(typed)
			if err != nil {
				continue
			}
			values.Set(key, string(encoded))
		}
	}
	return values
}

// RangeFilter bounds one numeric facet. Nil bounds are not emitted.
type RangeFilter struct {
	Min *float64
	Max *float64
}

// Filters is the caller-facing filter set merged into one upstream filter
// expression.
type Filters struct {
	Values map[string][]string
	Ranges map[string]RangeFilter
}

// SearchOptions tunes one search/browse call. Zero values fall back to the
// documented defaults; UserID is emitted only when explicitly supplied.
type SearchOptions struct {
	Page      int
	PerPage   int
	Section   string
	SortBy    string
	SortOrder string
	UserID    string
}

// BuildSearchParams builds the upstream query parameters for search/browse.
// It is a pure function: the same inputs always produce the same set.
func BuildSearchParams(filters Filters, opts SearchOptions) Params {
	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = models.DefaultPerPage
	}
	section := opts.Section
	if section == "" {
		section = DefaultSection
	}

	params := Params{
		"page":                 page,
		"num_results_per_page": perPage,
		"section":              section,
	}

	if opts.SortBy != "" {
		params["sort_by"] = opts.SortBy
		order := opts.SortOrder
		if order == "" {
			order = defaultSortOrder
		}
		params["sort_order"] = order
	}

	if opts.UserID != "" {
		params["ui"] = opts.UserID
	}

	if expression := filterExpression(filters); len(expression) > 0 {
		params["qs"] = map[string]any{"filters": expression}
	}

	return params
}

// filterExpression merges standard and range filters into one nested object.
// Empty value lists and fully unbounded ranges are skipped; an empty merge
// means the qs parameter is omitted entirely.
func filterExpression(filters Filters) map[string]any {
	expression := map[string]any{}

	for key, values := range filters.Values {
		if len(values) == 0 {
			continue
		}
		expression[key] = values
	}

	for key, r := range filters.Ranges {
		bounds := map[string]any{}
		if r.Min != nil {
			bounds["min"] = *r.Min
		}
		if r.Max != nil {
			bounds["max"] = *r.Max
		}
		if len(bounds) == 0 {
			continue
		}
		expression[key] = bounds
	}

	return expression
}

// HierarchicalFilterName is the browse filter whose identifiers upstream
// stores already percent-encoded. Browse paths must encode those values a
// second time; a single encoding silently returns zero results.
const HierarchicalFilterName = "group_id"

// PercentEncode strictly percent-encodes a path segment (space as %20, & as
// %26 and so on).
func PercentEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// EncodeBrowseValue encodes a browse filter value for the request path,
// applying the double encoding the hierarchical category filter requires.
func EncodeBrowseValue(filterName, value string) string {
	encoded := PercentEncode(value)
	if filterName == HierarchicalFilterName {
		encoded = PercentEncode(encoded)
	}
	return encoded
}
