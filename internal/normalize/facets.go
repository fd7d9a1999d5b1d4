package normalize

import (
	"commerce-search-api/internal/models"
	"commerce-search-api/pkg/utils"
)

// facetKeySources and facetOptionValueSources are two-key fallbacks the
// upstream uses interchangeably across endpoints.
var (
	facetKeySources         = []string{"name", "key"}
	facetOptionValueSources = []string{"value", "display_name"}
)

// Facets converts the upstream facet array into the canonical mapping.
// Facets whose option list normalizes to nothing are dropped entirely: an
// empty facet offers a UI no filtering value.
func Facets(raw []any) map[string]models.Facet {
	out := make(map[string]models.Facet, len(raw))

	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		key := firstString(m, facetKeySources)
		if key == "" {
			continue
		}

		facet := models.Facet{
			Key:         key,
			DisplayName: facetDisplayName(m, key),
			Type:        facetType(stringField(m, "type")),
			Values:      facetValues(sliceField(m, "options")),
		}

		if facet.Type == models.FacetRange {
			min := floatField(m, "min")
			max := floatField(m, "max")
			// both bounds or neither
			if min != nil && max != nil {
				facet.Min = min
				facet.Max = max
			}
		}

		if len(facet.Values) == 0 {
			continue
		}
		out[key] = facet
	}

	return out
}

func facetDisplayName(m map[string]any, key string) string {
	if name := stringField(m, "display_name"); name != "" {
		return name
	}
	return utils.Humanize(key)
}

func facetType(token string) models.FacetType {
	switch token {
	case "single":
		return models.FacetSingleSelect
	case "range":
		return models.FacetRange
	default:
		return models.FacetCheckboxList
	}
}

func facetValues(options []any) []models.FacetValue {
	values := make([]models.FacetValue, 0, len(options))
	for _, entry := range options {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		value := firstString(m, facetOptionValueSources)
		if value == "" {
			continue
		}
		values = append(values, models.FacetValue{
			Value: value,
			Count: intField(m, "count"),
		})
	}
	return values
}
