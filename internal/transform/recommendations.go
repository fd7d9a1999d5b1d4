package transform

import (
	"commerce-search-api/internal/models"
	"commerce-search-api/internal/normalize"
)

// Recommendations assembles the canonical pod result. The pod id is always
// the requested one, never read back from the response.
func Recommendations(podID string, body map[string]any) *models.RecommendationResultSet {
	result := models.NewEmptyRecommendationResult(podID)

	response := mapValue(body, "response")
	if response == nil {
		return result
	}

	result.Products = normalize.Products(sliceValue(response, "results"))
	result.Total = intValue(response, "total_num_results")
	result.Title = stringValue(mapValue(response, "pod"), "display_name")
	result.Meta = resultMeta(body)

	return result
}
