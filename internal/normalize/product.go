package normalize

import "commerce-search-api/internal/models"

// Field resolution orders are part of the upstream protocol contract and are
// pinned by tests. The search/browse shape nests fields under "data" with the
// display name in "value"; the flatter agent shape may omit "data" entirely.
var (
	productIDSources   = []string{"data.id", "value"}
	productNameSources = []string{"value", "data.name"}
)

// Product converts one upstream result record into the canonical product.
// It is total over any map input: every field has a typed default and no
// shape ever raises an error.
func Product(raw map[string]any) models.Product {
	if raw == nil {
		raw = map[string]any{}
	}

	data := mapField(raw, "data")
	if data == nil {
		data = raw
	}

	return models.Product{
		ID:            firstString(raw, productIDSources),
		Name:          firstString(raw, productNameSources),
		Description:   stringField(data, "description"),
		URL:           stringField(data, "url"),
		ImageURL:      stringField(data, "image_url"),
		Price:         floatField(data, "price"),
		OriginalPrice: floatField(data, "original_price"),
		SKU:           stringField(data, "sku"),
		Brand:         stringField(data, "brand"),
		Categories:    categoryNames(sliceField(data, "categories")),
		Facets:        productFacets(data["facets"]),
		Metadata:      metadataField(data),
		Raw:           data,
	}
}

// Products normalizes a result array, skipping entries that are not objects.
func Products(raw []any) []models.Product {
	out := make([]models.Product, 0, len(raw))
	for _, entry := range raw {
		if m, ok := entry.(map[string]any); ok {
			out = append(out, Product(m))
		}
	}
	return out
}

// categoryNames accepts both plain strings and {display_name|name} objects.
func categoryNames(raw []any) []string {
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		switch v := entry.(type) {
		case string:
			out = append(out, v)
		case map[string]any:
			if name := firstString(v, []string{"display_name", "name"}); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

// productFacets accepts either a ready mapping or the upstream list form of
// {name, values} pairs.
func productFacets(raw any) map[string]any {
	switch v := raw.(type) {
	case map[string]any:
		return v
	case []any:
		out := make(map[string]any, len(v))
		for _, entry := range v {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			if name := stringField(m, "name"); name != "" {
				out[name] = m["values"]
			}
		}
		return out
	}
	return map[string]any{}
}

func metadataField(data map[string]any) map[string]any {
	if m := mapField(data, "metadata"); m != nil {
		return m
	}
	return map[string]any{}
}
