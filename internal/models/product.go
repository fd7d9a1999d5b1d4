package models

// Product is the canonical product record every upstream result shape is
// normalized into. Raw keeps the original upstream data sub-object so callers
// can reach custom fields the normalizer does not know about.
type Product struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	URL           string         `json:"url"`
	ImageURL      string         `json:"image_url"`
	Price         *float64       `json:"price"`
	OriginalPrice *float64       `json:"original_price"`
	SKU           string         `json:"sku"`
	Brand         string         `json:"brand"`
	Categories    []string       `json:"categories"`
	Facets        map[string]any `json:"facets"`
	Metadata      map[string]any `json:"metadata"`
	Raw           map[string]any `json:"-"`
}

// ToMap returns the stable snake_case shape used in HTTP responses.
// An absent id serializes as null so consumers can tell it apart from "".
func (p Product) ToMap() map[string]any {
	var id any
	if p.ID != "" {
		id = p.ID
	}

	categories := p.Categories
	if categories == nil {
		categories = []string{}
	}
	facets := p.Facets
	if facets == nil {
		facets = map[string]any{}
	}
	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	return map[string]any{
		"id":             id,
		"name":           p.Name,
		"description":    p.Description,
		"url":            p.URL,
		"image_url":      p.ImageURL,
		"price":          floatOrNil(p.Price),
		"original_price": floatOrNil(p.OriginalPrice),
		"sku":            p.SKU,
		"brand":          p.Brand,
		"categories":     categories,
		"facets":         facets,
		"metadata":       metadata,
	}
}

func floatOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func productMaps(products []Product) []map[string]any {
	out := make([]map[string]any, 0, len(products))
	for _, p := range products {
		out = append(out, p.ToMap())
	}
	return out
}
