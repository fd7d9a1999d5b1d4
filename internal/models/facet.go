package models

// FacetType classifies how a facet should be rendered by a UI.
type FacetType string

const (
	FacetSingleSelect FacetType = "single_select"
	FacetCheckboxList FacetType = "checkbox_list"
	FacetRange        FacetType = "range"
)

// Facet is one filterable dimension of a result set. Values keep the
// upstream option order.
type Facet struct {
	Key         string       `json:"key"`
	DisplayName string       `json:"display_name"`
	Type        FacetType    `json:"type"`
	Values      []FacetValue `json:"values"`
	Min         *float64     `json:"min,omitempty"`
	Max         *float64     `json:"max,omitempty"`
}

type FacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

func (f Facet) ToMap() map[string]any {
	values := make([]map[string]any, 0, len(f.Values))
	for _, v := range f.Values {
		values = append(values, map[string]any{"value": v.Value, "count": v.Count})
	}

	m := map[string]any{
		"key":          f.Key,
		"display_name": f.DisplayName,
		"type":         string(f.Type),
		"values":       values,
	}
	if f.Type == FacetRange {
		m["min"] = floatOrNil(f.Min)
		m["max"] = floatOrNil(f.Max)
	}
	return m
}

// FacetValueImage is a facet value enriched with a sample product image.
type FacetValueImage struct {
	Value string `json:"value"`
	Count int    `json:"count"`
	Image string `json:"image"`
}

// Group is one node of the hierarchical category tree.
type Group struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Count    int     `json:"count"`
	Image    string  `json:"image"`
	Children []Group `json:"children"`
}

func (g Group) ToMap() map[string]any {
	var image any
	if g.Image != "" {
		image = g.Image
	}

	children := make([]map[string]any, 0, len(g.Children))
	for _, child := range g.Children {
		children = append(children, child.ToMap())
	}

	return map[string]any{
		"id":       g.ID,
		"name":     g.Name,
		"count":    g.Count,
		"image":    image,
		"children": children,
	}
}

func facetMaps(facets map[string]Facet) map[string]any {
	out := make(map[string]any, len(facets))
	for key, f := range facets {
		out[key] = f.ToMap()
	}
	return out
}

func groupMaps(groups []Group) []map[string]any {
	out := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.ToMap())
	}
	return out
}
