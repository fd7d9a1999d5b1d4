package models

// Collection is a curated set of products. When the authenticated collections
// API is unavailable a minimal record is synthesized from the id so the UI
// always has a renderable name.
type Collection struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Data map[string]any `json:"data"`
}

func (c Collection) ToMap() map[string]any {
	data := c.Data
	if data == nil {
		data = map[string]any{}
	}
	return map[string]any{
		"id":   c.ID,
		"name": c.Name,
		"data": data,
	}
}
