package normalize

import "commerce-search-api/internal/models"

var (
	groupIDSources   = []string{"group_id", "id"}
	groupNameSources = []string{"display_name", "name"}
)

// Groups converts the upstream category-group array into the canonical tree.
// When the upstream wraps everything in a single synthetic root group the
// root's children become the top-level sequence. Top-level breadth is bounded
// by maxItems, recursion into children by maxChildren.
func Groups(raw []any, maxItems, maxChildren int) []models.Group {
	groups := groupList(raw)

	// one synthetic root wrapping the real tree
	if len(groups) == 1 {
		if children := sliceField(groups[0], "children"); len(children) > 0 {
			groups = groupList(children)
		}
	}

	if maxItems > 0 && len(groups) > maxItems {
		groups = groups[:maxItems]
	}

	out := make([]models.Group, 0, len(groups))
	for _, g := range groups {
		out = append(out, group(g, maxChildren))
	}
	return out
}

func groupList(raw []any) []map[string]any {
	out := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		if m, ok := entry.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func group(m map[string]any, maxChildren int) models.Group {
	g := models.Group{
		ID:       firstString(m, groupIDSources),
		Name:     firstString(m, groupNameSources),
		Count:    intField(m, "count"),
		Image:    groupImage(m),
		Children: []models.Group{},
	}

	if maxChildren > 0 {
		children := groupList(sliceField(m, "children"))
		if len(children) > maxChildren {
			children = children[:maxChildren]
		}
		for _, child := range children {
			g.Children = append(g.Children, group(child, maxChildren))
		}
	}

	return g
}

func groupImage(m map[string]any) string {
	if image := stringField(m, "image_url"); image != "" {
		return image
	}
	return firstString(m, []string{"data.image_url"})
}
