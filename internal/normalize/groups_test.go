package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groupNode(id, name string, children ...any) map[string]any {
	return map[string]any{"group_id": id, "display_name": name, "children": children}
}

func TestGroupsFlattensSingleSyntheticRoot(t *testing.T) {
	raw := []any{
		groupNode("all", "All",
			groupNode("shoes", "Shoes"),
			groupNode("bags", "Bags"),
		),
	}

	groups := Groups(raw, 10, 5)
	require.Len(t, groups, 2)
	assert.Equal(t, "shoes", groups[0].ID)
	assert.Equal(t, "bags", groups[1].ID)
}

func TestGroupsBounds(t *testing.T) {
	raw := []any{
		groupNode("a", "A", groupNode("a1", "A1"), groupNode("a2", "A2"), groupNode("a3", "A3")),
		groupNode("b", "B"),
		groupNode("c", "C"),
	}

	groups := Groups(raw, 2, 2)
	require.Len(t, groups, 2)
	assert.Equal(t, "a", groups[0].ID)
	require.Len(t, groups[0].Children, 2)
	assert.Equal(t, "a1", groups[0].Children[0].ID)
	assert.Equal(t, "a2", groups[0].Children[1].ID)
}

func TestGroupsZeroMaxChildrenPrunesTree(t *testing.T) {
	raw := []any{
		groupNode("a", "A", groupNode("a1", "A1")),
		groupNode("b", "B", groupNode("b1", "B1")),
	}

	groups := Groups(raw, 10, 0)
	require.Len(t, groups, 2)
	assert.Empty(t, groups[0].Children)
	assert.Empty(t, groups[1].Children)
}

func TestGroupFieldFallbacks(t *testing.T) {
	raw := []any{
		map[string]any{
			"id":    "sale",
			"name":  "Sale",
			"count": 12.0,
			"data":  map[string]any{"image_url": "https://img/sale.jpg"},
		},
	}

	groups := Groups(raw, 10, 5)
	require.Len(t, groups, 1)
	assert.Equal(t, "sale", groups[0].ID)
	assert.Equal(t, "Sale", groups[0].Name)
	assert.Equal(t, 12, groups[0].Count)
	assert.Equal(t, "https://img/sale.jpg", groups[0].Image)
}

func TestQuestionsAcceptStringsAndObjects(t *testing.T) {
	out := Questions([]any{
		"What sizes are available?",
		map[string]any{"value": "Is it waterproof?"},
		map[string]any{"question": "How does it fit?"},
		map[string]any{"text": "Any colors?"},
		map[string]any{"unrelated": true},
		7,
	})

	assert.Equal(t, []string{
		"What sizes are available?",
		"Is it waterproof?",
		"How does it fit?",
		"Any colors?",
	}, out)
}
