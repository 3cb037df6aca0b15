package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads embedded templates", func(t *testing.T) {
		tpl, err := Load("intent_classification")
		require.NoError(t, err)
		assert.NotEmpty(t, tpl.Text)
	})

	t.Run("memoizes by name", func(t *testing.T) {
		a, err := Load("plan_generation")
		require.NoError(t, err)
		b, err := Load("plan_generation")
		require.NoError(t, err)
		assert.Same(t, a, b)
	})

	t.Run("unknown names fail", func(t *testing.T) {
		_, err := Load("does_not_exist")
		assert.Error(t, err)
	})
}

func TestRender(t *testing.T) {
	t.Run("substitutes data", func(t *testing.T) {
		out, err := Render("intent_classification", map[string]interface{}{
			"Query": "how many cats are there",
		})
		require.NoError(t, err)
		assert.Contains(t, out, "how many cats are there")
	})

	t.Run("revision template numbers steps from one", func(t *testing.T) {
		out, err := Render("plan_revision", map[string]interface{}{
			"Query":    "q",
			"Briefing": "b",
			"Steps":    []string{"first", "second"},
			"Failures": []struct {
				Index  int
				Reason string
			}{{Index: 2, Reason: "no such field"}},
		})
		require.NoError(t, err)
		assert.Contains(t, out, "1. first")
		assert.Contains(t, out, "2. second")
		assert.Contains(t, out, "step 2: no such field")
	})
}

func TestStageFragments(t *testing.T) {
	// Every stage fragment parses and carries a parameter section where
	// the stage takes parameters.
	names := []string{
		"stages/limit", "stages/take", "stages/skip", "stages/shuffle",
		"stages/exists", "stages/limit_labels", "stages/select_fields",
		"stages/exclude_fields", "stages/geo_near", "stages/geo_within",
		"stages/to_patches", "stages/to_evaluation_patches", "stages/select_by",
		"stages/select_group_slices", "stages/match_tags", "stages/select_labels",
		"stages/sort_by_similarity", "stages/group_by", "stages/sort_by",
		"stages/filter_field", "stages/match_labels", "stages/filter_labels",
		"stages/map_labels", "stages/match",
	}
	for _, name := range names {
		tpl, err := Load(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, strings.TrimSpace(tpl.Text), name)
	}
}

func TestLoadSchemaExamples(t *testing.T) {
	examples, err := LoadSchemaExamples()
	require.NoError(t, err)
	require.NotEmpty(t, examples)
	for _, ex := range examples {
		assert.NotEmpty(t, ex.Query)
		assert.NotEmpty(t, ex.Target)
	}
}

func TestHelpMessage(t *testing.T) {
	msg := HelpMessage()
	assert.Contains(t, msg, "I'm VoxelGPT")
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, stripFences("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, stripFences("```\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, stripFences(`{"a": 1}`))
}
