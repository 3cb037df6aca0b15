package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func briefingCollection() *StaticCollection {
	return NewStaticCollection(StaticConfig{
		Name: "quickstart",
		Fields: []Field{
			{Path: "filepath", Type: FieldString},
			{Path: "uniqueness", Type: FieldFloat},
			{Path: "ground_truth", Type: "label", LabelType: LabelDetections},
			{Path: "predictions", Type: "label", LabelType: LabelDetections},
		},
		Samples: []map[string]interface{}{
			{
				"filepath":   "a.jpg",
				"uniqueness": 0.5,
				"tags":       []interface{}{"train"},
				"ground_truth": map[string]interface{}{
					"detections": []interface{}{
						map[string]interface{}{"label": "cat"},
					},
				},
				"predictions": map[string]interface{}{
					"detections": []interface{}{
						map[string]interface{}{"label": "cat", "confidence": 0.9},
						map[string]interface{}{"label": "dog", "confidence": 0.4},
					},
				},
			},
		},
		BrainRuns: []BrainRun{
			{Key: "img_sim", Type: BrainSimilarity, SupportsPrompts: true},
		},
	})
}

func TestBriefing(t *testing.T) {
	col := briefingCollection()

	t.Run("no relevant kinds yields the empty sentence", func(t *testing.T) {
		out := Briefing(col, "limit to ten samples", []string{"limit", "shuffle"})
		assert.Equal(t, "No schema details are relevant to this plan.", out)
	})

	t.Run("field-touching kinds get the field list", func(t *testing.T) {
		out := Briefing(col, "sort by uniqueness", []string{"sort_by"})
		assert.Contains(t, out, "Fields:")
		assert.Contains(t, out, "uniqueness: float")
		assert.Contains(t, out, "ground_truth: Detections")
	})

	t.Run("geo kinds report missing geolocation", func(t *testing.T) {
		out := Briefing(col, "images near Paris", []string{"geo_near"})
		assert.Contains(t, out, "no geolocation field")
	})

	t.Run("label kinds distinguish predictions from ground truth", func(t *testing.T) {
		out := Briefing(col, "filter detections", []string{"filter_labels"})
		assert.Contains(t, out, "predictions (Detections, likely predictions)")
		assert.Contains(t, out, "ground_truth (Detections, likely ground truth)")
	})

	t.Run("class lists appear when the plan mentions classes", func(t *testing.T) {
		out := Briefing(col, `keep only "cat" labels`, []string{"filter_labels"})
		assert.Contains(t, out, "Label classes:")
		assert.Contains(t, out, "cat")
	})

	t.Run("class lists are omitted when the plan does not mention them", func(t *testing.T) {
		out := Briefing(col, "convert to patches", []string{"to_patches"})
		assert.NotContains(t, out, "Label classes:")
	})

	t.Run("similarity kind lists prompt-capable runs", func(t *testing.T) {
		out := Briefing(col, "sort by similarity to red cars", []string{"sort_by_similarity"})
		assert.Contains(t, out, "img_sim")
	})

	t.Run("match_tags lists sample tags", func(t *testing.T) {
		out := Briefing(col, "match the train tag", []string{"match_tags"})
		assert.Contains(t, out, "train")
	})

	t.Run("ungrouped dataset reports group slices unavailable", func(t *testing.T) {
		out := Briefing(col, "select the left slice", []string{"select_group_slices"})
		assert.True(t, strings.Contains(out, "not grouped"))
	})
}

func TestMentionsClasses(t *testing.T) {
	assert.True(t, mentionsClasses("filter the label field"))
	assert.True(t, mentionsClasses(`keep "cat" samples`))
	assert.False(t, mentionsClasses("limit to ten samples"))
}
