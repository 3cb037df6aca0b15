package view

import (
	"context"
	"testing"

	"voxelgpt/internal/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoistGeoStages(t *testing.T) {
	mk := func(kind Kind) dataset.AppliedStage {
		return dataset.AppliedStage{Kind: string(kind), Repr: string(kind) + "()"}
	}

	t.Run("near before within before rest", func(t *testing.T) {
		out := hoistGeoStages([]dataset.AppliedStage{
			mk(KindLimit), mk(KindGeoWithin), mk(KindMatch), mk(KindGeoNear),
		})
		var kinds []string
		for _, s := range out {
			kinds = append(kinds, s.Kind)
		}
		assert.Equal(t, []string{"geo_near", "geo_within", "limit", "match"}, kinds)
	})

	t.Run("relative order of non-geo stages is preserved", func(t *testing.T) {
		out := hoistGeoStages([]dataset.AppliedStage{
			mk(KindShuffle), mk(KindGeoNear), mk(KindLimit),
		})
		assert.Equal(t, "geo_near", out[0].Kind)
		assert.Equal(t, "shuffle", out[1].Kind)
		assert.Equal(t, "limit", out[2].Kind)
	})

	t.Run("no geo stages is a no-op", func(t *testing.T) {
		in := []dataset.AppliedStage{mk(KindLimit), mk(KindShuffle)}
		assert.Equal(t, in, hoistGeoStages(in))
	})
}

func testCollection() *dataset.StaticCollection {
	return dataset.NewStaticCollection(dataset.StaticConfig{
		Name: "quickstart",
		Fields: []dataset.Field{
			{Path: "filepath", Type: dataset.FieldString},
			{Path: "confidence", Type: dataset.FieldFloat},
			{Path: "ground_truth", Type: "label", LabelType: dataset.LabelDetections},
		},
		Samples: []map[string]interface{}{
			{"filepath": "a.jpg", "confidence": 0.9, "tags": []interface{}{"train"}},
			{"filepath": "b.jpg", "confidence": 0.4, "tags": []interface{}{"test"}},
			{"filepath": "c.jpg", "confidence": 0.7, "tags": []interface{}{"train"}},
		},
	})
}

func TestAssemble(t *testing.T) {
	col := testCollection()

	t.Run("impossible steps surface as failures and warnings", func(t *testing.T) {
		client := &fakeClient{responses: map[string]string{
			"assign one view-stage operation": "no, deleting samples is not supported",
		}}
		a := &Assembler{Client: client}
		res, err := a.Assemble(context.Background(), col, Plan{Steps: []string{"delete every sample"}}, "q", "")
		require.NoError(t, err)
		assert.Nil(t, res.View)
		require.Len(t, res.Failures, 1)
		assert.Equal(t, 0, res.Failures[0].Index)
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "cannot be performed")
	})

	t.Run("simple plan folds into a view", func(t *testing.T) {
		client := &fakeClient{
			responses: map[string]string{
				"assign one view-stage operation": "limit",
			},
			structured: map[string]string{
				"fill in the parameters": `{"limit": 2}`,
			},
		}
		a := &Assembler{Client: client}
		res, err := a.Assemble(context.Background(), col, Plan{Steps: []string{"limit to 2 samples"}}, "q", "")
		require.NoError(t, err)
		require.NotNil(t, res.View)
		assert.Equal(t, []string{"limit(limit=2)"}, res.Reprs)
		n, err := res.View.Count()
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("unknown field promotes the step to a warning", func(t *testing.T) {
		client := &fakeClient{
			responses: map[string]string{
				"assign one view-stage operation": "exists",
			},
			structured: map[string]string{
				"fill in the parameters": `{"field": "nonexistent_field"}`,
			},
		}
		a := &Assembler{Client: client}
		res, err := a.Assemble(context.Background(), col, Plan{Steps: []string{"only samples with nonexistent_field"}}, "q", "")
		require.NoError(t, err)
		assert.Nil(t, res.View)
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "does not exist")
	})
}

func labeledCollection() *dataset.StaticCollection {
	det := func(labels ...string) map[string]interface{} {
		out := make([]interface{}, len(labels))
		for i, l := range labels {
			out[i] = map[string]interface{}{"label": l}
		}
		return map[string]interface{}{"detections": out}
	}
	return dataset.NewStaticCollection(dataset.StaticConfig{
		Name: "labeled",
		Fields: []dataset.Field{
			{Path: "filepath", Type: dataset.FieldString},
			{Path: "ground_truth", Type: "label", LabelType: dataset.LabelDetections},
		},
		Samples: []map[string]interface{}{
			{"filepath": "a.jpg", "ground_truth": det("Cat", "Dog")},
			{"filepath": "b.jpg", "ground_truth": det("Dog")},
		},
	})
}

func TestValidateResolvesClassParams(t *testing.T) {
	col := labeledCollection()
	a := &Assembler{}

	t.Run("map_labels keys resolve against the field's classes", func(t *testing.T) {
		res := &Result{}
		stage := &Stage{Kind: KindMapLabels, Params: map[string]interface{}{
			"field": "ground_truth",
			"map":   map[string]interface{}{"cat": "feline", "unicorn": "myth"},
		}}
		out, diag := a.validate(context.Background(), col, stage, res)
		require.Empty(t, diag)
		require.NotNil(t, out)

		m, ok := out.Params["map"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "feline", m["Cat"])
		assert.Equal(t, "myth", m["unicorn"])
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "unicorn")
	})

	t.Run("select_by values on a label field resolve as classes", func(t *testing.T) {
		res := &Result{}
		stage := &Stage{Kind: KindSelectBy, Params: map[string]interface{}{
			"field":  "ground_truth",
			"values": []interface{}{"dog", 3},
		}}
		out, diag := a.validate(context.Background(), col, stage, res)
		require.Empty(t, diag)
		require.NotNil(t, out)

		values, ok := out.Params["values"].([]interface{})
		require.True(t, ok)
		assert.Equal(t, "Dog", values[0])
		assert.Equal(t, 3, values[1])
		assert.Empty(t, res.Warnings)
	})

	t.Run("select_by on a scalar field is left alone", func(t *testing.T) {
		res := &Result{}
		stage := &Stage{Kind: KindSelectBy, Params: map[string]interface{}{
			"field":  "filepath",
			"values": []interface{}{"a.jpg"},
		}}
		out, diag := a.validate(context.Background(), col, stage, res)
		require.Empty(t, diag)
		require.NotNil(t, out)
		assert.Equal(t, []interface{}{"a.jpg"}, out.Params["values"])
	})
}
