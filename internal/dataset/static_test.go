package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constEval is a stub Evaluator for match stages.
type constEval struct {
	fn  func(map[string]interface{}) (interface{}, error)
	src string
}

func (e constEval) Eval(s map[string]interface{}) (interface{}, error) { return e.fn(s) }
func (e constEval) Source() string                                     { return e.src }

func sampleCollection() *StaticCollection {
	return NewStaticCollection(StaticConfig{
		Name: "test",
		Fields: []Field{
			{Path: "filepath", Type: FieldString},
			{Path: "uniqueness", Type: FieldFloat},
		},
		Samples: []map[string]interface{}{
			{"filepath": "a.jpg", "uniqueness": 0.3, "tags": []interface{}{"train"}},
			{"filepath": "b.jpg", "uniqueness": 0.9, "tags": []interface{}{"test"}},
			{"filepath": "c.jpg", "uniqueness": 0.6, "tags": []interface{}{"train", "hard"}},
			{"filepath": "d.jpg", "tags": []interface{}{}},
		},
	})
}

func apply(t *testing.T, col Collection, stage AppliedStage) *StaticCollection {
	t.Helper()
	next, err := col.WithStage(stage)
	require.NoError(t, err)
	return next.(*StaticCollection)
}

func paths(c *StaticCollection) []string {
	var out []string
	for _, s := range c.Samples() {
		out = append(out, s["filepath"].(string))
	}
	return out
}

func TestWithStage(t *testing.T) {
	col := sampleCollection()

	t.Run("limit", func(t *testing.T) {
		v := apply(t, col, AppliedStage{Kind: "limit", Params: map[string]interface{}{"limit": 2}, Repr: "limit(limit=2)"})
		assert.Equal(t, []string{"a.jpg", "b.jpg"}, paths(v))
		// The base collection is untouched.
		n, _ := col.Count()
		assert.Equal(t, 4, n)
	})

	t.Run("skip", func(t *testing.T) {
		v := apply(t, col, AppliedStage{Kind: "skip", Params: map[string]interface{}{"skip": 3}})
		assert.Equal(t, []string{"d.jpg"}, paths(v))
	})

	t.Run("skip past the end empties the view", func(t *testing.T) {
		v := apply(t, col, AppliedStage{Kind: "skip", Params: map[string]interface{}{"skip": 10}})
		assert.Empty(t, v.Samples())
	})

	t.Run("shuffle is deterministic per seed", func(t *testing.T) {
		a := apply(t, col, AppliedStage{Kind: "shuffle", Params: map[string]interface{}{"seed": 7}})
		b := apply(t, col, AppliedStage{Kind: "shuffle", Params: map[string]interface{}{"seed": 7}})
		assert.Equal(t, paths(a), paths(b))
		assert.ElementsMatch(t, paths(col), paths(a))
	})

	t.Run("exists keeps samples with the field", func(t *testing.T) {
		v := apply(t, col, AppliedStage{Kind: "exists", Params: map[string]interface{}{"field": "uniqueness"}})
		assert.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg"}, paths(v))
	})

	t.Run("exists inverted", func(t *testing.T) {
		v := apply(t, col, AppliedStage{Kind: "exists", Params: map[string]interface{}{"field": "uniqueness", "bool": false}})
		assert.Equal(t, []string{"d.jpg"}, paths(v))
	})

	t.Run("match applies the compiled filter", func(t *testing.T) {
		ev := constEval{src: `F("uniqueness") > 0.5`, fn: func(s map[string]interface{}) (interface{}, error) {
			u, _ := s["uniqueness"].(float64)
			return u > 0.5, nil
		}}
		v := apply(t, col, AppliedStage{Kind: "match", Params: map[string]interface{}{"filter": Evaluator(ev)}})
		assert.Equal(t, []string{"b.jpg", "c.jpg"}, paths(v))
	})

	t.Run("match without a filter fails", func(t *testing.T) {
		_, err := col.WithStage(AppliedStage{Kind: "match", Params: map[string]interface{}{}})
		assert.Error(t, err)
	})

	t.Run("match_tags any", func(t *testing.T) {
		v := apply(t, col, AppliedStage{Kind: "match_tags", Params: map[string]interface{}{"tags": []string{"train"}}})
		assert.Equal(t, []string{"a.jpg", "c.jpg"}, paths(v))
	})

	t.Run("match_tags all", func(t *testing.T) {
		v := apply(t, col, AppliedStage{Kind: "match_tags", Params: map[string]interface{}{
			"tags": []string{"train", "hard"}, "all": true,
		}})
		assert.Equal(t, []string{"c.jpg"}, paths(v))
	})

	t.Run("sort_by ascending and descending", func(t *testing.T) {
		asc := apply(t, col, AppliedStage{Kind: "sort_by", Params: map[string]interface{}{"field": "uniqueness"}})
		assert.Equal(t, []string{"d.jpg", "a.jpg", "c.jpg", "b.jpg"}, paths(asc))

		desc := apply(t, col, AppliedStage{Kind: "sort_by", Params: map[string]interface{}{"field": "uniqueness", "reverse": true}})
		assert.Equal(t, []string{"b.jpg", "c.jpg", "a.jpg", "d.jpg"}, paths(desc))
	})

	t.Run("select_by field value", func(t *testing.T) {
		v := apply(t, col, AppliedStage{Kind: "select_by", Params: map[string]interface{}{
			"field": "filepath", "values": []string{"b.jpg", "d.jpg"},
		}})
		assert.Equal(t, []string{"b.jpg", "d.jpg"}, paths(v))
	})

	t.Run("unevaluated kinds are still recorded", func(t *testing.T) {
		v := apply(t, col, AppliedStage{Kind: "to_patches", Params: map[string]interface{}{"field": "gt"}, Repr: "to_patches(field=gt)"})
		n, _ := v.Count()
		assert.Equal(t, 4, n)
		require.Len(t, v.Stages(), 1)
		assert.Equal(t, "to_patches", v.Stages()[0].Kind)
	})

	t.Run("stages accumulate across folds", func(t *testing.T) {
		v := apply(t, col, AppliedStage{Kind: "limit", Params: map[string]interface{}{"limit": 3}})
		v = apply(t, v, AppliedStage{Kind: "skip", Params: map[string]interface{}{"skip": 1}})
		assert.Len(t, v.Stages(), 2)
		assert.Equal(t, []string{"b.jpg", "c.jpg"}, paths(v))
	})
}

func TestAggregate(t *testing.T) {
	col := sampleCollection()

	t.Run("bare count", func(t *testing.T) {
		v, err := col.Aggregate(Aggregation{Kind: AggCount})
		require.NoError(t, err)
		assert.Equal(t, 4, v)
	})

	t.Run("count of a field counts present values", func(t *testing.T) {
		v, err := col.Aggregate(Aggregation{Kind: AggCount, Field: "uniqueness"})
		require.NoError(t, err)
		assert.Equal(t, 3, v)
	})

	t.Run("mean", func(t *testing.T) {
		v, err := col.Aggregate(Aggregation{Kind: AggMean, Field: "uniqueness"})
		require.NoError(t, err)
		assert.InDelta(t, 0.6, v.(float64), 1e-9)
	})

	t.Run("sum", func(t *testing.T) {
		v, err := col.Aggregate(Aggregation{Kind: AggSum, Field: "uniqueness"})
		require.NoError(t, err)
		assert.InDelta(t, 1.8, v.(float64), 1e-9)
	})

	t.Run("bounds is a min max pair", func(t *testing.T) {
		v, err := col.Aggregate(Aggregation{Kind: AggBounds, Field: "uniqueness"})
		require.NoError(t, err)
		b := v.([]float64)
		require.Len(t, b, 2)
		assert.Equal(t, 0.3, b[0])
		assert.Equal(t, 0.9, b[1])
	})

	t.Run("min and max use the bounds ends", func(t *testing.T) {
		lo, err := col.Aggregate(Aggregation{Kind: AggMin, Field: "uniqueness"})
		require.NoError(t, err)
		hi, err := col.Aggregate(Aggregation{Kind: AggMax, Field: "uniqueness"})
		require.NoError(t, err)
		assert.Equal(t, 0.3, lo)
		assert.Equal(t, 0.9, hi)
	})

	t.Run("count_values", func(t *testing.T) {
		v, err := col.Aggregate(Aggregation{Kind: AggCountValues, Field: "tags"})
		require.NoError(t, err)
		counts := v.(map[string]int)
		assert.Equal(t, 2, counts["train"])
		assert.Equal(t, 1, counts["test"])
		assert.Equal(t, 1, counts["hard"])
	})

	t.Run("distinct", func(t *testing.T) {
		v, err := col.Aggregate(Aggregation{Kind: AggDistinct, Field: "tags"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []interface{}{"train", "test", "hard"}, v)
	})

	t.Run("count with an expression counts matches", func(t *testing.T) {
		ev := constEval{fn: func(s map[string]interface{}) (interface{}, error) {
			u, _ := s["uniqueness"].(float64)
			return u > 0.5, nil
		}}
		v, err := col.Aggregate(Aggregation{Kind: AggCount, Field: `F("uniqueness") > 0.5`, Expr: ev})
		require.NoError(t, err)
		assert.Equal(t, 2, v)
	})

	t.Run("numeric aggregation over a non-numeric field fails", func(t *testing.T) {
		_, err := col.Aggregate(Aggregation{Kind: AggMean, Field: "filepath"})
		assert.Error(t, err)
	})

	t.Run("expression error propagates", func(t *testing.T) {
		ev := constEval{fn: func(map[string]interface{}) (interface{}, error) {
			return nil, assert.AnError
		}}
		_, err := col.Aggregate(Aggregation{Kind: AggValues, Expr: ev})
		assert.Error(t, err)
	})
}
