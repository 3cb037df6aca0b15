package view

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlannerGenerate(t *testing.T) {
	t.Run("parses steps", func(t *testing.T) {
		client := &fakeClient{structured: map[string]string{
			"ordered plan of view stages": `{"steps": ["filter to cats", " limit to 10 ", ""]}`,
		}}
		p := &Planner{Client: client}
		plan, err := p.Generate(context.Background(), "show 10 cats", "")
		require.NoError(t, err)
		assert.Equal(t, []string{"filter to cats", "limit to 10"}, plan.Steps)
		assert.False(t, plan.Impossible())
	})

	t.Run("single impossible step flags the plan", func(t *testing.T) {
		client := &fakeClient{structured: map[string]string{
			"ordered plan of view stages": `{"steps": ["impossible"]}`,
		}}
		p := &Planner{Client: client}
		plan, err := p.Generate(context.Background(), "train a model for me", "")
		require.NoError(t, err)
		assert.True(t, plan.Impossible())
	})

	t.Run("upstream failure propagates", func(t *testing.T) {
		client := &fakeClient{err: errors.New("rate limited")}
		p := &Planner{Client: client}
		_, err := p.Generate(context.Background(), "anything", "")
		assert.Error(t, err)
	})
}

func TestPlannerRevise(t *testing.T) {
	original := Plan{Steps: []string{"filter to cats", "sort by size"}}

	t.Run("returns the revision", func(t *testing.T) {
		client := &fakeClient{structured: map[string]string{
			"revise a plan": `{"steps": ["filter to cats"]}`,
		}}
		p := &Planner{Client: client}
		revised := p.Revise(context.Background(), "q", "briefing", original, []StepFailure{{Index: 1, Reason: "no size field"}})
		assert.Equal(t, []string{"filter to cats"}, revised.Steps)
	})

	t.Run("keeps the original on failure", func(t *testing.T) {
		client := &fakeClient{err: errors.New("boom")}
		p := &Planner{Client: client}
		revised := p.Revise(context.Background(), "q", "briefing", original, nil)
		assert.Equal(t, original, revised)
	})

	t.Run("keeps the original on an empty revision", func(t *testing.T) {
		client := &fakeClient{structured: map[string]string{
			"revise a plan": `{"steps": []}`,
		}}
		p := &Planner{Client: client}
		revised := p.Revise(context.Background(), "q", "briefing", original, nil)
		assert.Equal(t, original, revised)
	})
}

func TestDelegate(t *testing.T) {
	t.Run("maps a step to a kind", func(t *testing.T) {
		client := &fakeClient{responses: map[string]string{"": "sort_by_similarity"}}
		d, err := Delegate(context.Background(), client, "sort by similarity to 'a red car'")
		require.NoError(t, err)
		assert.False(t, d.Impossible)
		assert.Equal(t, KindSortBySimilarity, d.Kind)
	})

	t.Run("scans prose answers for a kind", func(t *testing.T) {
		client := &fakeClient{responses: map[string]string{"": "the best fit is `limit`."}}
		d, err := Delegate(context.Background(), client, "keep only ten samples")
		require.NoError(t, err)
		assert.Equal(t, KindLimit, d.Kind)
	})

	t.Run("no-prefixed answers are impossible", func(t *testing.T) {
		client := &fakeClient{responses: map[string]string{"": "No operation can delete samples"}}
		d, err := Delegate(context.Background(), client, "delete all samples")
		require.NoError(t, err)
		assert.True(t, d.Impossible)
		assert.Contains(t, d.Reason, "delete")
	})

	t.Run("unrecognized answers are impossible", func(t *testing.T) {
		client := &fakeClient{responses: map[string]string{"": "frobnicate the view"}}
		d, err := Delegate(context.Background(), client, "do something odd")
		require.NoError(t, err)
		assert.True(t, d.Impossible)
	})
}
