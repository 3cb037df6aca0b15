package aggregate

import (
	"testing"

	"voxelgpt/internal/dataset"

	"github.com/stretchr/testify/assert"
)

func TestClassifyKind(t *testing.T) {
	cases := []struct {
		response string
		want     dataset.AggKind
	}{
		{"count", dataset.AggCount},
		{"count_values", dataset.AggCountValues},
		{"use count-values here", dataset.AggCountValues},
		{"distinct", dataset.AggDistinct},
		{"the values aggregator", dataset.AggValues},
		{"bounds", dataset.AggBounds},
		{"sum", dataset.AggSum},
		{"mean", dataset.AggMean},
		{"the average", dataset.AggMean},
		{"standard deviation", dataset.AggStd},
		{"min", dataset.AggMin},
		{"max", dataset.AggMax},
		{"something unrecognizable", dataset.AggCount},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyKind(tc.response), "response %q", tc.response)
	}
}

func TestCountNeedsFilter(t *testing.T) {
	assert.True(t, countNeedsFilter("count images with cats"))
	assert.True(t, countNeedsFilter("how many samples where confidence > 0.5"))
	assert.False(t, countNeedsFilter("how many samples"))
}

func TestIsBarePath(t *testing.T) {
	assert.True(t, isBarePath("uniqueness"))
	assert.True(t, isBarePath("predictions.detections.label"))
	assert.False(t, isBarePath(`F("uniqueness") > 0.5`))
	assert.False(t, isBarePath(""))
	assert.False(t, isBarePath("a b"))
}
