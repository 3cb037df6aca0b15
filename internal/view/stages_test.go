package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupKind(t *testing.T) {
	t.Run("snake case", func(t *testing.T) {
		k, ok := LookupKind("filter_labels")
		require.True(t, ok)
		assert.Equal(t, KindFilterLabels, k)
	})

	t.Run("camel case", func(t *testing.T) {
		k, ok := LookupKind("FilterLabels")
		require.True(t, ok)
		assert.Equal(t, KindFilterLabels, k)
	})

	t.Run("trims punctuation", func(t *testing.T) {
		k, ok := LookupKind("`limit`.")
		require.True(t, ok)
		assert.Equal(t, KindLimit, k)
	})

	t.Run("unknown names fail", func(t *testing.T) {
		_, ok := LookupKind("delete_samples")
		assert.False(t, ok)
	})

	t.Run("every kind resolves to itself", func(t *testing.T) {
		for _, k := range AllKinds {
			got, ok := LookupKind(string(k))
			require.True(t, ok, "kind %s", k)
			assert.Equal(t, k, got)
		}
	})
}

func TestKindDoc(t *testing.T) {
	for _, k := range AllKinds {
		assert.NotEmpty(t, KindDoc(k), "kind %s has no doc fragment", k)
	}
}

func TestStageRepr(t *testing.T) {
	t.Run("params in deterministic order", func(t *testing.T) {
		s := &Stage{Kind: KindGeoNear, Params: map[string]interface{}{
			"max_distance": 5000,
			"location":     "Paris",
		}}
		assert.Equal(t, "geo_near(location=Paris, max_distance=5000)", s.Repr())
	})

	t.Run("filter appended last", func(t *testing.T) {
		s := &Stage{Kind: KindMatch, Filter: `F("a") > 1`}
		assert.Equal(t, `match(filter=F("a") > 1)`, s.Repr())
	})
}
