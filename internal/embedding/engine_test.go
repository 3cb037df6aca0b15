package embedding

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEngine is a deterministic in-memory engine that records how
// often the backend was hit.
type countingEngine struct {
	calls int
}

func (e *countingEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	vec := make([]float32, 4)
	for i, r := range text {
		vec[i%4] += float32(r)
	}
	return vec, nil
}

func (e *countingEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *countingEngine) Dimensions() int { return 4 }
func (e *countingEngine) Name() string    { return "counting" }

func TestNormalizeTaskType(t *testing.T) {
	t.Run("empty defaults to semantic similarity", func(t *testing.T) {
		assert.Equal(t, "SEMANTIC_SIMILARITY", normalizeTaskType(""))
	})

	t.Run("known values pass through", func(t *testing.T) {
		for _, v := range []string{"SEMANTIC_SIMILARITY", "RETRIEVAL_DOCUMENT", "RETRIEVAL_QUERY", "QUESTION_ANSWERING"} {
			assert.Equal(t, v, normalizeTaskType(v))
		}
	})

	t.Run("unknown values fall back", func(t *testing.T) {
		assert.Equal(t, "SEMANTIC_SIMILARITY", normalizeTaskType("CLUSTERING"))
	})
}

func TestCosineSimilarity(t *testing.T) {
	t.Run("identical vectors", func(t *testing.T) {
		s, err := CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, s, 1e-6)
	})

	t.Run("orthogonal vectors", func(t *testing.T) {
		s, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, s, 1e-6)
	})

	t.Run("opposite vectors", func(t *testing.T) {
		s, err := CosineSimilarity([]float32{1, 0}, []float32{-1, 0})
		require.NoError(t, err)
		assert.InDelta(t, -1.0, s, 1e-6)
	})

	t.Run("mismatched dimensions fail", func(t *testing.T) {
		_, err := CosineSimilarity([]float32{1}, []float32{1, 2})
		assert.Error(t, err)
	})
}

func TestFindTopK(t *testing.T) {
	query := []float32{1, 0}
	corpus := [][]float32{
		{0, 1},   // orthogonal
		{1, 0},   // identical
		{1, 0.2}, // close
		{-1, 0},  // opposite
	}

	results, err := FindTopK(query, corpus, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Index)
	assert.Equal(t, 2, results[1].Index)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestCachedEngine(t *testing.T) {
	ctx := context.Background()

	t.Run("repeat embeds hit the cache", func(t *testing.T) {
		inner := &countingEngine{}
		cached, err := NewCachedEngine(inner, t.TempDir())
		require.NoError(t, err)

		a, err := cached.Embed(ctx, "hello world")
		require.NoError(t, err)
		b, err := cached.Embed(ctx, "hello world")
		require.NoError(t, err)

		assert.Equal(t, a, b)
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("disk layer survives a new engine instance", func(t *testing.T) {
		dir := t.TempDir()
		inner := &countingEngine{}
		first, err := NewCachedEngine(inner, dir)
		require.NoError(t, err)
		want, err := first.Embed(ctx, "persistent text")
		require.NoError(t, err)

		second, err := NewCachedEngine(inner, dir)
		require.NoError(t, err)
		got, err := second.Embed(ctx, "persistent text")
		require.NoError(t, err)

		assert.Equal(t, want, got)
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("batch embeds only misses", func(t *testing.T) {
		inner := &countingEngine{}
		cached, err := NewCachedEngine(inner, t.TempDir())
		require.NoError(t, err)

		_, err = cached.Embed(ctx, "seen")
		require.NoError(t, err)

		vecs, err := cached.EmbedBatch(ctx, []string{"seen", "unseen"})
		require.NoError(t, err)
		require.Len(t, vecs, 2)
		assert.Equal(t, 2, inner.calls)
	})

	t.Run("different texts get different cache keys", func(t *testing.T) {
		inner := &countingEngine{}
		cached, err := NewCachedEngine(inner, t.TempDir())
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			_, err := cached.Embed(ctx, fmt.Sprintf("text %d", i))
			require.NoError(t, err)
		}
		assert.Equal(t, 3, inner.calls)
	})
}
