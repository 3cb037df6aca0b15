package router

import (
	"context"
	"sync"

	"voxelgpt/internal/embedding"
	"voxelgpt/internal/logging"
	"voxelgpt/internal/prompt"
)

// matchThreshold is the cosine similarity above which a canned
// example answers for the query.
const matchThreshold = 0.92

// ExampleMatcher shortcuts recurring schema questions by embedding
// similarity against a canned example table. Example embeddings are
// computed once and cached on disk by the engine's cache layer.
type ExampleMatcher struct {
	Engine embedding.Engine

	once     sync.Once
	examples []prompt.SchemaExample
	vectors  [][]float32
	initErr  error
}

// NewExampleMatcher creates a matcher over the embedded example table.
func NewExampleMatcher(engine embedding.Engine) *ExampleMatcher {
	return &ExampleMatcher{Engine: engine}
}

func (m *ExampleMatcher) init(ctx context.Context) {
	m.examples, m.initErr = prompt.LoadSchemaExamples()
	if m.initErr != nil {
		return
	}
	texts := make([]string, len(m.examples))
	for i, ex := range m.examples {
		texts[i] = ex.Query
	}
	m.vectors, m.initErr = m.Engine.EmbedBatch(ctx, texts)
}

// Match returns the target intent of the most similar example when
// its similarity clears the threshold.
func (m *ExampleMatcher) Match(ctx context.Context, query string) (Intent, bool) {
	m.once.Do(func() { m.init(ctx) })
	if m.initErr != nil {
		logging.Get(logging.CategoryRouter).Warn("example matcher unavailable: %v", m.initErr)
		return "", false
	}

	queryVec, err := m.Engine.Embed(ctx, query)
	if err != nil {
		logging.Get(logging.CategoryRouter).Warn("query embedding failed: %v", err)
		return "", false
	}

	results, err := embedding.FindTopK(queryVec, m.vectors, 1)
	if err != nil || len(results) == 0 {
		return "", false
	}
	best := results[0]
	if best.Similarity < matchThreshold {
		logging.RouterDebug("best example %.3f below threshold", best.Similarity)
		return "", false
	}
	return MapResponse(m.examples[best.Index].Target), true
}
