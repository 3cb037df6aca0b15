package docs

import (
	"context"
	"fmt"
	"regexp"

	"voxelgpt/internal/embedding"
	"voxelgpt/internal/llm"
	"voxelgpt/internal/logging"
	"voxelgpt/internal/prompt"
)

// Retriever answers documentation questions: embed the query, pull
// the nearest chunks from the store, and synthesize an answer with a
// stuffed-context chain.
type Retriever struct {
	Store  *Store
	Engine embedding.Engine
	Client llm.Client
	TopK   int
}

// Answer streams the synthesized answer for a documentation question.
func (r *Retriever) Answer(ctx context.Context, question string) (<-chan llm.Chunk, error) {
	timer := logging.StartTimer(logging.CategoryDocs, "Answer")
	defer timer.Stop()

	queryVec, err := r.Engine.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	matches, err := r.Store.Search(queryVec, r.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no documentation is indexed")
	}
	logging.Docs("retrieved %d chunks for %q (best %.3f)", len(matches), question, matches[0].Similarity)

	contents := make([]string, len(matches))
	for i, m := range matches {
		contents[i] = m.Chunk.Content
	}

	rendered, err := prompt.Render("docs_qa", map[string]interface{}{
		"Chunks":   contents,
		"Question": question,
	})
	if err != nil {
		return nil, err
	}
	return r.Client.ChatStream(ctx, "", llm.UserMessage(rendered))
}

var bareURLRe = regexp.MustCompile(`(^|\s)(https?://[^\s)\]]+)`)

// Linkify wraps bare URLs in Markdown link syntax. Applied when the
// caller asked for the markdown dialect; URLs already inside links
// are left alone.
func Linkify(text string) string {
	return bareURLRe.ReplaceAllString(text, `$1[$2]($2)`)
}
