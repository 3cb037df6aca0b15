package dispatch

import "voxelgpt/internal/docs"

// Dialect controls how final messages are rendered.
type Dialect string

const (
	// DialectString emits messages verbatim.
	DialectString Dialect = "string"

	// DialectMarkdown emits Markdown; bare URLs in documentation
	// answers are wrapped in link syntax.
	DialectMarkdown Dialect = "markdown"

	// DialectRaw emits event payloads unrendered, for consumers that
	// want the structured events without any prose post-processing.
	DialectRaw Dialect = "raw"
)

// renderDocs applies dialect-specific post-processing to a
// documentation answer.
func (d Dialect) renderDocs(text string) string {
	if d == DialectMarkdown {
		return docs.Linkify(text)
	}
	return text
}
