package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDialectRenderDocs(t *testing.T) {
	const answer = "See https://docs.voxel51.com for details."

	t.Run("string passes through", func(t *testing.T) {
		assert.Equal(t, answer, DialectString.renderDocs(answer))
	})

	t.Run("markdown linkifies bare urls", func(t *testing.T) {
		out := DialectMarkdown.renderDocs(answer)
		assert.Contains(t, out, "[https://docs.voxel51.com](https://docs.voxel51.com)")
	})

	t.Run("raw passes through", func(t *testing.T) {
		assert.Equal(t, answer, DialectRaw.renderDocs(answer))
	})
}
