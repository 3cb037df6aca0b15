package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewrite(t *testing.T) {
	t.Run("strips paired quotes and backticks", func(t *testing.T) {
		assert.Equal(t, `F('a') > 1`, Rewrite(`"F('a') > 1"`))
		assert.Equal(t, `F("a") > 1`, Rewrite("`F(\"a\") > 1`"))
	})

	t.Run("strips code fences", func(t *testing.T) {
		assert.Equal(t, `F("a") > 1`, Rewrite("```python\nF(\"a\") > 1\n```"))
	})

	t.Run("expands bbox pseudo-fields", func(t *testing.T) {
		out := Rewrite(`abs_bbox_width > 50`)
		assert.Contains(t, out, `F("bounding_box")[2]`)
		assert.Contains(t, out, `F("metadata.width")`)
		assert.NotContains(t, out, "abs_bbox_width")
	})

	t.Run("expands image pseudo-fields", func(t *testing.T) {
		out := Rewrite(`image_width > 1000`)
		assert.Equal(t, `F("metadata.width") > 1000`, out)
	})

	t.Run("area expands before width", func(t *testing.T) {
		out := Rewrite(`rel_bbox_area > 0.5`)
		assert.NotContains(t, out, "rel_bbox_")
	})

	t.Run("threshold above becomes 0.9", func(t *testing.T) {
		assert.Equal(t, `F("confidence") > 0.9`, Rewrite(`F("confidence") > threshold`))
		assert.Equal(t, `F("confidence") >= 0.9`, Rewrite(`F("confidence") >= threshold`))
	})

	t.Run("threshold below becomes 0.1", func(t *testing.T) {
		assert.Equal(t, `F("confidence") < 0.1`, Rewrite(`F("confidence") < threshold`))
		assert.Equal(t, `0.1 > F("confidence")`, Rewrite(`threshold > F("confidence")`))
	})

	t.Run("word boundaries protect field names", func(t *testing.T) {
		out := Rewrite(`F("my_image_width_px") > 10`)
		assert.Equal(t, `F("my_image_width_px") > 10`, out)
	})

	t.Run("idempotent", func(t *testing.T) {
		for _, src := range []string{
			`abs_bbox_area > 100`,
			`F("confidence") > threshold`,
			`image_height < 480`,
			"`F(\"label\") == 'cat'`",
		} {
			once := Rewrite(src)
			assert.Equal(t, once, Rewrite(once), "source %q", src)
		}
	})
}
