package expr

import (
	"regexp"
	"strings"

	"voxelgpt/internal/logging"
)

// pseudoFields maps convenience identifiers the model likes to emit to
// their concrete field formulas. Replacements never contain the
// identifiers they replace, so the pass is idempotent.
var pseudoFields = []struct {
	name string
	re   *regexp.Regexp
	repl string
}{
	{name: "abs_bbox_area", re: wordRe("abs_bbox_area"),
		repl: `F("bounding_box")[2] * F("bounding_box")[3] * F("metadata.width") * F("metadata.height")`},
	{name: "abs_bbox_width", re: wordRe("abs_bbox_width"),
		repl: `F("bounding_box")[2] * F("metadata.width")`},
	{name: "abs_bbox_height", re: wordRe("abs_bbox_height"),
		repl: `F("bounding_box")[3] * F("metadata.height")`},
	{name: "rel_bbox_area", re: wordRe("rel_bbox_area"),
		repl: `F("bounding_box")[2] * F("bounding_box")[3]`},
	{name: "rel_bbox_width", re: wordRe("rel_bbox_width"),
		repl: `F("bounding_box")[2]`},
	{name: "rel_bbox_height", re: wordRe("rel_bbox_height"),
		repl: `F("bounding_box")[3]`},
	{name: "bbox_volume", re: wordRe("bbox_volume"),
		repl: `F("dimensions")[0] * F("dimensions")[1] * F("dimensions")[2]`},
	{name: "image_area", re: wordRe("image_area"),
		repl: `F("metadata.width") * F("metadata.height")`},
	{name: "image_width", re: wordRe("image_width"),
		repl: `F("metadata.width")`},
	{name: "image_height", re: wordRe("image_height"),
		repl: `F("metadata.height")`},
}

func wordRe(word string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + word + `\b`)
}

var (
	thresholdRe   = regexp.MustCompile(`\bthreshold\b`)
	thresholdGtRe = regexp.MustCompile(`>=?\s*threshold\b|\bthreshold\s*<=?`)
)

// Rewrite normalizes a raw expression string emitted by the model.
// Applied unconditionally, in order: strip paired quotes, strip
// backtick fences, substitute pseudo-fields, substitute the literal
// token "threshold". The whole pass is idempotent.
func Rewrite(src string) string {
	out := strings.TrimSpace(src)

	// Paired surrounding quotes.
	for len(out) >= 2 {
		first, last := out[0], out[len(out)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			out = strings.TrimSpace(out[1 : len(out)-1])
			continue
		}
		break
	}

	// Backtick fences.
	out = strings.TrimSpace(strings.Trim(out, "`"))
	if idx := strings.Index(out, "\n"); strings.HasPrefix(out, "python") && idx >= 0 {
		out = strings.TrimSpace(out[idx:])
	}

	for _, pf := range pseudoFields {
		if pf.re.MatchString(out) {
			out = pf.re.ReplaceAllString(out, pf.repl)
			logging.ExprDebug("rewrote pseudo-field %s", pf.name)
		}
	}

	if thresholdRe.MatchString(out) {
		// A numeric fallback for imprecise prompts: 0.9 when the user
		// asks for values above the threshold, 0.1 otherwise.
		value := "0.1"
		if thresholdGtRe.MatchString(out) {
			value = "0.9"
		}
		out = thresholdRe.ReplaceAllString(out, value)
		logging.Get(logging.CategoryExpr).Warn("substituted literal 'threshold' with %s in %q", value, out)
	}

	return out
}
