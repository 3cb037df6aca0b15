package dataset

import (
	"fmt"
	"regexp"
	"strings"

	"voxelgpt/internal/logging"
)

// classListThreshold caps how many distinct classes a briefing will
// enumerate per field.
const classListThreshold = 100

// Stage-kind groups the briefing cares about.
var (
	fieldTouchingKinds = map[string]bool{
		"exists": true, "select_fields": true, "exclude_fields": true,
		"select_by": true, "sort_by": true, "group_by": true,
		"filter_field": true, "match": true, "limit_labels": true,
	}
	labelTouchingKinds = map[string]bool{
		"filter_labels": true, "match_labels": true, "select_labels": true,
		"map_labels": true, "limit_labels": true, "to_patches": true,
	}
	geoKinds     = map[string]bool{"geo_near": true, "geo_within": true}
	patchesKinds = map[string]bool{"to_patches": true, "to_evaluation_patches": true}
)

var quotedNameRe = regexp.MustCompile(`["'` + "`" + `]([^"'` + "`" + `]+)["'` + "`" + `]`)

// Briefing produces a plaintext schema summary covering exactly what
// the given plan needs. Plans generated without this grounding
// hallucinate fields and classes that do not exist.
func Briefing(col Collection, planText string, kinds []string) string {
	timer := logging.StartTimer(logging.CategoryIntrospect, "Briefing")
	defer timer.Stop()

	kindSet := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}
	anyOf := func(group map[string]bool) bool {
		for k := range kindSet {
			if group[k] {
				return true
			}
		}
		return false
	}

	var sections []string

	if anyOf(fieldTouchingKinds) {
		var lines []string
		for _, f := range col.Schema() {
			t := f.Type
			if f.IsLabel() {
				t = f.LabelType
			}
			lines = append(lines, fmt.Sprintf("  %s: %s", f.Path, t))
		}
		if len(lines) > 0 {
			sections = append(sections, "Fields:\n"+strings.Join(lines, "\n"))
		}
	}

	if anyOf(geoKinds) {
		if len(col.FieldsByLabelType(LabelGeoLocation)) > 0 {
			sections = append(sections, "The dataset has a geolocation field.")
		} else {
			sections = append(sections, "The dataset has no geolocation field; geographic operations will not work.")
		}
	}

	if kindSet["select_group_slices"] {
		if col.MediaType() == MediaGroup {
			sections = append(sections, fmt.Sprintf("The dataset is grouped with slices: %s", strings.Join(col.GroupSlices(), ", ")))
		} else {
			sections = append(sections, fmt.Sprintf("The dataset is not grouped (media type %s); group slices cannot be selected.", col.MediaType()))
		}
	}

	if anyOf(labelTouchingKinds) {
		if s := labelFieldSection(col); s != "" {
			sections = append(sections, s)
		}
		if mentionsClasses(planText) {
			if s := classListSection(col); s != "" {
				sections = append(sections, s)
			}
		}
	}

	if anyOf(patchesKinds) {
		detFields := col.FieldsByLabelType(LabelDetections)
		hasDetEval := false
		for _, r := range col.EvalRuns() {
			if r.Type == EvalDetection {
				hasDetEval = true
			}
		}
		sections = append(sections, fmt.Sprintf(
			"Patches support: %d detection fields, detection evaluation runs present: %v", len(detFields), hasDetEval))
	}

	if kindSet["sort_by_similarity"] {
		var keys []string
		for _, r := range col.BrainRuns() {
			if r.Type == BrainSimilarity && r.SupportsPrompts {
				keys = append(keys, r.Key)
			}
		}
		if len(keys) > 0 {
			sections = append(sections, "Text-similarity brain runs: "+strings.Join(keys, ", "))
		} else {
			sections = append(sections, "No text-similarity brain run exists; similarity sorting by text will not work.")
		}
	}

	if kindSet["match_tags"] {
		if tags, err := col.Tags(); err == nil && len(tags) > 0 {
			sections = append(sections, "Sample tags: "+strings.Join(tags, ", "))
		}
	}

	if len(sections) == 0 {
		return "No schema details are relevant to this plan."
	}
	briefing := strings.Join(sections, "\n\n")
	logging.Get(logging.CategoryIntrospect).Debug("briefing: %d sections, %d chars", len(sections), len(briefing))
	return briefing
}

// labelFieldSection enumerates label fields with a cheap heuristic:
// labels carrying confidences are likely predictions, the rest likely
// ground truth.
func labelFieldSection(col Collection) string {
	var lines []string
	for _, lt := range []string{LabelClassification, LabelDetections, LabelPolylines} {
		for _, f := range col.FieldsByLabelType(lt) {
			role := "likely ground truth"
			if hasConfidences(col, f) {
				role = "likely predictions"
			}
			lines = append(lines, fmt.Sprintf("  %s (%s, %s)", f.Path, lt, role))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "Label fields:\n" + strings.Join(lines, "\n")
}

func hasConfidences(col Collection, f Field) bool {
	path := f.Path + ".confidence"
	if f.LabelType == LabelDetections {
		path = f.Path + ".detections.confidence"
	} else if f.LabelType == LabelPolylines {
		path = f.Path + ".polylines.confidence"
	}
	n, err := col.CountField(path)
	return err == nil && n > 0
}

func classListSection(col Collection) string {
	var lines []string
	for _, lt := range []string{LabelClassification, LabelDetections, LabelPolylines} {
		for _, f := range col.FieldsByLabelType(lt) {
			classes, err := col.ClassNames(f.Path)
			if err != nil || len(classes) == 0 || len(classes) >= classListThreshold {
				continue
			}
			lines = append(lines, fmt.Sprintf("  %s: %s", f.Path, strings.Join(classes, ", ")))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "Label classes:\n" + strings.Join(lines, "\n")
}

// mentionsClasses reports whether the plan text references specific
// class names (quoted strings) or talks about labels/classes at all.
func mentionsClasses(planText string) bool {
	lower := strings.ToLower(planText)
	if strings.Contains(lower, "label") || strings.Contains(lower, "class") {
		return true
	}
	return quotedNameRe.MatchString(planText)
}
