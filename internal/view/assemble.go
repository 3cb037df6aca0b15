package view

import (
	"context"
	"fmt"
	"strings"

	"voxelgpt/internal/dataset"
	"voxelgpt/internal/geocode"
	"voxelgpt/internal/llm"
	"voxelgpt/internal/logging"
	"voxelgpt/internal/view/expr"
)

// Assembler validates, builds, reorders, and folds constructed stages
// into a view.
type Assembler struct {
	Client   llm.Client
	Geocoder geocode.Geocoder
}

// Result is the outcome of assembling one plan. View is nil when
// folding failed; Warnings carries every degraded outcome.
type Result struct {
	View     dataset.Collection
	Reprs    []string
	Warnings []string
	Failures []StepFailure
}

// DelegateAll assigns a stage kind to every plan step. Used by the
// dispatcher to drive targeted inspection before assembly.
func DelegateAll(ctx context.Context, client llm.Client, plan Plan) ([]Delegation, error) {
	out := make([]Delegation, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		d, err := Delegate(ctx, client, step)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Kinds extracts the achievable stage kinds from a delegation set.
func Kinds(delegations []Delegation) []string {
	var out []string
	for _, d := range delegations {
		if !d.Impossible {
			out = append(out, string(d.Kind))
		}
	}
	return out
}

// Assemble runs the full pipeline for one plan: delegate, construct,
// validate, build, hoist, materialize prerequisites, and fold.
func (a *Assembler) Assemble(ctx context.Context, col dataset.Collection, plan Plan, query, briefing string) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryAssembler, "Assemble")
	defer timer.Stop()

	res := &Result{}

	delegations, err := DelegateAll(ctx, a.Client, plan)
	if err != nil {
		return nil, err
	}

	constructor := &Constructor{Client: a.Client, Col: col}
	var applied []dataset.AppliedStage

	for i, d := range delegations {
		if d.Impossible {
			res.Failures = append(res.Failures, StepFailure{Index: i, Reason: d.Reason})
			res.Warnings = append(res.Warnings, fmt.Sprintf("Step %q cannot be performed: %s", d.Step, d.Reason))
			continue
		}

		stage, err := constructor.Construct(ctx, d.Kind, d.Step, query, briefing)
		if err != nil {
			res.Failures = append(res.Failures, StepFailure{Index: i, Reason: err.Error()})
			res.Warnings = append(res.Warnings, fmt.Sprintf("Skipped step %q: %v", d.Step, err))
			continue
		}

		stage, diag := a.validate(ctx, col, stage, res)
		if diag != "" {
			res.Failures = append(res.Failures, StepFailure{Index: i, Reason: diag})
			res.Warnings = append(res.Warnings, diag)
			continue
		}
		if stage == nil {
			// Dropped silently by the validator.
			continue
		}

		built, err := a.build(ctx, stage)
		if err != nil {
			res.Failures = append(res.Failures, StepFailure{Index: i, Reason: err.Error()})
			res.Warnings = append(res.Warnings, fmt.Sprintf("Could not build step %q: %v", d.Step, err))
			continue
		}
		applied = append(applied, built)
	}

	applied = hoistGeoStages(applied)
	for _, s := range applied {
		res.Reprs = append(res.Reprs, s.Repr)
	}

	if needsMetadata(res.Reprs) && !col.HasMetadata() {
		logging.Assembler("computing metadata before applying stages")
		if err := col.ComputeMetadata(); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("Could not compute metadata: %v", err))
		}
	}

	view := col
	for _, s := range applied {
		next, err := view.WithStage(s)
		if err != nil {
			logging.Get(logging.CategoryAssembler).Error("folding %s failed: %v", s.Kind, err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("Could not apply %s: %v", s.Repr, err))
			res.View = nil
			res.Reprs = nil
			return res, nil
		}
		view = next
	}

	if len(applied) > 0 {
		res.View = view
	}
	return res, nil
}

// validate enforces the per-kind floor: referenced fields must exist,
// referenced tags and classes resolve per precedence, brain keys must
// exist with the required capabilities. Returns (nil, "") to drop
// silently or ("", diagnostic) to promote the step to impossible.
func (a *Assembler) validate(ctx context.Context, col dataset.Collection, stage *Stage, res *Result) (*Stage, string) {
	sp := specs[stage.Kind]

	for _, field := range stageFields(stage) {
		if _, ok := col.FieldSchema(field); !ok {
			return nil, fmt.Sprintf("Field %q does not exist on the dataset (stage %s)", field, stage.Kind)
		}
	}

	switch stage.Kind {
	case KindMatchTags:
		allowed, err := col.Tags()
		if err == nil {
			var resolved []string
			for _, tag := range asStringList(stage.Params["tags"]) {
				name, ok := ResolveName(ctx, a.Client, tag, allowed)
				if !ok {
					res.Warnings = append(res.Warnings, fmt.Sprintf("Tag %q does not exist on the dataset", tag))
				}
				resolved = append(resolved, name)
			}
			stage.Params["tags"] = resolved
		}

	case KindSortBySimilarity:
		run, ok := promptSimilarityRun(col, stage.Params["brain_key"])
		if !ok {
			return nil, "No text-similarity index exists on the dataset; cannot sort by similarity to text"
		}
		stage.Params["brain_key"] = run.Key

	case KindToEvaluationPatches:
		key, _ := stage.Params["eval_key"].(string)
		found := false
		for _, r := range col.EvalRuns() {
			if r.Key == key {
				found = true
			}
		}
		if !found {
			var keys []string
			for _, r := range col.EvalRuns() {
				keys = append(keys, r.Key)
			}
			if resolved, ok := ResolveName(ctx, a.Client, key, keys); ok {
				stage.Params["eval_key"] = resolved
			} else {
				return nil, fmt.Sprintf("Evaluation run %q does not exist on the dataset", key)
			}
		}

	case KindMapLabels:
		// Keys of the remap table are class names in the target field.
		field, _ := stage.Params["field"].(string)
		if mapping, ok := stage.Params["map"].(map[string]interface{}); ok {
			if classes, err := col.ClassNames(field); err == nil && len(classes) > 0 {
				remapped := make(map[string]interface{}, len(mapping))
				for from, to := range mapping {
					name, ok := ResolveName(ctx, a.Client, from, classes)
					if !ok {
						res.Warnings = append(res.Warnings, fmt.Sprintf("Class %q does not exist in field %q", from, field))
					}
					remapped[name] = to
				}
				stage.Params["map"] = remapped
			}
		}

	case KindSelectBy:
		// On a label field the values are class names.
		field, _ := stage.Params["field"].(string)
		if f, ok := col.FieldSchema(field); ok && f.IsLabel() {
			if classes, err := col.ClassNames(field); err == nil && len(classes) > 0 {
				var resolved []interface{}
				for _, v := range asList(stage.Params["values"]) {
					s, isString := v.(string)
					if !isString {
						resolved = append(resolved, v)
						continue
					}
					name, ok := ResolveName(ctx, a.Client, s, classes)
					if !ok {
						res.Warnings = append(res.Warnings, fmt.Sprintf("Class %q does not exist in field %q", s, field))
					}
					resolved = append(resolved, name)
				}
				stage.Params["values"] = resolved
			}
		}

	case KindSelectGroupSlices:
		if col.MediaType() != dataset.MediaGroup {
			return nil, "The dataset is not grouped; group slices cannot be selected"
		}

	case KindToPatches:
		field, _ := stage.Params["field"].(string)
		if f, ok := col.FieldSchema(field); ok && f.LabelType != dataset.LabelDetections {
			return nil, fmt.Sprintf("Field %q is not a detections field; cannot convert to patches", field)
		}
	}

	if sp.HasFilter && stage.Filter != "" {
		allowed := filterClassCandidates(col, stage)
		source, unresolved := resolveFilterClasses(ctx, a.Client, stage.Filter, allowed)
		stage.Filter = source
		for _, name := range unresolved {
			// Unresolved names stay in the stage; the collection will
			// ultimately report them.
			res.Warnings = append(res.Warnings, fmt.Sprintf("Class %q does not exist in the dataset", name))
		}
	}

	return stage, ""
}

// build compiles the filter slot and performs geocoding, producing the
// applied-stage record the collection consumes.
func (a *Assembler) build(ctx context.Context, stage *Stage) (dataset.AppliedStage, error) {
	params := make(map[string]interface{}, len(stage.Params)+2)
	for k, v := range stage.Params {
		params[k] = v
	}

	if stage.Filter != "" {
		compiled, err := expr.Compile(stage.Filter)
		if err != nil {
			return dataset.AppliedStage{}, fmt.Errorf("filter evaluation failed: %w", err)
		}
		params["filter"] = compiled
	}

	switch stage.Kind {
	case KindGeoNear:
		place, _ := stage.Params["location"].(string)
		if a.Geocoder == nil {
			return dataset.AppliedStage{}, fmt.Errorf("no geocoder configured")
		}
		point, err := a.Geocoder.Point(ctx, place)
		if err != nil {
			return dataset.AppliedStage{}, fmt.Errorf("geocoding %q failed: %w", place, err)
		}
		params["point"] = point
	case KindGeoWithin:
		place, _ := stage.Params["location"].(string)
		if a.Geocoder == nil {
			return dataset.AppliedStage{}, fmt.Errorf("no geocoder configured")
		}
		boundary, err := a.Geocoder.Boundary(ctx, place)
		if err != nil {
			return dataset.AppliedStage{}, fmt.Errorf("geocoding %q failed: %w", place, err)
		}
		params["boundary"] = boundary
	}

	return dataset.AppliedStage{
		Kind:   string(stage.Kind),
		Params: params,
		Repr:   stage.Repr(),
	}, nil
}

// hoistGeoStages moves geo stages to the front: GeoNear first, then
// GeoWithin, then everything else in plan order. The underlying
// collection requires geographic stages to constrain the candidate
// set before other stages run.
func hoistGeoStages(stages []dataset.AppliedStage) []dataset.AppliedStage {
	var near, within, rest []dataset.AppliedStage
	for _, s := range stages {
		switch s.Kind {
		case string(KindGeoNear):
			near = append(near, s)
		case string(KindGeoWithin):
			within = append(within, s)
		default:
			rest = append(rest, s)
		}
	}
	if len(near)+len(within) == 0 {
		return stages
	}
	out := make([]dataset.AppliedStage, 0, len(stages))
	out = append(out, near...)
	out = append(out, within...)
	out = append(out, rest...)
	return out
}

func needsMetadata(reprs []string) bool {
	for _, r := range reprs {
		if strings.Contains(r, "metadata") {
			return true
		}
	}
	return false
}

// promptSimilarityRun finds a prompt-supporting similarity run,
// honoring an explicit brain key when one was extracted.
func promptSimilarityRun(col dataset.Collection, keyParam interface{}) (dataset.BrainRun, bool) {
	want, _ := keyParam.(string)
	var fallback *dataset.BrainRun
	for _, r := range col.BrainRuns() {
		if r.Type != dataset.BrainSimilarity || !r.SupportsPrompts {
			continue
		}
		if want != "" && r.Key == want {
			return r, true
		}
		if fallback == nil {
			run := r
			fallback = &run
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return dataset.BrainRun{}, false
}

// filterClassCandidates unions the class names of the label fields a
// filter stage targets.
func filterClassCandidates(col dataset.Collection, stage *Stage) []string {
	fields := stageFields(stage)
	if len(fields) == 0 {
		for _, lt := range []string{dataset.LabelDetections, dataset.LabelClassification} {
			for _, f := range col.FieldsByLabelType(lt) {
				fields = append(fields, f.Path)
			}
		}
	}
	seen := make(map[string]bool)
	var out []string
	for _, field := range fields {
		classes, err := col.ClassNames(field)
		if err != nil {
			continue
		}
		for _, c := range classes {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

func asList(v interface{}) []interface{} {
	switch list := v.(type) {
	case []interface{}:
		return list
	case []string:
		out := make([]interface{}, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out
	}
	return nil
}

func asStringList(v interface{}) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		var out []string
		for _, el := range list {
			if s, ok := el.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
