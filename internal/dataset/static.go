package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
)

// StaticCollection is an in-memory Collection backed by a slice of
// sample documents. It applies the stage kinds it can evaluate locally
// and records the rest, which is enough for the CLI demo and tests.
type StaticCollection struct {
	name        string
	mediaType   MediaType
	groupSlices []string
	fields      []Field
	samples     []map[string]interface{}
	brainRuns   []BrainRun
	evalRuns    []EvalRun
	runs        []Run
	hasMetadata bool
	stages      []AppliedStage
}

// StaticConfig seeds a StaticCollection.
type StaticConfig struct {
	Name        string
	MediaType   MediaType
	GroupSlices []string
	Fields      []Field
	Samples     []map[string]interface{}
	BrainRuns   []BrainRun
	EvalRuns    []EvalRun
	Runs        []Run
	HasMetadata bool
}

// NewStaticCollection builds a collection from the given config.
func NewStaticCollection(cfg StaticConfig) *StaticCollection {
	mt := cfg.MediaType
	if mt == "" {
		mt = MediaImage
	}
	return &StaticCollection{
		name:        cfg.Name,
		mediaType:   mt,
		groupSlices: cfg.GroupSlices,
		fields:      cfg.Fields,
		samples:     cfg.Samples,
		brainRuns:   cfg.BrainRuns,
		evalRuns:    cfg.EvalRuns,
		runs:        cfg.Runs,
		hasMetadata: cfg.HasMetadata,
	}
}

func (c *StaticCollection) Name() string           { return c.name }
func (c *StaticCollection) MediaType() MediaType   { return c.mediaType }
func (c *StaticCollection) GroupSlices() []string  { return c.groupSlices }
func (c *StaticCollection) Schema() []Field        { return c.fields }
func (c *StaticCollection) BrainRuns() []BrainRun  { return c.brainRuns }
func (c *StaticCollection) EvalRuns() []EvalRun    { return c.evalRuns }
func (c *StaticCollection) Runs() []Run            { return c.runs }
func (c *StaticCollection) HasMetadata() bool      { return c.hasMetadata }
func (c *StaticCollection) Stages() []AppliedStage { return c.stages }

// Samples returns the current sample documents. Not part of the
// Collection surface; used by tests and the demo.
func (c *StaticCollection) Samples() []map[string]interface{} { return c.samples }

func (c *StaticCollection) FieldsByLabelType(labelType string) []Field {
	var out []Field
	for _, f := range c.fields {
		if f.LabelType == labelType {
			out = append(out, f)
		}
	}
	return out
}

func (c *StaticCollection) FieldSchema(path string) (Field, bool) {
	for _, f := range c.fields {
		if f.Path == path {
			return f, true
		}
	}
	return Field{}, false
}

func (c *StaticCollection) Distinct(path string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, s := range c.samples {
		for _, v := range extractValues(s, path) {
			str, ok := v.(string)
			if !ok {
				str = fmt.Sprintf("%v", v)
			}
			if !seen[str] {
				seen[str] = true
				out = append(out, str)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (c *StaticCollection) Tags() ([]string, error) {
	return c.Distinct("tags")
}

// ClassNames lists the distinct label classes in a label field,
// descending into the embedded label list when present.
func (c *StaticCollection) ClassNames(field string) ([]string, error) {
	f, ok := c.FieldSchema(field)
	if !ok {
		return nil, fmt.Errorf("field %q does not exist", field)
	}
	path := field + ".label"
	if f.LabelType == LabelDetections {
		path = field + ".detections.label"
	} else if f.LabelType == LabelPolylines {
		path = field + ".polylines.label"
	} else if f.LabelType == LabelKeypoints {
		path = field + ".keypoints.label"
	}
	return c.Distinct(path)
}

func (c *StaticCollection) Count() (int, error) {
	return len(c.samples), nil
}

func (c *StaticCollection) CountField(path string) (int, error) {
	n := 0
	for _, s := range c.samples {
		if len(extractValues(s, path)) > 0 {
			n++
		}
	}
	return n, nil
}

func (c *StaticCollection) First() (map[string]interface{}, bool) {
	if len(c.samples) == 0 {
		return nil, false
	}
	return c.samples[0], true
}

// ComputeMetadata fills in a minimal metadata document for samples
// that lack one.
func (c *StaticCollection) ComputeMetadata() error {
	for _, s := range c.samples {
		if _, ok := s["metadata"]; !ok {
			s["metadata"] = map[string]interface{}{
				"width":      0.0,
				"height":     0.0,
				"size_bytes": 0.0,
			}
		}
	}
	c.hasMetadata = true
	return nil
}

// clone copies the collection with a new sample slice.
func (c *StaticCollection) clone(samples []map[string]interface{}) *StaticCollection {
	out := *c
	out.samples = samples
	out.stages = append([]AppliedStage(nil), c.stages...)
	return &out
}

// WithStage applies one view stage. Stage kinds with local semantics
// transform the sample slice; the rest are recorded verbatim.
func (c *StaticCollection) WithStage(stage AppliedStage) (Collection, error) {
	out := c.clone(c.samples)

	switch stage.Kind {
	case "limit":
		n := paramInt(stage.Params, "limit", len(c.samples))
		if n < len(out.samples) {
			out.samples = out.samples[:n]
		}
	case "skip":
		n := paramInt(stage.Params, "skip", 0)
		if n >= len(out.samples) {
			out.samples = nil
		} else {
			out.samples = out.samples[n:]
		}
	case "take":
		n := paramInt(stage.Params, "size", len(c.samples))
		seed := int64(paramInt(stage.Params, "seed", 51))
		shuffled := shuffleSamples(out.samples, seed)
		if n < len(shuffled) {
			shuffled = shuffled[:n]
		}
		out.samples = shuffled
	case "shuffle":
		seed := int64(paramInt(stage.Params, "seed", 51))
		out.samples = shuffleSamples(out.samples, seed)
	case "exists":
		field, _ := stage.Params["field"].(string)
		want := paramBool(stage.Params, "bool", true)
		out.samples = filterSamples(out.samples, func(s map[string]interface{}) bool {
			return (len(extractValues(s, field)) > 0) == want
		})
	case "match":
		ev, ok := stage.Params["filter"].(Evaluator)
		if !ok {
			return nil, fmt.Errorf("match stage missing compiled filter")
		}
		var evalErr error
		out.samples = filterSamples(out.samples, func(s map[string]interface{}) bool {
			v, err := ev.Eval(s)
			if err != nil {
				evalErr = err
				return false
			}
			return truthy(v)
		})
		if evalErr != nil {
			return nil, fmt.Errorf("filter evaluation failed: %w", evalErr)
		}
	case "match_tags":
		tags := paramStrings(stage.Params, "tags")
		want := paramBool(stage.Params, "bool", true)
		all := paramBool(stage.Params, "all", false)
		out.samples = filterSamples(out.samples, func(s map[string]interface{}) bool {
			have := make(map[string]bool)
			for _, v := range extractValues(s, "tags") {
				if str, ok := v.(string); ok {
					have[str] = true
				}
			}
			matched := 0
			for _, t := range tags {
				if have[t] {
					matched++
				}
			}
			hit := matched > 0
			if all {
				hit = matched == len(tags)
			}
			return hit == want
		})
	case "sort_by":
		field, _ := stage.Params["field"].(string)
		reverse := paramBool(stage.Params, "reverse", false)
		sorted := append([]map[string]interface{}(nil), out.samples...)
		sort.SliceStable(sorted, func(i, j int) bool {
			a := firstNumeric(sorted[i], field)
			b := firstNumeric(sorted[j], field)
			if reverse {
				return a > b
			}
			return a < b
		})
		out.samples = sorted
	case "select_by":
		field, _ := stage.Params["field"].(string)
		values := paramStrings(stage.Params, "values")
		want := make(map[string]bool, len(values))
		for _, v := range values {
			want[v] = true
		}
		out.samples = filterSamples(out.samples, func(s map[string]interface{}) bool {
			for _, v := range extractValues(s, field) {
				if want[fmt.Sprintf("%v", v)] {
					return true
				}
			}
			return false
		})
	default:
		// Recorded but not locally evaluated.
	}

	out.stages = append(out.stages, stage)
	return out, nil
}

// Aggregate computes the aggregation over the current samples.
func (c *StaticCollection) Aggregate(agg Aggregation) (interface{}, error) {
	if agg.Kind == AggCount && agg.Field == "" && agg.Expr == nil {
		return len(c.samples), nil
	}

	values, err := c.aggValues(agg)
	if err != nil {
		return nil, err
	}

	switch agg.Kind {
	case AggCount:
		return len(values), nil
	case AggValues:
		return values, nil
	case AggDistinct:
		seen := make(map[string]bool)
		var out []interface{}
		for _, v := range values {
			k := fmt.Sprintf("%v", v)
			if !seen[k] {
				seen[k] = true
				out = append(out, v)
			}
		}
		return out, nil
	case AggCountValues:
		counts := make(map[string]int)
		for _, v := range values {
			counts[fmt.Sprintf("%v", v)]++
		}
		return counts, nil
	case AggSum, AggMean, AggStd, AggMin, AggMax, AggBounds:
		nums := numericValues(values)
		if len(nums) == 0 {
			return nil, fmt.Errorf("no numeric values for %s of %s", agg.Kind, agg.Field)
		}
		switch agg.Kind {
		case AggSum:
			return sum(nums), nil
		case AggMean:
			return sum(nums) / float64(len(nums)), nil
		case AggStd:
			mean := sum(nums) / float64(len(nums))
			var acc float64
			for _, n := range nums {
				acc += (n - mean) * (n - mean)
			}
			return math.Sqrt(acc / float64(len(nums))), nil
		case AggMin:
			return bounds(nums)[0], nil
		case AggMax:
			return bounds(nums)[1], nil
		case AggBounds:
			return bounds(nums), nil
		}
	}
	return nil, fmt.Errorf("unsupported aggregation kind: %s", agg.Kind)
}

func (c *StaticCollection) aggValues(agg Aggregation) ([]interface{}, error) {
	var values []interface{}
	for _, s := range c.samples {
		if agg.Expr != nil {
			v, err := agg.Expr.Eval(s)
			if err != nil {
				return nil, fmt.Errorf("expression evaluation failed: %w", err)
			}
			if agg.Kind == AggCount {
				if truthy(v) {
					values = append(values, v)
				}
				continue
			}
			values = append(values, v)
			continue
		}
		values = append(values, extractValues(s, agg.Field)...)
	}
	return values, nil
}

// extractValues walks a dotted path through a sample document,
// flattening lists of embedded documents along the way.
func extractValues(doc map[string]interface{}, path string) []interface{} {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	current := []interface{}{doc}

	for _, part := range parts {
		var next []interface{}
		for _, node := range current {
			switch n := node.(type) {
			case map[string]interface{}:
				v, ok := n[part]
				if !ok || v == nil {
					continue
				}
				if list, isList := v.([]interface{}); isList {
					next = append(next, list...)
				} else {
					next = append(next, v)
				}
			case []interface{}:
				for _, el := range n {
					if m, isMap := el.(map[string]interface{}); isMap {
						if v, ok := m[part]; ok && v != nil {
							next = append(next, v)
						}
					}
				}
			}
		}
		current = next
	}
	return current
}

func filterSamples(samples []map[string]interface{}, keep func(map[string]interface{}) bool) []map[string]interface{} {
	var out []map[string]interface{}
	for _, s := range samples {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func shuffleSamples(samples []map[string]interface{}, seed int64) []map[string]interface{} {
	out := append([]map[string]interface{}(nil), samples...)
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func firstNumeric(s map[string]interface{}, field string) float64 {
	for _, v := range extractValues(s, field) {
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	return 0
}

func numericValues(values []interface{}) []float64 {
	var out []float64
	for _, v := range values {
		if f, ok := toFloat(v); ok {
			out = append(out, f)
		}
	}
	return out
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case nil:
		return false
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		return t != ""
	}
	return true
}

func sum(nums []float64) float64 {
	var acc float64
	for _, n := range nums {
		acc += n
	}
	return acc
}

func bounds(nums []float64) []float64 {
	lo, hi := nums[0], nums[0]
	for _, n := range nums[1:] {
		if n < lo {
			lo = n
		}
		if n > hi {
			hi = n
		}
	}
	return []float64{lo, hi}
}

func paramInt(params map[string]interface{}, key string, def int) int {
	if v, ok := params[key]; ok {
		if f, ok := toFloat(v); ok {
			return int(f)
		}
	}
	return def
}

func paramBool(params map[string]interface{}, key string, def bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func paramStrings(params map[string]interface{}, key string) []string {
	var out []string
	switch v := params[key].(type) {
	case []string:
		return v
	case []interface{}:
		for _, el := range v {
			if s, ok := el.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}
