// Package view turns a dataset query into an ordered list of typed
// view stages: a planner decomposes the query into steps, a delegator
// picks a stage kind per step, a constructor fills the kind's
// parameter record, and an assembler validates, reorders, and folds
// the stages into a view.
package view

import (
	"fmt"
	"sort"
	"strings"

	"voxelgpt/internal/prompt"
)

// Kind names one stage operation. The set is closed; adding a kind is
// a four-place change: constant, prompt fragment, schema, validator.
type Kind string

const (
	KindLimit               Kind = "limit"
	KindTake                Kind = "take"
	KindSkip                Kind = "skip"
	KindShuffle             Kind = "shuffle"
	KindExists              Kind = "exists"
	KindLimitLabels         Kind = "limit_labels"
	KindSelectFields        Kind = "select_fields"
	KindExcludeFields       Kind = "exclude_fields"
	KindGeoNear             Kind = "geo_near"
	KindGeoWithin           Kind = "geo_within"
	KindToPatches           Kind = "to_patches"
	KindToEvaluationPatches Kind = "to_evaluation_patches"
	KindSelectBy            Kind = "select_by"
	KindSelectGroupSlices   Kind = "select_group_slices"
	KindMatchTags           Kind = "match_tags"
	KindSelectLabels        Kind = "select_labels"
	KindSortBySimilarity    Kind = "sort_by_similarity"
	KindGroupBy             Kind = "group_by"
	KindSortBy              Kind = "sort_by"
	KindFilterField         Kind = "filter_field"
	KindMatchLabels         Kind = "match_labels"
	KindFilterLabels        Kind = "filter_labels"
	KindMapLabels           Kind = "map_labels"
	KindMatch               Kind = "match"
)

// AllKinds lists every stage kind in delegation-prompt order.
var AllKinds = []Kind{
	KindLimit, KindTake, KindSkip, KindShuffle, KindExists,
	KindLimitLabels, KindSelectFields, KindExcludeFields,
	KindGeoNear, KindGeoWithin, KindToPatches, KindToEvaluationPatches,
	KindSelectBy, KindSelectGroupSlices, KindMatchTags, KindSelectLabels,
	KindSortBySimilarity, KindGroupBy, KindSortBy, KindFilterField,
	KindMatchLabels, KindFilterLabels, KindMapLabels, KindMatch,
}

// Stage is a constructed view stage: a kind plus its typed parameter
// record, with the raw filter-expression source held separately from
// ordinary parameters.
type Stage struct {
	Kind   Kind
	Params map[string]interface{}

	// Filter is the raw filter-expression source for kinds that carry
	// one; compiled at build time.
	Filter string
}

// spec describes one kind: its parameter schema, whether it has a
// filter slot, and which parameter keys name fields.
type spec struct {
	Kind       Kind
	Schema     map[string]interface{}
	HasFilter  bool
	FieldKeys  []string // params holding a single field path
	FieldLists []string // params holding lists of field paths
}

func intParam(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": desc}
}
func numParam(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": desc}
}
func strParam(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": desc}
}
func boolParam(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "boolean", "description": desc}
}
func strListParam(desc string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "string"},
		"description": desc,
	}
}

func objSchema(required []string, props map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

var specs = map[Kind]spec{
	KindLimit: {Kind: KindLimit,
		Schema: objSchema([]string{"limit"}, map[string]interface{}{
			"limit": intParam("maximum number of samples to keep"),
		})},
	KindTake: {Kind: KindTake,
		Schema: objSchema([]string{"size"}, map[string]interface{}{
			"size": intParam("number of samples to randomly sample"),
			"seed": intParam("optional random seed"),
		})},
	KindSkip: {Kind: KindSkip,
		Schema: objSchema([]string{"skip"}, map[string]interface{}{
			"skip": intParam("number of samples to omit from the front"),
		})},
	KindShuffle: {Kind: KindShuffle,
		Schema: objSchema(nil, map[string]interface{}{
			"seed": intParam("optional random seed"),
		})},
	KindExists: {Kind: KindExists,
		FieldKeys: []string{"field"},
		Schema: objSchema([]string{"field"}, map[string]interface{}{
			"field": strParam("the field that must exist"),
			"bool":  boolParam("false to keep samples where the field is missing"),
		})},
	KindLimitLabels: {Kind: KindLimitLabels,
		FieldKeys: []string{"field"},
		Schema: objSchema([]string{"field", "limit"}, map[string]interface{}{
			"field": strParam("the label field to limit"),
			"limit": intParam("maximum labels to keep per sample"),
		})},
	KindSelectFields: {Kind: KindSelectFields,
		FieldLists: []string{"field_names"},
		Schema: objSchema([]string{"field_names"}, map[string]interface{}{
			"field_names": strListParam("the fields to keep"),
		})},
	KindExcludeFields: {Kind: KindExcludeFields,
		FieldLists: []string{"field_names"},
		Schema: objSchema([]string{"field_names"}, map[string]interface{}{
			"field_names": strListParam("the fields to remove"),
		})},
	KindGeoNear: {Kind: KindGeoNear,
		Schema: objSchema([]string{"location"}, map[string]interface{}{
			"location":     strParam("the place name to search near"),
			"max_distance": numParam("maximum distance in meters"),
			"min_distance": numParam("minimum distance in meters"),
		})},
	KindGeoWithin: {Kind: KindGeoWithin,
		Schema: objSchema([]string{"location"}, map[string]interface{}{
			"location": strParam("the place name whose boundary to use"),
		})},
	KindToPatches: {Kind: KindToPatches,
		FieldKeys: []string{"field"},
		Schema: objSchema([]string{"field"}, map[string]interface{}{
			"field": strParam("the label field to convert to patches"),
		})},
	KindToEvaluationPatches: {Kind: KindToEvaluationPatches,
		Schema: objSchema([]string{"eval_key"}, map[string]interface{}{
			"eval_key": strParam("the evaluation run key"),
		})},
	KindSelectBy: {Kind: KindSelectBy,
		FieldKeys: []string{"field"},
		Schema: objSchema([]string{"field", "values"}, map[string]interface{}{
			"field":   strParam("the field to select on"),
			"values":  strListParam("the values to keep"),
			"ordered": boolParam("true to preserve the order of values"),
		})},
	KindSelectGroupSlices: {Kind: KindSelectGroupSlices,
		Schema: objSchema([]string{"slices"}, map[string]interface{}{
			"slices": strListParam("the group slices to select"),
		})},
	KindMatchTags: {Kind: KindMatchTags,
		Schema: objSchema([]string{"tags"}, map[string]interface{}{
			"tags": strListParam("the tags to match"),
			"bool": boolParam("false to keep samples without the tags"),
			"all":  boolParam("true to require all tags"),
		})},
	KindSelectLabels: {Kind: KindSelectLabels,
		FieldLists: []string{"fields"},
		Schema: objSchema(nil, map[string]interface{}{
			"tags":   strListParam("label tags to select"),
			"fields": strListParam("label fields to search"),
			"ids":    strListParam("label ids to select"),
		})},
	KindSortBySimilarity: {Kind: KindSortBySimilarity,
		Schema: objSchema([]string{"text"}, map[string]interface{}{
			"text":      strParam("the text to sort by similarity to"),
			"k":         intParam("optional number of results"),
			"brain_key": strParam("optional similarity run key"),
		})},
	KindGroupBy: {Kind: KindGroupBy,
		FieldKeys: []string{"field"},
		Schema: objSchema([]string{"field"}, map[string]interface{}{
			"field":    strParam("the field to group by"),
			"order_by": strParam("optional field to order groups by"),
			"reverse":  boolParam("true for descending order"),
		})},
	KindSortBy: {Kind: KindSortBy,
		FieldKeys: []string{"field"},
		Schema: objSchema([]string{"field"}, map[string]interface{}{
			"field":   strParam("the field or expression to sort by"),
			"reverse": boolParam("true for descending order"),
		})},
	KindFilterField: {Kind: KindFilterField,
		HasFilter: true,
		FieldKeys: []string{"field"},
		Schema: objSchema([]string{"field", "filter"}, map[string]interface{}{
			"field":  strParam("the field to filter"),
			"filter": strParam("a natural-language description of the condition"),
		})},
	KindMatchLabels: {Kind: KindMatchLabels,
		HasFilter:  true,
		FieldLists: []string{"fields"},
		Schema: objSchema(nil, map[string]interface{}{
			"filter": strParam("a natural-language description of the label condition"),
			"tags":   strListParam("label tags to match"),
			"ids":    strListParam("label ids to match"),
			"fields": strListParam("label fields to search"),
			"bool":   boolParam("false to keep samples without matching labels"),
		})},
	KindFilterLabels: {Kind: KindFilterLabels,
		HasFilter: true,
		FieldKeys: []string{"field"},
		Schema: objSchema([]string{"field", "filter"}, map[string]interface{}{
			"field":        strParam("the label field to filter"),
			"filter":       strParam("a natural-language description of the label condition"),
			"only_matches": boolParam("false to keep samples with no surviving labels"),
		})},
	KindMapLabels: {Kind: KindMapLabels,
		FieldKeys: []string{"field"},
		Schema: objSchema([]string{"field", "map"}, map[string]interface{}{
			"field": strParam("the label field to remap"),
			"map": map[string]interface{}{
				"type":        "object",
				"description": "mapping of old class names to new class names",
			},
		})},
	KindMatch: {Kind: KindMatch,
		HasFilter: true,
		Schema: objSchema([]string{"filter"}, map[string]interface{}{
			"filter": strParam("a natural-language description of the sample condition"),
		})},
}

// KindDoc returns the kind's prompt fragment.
func KindDoc(k Kind) string {
	t, err := prompt.Load("stages/" + string(k))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(t.Text)
}

// LookupKind resolves a delegator response to a Kind, accepting both
// snake_case names and the CamelCase spellings the model sometimes
// echoes back.
func LookupKind(name string) (Kind, bool) {
	normalized := normalizeKindName(name)
	for _, k := range AllKinds {
		if string(k) == normalized {
			return k, true
		}
	}
	return "", false
}

func normalizeKindName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, "`\"'.")
	var sb strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(r - 'A' + 'a')
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// kindDelegationEntry feeds the delegation prompt.
type kindDelegationEntry struct {
	Name string
	Doc  string
}

func delegationEntries() []kindDelegationEntry {
	out := make([]kindDelegationEntry, 0, len(AllKinds))
	for _, k := range AllKinds {
		doc := KindDoc(k)
		if i := strings.Index(doc, "\nParameters:"); i >= 0 {
			doc = doc[:i]
		}
		out = append(out, kindDelegationEntry{Name: string(k), Doc: strings.TrimSpace(strings.ReplaceAll(doc, "\n", " "))})
	}
	return out
}

// Repr renders a stage as the human-readable form shown to the user.
func (s *Stage) Repr() string {
	var parts []string
	sp := specs[s.Kind]
	props, _ := sp.Schema["properties"].(map[string]interface{})
	keys := make([]string, 0, len(props))
	for key := range props {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		v, ok := s.Params[key]
		if !ok || v == nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", key, v))
	}
	if s.Filter != "" {
		parts = append(parts, fmt.Sprintf("filter=%s", s.Filter))
	}
	return fmt.Sprintf("%s(%s)", s.Kind, strings.Join(parts, ", "))
}
