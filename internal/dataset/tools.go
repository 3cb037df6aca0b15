package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"voxelgpt/internal/prompt"
)

// Tools exposes the collection's read capabilities as agent tools for
// the workspace and descriptive branches.
func Tools(col Collection) []prompt.Tool {
	stringArg := func(name, desc string) map[string]interface{} {
		return map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				name: map[string]interface{}{"type": "string", "description": desc},
			},
			"required": []string{name},
		}
	}
	noArgs := map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}

	return []prompt.Tool{
		{
			Name:        "list_fields",
			Description: "List all fields of the dataset with their types",
			Schema:      noArgs,
			Call: func(ctx context.Context, args map[string]interface{}) (string, error) {
				var lines []string
				for _, f := range col.Schema() {
					t := f.Type
					if f.IsLabel() {
						t = f.LabelType
					}
					lines = append(lines, fmt.Sprintf("%s: %s", f.Path, t))
				}
				return strings.Join(lines, "\n"), nil
			},
		},
		{
			Name:        "field_schema",
			Description: "Get the schema and doc string of one field",
			Schema:      stringArg("field", "the field path"),
			Call: func(ctx context.Context, args map[string]interface{}) (string, error) {
				name, _ := args["field"].(string)
				f, ok := col.FieldSchema(name)
				if !ok {
					return "", fmt.Errorf("field %q does not exist", name)
				}
				data, _ := json.Marshal(f)
				return string(data), nil
			},
		},
		{
			Name:        "label_classes",
			Description: "List the distinct label classes in a label field",
			Schema:      stringArg("field", "the label field name"),
			Call: func(ctx context.Context, args map[string]interface{}) (string, error) {
				name, _ := args["field"].(string)
				classes, err := col.ClassNames(name)
				if err != nil {
					return "", err
				}
				return strings.Join(classes, ", "), nil
			},
		},
		{
			Name:        "list_tags",
			Description: "List the distinct sample tags",
			Schema:      noArgs,
			Call: func(ctx context.Context, args map[string]interface{}) (string, error) {
				tags, err := col.Tags()
				if err != nil {
					return "", err
				}
				return strings.Join(tags, ", "), nil
			},
		},
		{
			Name:        "list_runs",
			Description: "List brain runs and evaluation runs attached to the dataset",
			Schema:      noArgs,
			Call: func(ctx context.Context, args map[string]interface{}) (string, error) {
				var lines []string
				for _, r := range col.BrainRuns() {
					lines = append(lines, fmt.Sprintf("brain %s (%s, prompts=%v)", r.Key, r.Type, r.SupportsPrompts))
				}
				for _, r := range col.EvalRuns() {
					lines = append(lines, fmt.Sprintf("eval %s (%s, pred=%s, gt=%s)", r.Key, r.Type, r.PredField, r.GTField))
				}
				for _, r := range col.Runs() {
					lines = append(lines, fmt.Sprintf("%s %s", r.Type, r.Key))
				}
				if len(lines) == 0 {
					return "no runs", nil
				}
				return strings.Join(lines, "\n"), nil
			},
		},
		{
			Name:        "count_samples",
			Description: "Count the samples in the dataset, optionally those with a field present",
			Schema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"field": map[string]interface{}{"type": "string", "description": "optional field path"},
				},
			},
			Call: func(ctx context.Context, args map[string]interface{}) (string, error) {
				if name, _ := args["field"].(string); name != "" {
					n, err := col.CountField(name)
					if err != nil {
						return "", err
					}
					return fmt.Sprintf("%d", n), nil
				}
				n, err := col.Count()
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%d", n), nil
			},
		},
		{
			Name:        "media_info",
			Description: "Get the media type and group slices of the dataset",
			Schema:      noArgs,
			Call: func(ctx context.Context, args map[string]interface{}) (string, error) {
				return fmt.Sprintf("media_type=%s slices=%s", col.MediaType(), strings.Join(col.GroupSlices(), ",")), nil
			},
		},
		{
			Name:        "first_sample",
			Description: "Fetch the first sample document as JSON",
			Schema:      noArgs,
			Call: func(ctx context.Context, args map[string]interface{}) (string, error) {
				s, ok := col.First()
				if !ok {
					return "the dataset is empty", nil
				}
				data, err := json.Marshal(s)
				if err != nil {
					return "", err
				}
				return string(data), nil
			},
		},
	}
}
