package view

import (
	"context"
	"fmt"
	"strings"

	"voxelgpt/internal/dataset"
	"voxelgpt/internal/llm"
	"voxelgpt/internal/logging"
	"voxelgpt/internal/prompt"
	"voxelgpt/internal/view/expr"
)

// Constructor fills typed stage records from step text.
type Constructor struct {
	Client llm.Client
	Col    dataset.Collection
}

// Construct extracts the parameter record for one delegated step. For
// kinds with a filter slot, the natural-language condition captured
// during base extraction is compiled into expression source by a
// second, type-specialized chain.
func (c *Constructor) Construct(ctx context.Context, kind Kind, step, query, briefing string) (*Stage, error) {
	timer := logging.StartTimer(logging.CategoryStage, "Construct")
	defer timer.Stop()

	sp, ok := specs[kind]
	if !ok {
		return nil, fmt.Errorf("unknown stage kind %q", kind)
	}

	data := map[string]interface{}{
		"Kind":     string(kind),
		"KindDoc":  KindDoc(kind),
		"Briefing": briefing,
		"Step":     step,
		"Query":    query,
	}
	if sp.HasFilter {
		data["FilterGuide"] = filterGuide()
	}

	params, err := prompt.RunStructured[map[string]interface{}](ctx, c.Client, "construct_stage", data, sp.Schema)
	if err != nil {
		return nil, fmt.Errorf("stage construction failed for %s: %w", kind, err)
	}

	stage := &Stage{Kind: kind, Params: params}
	logging.Stage("constructed %s from %q", kind, step)

	if sp.HasFilter {
		description, _ := params["filter"].(string)
		if description == "" {
			description = step
		}
		delete(params, "filter")

		source, err := c.buildFilter(ctx, kind, stage, description, step)
		if err != nil {
			return nil, err
		}
		stage.Filter = source
	}

	return stage, nil
}

// buildFilter runs the type-specialized expression chain and passes
// its output through the rewrite rules.
func (c *Constructor) buildFilter(ctx context.Context, kind Kind, stage *Stage, description, step string) (string, error) {
	rendered, err := prompt.Render("filters/build", map[string]interface{}{
		"Guide":       filterGuide(),
		"TypeGuide":   c.typeGuide(kind, stage, step),
		"Description": description,
		"Step":        step,
	})
	if err != nil {
		return "", err
	}

	raw, err := c.Client.Complete(ctx, rendered)
	if err != nil {
		return "", fmt.Errorf("filter construction failed: %w", err)
	}

	source := expr.Rewrite(raw)
	if _, err := expr.Compile(source); err != nil {
		return "", fmt.Errorf("filter construction produced an invalid expression: %w", err)
	}
	logging.Expr("built filter for %s: %s", kind, source)
	return source, nil
}

// typeGuide picks the specialization fragment for the filter chain:
// the scalar type for FilterField, the label category for the label
// kinds, nothing extra for Match.
func (c *Constructor) typeGuide(kind Kind, stage *Stage, step string) string {
	switch kind {
	case KindFilterField:
		field, _ := stage.Params["field"].(string)
		return scalarGuide(c.Col, field)
	case KindFilterLabels, KindMatchLabels:
		return labelGuide(c.Col, stage, step)
	}
	return ""
}

func scalarGuide(col dataset.Collection, field string) string {
	name := "string"
	if col != nil {
		if f, ok := col.FieldSchema(field); ok {
			switch f.Type {
			case dataset.FieldInt, dataset.FieldFloat:
				name = "numeric"
			case dataset.FieldBool:
				name = "boolean"
			case dataset.FieldDate, dataset.FieldDateTime:
				name = "datetime"
			case dataset.FieldList:
				name = "list"
			}
		}
	}
	return loadFragment("filters/" + name)
}

// labelGuide chooses between the detection and classification prompts
// by a heuristic on the referenced fields, the media type, and
// spatial keywords in the step text.
func labelGuide(col dataset.Collection, stage *Stage, step string) string {
	lower := strings.ToLower(step)
	spatial := strings.Contains(lower, "bounding box") || strings.Contains(lower, "bbox") ||
		strings.Contains(lower, "volume") || strings.Contains(lower, "rotation")

	if col != nil {
		for _, f := range stageFields(stage) {
			if schema, ok := col.FieldSchema(f); ok {
				switch schema.LabelType {
				case dataset.LabelDetections:
					return loadFragment("filters/detections")
				case dataset.LabelClassification:
					return loadFragment("filters/classifications")
				}
			}
		}
		if spatial || col.MediaType() == dataset.Media3D {
			if len(col.FieldsByLabelType(dataset.LabelDetections)) > 0 {
				return loadFragment("filters/detections")
			}
		}
	}
	if spatial {
		return loadFragment("filters/detections")
	}
	return loadFragment("filters/classifications")
}

// stageFields collects the field paths a stage's parameters name.
func stageFields(stage *Stage) []string {
	sp := specs[stage.Kind]
	var out []string
	for _, key := range sp.FieldKeys {
		if v, ok := stage.Params[key].(string); ok && v != "" {
			out = append(out, v)
		}
	}
	for _, key := range sp.FieldLists {
		switch list := stage.Params[key].(type) {
		case []string:
			out = append(out, list...)
		case []interface{}:
			for _, el := range list {
				if s, ok := el.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func filterGuide() string {
	return loadFragment("filters/guide")
}

func loadFragment(name string) string {
	t, err := prompt.Load(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(t.Text)
}
