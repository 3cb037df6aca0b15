package main

import (
	"encoding/json"
	"fmt"
	"os"

	"voxelgpt/internal/dataset"
)

// datasetFile is the on-disk shape accepted by --dataset.
type datasetFile struct {
	Name        string                   `json:"name"`
	MediaType   string                   `json:"media_type"`
	GroupSlices []string                 `json:"group_slices"`
	Fields      []datasetFileField       `json:"fields"`
	Samples     []map[string]interface{} `json:"samples"`
	BrainRuns   []dataset.BrainRun       `json:"brain_runs"`
	EvalRuns    []dataset.EvalRun        `json:"eval_runs"`
	HasMetadata bool                     `json:"has_metadata"`
}

type datasetFileField struct {
	Path        string `json:"path"`
	Type        string `json:"type"`
	LabelType   string `json:"label_type"`
	ElementType string `json:"element_type"`
	Description string `json:"description"`
}

// loadCollection reads a dataset JSON file into a queryable
// collection. An empty path yields no collection; dataset-bound
// queries then get the standard "no dataset" message.
func loadCollection(path string) (dataset.Collection, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	var df datasetFile
	if err := json.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}

	fields := make([]dataset.Field, len(df.Fields))
	for i, f := range df.Fields {
		fields[i] = dataset.Field{
			Path:        f.Path,
			Type:        f.Type,
			LabelType:   f.LabelType,
			ElementType: f.ElementType,
			Description: f.Description,
		}
	}

	return dataset.NewStaticCollection(dataset.StaticConfig{
		Name:        df.Name,
		MediaType:   dataset.MediaType(df.MediaType),
		GroupSlices: df.GroupSlices,
		Fields:      fields,
		Samples:     df.Samples,
		BrainRuns:   df.BrainRuns,
		EvalRuns:    df.EvalRuns,
		HasMetadata: df.HasMetadata,
	}), nil
}
