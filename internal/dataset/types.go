// Package dataset defines the read-only capability surface the pipeline
// consumes from a sample collection, the field and run taxonomy, and an
// in-memory implementation used by the CLI demo and tests.
package dataset

// MediaType is the media type of a collection.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	Media3D    MediaType = "3d"
	MediaGroup MediaType = "group"
)

// Scalar field types.
const (
	FieldString   = "string"
	FieldInt      = "int"
	FieldFloat    = "float"
	FieldBool     = "bool"
	FieldDate     = "date"
	FieldDateTime = "datetime"
	FieldList     = "list"
	FieldVector   = "vector"
	FieldOther    = "other"
)

// Spatial label types embedded in document fields.
const (
	LabelClassification = "Classification"
	LabelDetections     = "Detections"
	LabelPolylines      = "Polylines"
	LabelKeypoints      = "Keypoints"
	LabelSegmentation   = "Segmentation"
	LabelHeatmap        = "Heatmap"
	LabelGeoLocation    = "GeoLocation"
)

// Field describes one named field on a collection.
type Field struct {
	// Path is the full dotted path of the field.
	Path string

	// Type is a scalar type constant, or "label" for label fields.
	Type string

	// LabelType is set for label fields (Classification, Detections, ...).
	LabelType string

	// ElementType is the scalar type of list elements, when known.
	ElementType string

	// Description is the field's embedded doc string, if any.
	Description string
}

// IsLabel reports whether the field holds an embedded label document.
func (f Field) IsLabel() bool { return f.LabelType != "" }

// Brain run types.
const (
	BrainSimilarity    = "similarity"
	BrainUniqueness    = "uniqueness"
	BrainHardness      = "hardness"
	BrainMistakenness  = "mistakenness"
	BrainVisualization = "visualization"
)

// BrainRun describes a named brain computation attached to a collection.
type BrainRun struct {
	Key string

	// Type is one of the Brain* constants.
	Type string

	// SupportsPrompts is true for similarity indices that accept text.
	SupportsPrompts bool

	// ResultField names the per-sample field the run produced, if any.
	ResultField string
}

// Evaluation run types.
const (
	EvalDetection      = "detection"
	EvalClassification = "classification"
)

// EvalRun describes a persisted evaluation of predictions against
// ground truth.
type EvalRun struct {
	Key string

	// Type is EvalDetection or EvalClassification.
	Type string

	PredField string
	GTField   string
}

// Run describes an annotation or custom run attached to a collection.
type Run struct {
	Key  string
	Type string // "annotation" or "custom"
}

// AppliedStage is one view stage applied to a collection. Kind is a
// stage-kind name from the view package's closed set; Params is the
// stage's typed parameter record flattened to a map; Repr is the
// human-readable rendering shown to the user.
type AppliedStage struct {
	Kind   string
	Params map[string]interface{}
	Repr   string
}

// Aggregation kinds.
type AggKind string

const (
	AggCount       AggKind = "count"
	AggCountValues AggKind = "count_values"
	AggDistinct    AggKind = "distinct"
	AggValues      AggKind = "values"
	AggSum         AggKind = "sum"
	AggMean        AggKind = "mean"
	AggMin         AggKind = "min"
	AggMax         AggKind = "max"
	AggBounds      AggKind = "bounds"
	AggStd         AggKind = "std"
)

// Aggregation is a computed quantity over a collection. Field is a
// dotted field path; Expr, when set, is a compiled field expression
// evaluated per sample instead of a raw field lookup.
type Aggregation struct {
	Kind  AggKind
	Field string
	Expr  Evaluator
}

// Evaluator evaluates a field expression against one sample document.
// Satisfied by the expression interpreter; declared here so the
// collection surface does not depend on it.
type Evaluator interface {
	Eval(sample map[string]interface{}) (interface{}, error)
	Source() string
}
