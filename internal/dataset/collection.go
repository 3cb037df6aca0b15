package dataset

// Collection is the read-only capability set the pipeline consumes
// from a sample collection. Any implementation exposing this surface
// satisfies the core.
type Collection interface {
	// Name returns the collection's display name.
	Name() string

	// MediaType returns the collection's media type.
	MediaType() MediaType

	// GroupSlices returns the slice names of a grouped collection.
	GroupSlices() []string

	// Schema lists all fields.
	Schema() []Field

	// FieldsByLabelType lists fields embedding the given label type.
	FieldsByLabelType(labelType string) []Field

	// FieldSchema returns the schema of one field.
	FieldSchema(path string) (Field, bool)

	// Distinct lists the distinct values of a string-valued field.
	Distinct(path string) ([]string, error)

	// Tags lists the distinct sample-level tags.
	Tags() ([]string, error)

	// ClassNames lists the distinct label classes in a label field.
	ClassNames(field string) ([]string, error)

	// BrainRuns lists brain runs attached to the collection.
	BrainRuns() []BrainRun

	// EvalRuns lists evaluation runs attached to the collection.
	EvalRuns() []EvalRun

	// Runs lists annotation and custom runs.
	Runs() []Run

	// Count returns the number of samples.
	Count() (int, error)

	// CountField returns the number of samples with the field present.
	CountField(path string) (int, error)

	// First returns the first sample document, if any.
	First() (map[string]interface{}, bool)

	// HasMetadata reports whether sample metadata has been computed.
	HasMetadata() bool

	// ComputeMetadata populates sample metadata. The only mutating
	// capability; invoked by the assembler when a stage needs it.
	ComputeMetadata() error

	// WithStage returns a derived collection with one more stage
	// applied. The receiver is unchanged.
	WithStage(stage AppliedStage) (Collection, error)

	// Stages returns the stages applied so far, in order.
	Stages() []AppliedStage

	// Aggregate computes an aggregation over the collection.
	Aggregate(agg Aggregation) (interface{}, error)
}
