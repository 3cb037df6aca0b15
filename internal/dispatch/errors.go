package dispatch

import "errors"

// Error kinds raised across the pipeline. Chains and stages wrap these
// so the dispatcher (and tests) can branch on the failure class
// without string matching.
var (
	// ErrSchemaViolation: a structured chain's response failed schema
	// validation after its single retry.
	ErrSchemaViolation = errors.New("model response violated the response schema")

	// ErrUnknownReference: a field, tag, class, or run name could not
	// be resolved against the dataset.
	ErrUnknownReference = errors.New("unknown dataset reference")

	// ErrPlannerImpossible: the planner declared the query unservable.
	ErrPlannerImpossible = errors.New("no view can serve this query")

	// ErrConstructionFailure: a stage could not be constructed from its
	// plan step.
	ErrConstructionFailure = errors.New("stage construction failed")

	// ErrEvaluationFailure: a compiled filter or aggregation expression
	// failed at evaluation time.
	ErrEvaluationFailure = errors.New("expression evaluation failed")

	// ErrUpstream: a provider call (LLM, embedding, geocoding) failed
	// after retries.
	ErrUpstream = errors.New("upstream provider failure")

	// ErrCapabilityMissing: the query needs a capability the dataset
	// does not have (no collection loaded, no similarity index, no
	// geocoder).
	ErrCapabilityMissing = errors.New("required capability is missing")
)
