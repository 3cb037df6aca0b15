// Package aggregate implements the aggregation sub-pipeline: classify
// the aggregator kind, build the target field expression, run the
// aggregator against the current view, and narrate the result.
package aggregate

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

// Pipeline runs aggregations over a collection or view.
type Pipeline struct {
	Client llm.Client
}

// Outcome is the result of one aggregation. Result is nil when
// expression construction failed; Stream is nil in that case too.
type Outcome struct {
	Kind     dataset.AggKind
	Field    string
	Result   interface{}
	Stream   <-chan llm.Chunk
	Warnings []string
}

// kindKeywords maps response keywords to aggregator kinds, most
// specific first.
var kindKeywords = []struct {
	keyword string
	kind    dataset.AggKind
}{
	{"count_values", dataset.AggCountValues},
	{"count-values", dataset.AggCountValues},
	{"distinct", dataset.AggDistinct},
	{"bounds", dataset.AggBounds},
	{"values", dataset.AggValues},
	{"sum", dataset.AggSum},
	{"mean", dataset.AggMean},
	{"average", dataset.AggMean},
	{"min", dataset.AggMin},
	{"max", dataset.AggMax},
	{"std", dataset.AggStd},
	{"deviation", dataset.AggStd},
	{"count", dataset.AggCount},
}

// ClassifyKind maps a model response onto an aggregator kind by
// keyword heuristic. Defaults to count.
func ClassifyKind(response string) dataset.AggKind {
	lower := strings.ToLower(response)
	for _, k := range kindKeywords {
		if strings.Contains(lower, k.keyword) {
			return k.kind
		}
	}
	return dataset.AggCount
}

// Run executes the sub-pipeline for one query against the given view
// (the assembled view, or the raw collection when none was built).
func (p *Pipeline) Run(ctx context.Context, col dataset.Collection, query, briefing string) (*Outcome, error) {
	timer := logging.StartTimer(logging.CategoryAggregate, "Run")
	defer timer.Stop()

	rendered, err := prompt.Render("aggregate_kind", map[string]interface{}{"Query": query})
	if err != nil {
		return nil, err
	}
	raw, err := p.Client.Complete(ctx, rendered)
	if err != nil {
		return nil, fmt.Errorf("aggregation classification failed: %w", err)
	}
	kind := ClassifyKind(raw)
	logging.Get(logging.CategoryAggregate).Info("classified %q as %s", query, kind)

	out := &Outcome{Kind: kind}

	agg := dataset.Aggregation{Kind: kind}
	if kind != dataset.AggCount || countNeedsFilter(query) {
		field, compiled, err := p.buildField(ctx, kind, query, briefing)
		if err != nil {
			// Expression construction failed: report a null result and
			// skip the narration chain.
			logging.Get(logging.CategoryAggregate).Error("expression construction failed: %v", err)
			out.Warnings = append(out.Warnings, fmt.Sprintf("Could not build the aggregation expression: %v", err))
			return out, nil
		}
		out.Field = field
		agg.Field = field
		agg.Expr = compiled
	}

	result, err := col.Aggregate(agg)
	if err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("Aggregation failed: %v", err))
		return out, nil
	}
	out.Result = result

	stream, err := p.narrate(ctx, col, query, out)
	if err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("Could not narrate the result: %v", err))
		return out, nil
	}
	out.Stream = stream
	return out, nil
}

// buildField runs the expression chain and the rewrite pass. A bare
// dotted path stays a field lookup; anything else compiles to an
// expression.
func (p *Pipeline) buildField(ctx context.Context, kind dataset.AggKind, query, briefing string) (string, dataset.Evaluator, error) {
	rendered, err := prompt.Render("aggregate_expr", map[string]interface{}{
		"Kind":     string(kind),
		"Query":    query,
		"Briefing": briefing,
	})
	if err != nil {
		return "", nil, err
	}

	raw, err := p.Client.Complete(ctx, rendered)
	if err != nil {
		return "", nil, err
	}

	source := expr.Rewrite(raw)
	if isBarePath(source) {
		return source, nil, nil
	}

	compiled, err := expr.Compile(source)
	if err != nil {
		return "", nil, err
	}
	return source, compiled, nil
}

func (p *Pipeline) narrate(ctx context.Context, col dataset.Collection, query string, out *Outcome) (<-chan llm.Chunk, error) {
	var stageReprs []string
	for _, s := range col.Stages() {
		stageReprs = append(stageReprs, s.Repr)
	}

	rendered, err := prompt.Render("aggregate_analysis", map[string]interface{}{
		"Query":  query,
		"Kind":   string(out.Kind),
		"Field":  out.Field,
		"Result": fmt.Sprintf("%v (over view: %s)", out.Result, strings.Join(stageReprs, " | ")),
	})
	if err != nil {
		return nil, err
	}
	return p.Client.ChatStream(ctx, "", llm.UserMessage(rendered))
}

// countNeedsFilter reports whether a count query carries a condition
// that must become a filter expression.
func countNeedsFilter(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range []string{" with ", " where ", " that ", " whose ", ">", "<", "="} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// isBarePath reports whether the chain output is a plain dotted field
// path rather than an expression.
func isBarePath(s string) bool {
	if s == "" || strings.Contains(s, "F(") {
		return false
	}
	for _, r := range s {
		if !(r == '.' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
