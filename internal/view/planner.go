package view

import (
	"context"
	"strings"

	"voxelgpt/internal/llm"
	"voxelgpt/internal/logging"
	"voxelgpt/internal/prompt"
)

// Plan is an ordered sequence of natural-language steps, each later
// mapped to exactly one stage kind. Step order defines stage
// application order, except for the geo hoisting in the assembler.
type Plan struct {
	Steps []string `json:"steps"`
}

// Impossible reports whether the planner declared the query
// unservable.
func (p Plan) Impossible() bool {
	if len(p.Steps) != 1 {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(p.Steps[0]), "impossible")
}

var planSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"steps": map[string]interface{}{
			"type":        "array",
			"items":       map[string]interface{}{"type": "string"},
			"description": "ordered view-stage steps, one sentence each",
		},
	},
	"required": []string{"steps"},
}

// StepFailure records why a plan step could not be realized, for the
// revision chain.
type StepFailure struct {
	Index  int
	Reason string
}

// Planner generates and revises plans.
type Planner struct {
	Client llm.Client
}

// Generate produces the initial plan for a query. Briefing may be
// empty on the first pass, before targeted inspection has run.
func (p *Planner) Generate(ctx context.Context, query, briefing string) (Plan, error) {
	timer := logging.StartTimer(logging.CategoryPlanner, "Generate")
	defer timer.Stop()

	plan, err := prompt.RunStructured[Plan](ctx, p.Client, "plan_generation", map[string]interface{}{
		"Query":    query,
		"Briefing": briefing,
	}, planSchema)
	if err != nil {
		return Plan{}, err
	}
	plan.Steps = cleanSteps(plan.Steps)
	logging.Planner("generated %d steps for %q", len(plan.Steps), query)
	return plan, nil
}

// Revise refines a plan using the inspection briefing and any step
// failures. A malformed or empty revision leaves the original plan
// standing.
func (p *Planner) Revise(ctx context.Context, query, briefing string, plan Plan, failures []StepFailure) Plan {
	timer := logging.StartTimer(logging.CategoryPlanner, "Revise")
	defer timer.Stop()

	type failureView struct {
		Index  int
		Reason string
	}
	fv := make([]failureView, len(failures))
	for i, f := range failures {
		fv[i] = failureView{Index: f.Index + 1, Reason: f.Reason}
	}

	revised, err := prompt.RunStructured[Plan](ctx, p.Client, "plan_revision", map[string]interface{}{
		"Query":    query,
		"Briefing": briefing,
		"Steps":    plan.Steps,
		"Failures": fv,
	}, planSchema)
	if err != nil {
		logging.Get(logging.CategoryPlanner).Warn("revision failed, keeping original plan: %v", err)
		return plan
	}
	revised.Steps = cleanSteps(revised.Steps)
	if len(revised.Steps) == 0 {
		logging.Get(logging.CategoryPlanner).Warn("empty revision, keeping original plan")
		return plan
	}
	logging.Planner("revised plan: %d -> %d steps", len(plan.Steps), len(revised.Steps))
	return revised
}

func cleanSteps(steps []string) []string {
	var out []string
	for _, s := range steps {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
