package view

import (
	"context"
	"strings"

	"voxelgpt/internal/llm"
	"voxelgpt/internal/logging"
	"voxelgpt/internal/prompt"
)

// Delegation is the outcome of assigning a stage kind to one step.
type Delegation struct {
	Step string
	Kind Kind

	// Impossible is set when the delegator answered with a "no"
	// prefix, meaning no stage kind can realize the step.
	Impossible bool

	// Reason carries the diagnostic for impossible steps.
	Reason string
}

// Delegate picks the stage kind for one plan step. Responses starting
// with "no" mark the step unachievable; that is a diagnostic, not a
// failure.
func Delegate(ctx context.Context, client llm.Client, step string) (Delegation, error) {
	timer := logging.StartTimer(logging.CategoryDelegator, "Delegate")
	defer timer.Stop()

	rendered, err := prompt.Render("stage_delegation", map[string]interface{}{
		"Step":   step,
		"Stages": delegationEntries(),
	})
	if err != nil {
		return Delegation{}, err
	}

	raw, err := client.Complete(ctx, rendered)
	if err != nil {
		return Delegation{}, err
	}

	answer := strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(answer, "no") {
		logging.Get(logging.CategoryDelegator).Info("step unachievable: %q -> %q", step, answer)
		return Delegation{Step: step, Impossible: true, Reason: strings.TrimSpace(raw)}, nil
	}

	// The model may answer with prose around the name; scan for the
	// first known kind.
	if kind, ok := LookupKind(answer); ok {
		logging.Get(logging.CategoryDelegator).Info("step %q -> %s", step, kind)
		return Delegation{Step: step, Kind: kind}, nil
	}
	for _, field := range strings.Fields(answer) {
		if kind, ok := LookupKind(field); ok {
			logging.Get(logging.CategoryDelegator).Info("step %q -> %s (scanned)", step, kind)
			return Delegation{Step: step, Kind: kind}, nil
		}
	}

	logging.Get(logging.CategoryDelegator).Warn("unrecognized delegation %q for step %q", raw, step)
	return Delegation{Step: step, Impossible: true, Reason: "no supported operation matches this step"}, nil
}
