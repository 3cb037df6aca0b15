// Package router classifies user queries by intent. A completion
// chain produces a label which is mapped by substring; an
// embedding-based shortcut answers recurring schema questions without
// a model call.
package router

import (
	"context"
	"strings"

	"voxelgpt/internal/llm"
	"voxelgpt/internal/logging"
	"voxelgpt/internal/prompt"
)

// Intent is the routing decision for one query.
type Intent string

const (
	IntentDisplay       Intent = "display"
	IntentAggregation   Intent = "aggregation"
	IntentDocumentation Intent = "documentation"
	IntentWorkspace     Intent = "workspace"
	IntentGeneral       Intent = "general"
	IntentOther         Intent = "other"
)

// DatasetBound reports whether the intent requires a loaded
// collection.
func (i Intent) DatasetBound() bool {
	return i == IntentDisplay || i == IntentAggregation
}

// substring mapping applied to the lowercased model response, most
// specific first.
var intentSubstrings = []struct {
	needle string
	intent Intent
}{
	{"aggregation", IntentAggregation},
	{"aggregate", IntentAggregation},
	{"documentation", IntentDocumentation},
	{"docs", IntentDocumentation},
	{"workspace", IntentWorkspace},
	{"display", IntentDisplay},
	{"dataset", IntentDisplay},
	{"general", IntentGeneral},
	{"other", IntentOther},
}

// Router classifies queries.
type Router struct {
	Client   llm.Client
	Examples *ExampleMatcher
}

// Classify routes a query. Classification never raises: upstream
// failure and unrecognized labels fall back to the dataset branch,
// which is itself gated on the presence of a collection.
func (r *Router) Classify(ctx context.Context, query string, history []llm.Message) Intent {
	timer := logging.StartTimer(logging.CategoryRouter, "Classify")
	defer timer.Stop()

	if r.Examples != nil {
		if intent, ok := r.Examples.Match(ctx, query); ok {
			logging.Router("example shortcut: %q -> %s", query, intent)
			return intent
		}
	}

	type histEntry struct{ Role, Content string }
	var hist []histEntry
	for _, m := range history {
		hist = append(hist, histEntry{Role: string(m.Role), Content: m.Content})
	}

	rendered, err := prompt.Render("intent_classification", map[string]interface{}{
		"Query":   query,
		"History": hist,
	})
	if err != nil {
		logging.Get(logging.CategoryRouter).Error("template failure: %v", err)
		return IntentDisplay
	}

	raw, err := r.Client.Complete(ctx, rendered)
	if err != nil {
		logging.Get(logging.CategoryRouter).Warn("classification failed, using dataset branch: %v", err)
		return IntentDisplay
	}

	intent := MapResponse(raw)
	logging.Router("classified %q as %s (raw %q)", query, intent, strings.TrimSpace(raw))
	return intent
}

// MapResponse maps a raw model response onto an Intent by substring
// match. Unknown responses fall back to other.
func MapResponse(raw string) Intent {
	lower := strings.ToLower(raw)
	for _, m := range intentSubstrings {
		if strings.Contains(lower, m.needle) {
			return m.intent
		}
	}
	return IntentOther
}

// helpQueries are greeting and capability queries answered by the
// fixed help message without touching the model.
var helpQueries = map[string]bool{
	"help": true, "hi": true, "hello": true, "hey": true,
	"what can you do": true, "what can you do?": true,
	"who are you": true, "who are you?": true,
}

// IsHelp reports whether the query should short-circuit to the help
// message.
func IsHelp(query string) bool {
	return helpQueries[strings.ToLower(strings.TrimSpace(query))]
}
