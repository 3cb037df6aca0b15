// Package dispatch is the top-level entry point: it routes a user
// query by intent, drives the matching branch, and emits a stream of
// events the caller renders.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"voxelgpt/internal/aggregate"
	"voxelgpt/internal/audit"
	"voxelgpt/internal/config"
	"voxelgpt/internal/dataset"
	"voxelgpt/internal/docs"
	"voxelgpt/internal/embedding"
	"voxelgpt/internal/geocode"
	"voxelgpt/internal/llm"
	"voxelgpt/internal/logging"
	"voxelgpt/internal/prompt"
	"voxelgpt/internal/router"
	"voxelgpt/internal/view"
)

// eventBufferSize bounds the dispatcher-to-caller event queue.
const eventBufferSize = 16

// maxHistoryTurns caps the chat history carried between queries.
const maxHistoryTurns = 20

// Pipeline wires every branch of the query pipeline together. One
// Pipeline serves one conversation; Run is safe for sequential calls
// and the history is guarded for concurrent inspection.
type Pipeline struct {
	Client    llm.Client
	Router    *router.Router
	Planner   *view.Planner
	Assembler *view.Assembler
	Agg       *aggregate.Pipeline
	Docs      *docs.Retriever
	Audit     *audit.Log
	Dialect   Dialect

	mu      sync.Mutex
	history []llm.Message
}

// New builds a Pipeline from configuration: chat client, embedding
// engine with its disk cache, example-matcher shortcut, documentation
// retriever (when a store exists), geocoder, and audit log.
func New(cfg *config.Config) (*Pipeline, error) {
	client, err := llm.NewClientFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	engine, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	cached, err := embedding.NewCachedEngine(engine, cfg.Embedding.CachePath)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		Client: client,
		Router: &router.Router{
			Client:   client,
			Examples: router.NewExampleMatcher(cached),
		},
		Planner: &view.Planner{Client: client},
		Assembler: &view.Assembler{
			Client:   client,
			Geocoder: geocode.NewNominatim(cfg.Geocoder, cfg.GeocoderTimeout()),
		},
		Agg:     &aggregate.Pipeline{Client: client},
		Dialect: DialectMarkdown,
	}

	store, err := docs.OpenStore(cfg.Docs.StorePath, cached.Dimensions())
	if err != nil {
		logging.Get(logging.CategoryDispatch).Warn("documentation store unavailable: %v", err)
	} else {
		p.Docs = &docs.Retriever{
			Store:  store,
			Engine: cached,
			Client: client,
			TopK:   cfg.Docs.TopK,
		}
	}

	if cfg.Audit.Enabled {
		log, err := audit.Open(cfg.Audit.DatabasePath)
		if err != nil {
			logging.Get(logging.CategoryDispatch).Warn("audit log unavailable: %v", err)
		} else {
			p.Audit = log
		}
	}

	return p, nil
}

// History returns a copy of the chat history.
func (p *Pipeline) History() []llm.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.Message(nil), p.history...)
}

// Reset clears the chat history.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = nil
}

func (p *Pipeline) appendHistory(msgs ...llm.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = append(p.history, msgs...)
	if len(p.history) > maxHistoryTurns {
		p.history = p.history[len(p.history)-maxHistoryTurns:]
	}
}

// Run dispatches one query and returns the event stream. The channel
// is closed when the query is fully handled; stream chunks for a
// single answer are contiguous and exactly one carries Last.
func (p *Pipeline) Run(ctx context.Context, query string, col dataset.Collection) <-chan Event {
	events := make(chan Event, eventBufferSize)
	go func() {
		defer close(events)
		p.run(ctx, strings.TrimSpace(query), col, events)
	}()
	return events
}

func (p *Pipeline) run(ctx context.Context, query string, col dataset.Collection, events chan<- Event) {
	timer := logging.StartTimer(logging.CategoryDispatch, "Run")
	defer timer.Stop()

	if query == "" {
		events <- MessageEvent{Message: "Please ask a question."}
		return
	}

	// Greetings and capability questions never touch the model.
	if router.IsHelp(query) {
		events <- MessageEvent{Message: prompt.HelpMessage()}
		return
	}

	if p.Audit != nil {
		if _, err := p.Audit.RecordQuery(ctx, query); err != nil {
			logging.Get(logging.CategoryDispatch).Warn("audit failed: %v", err)
		}
	}

	intent := p.Router.Classify(ctx, query, p.History())
	logging.Dispatch("dispatching %q as %s", query, intent)
	p.appendHistory(llm.Message{Role: llm.RoleUser, Content: query})

	if intent.DatasetBound() && col == nil {
		p.finish(events, "No dataset is loaded. Load a dataset first, then ask about its samples.", true)
		return
	}

	switch intent {
	case router.IntentDocumentation:
		p.runDocs(ctx, query, events)
	case router.IntentWorkspace:
		p.runWorkspace(ctx, query, col, events)
	case router.IntentDisplay, router.IntentAggregation:
		p.runDataset(ctx, intent, query, col, events)
	default:
		p.runGeneral(ctx, query, events)
	}
}

// runDocs answers a documentation question with retrieval-augmented
// generation. The markdown dialect gets bare URLs linkified in the
// final rendering.
func (p *Pipeline) runDocs(ctx context.Context, query string, events chan<- Event) {
	if p.Docs == nil {
		p.finish(events, "Documentation is not indexed on this install, so I cannot answer that here.", false)
		return
	}

	stream, err := p.Docs.Answer(ctx, query)
	if err != nil {
		p.fail(events, fmt.Errorf("%w: %v", ErrUpstream, err),
			"I could not retrieve the documentation needed to answer that.")
		return
	}

	full, err := p.bridge(events, stream)
	if err != nil {
		p.fail(events, fmt.Errorf("%w: %v", ErrUpstream, err),
			"The documentation answer was interrupted. Please try again.")
		return
	}

	// The history records the answer as generated; the dialect only
	// shapes the displayed form.
	final := p.Dialect.renderDocs(full)
	p.appendHistory(llm.Message{Role: llm.RoleAssistant, Content: full})
	events <- MessageEvent{Message: final, History: full, Overwrite: final != full}
}

// runWorkspace answers a descriptive dataset question through the
// tool-calling loop.
func (p *Pipeline) runWorkspace(ctx context.Context, query string, col dataset.Collection, events chan<- Event) {
	if col == nil {
		p.finish(events, "No dataset is loaded, so there is no workspace to inspect.", true)
		return
	}

	answer, err := prompt.RunAgent(ctx, p.Client, "workspace_agent",
		map[string]interface{}{"Query": query}, dataset.Tools(col))
	if err != nil {
		p.fail(events, fmt.Errorf("%w: %v", ErrUpstream, err),
			"I could not inspect the dataset to answer that.")
		return
	}
	p.finish(events, answer, true)
}

// runGeneral streams a plain chat answer with the conversation
// history.
func (p *Pipeline) runGeneral(ctx context.Context, query string, events chan<- Event) {
	system, err := prompt.Render("general_qa", nil)
	if err != nil {
		p.fail(events, err, "I could not answer that question.")
		return
	}

	stream, err := p.Client.ChatStream(ctx, system, p.History())
	if err != nil {
		p.fail(events, fmt.Errorf("%w: %v", ErrUpstream, err),
			"I could not generate an answer for that question.")
		return
	}

	full, err := p.bridge(events, stream)
	if err != nil {
		p.fail(events, fmt.Errorf("%w: %v", ErrUpstream, err),
			"The answer was interrupted. Please try again.")
		return
	}
	p.finish(events, full, true)
}

// runDataset drives the view pipeline: plan, delegate, brief, revise,
// assemble, and for aggregation queries run the aggregation
// sub-pipeline over the assembled view.
func (p *Pipeline) runDataset(ctx context.Context, intent router.Intent, query string, col dataset.Collection, events chan<- Event) {
	plan, err := p.Planner.Generate(ctx, query, "")
	if err != nil {
		p.fail(events, fmt.Errorf("%w: %v", ErrSchemaViolation, err),
			"I could not plan a view for that query. Try rephrasing it.")
		return
	}
	if plan.Impossible() {
		p.finish(events, "I could not find a way to turn that into a dataset view. Try rephrasing in terms of the dataset's samples, labels, or fields.", true)
		return
	}

	delegations, err := view.DelegateAll(ctx, p.Client, plan)
	if err != nil {
		p.fail(events, fmt.Errorf("%w: %v", ErrUpstream, err),
			"I could not work out the view stages for that query.")
		return
	}

	var failures []view.StepFailure
	for i, d := range delegations {
		if d.Impossible {
			failures = append(failures, view.StepFailure{Index: i, Reason: d.Reason})
		}
	}

	briefing := dataset.Briefing(col, strings.Join(plan.Steps, "\n"), view.Kinds(delegations))
	plan = p.Planner.Revise(ctx, query, briefing, plan, failures)
	if plan.Impossible() {
		p.finish(events, "I could not find a way to turn that into a dataset view.", true)
		return
	}

	res, err := p.Assembler.Assemble(ctx, col, plan, query, briefing)
	if err != nil {
		p.fail(events, fmt.Errorf("%w: %v", ErrConstructionFailure, err),
			"I could not construct the view stages for that query.")
		return
	}
	for _, w := range res.Warnings {
		events <- WarningEvent{Message: w}
	}

	target := col
	if res.View != nil {
		target = res.View
		events <- ViewEvent{View: res.View, Reprs: res.Reprs}
	}

	if intent == router.IntentAggregation {
		p.runAggregation(ctx, query, briefing, target, events)
		return
	}

	if res.View == nil {
		p.finish(events, "I could not build a view for that query.", true)
		return
	}
	msg := "Created a view with: " + strings.Join(res.Reprs, ", ")
	p.finish(events, msg, true)
}

func (p *Pipeline) runAggregation(ctx context.Context, query, briefing string, target dataset.Collection, events chan<- Event) {
	outcome, err := p.Agg.Run(ctx, target, query, briefing)
	if err != nil {
		p.fail(events, fmt.Errorf("%w: %v", ErrUpstream, err),
			"I could not run that aggregation over the dataset.")
		return
	}
	for _, w := range outcome.Warnings {
		events <- WarningEvent{Message: w}
	}

	if outcome.Result == nil {
		p.finish(events, "I could not compute that aggregation over the dataset.", true)
		return
	}

	if outcome.Stream == nil {
		p.finish(events, fmt.Sprintf("Result: %v", outcome.Result), true)
		return
	}

	full, err := p.bridge(events, outcome.Stream)
	if err != nil {
		p.finish(events, fmt.Sprintf("Result: %v", outcome.Result), true)
		return
	}
	p.finish(events, full, true)
}

// bridge forwards a chunk stream as stream events and returns the
// accumulated text. The Last chunk is forwarded before any error is
// reported.
func (p *Pipeline) bridge(events chan<- Event, stream <-chan llm.Chunk) (string, error) {
	var sb strings.Builder
	var streamErr error
	for chunk := range stream {
		if chunk.Err != nil {
			streamErr = chunk.Err
		}
		sb.WriteString(chunk.Content)
		events <- StreamEvent{Content: chunk.Content, Last: chunk.Last}
	}
	return sb.String(), streamErr
}

// finish emits a single complete message, optionally recording it in
// the history.
func (p *Pipeline) finish(events chan<- Event, msg string, record bool) {
	recorded := ""
	if record {
		p.appendHistory(llm.Message{Role: llm.RoleAssistant, Content: msg})
		recorded = msg
	}
	events <- MessageEvent{Message: msg, History: recorded}
}

// fail logs the failure and surfaces it to the user as a final
// message. The conversation keeps going; the error detail stays in the
// logs.
func (p *Pipeline) fail(events chan<- Event, err error, msg string) {
	logging.Get(logging.CategoryDispatch).Error("%v", err)
	p.finish(events, msg, true)
}

// Close releases pipeline resources.
func (p *Pipeline) Close() {
	if p.Docs != nil && p.Docs.Store != nil {
		p.Docs.Store.Close()
	}
	if p.Audit != nil {
		p.Audit.Close()
	}
}
