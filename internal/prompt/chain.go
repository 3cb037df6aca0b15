package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"voxelgpt/internal/llm"
	"voxelgpt/internal/logging"
)

// Chain runs a rendered template against an LLM client. All pipeline
// steps that talk to the model go through one of these helpers so the
// retry policy lives in exactly one place.
type Chain struct {
	Client   llm.Client
	Template *Template
}

// NewChain binds a template to a client.
func NewChain(client llm.Client, templateName string) (*Chain, error) {
	t, err := Load(templateName)
	if err != nil {
		return nil, err
	}
	return &Chain{Client: client, Template: t}, nil
}

// Run renders the template with data and sends it as a single user
// message, returning the raw completion.
func (c *Chain) Run(ctx context.Context, data interface{}) (string, error) {
	rendered, err := c.Template.Render(data)
	if err != nil {
		return "", err
	}
	logging.LLMDebug("chain %s prompt: %d chars", c.Template.Name, len(rendered))
	return c.Client.Complete(ctx, rendered)
}

// RunWithSystem renders the template as the system prompt and sends the
// conversation history alongside it.
func (c *Chain) RunWithSystem(ctx context.Context, data interface{}, history []llm.Message) (string, error) {
	rendered, err := c.Template.Render(data)
	if err != nil {
		return "", err
	}
	return c.Client.Chat(ctx, rendered, history)
}

// RunStream renders the template as the system prompt and streams the
// answer.
func (c *Chain) RunStream(ctx context.Context, data interface{}, history []llm.Message) (<-chan llm.Chunk, error) {
	rendered, err := c.Template.Render(data)
	if err != nil {
		return nil, err
	}
	return c.Client.ChatStream(ctx, rendered, history)
}

// RunStructured renders the template, constrains the model to schema,
// and unmarshals the response into T. A response that violates the
// schema is retried exactly once; the second failure is returned to the
// caller, who decides whether to drop the element or fail the chain.
func RunStructured[T any](ctx context.Context, client llm.Client, templateName string, data interface{}, schema map[string]interface{}) (T, error) {
	var zero T

	rendered, err := Render(templateName, data)
	if err != nil {
		return zero, err
	}

	history := llm.UserMessage(rendered)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		raw, err := client.ChatStructured(ctx, "", history, schema)
		if err != nil {
			lastErr = err
			logging.Get(logging.CategoryLLM).Warn("structured chain %s attempt %d failed: %v", templateName, attempt+1, err)
			continue
		}

		var out T
		if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
			lastErr = fmt.Errorf("schema violation: %w", err)
			logging.Get(logging.CategoryLLM).Warn("structured chain %s attempt %d returned malformed JSON: %v", templateName, attempt+1, err)
			continue
		}
		return out, nil
	}

	return zero, fmt.Errorf("structured chain %s failed after retry: %w", templateName, lastErr)
}

// stripFences removes a markdown code fence if the model wrapped its
// JSON in one despite the response mime type.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// Tool is a callable exposed to the inspection agent. Schema is a raw
// JSON-schema map describing the arguments object.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]interface{}
	Call        func(ctx context.Context, args map[string]interface{}) (string, error)
}

// agentTurn is the envelope the agent emits each turn: either a tool
// invocation or a final answer.
type agentTurn struct {
	Action string                 `json:"action"` // "tool" or "final"
	Tool   string                 `json:"tool,omitempty"`
	Args   map[string]interface{} `json:"args,omitempty"`
	Answer string                 `json:"answer,omitempty"`
}

func agentTurnSchema(toolNames []string) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type": "string",
				"enum": []string{"tool", "final"},
			},
			"tool": map[string]interface{}{
				"type": "string",
				"enum": toolNames,
			},
			"args":   map[string]interface{}{"type": "object"},
			"answer": map[string]interface{}{"type": "string"},
		},
		"required": []string{"action"},
	}
}

// maxAgentTurns bounds the tool loop.
const maxAgentTurns = 8

// RunAgent drives a tool-calling loop: the model is given the rendered
// system prompt plus tool descriptions, and each turn either invokes a
// tool (whose result is appended to the conversation) or finishes with
// an answer.
func RunAgent(ctx context.Context, client llm.Client, templateName string, data interface{}, tools []Tool) (string, error) {
	system, err := Render(templateName, data)
	if err != nil {
		return "", err
	}

	var toolDocs strings.Builder
	toolNames := make([]string, 0, len(tools))
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		toolNames = append(toolNames, t.Name)
		byName[t.Name] = t
		schemaJSON, _ := json.Marshal(t.Schema)
		fmt.Fprintf(&toolDocs, "- %s: %s\n  args schema: %s\n", t.Name, t.Description, schemaJSON)
	}
	system += "\n\nAvailable tools:\n" + toolDocs.String()

	history := []llm.Message{{Role: llm.RoleUser, Content: "Begin."}}
	schema := agentTurnSchema(toolNames)

	for turn := 0; turn < maxAgentTurns; turn++ {
		raw, err := client.ChatStructured(ctx, system, history, schema)
		if err != nil {
			return "", fmt.Errorf("agent turn %d failed: %w", turn+1, err)
		}

		var step agentTurn
		if err := json.Unmarshal([]byte(stripFences(raw)), &step); err != nil {
			return "", fmt.Errorf("agent turn %d returned malformed envelope: %w", turn+1, err)
		}

		if step.Action == "final" {
			return step.Answer, nil
		}

		tool, ok := byName[step.Tool]
		if !ok {
			history = append(history,
				llm.Message{Role: llm.RoleAssistant, Content: raw},
				llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf("Unknown tool %q. Use one of: %s", step.Tool, strings.Join(toolNames, ", "))})
			continue
		}

		result, err := tool.Call(ctx, step.Args)
		if err != nil {
			result = fmt.Sprintf("tool error: %v", err)
		}
		logging.Get(logging.CategoryIntrospect).Debug("agent tool %s -> %d chars", step.Tool, len(result))

		history = append(history,
			llm.Message{Role: llm.RoleAssistant, Content: raw},
			llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf("Result of %s:\n%s", step.Tool, result)})
	}

	return "", fmt.Errorf("agent did not finish within %d turns", maxAgentTurns)
}
