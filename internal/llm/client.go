// Package llm provides the chat-model clients used by every chain in
// the pipeline. Providers are hand-rolled HTTP clients so the request
// shape (structured output, streaming) stays under our control.
package llm

import "context"

// Role values for chat messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserMessage is a convenience constructor for a single user turn.
func UserMessage(text string) []Message {
	return []Message{{Role: RoleUser, Content: text}}
}

// Chunk is one unit of a streamed answer. The final chunk of every
// stream has Last set; Content may be empty on it. Err is set when the
// stream failed mid-flight, in which case Last is also set.
type Chunk struct {
	Content string
	Last    bool
	Err     error
}

// Client defines the interface all chat-model providers implement.
type Client interface {
	// Complete sends a bare prompt and returns the completion.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteWithSystem sends a prompt with a system message.
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Chat sends a system prompt plus conversation history.
	Chat(ctx context.Context, systemPrompt string, history []Message) (string, error)

	// ChatStructured constrains the response to the given raw JSON
	// schema and returns the raw JSON text. Callers unmarshal and
	// validate; a response that does not parse against the schema is a
	// schema violation per the error policy.
	ChatStructured(ctx context.Context, systemPrompt string, history []Message, schema map[string]interface{}) (string, error)

	// ChatStream streams the answer token-wise through a bounded
	// channel. The worker goroutine enqueues a sentinel chunk
	// (Last=true) and closes the channel when the provider stream ends.
	ChatStream(ctx context.Context, systemPrompt string, history []Message) (<-chan Chunk, error)
}

// streamBufferSize bounds the worker-to-caller chunk queue. A slow
// consumer backpressures the provider read instead of buffering the
// whole answer.
const streamBufferSize = 64
