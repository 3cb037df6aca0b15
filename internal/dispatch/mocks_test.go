package dispatch

import (
	"context"
	"fmt"
	"strings"

	"voxelgpt/internal/llm"
)

// fakeClient scripts responses by prompt substring. Streams are fed
// from a worker goroutine like the real clients, so goleak covers the
// bridge.
type fakeClient struct {
	responses  map[string]string
	structured map[string]string
	err        error

	// streamChunks overrides the streamed answer when set.
	streamChunks []string
}

func (f *fakeClient) lookup(table map[string]string, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	for needle, resp := range table {
		if needle == "" || strings.Contains(text, needle) {
			return resp, nil
		}
	}
	return "", fmt.Errorf("no scripted response for prompt: %.80s", text)
}

func (f *fakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	return f.lookup(f.responses, prompt)
}

func (f *fakeClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.lookup(f.responses, systemPrompt+"\n"+userPrompt)
}

func (f *fakeClient) Chat(ctx context.Context, systemPrompt string, history []llm.Message) (string, error) {
	return f.lookup(f.responses, flatten(systemPrompt, history))
}

func (f *fakeClient) ChatStructured(ctx context.Context, systemPrompt string, history []llm.Message, schema map[string]interface{}) (string, error) {
	return f.lookup(f.structured, flatten(systemPrompt, history))
}

func (f *fakeClient) ChatStream(ctx context.Context, systemPrompt string, history []llm.Message) (<-chan llm.Chunk, error) {
	chunks := f.streamChunks
	if chunks == nil {
		resp, err := f.lookup(f.responses, flatten(systemPrompt, history))
		if err != nil {
			return nil, err
		}
		chunks = []string{resp}
	}

	ch := make(chan llm.Chunk, 4)
	go func() {
		defer close(ch)
		for _, c := range chunks {
			ch <- llm.Chunk{Content: c}
		}
		ch <- llm.Chunk{Last: true}
	}()
	return ch, nil
}

// stubEngine embeds every text to the same unit vector, enough to
// drive the store's similarity search in tests.
type stubEngine struct{}

func (stubEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (stubEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (stubEngine) Dimensions() int { return 3 }
func (stubEngine) Name() string    { return "stub" }

func flatten(system string, history []llm.Message) string {
	out := system
	for _, m := range history {
		out += "\n" + m.Content
	}
	return out
}
