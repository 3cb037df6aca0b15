package view

import (
	"context"
	"fmt"
	"strings"

	"voxelgpt/internal/llm"
)

// fakeClient scripts responses by matching substrings of the prompt.
type fakeClient struct {
	// responses maps a prompt substring to the canned response.
	responses map[string]string

	// structured maps a prompt substring to raw structured JSON.
	structured map[string]string

	// err fails every call when set.
	err error

	calls []string
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
	f.calls = append(f.calls, prompt)
	return f.lookup(f.responses, prompt)
}

func (f *fakeClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.Complete(ctx, systemPrompt+"\n"+userPrompt)
}

func (f *fakeClient) Chat(ctx context.Context, systemPrompt string, history []llm.Message) (string, error) {
	return f.Complete(ctx, flatten(systemPrompt, history))
}

func (f *fakeClient) ChatStructured(ctx context.Context, systemPrompt string, history []llm.Message, schema map[string]interface{}) (string, error) {
	text := flatten(systemPrompt, history)
	f.calls = append(f.calls, text)
	return f.lookup(f.structured, text)
}

func (f *fakeClient) ChatStream(ctx context.Context, systemPrompt string, history []llm.Message) (<-chan llm.Chunk, error) {
	resp, err := f.Complete(ctx, flatten(systemPrompt, history))
	if err != nil {
		return nil, err
	}
	ch := make(chan llm.Chunk, 2)
	ch <- llm.Chunk{Content: resp}
	ch <- llm.Chunk{Last: true}
	close(ch)
	return ch, nil
}

func flatten(system string, history []llm.Message) string {
	out := system
	for _, m := range history {
		out += "\n" + m.Content
	}
	return out
}
