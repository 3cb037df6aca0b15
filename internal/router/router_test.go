package router

import (
	"context"
	"errors"
	"testing"

	"voxelgpt/internal/llm"

	"github.com/stretchr/testify/assert"
)

type scriptedClient struct {
	response string
	err      error
}

func (c *scriptedClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.response, c.err
}

func (c *scriptedClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.response, c.err
}

func (c *scriptedClient) Chat(ctx context.Context, systemPrompt string, history []llm.Message) (string, error) {
	return c.response, c.err
}

func (c *scriptedClient) ChatStructured(ctx context.Context, systemPrompt string, history []llm.Message, schema map[string]interface{}) (string, error) {
	return c.response, c.err
}

func (c *scriptedClient) ChatStream(ctx context.Context, systemPrompt string, history []llm.Message) (<-chan llm.Chunk, error) {
	if c.err != nil {
		return nil, c.err
	}
	ch := make(chan llm.Chunk, 2)
	ch <- llm.Chunk{Content: c.response}
	ch <- llm.Chunk{Last: true}
	close(ch)
	return ch, nil
}

func TestMapResponse(t *testing.T) {
	cases := []struct {
		raw  string
		want Intent
	}{
		{"display", IntentDisplay},
		{"The intent is: aggregation.", IntentAggregation},
		{"DOCUMENTATION", IntentDocumentation},
		{"this is a workspace question", IntentWorkspace},
		{"general knowledge", IntentGeneral},
		{"dataset query", IntentDisplay},
		{"I have no idea", IntentOther},
		{"", IntentOther},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MapResponse(tc.raw), "raw %q", tc.raw)
	}
}

func TestClassify(t *testing.T) {
	t.Run("maps the model label", func(t *testing.T) {
		r := &Router{Client: &scriptedClient{response: "aggregation"}}
		assert.Equal(t, IntentAggregation, r.Classify(context.Background(), "how many cats", nil))
	})

	t.Run("never raises on upstream failure", func(t *testing.T) {
		r := &Router{Client: &scriptedClient{err: errors.New("rate limited")}}
		assert.Equal(t, IntentDisplay, r.Classify(context.Background(), "show cats", nil))
	})
}

func TestDatasetBound(t *testing.T) {
	assert.True(t, IntentDisplay.DatasetBound())
	assert.True(t, IntentAggregation.DatasetBound())
	assert.False(t, IntentDocumentation.DatasetBound())
	assert.False(t, IntentGeneral.DatasetBound())
	assert.False(t, IntentWorkspace.DatasetBound())
	assert.False(t, IntentOther.DatasetBound())
}

func TestIsHelp(t *testing.T) {
	assert.True(t, IsHelp("help"))
	assert.True(t, IsHelp("  Hello "))
	assert.True(t, IsHelp("What can you do?"))
	assert.False(t, IsHelp("help me filter my dataset"))
	assert.False(t, IsHelp("show 10 cats"))
}
