package view

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveName(t *testing.T) {
	allowed := []string{"Cat", "dog", "traffic light", "fire hydrant"}

	t.Run("exact match wins", func(t *testing.T) {
		name, ok := ResolveName(context.Background(), nil, "dog", allowed)
		assert.True(t, ok)
		assert.Equal(t, "dog", name)
	})

	t.Run("case-insensitive match", func(t *testing.T) {
		name, ok := ResolveName(context.Background(), nil, "cat", allowed)
		assert.True(t, ok)
		assert.Equal(t, "Cat", name)
	})

	t.Run("prefix match either direction", func(t *testing.T) {
		name, ok := ResolveName(context.Background(), nil, "traffic", allowed)
		assert.True(t, ok)
		assert.Equal(t, "traffic light", name)

		name, ok = ResolveName(context.Background(), nil, "fire hydrants", allowed)
		assert.True(t, ok)
		assert.Equal(t, "fire hydrant", name)
	})

	t.Run("semantic match accepts only verbatim members", func(t *testing.T) {
		client := &fakeClient{responses: map[string]string{"": "dog"}}
		name, ok := ResolveName(context.Background(), client, "puppy", allowed)
		assert.True(t, ok)
		assert.Equal(t, "dog", name)
	})

	t.Run("semantic none is a failure", func(t *testing.T) {
		client := &fakeClient{responses: map[string]string{"": "none"}}
		name, ok := ResolveName(context.Background(), client, "airplane", allowed)
		assert.False(t, ok)
		assert.Equal(t, "airplane", name)
	})

	t.Run("fabricated semantic answers are rejected", func(t *testing.T) {
		client := &fakeClient{responses: map[string]string{"": "wolf"}}
		_, ok := ResolveName(context.Background(), client, "coyote", allowed)
		assert.False(t, ok)
	})

	t.Run("upstream failure falls through to a miss", func(t *testing.T) {
		client := &fakeClient{err: errors.New("down")}
		name, ok := ResolveName(context.Background(), client, "zebra", allowed)
		assert.False(t, ok)
		assert.Equal(t, "zebra", name)
	})

	t.Run("empty candidate set fails", func(t *testing.T) {
		_, ok := ResolveName(context.Background(), nil, "anything", nil)
		assert.False(t, ok)
	})
}

func TestResolveFilterClasses(t *testing.T) {
	allowed := []string{"Cat", "dog"}

	t.Run("field paths are never treated as classes", func(t *testing.T) {
		src := `F("ground_truth.detections.label") == "cat"`
		out, unresolved := resolveFilterClasses(context.Background(), nil, src, allowed)
		assert.Empty(t, unresolved)
		assert.Equal(t, `F("ground_truth.detections.label") == "Cat"`, out)
	})

	t.Run("unresolved names are reported and left in place", func(t *testing.T) {
		src := `F("label") == "spaceship"`
		out, unresolved := resolveFilterClasses(context.Background(), nil, src, allowed)
		assert.Equal(t, src, out)
		assert.Equal(t, []string{"spaceship"}, unresolved)
	})

	t.Run("allowed names pass untouched", func(t *testing.T) {
		src := `F("label") == "dog"`
		out, unresolved := resolveFilterClasses(context.Background(), nil, src, allowed)
		assert.Empty(t, unresolved)
		assert.Equal(t, src, out)
	})
}
