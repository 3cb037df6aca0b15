package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRecordQuery(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	id, err := l.RecordQuery(ctx, "show me 10 cats")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	e, err := l.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "show me 10 cats", e.Text)
	assert.Equal(t, 0, e.Upvotes)
	assert.Equal(t, 0, e.Downvotes)
}

func TestVoting(t *testing.T) {
	ctx := context.Background()

	t.Run("upvote counts once per voter", func(t *testing.T) {
		l := openTestLog(t)
		id, err := l.RecordQuery(ctx, "q")
		require.NoError(t, err)

		require.NoError(t, l.Upvote(ctx, id, "alice"))
		require.NoError(t, l.Upvote(ctx, id, "alice"))
		require.NoError(t, l.Upvote(ctx, id, "alice"))

		e, err := l.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, e.Upvotes)
	})

	t.Run("separate voters accumulate", func(t *testing.T) {
		l := openTestLog(t)
		id, err := l.RecordQuery(ctx, "q")
		require.NoError(t, err)

		require.NoError(t, l.Upvote(ctx, id, "alice"))
		require.NoError(t, l.Upvote(ctx, id, "bob"))
		require.NoError(t, l.Downvote(ctx, id, "carol"))

		e, err := l.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 2, e.Upvotes)
		assert.Equal(t, 1, e.Downvotes)
	})

	t.Run("switching direction moves the count", func(t *testing.T) {
		l := openTestLog(t)
		id, err := l.RecordQuery(ctx, "q")
		require.NoError(t, err)

		require.NoError(t, l.Upvote(ctx, id, "alice"))
		require.NoError(t, l.Downvote(ctx, id, "alice"))

		e, err := l.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 0, e.Upvotes)
		assert.Equal(t, 1, e.Downvotes)
	})

	t.Run("missing query errors on read", func(t *testing.T) {
		l := openTestLog(t)
		_, err := l.Get(ctx, "nope")
		assert.Error(t, err)
	})
}
