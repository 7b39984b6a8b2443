package journal_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascade-build/cascade/internal/asset"
	"github.com/cascade-build/cascade/internal/journal"
)

func openTestJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "cascade.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cascade.db")

	j, err := journal.Open(path)
	require.NoError(t, err)
	require.NoError(t, j.BeginPass(context.Background(), "pass-1", "app", 1))
	require.NoError(t, j.Close())

	// Re-opening applies the schema again without losing data.
	j, err = journal.Open(path)
	require.NoError(t, err)
	defer j.Close()

	passes, err := j.ListPasses(context.Background(), "app")
	require.NoError(t, err)
	require.Len(t, passes, 1)
	assert.Equal(t, "pass-1", passes[0].Token)
}

func TestPassLifecycle(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.BeginPass(ctx, "pass-1", "app", 3))
	require.NoError(t, j.RecordAsset(ctx, "pass-1", asset.NewID("app", "doc.html"), "available", 4))
	require.NoError(t, j.RecordError(ctx, "pass-1", "transform failed", 5))
	require.NoError(t, j.FinishPass(ctx, "pass-1", 6, 1))

	passes, err := j.ListPasses(ctx, "app")
	require.NoError(t, err)
	require.Len(t, passes, 1)

	p := passes[0]
	assert.Equal(t, "pass-1", p.Token)
	assert.Equal(t, "app", p.Package)
	assert.Equal(t, int64(3), p.BeginSeq)
	require.True(t, p.FinishSeq.Valid)
	assert.Equal(t, int64(6), p.FinishSeq.Int64)
	assert.Equal(t, 1, p.ErrorCount)

	events, err := j.ReadPass(ctx, "pass-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "available", events[0].Kind)
	assert.Equal(t, "app|doc.html", events[0].AssetID)
	assert.Equal(t, "", events[0].Message)
	assert.Equal(t, "error", events[1].Kind)
	assert.Equal(t, "transform failed", events[1].Message)
	assert.Equal(t, "", events[1].AssetID)
}

func TestBeginPass_Idempotent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.BeginPass(ctx, "pass-1", "app", 1))
	require.NoError(t, j.BeginPass(ctx, "pass-1", "app", 99))

	passes, err := j.ListPasses(ctx, "app")
	require.NoError(t, err)
	require.Len(t, passes, 1)
	assert.Equal(t, int64(1), passes[0].BeginSeq)
}

func TestFinishPass_OnlyFirstTakesEffect(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.BeginPass(ctx, "pass-1", "app", 1))
	require.NoError(t, j.FinishPass(ctx, "pass-1", 2, 0))
	require.NoError(t, j.FinishPass(ctx, "pass-1", 50, 7))

	passes, err := j.ListPasses(ctx, "app")
	require.NoError(t, err)
	require.Len(t, passes, 1)
	assert.Equal(t, int64(2), passes[0].FinishSeq.Int64)
	assert.Equal(t, 0, passes[0].ErrorCount)
}

func TestListPasses_OrderAndFiltering(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.BeginPass(ctx, "pass-b", "app", 5))
	require.NoError(t, j.BeginPass(ctx, "pass-a", "app", 2))
	require.NoError(t, j.BeginPass(ctx, "pass-c", "lib", 1))

	passes, err := j.ListPasses(ctx, "app")
	require.NoError(t, err)
	require.Len(t, passes, 2)
	assert.Equal(t, "pass-a", passes[0].Token)
	assert.Equal(t, "pass-b", passes[1].Token)
	assert.False(t, passes[0].FinishSeq.Valid)

	empty, err := j.ListPasses(ctx, "nope")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestReadPass_Order(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.BeginPass(ctx, "pass-1", "app", 1))
	require.NoError(t, j.RecordAsset(ctx, "pass-1", asset.NewID("app", "b.txt"), "available", 4))
	require.NoError(t, j.RecordAsset(ctx, "pass-1", asset.NewID("app", "a.txt"), "available", 2))
	require.NoError(t, j.RecordAsset(ctx, "pass-1", asset.NewID("app", "c.txt"), "available", 2))

	events, err := j.ReadPass(ctx, "pass-1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	// Seq ascending, insertion order breaking ties.
	assert.Equal(t, "app|a.txt", events[0].AssetID)
	assert.Equal(t, "app|c.txt", events[1].AssetID)
	assert.Equal(t, "app|b.txt", events[2].AssetID)

	empty, err := j.ReadPass(ctx, "pass-none")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
