package docstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxTries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestWriterNeverSplitsGroups(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	var sizes []int
	s.BeforeCommit = func(ops []Op) error {
		sizes = append(sizes, len(ops))
		return nil
	}

	w := NewWriter(s, 5, fastPolicy())
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("u%d", i)
		group := []Op{
			Set("users", id, map[string]interface{}{"n": i}),
			Set("user_achievements/"+id+"/achievements", "a1", map[string]interface{}{"achievementId": "a1"}),
		}
		require.NoError(t, w.Add(ctx, group, nil))
	}
	stats, err := w.Close(ctx)
	require.NoError(t, err)

	assert.Equal(t, []int{4, 4}, sizes)
	assert.Equal(t, WriteStats{Batches: 2, Ops: 8}, stats)
}

func TestWriterRejectsOversizedGroup(t *testing.T) {
	w := NewWriter(NewMemoryStore(), 2, fastPolicy())
	err := w.Add(context.Background(), []Op{Delete("a", "1"), Delete("a", "2"), Delete("a", "3")}, nil)
	assert.ErrorIs(t, err, ErrGroupTooBig)
}

func TestWriterRetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	attempts := 0
	s.BeforeCommit = func(ops []Op) error {
		attempts++
		if attempts < 3 {
			return status.Error(codes.Unavailable, "try later")
		}
		return nil
	}

	w := NewWriter(s, 10, fastPolicy())
	var result error = errors.New("not called")
	require.NoError(t, w.Add(ctx, []Op{Set("missions", "m1", map[string]interface{}{"name": "A"})}, func(err error) { result = err }))
	stats, err := w.Close(ctx)

	require.NoError(t, err)
	assert.NoError(t, result)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 1, stats.Batches)
}

func TestWriterReportsPermanentFailure(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	attempts := 0
	s.BeforeCommit = func(ops []Op) error {
		attempts++
		return status.Error(codes.PermissionDenied, "no")
	}

	w := NewWriter(s, 10, fastPolicy())
	var failed int
	for i := 0; i < 2; i++ {
		op := Set("missions", fmt.Sprintf("m%d", i), map[string]interface{}{})
		require.NoError(t, w.Add(ctx, []Op{op}, func(err error) {
			if err != nil {
				failed++
			}
		}))
	}
	stats, err := w.Close(ctx)

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 2, failed)
	assert.Equal(t, WriteStats{Batches: 1, Ops: 2, FailedBatches: 1, FailedOps: 2}, stats)
}

func TestWriterDryRunDoesNotCommit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	w := NewWriter(s, 10, fastPolicy()).DryRun(true)
	require.NoError(t, w.Add(ctx, []Op{Set("missions", "m1", map[string]interface{}{})}, nil))
	stats, err := w.Close(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Ops)
	assert.Equal(t, 0, s.Commits())
}
