package toolscribe

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInvocation(tool string, createdAt time.Time) Invocation {
	return Invocation{
		ID:        uuid.New(),
		Tool:      tool,
		Arguments: json.RawMessage(`{"a": 1, "b": 2}`),
		Result:    "3",
		Duration:  5 * time.Millisecond,
		CreatedAt: createdAt,
	}
}

func TestInMemoryStoreRecordAndList(t *testing.T) {
	store := NewInMemoryInvocationStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.RecordInvocation(ctx, sampleInvocation("add", now.Add(-2*time.Minute))))
	require.NoError(t, store.RecordInvocation(ctx, sampleInvocation("subtract", now.Add(-time.Minute))))
	require.NoError(t, store.RecordInvocation(ctx, sampleInvocation("add", now)))

	all, err := store.ListInvocations(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "add", all[0].Tool)
	assert.Equal(t, "subtract", all[1].Tool)

	adds, err := store.ListInvocations(ctx, "add", 0)
	require.NoError(t, err)
	assert.Len(t, adds, 2)

	limited, err := store.ListInvocations(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "add", limited[0].Tool)
}

func TestInMemoryStorePurge(t *testing.T) {
	store := NewInMemoryInvocationStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.RecordInvocation(ctx, sampleInvocation("add", now.Add(-time.Hour))))
	require.NoError(t, store.RecordInvocation(ctx, sampleInvocation("add", now)))

	removed, err := store.PurgeInvocations(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	remaining, err := store.ListInvocations(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}
