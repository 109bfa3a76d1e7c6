package recorder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroverse/icpay/types"
)

func record(block uint64, from, to string) types.TransactionRecord {
	return types.TransactionRecord{
		BlockIndex: block,
		Amount:     types.NewAmount(100),
		From:       types.NewAccount(from),
		To:         types.NewAccount(to),
	}
}

func TestMemoryRecorderNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRecorder()

	require.NoError(t, m.Record(ctx, record(1, "alice-principal", "bob-principal")))
	require.NoError(t, m.Record(ctx, record(2, "alice-principal", "carol-principal")))
	require.NoError(t, m.Record(ctx, record(3, "dave-principal", "alice-principal")))

	records, err := m.ListByAccount(ctx, types.NewAccount("alice-principal"), 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, uint64(3), records[0].BlockIndex)
	assert.Equal(t, uint64(1), records[2].BlockIndex)
}

func TestMemoryRecorderFiltersByAccount(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRecorder()

	require.NoError(t, m.Record(ctx, record(1, "alice-principal", "bob-principal")))
	require.NoError(t, m.Record(ctx, record(2, "carol-principal", "dave-principal")))

	records, err := m.ListByAccount(ctx, types.NewAccount("bob-principal"), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(1), records[0].BlockIndex)
}

func TestMemoryRecorderLimit(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRecorder()

	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, m.Record(ctx, record(i, "alice-principal", "bob-principal")))
	}

	records, err := m.ListByAccount(ctx, types.NewAccount("alice-principal"), 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(5), records[0].BlockIndex)
}

func TestMemoryRecorderAssignsID(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRecorder()

	require.NoError(t, m.Record(ctx, record(1, "alice-principal", "bob-principal")))

	records, err := m.ListByAccount(ctx, types.NewAccount("alice-principal"), 0)
	require.NoError(t, err)
	assert.NotEmpty(t, records[0].ID)
}
