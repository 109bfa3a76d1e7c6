package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroverse/icpay/types"
)

func testIntent(amount uint64) types.TransferIntent {
	return types.TransferIntent{
		From:   types.NewAccount("alice-principal"),
		To:     types.NewAccount("bob-principal"),
		Amount: types.NewAmount(amount),
	}
}

func TestMemoryLedgerTransfer(t *testing.T) {
	ctx := context.Background()
	fee := types.NewAmount(10_000)
	l := NewMemoryLedger("NVS", 8, fee)
	l.Credit(types.NewAccount("alice-principal"), types.NewAmount(1_000_000_000))

	intent := testIntent(100_000_000)
	intent.Fee = fee

	block, err := l.Transfer(ctx, intent)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), block)

	aliceBalance, err := l.BalanceOf(ctx, types.NewAccount("alice-principal"))
	require.NoError(t, err)
	assert.Equal(t, "899990000", aliceBalance.String())

	bobBalance, err := l.BalanceOf(ctx, types.NewAccount("bob-principal"))
	require.NoError(t, err)
	assert.Equal(t, "100000000", bobBalance.String())
}

func TestMemoryLedgerInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger("NVS", 8, types.NewAmount(10_000))
	l.Credit(types.NewAccount("alice-principal"), types.NewAmount(50))

	_, err := l.Transfer(ctx, testIntent(100))
	require.Error(t, err)

	te, ok := AsTransferError(err)
	require.True(t, ok)
	assert.Equal(t, CodeInsufficientFunds, te.Code)
	assert.False(t, te.Temporary())
	assert.Equal(t, 0, l.TransferCount(), "rejected transfer must not commit")
}

func TestMemoryLedgerBadFee(t *testing.T) {
	ctx := context.Background()
	fee := types.NewAmount(10_000)
	l := NewMemoryLedger("NVS", 8, fee)
	l.Credit(types.NewAccount("alice-principal"), types.NewAmount(1_000_000_000))

	intent := testIntent(100)
	intent.Fee = types.NewAmount(1)

	_, err := l.Transfer(ctx, intent)
	te, ok := AsTransferError(err)
	require.True(t, ok)
	assert.Equal(t, CodeBadFee, te.Code)
	require.NotNil(t, te.ExpectedFee)
	assert.Equal(t, 0, te.ExpectedFee.Cmp(fee))
}

func TestMemoryLedgerDeduplication(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger("NVS", 8, types.NewAmount(0))
	l.Credit(types.NewAccount("alice-principal"), types.NewAmount(1_000_000))

	intent := testIntent(100)
	intent.CreatedAt = time.Now()

	block, err := l.Transfer(ctx, intent)
	require.NoError(t, err)

	_, err = l.Transfer(ctx, intent)
	te, ok := AsTransferError(err)
	require.True(t, ok)
	assert.Equal(t, CodeDuplicate, te.Code)
	assert.Equal(t, block, te.DuplicateOf)
	assert.Equal(t, 1, l.TransferCount())
}

func TestMemoryLedgerTransactionWindow(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger("NVS", 8, types.NewAmount(0))
	l.Credit(types.NewAccount("alice-principal"), types.NewAmount(1_000_000))

	base := time.Now()
	l.SetNow(func() time.Time { return base })

	t.Run("too old", func(t *testing.T) {
		intent := testIntent(100)
		intent.CreatedAt = base.Add(-25 * time.Hour)
		_, err := l.Transfer(ctx, intent)
		te, ok := AsTransferError(err)
		require.True(t, ok)
		assert.Equal(t, CodeTooOld, te.Code)
	})

	t.Run("created in future", func(t *testing.T) {
		intent := testIntent(100)
		intent.CreatedAt = base.Add(10 * time.Minute)
		_, err := l.Transfer(ctx, intent)
		te, ok := AsTransferError(err)
		require.True(t, ok)
		assert.Equal(t, CodeCreatedInFuture, te.Code)
	})
}

func TestMemoryLedgerRejectsInvalidIntent(t *testing.T) {
	l := NewMemoryLedger("NVS", 8, types.NewAmount(0))

	_, err := l.Transfer(context.Background(), types.TransferIntent{
		From:   types.NewAccount("alice-principal"),
		To:     types.NewAccount("bob-principal"),
		Amount: types.NewAmount(0),
	})
	require.Error(t, err)

	var perr types.ICPayError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.ErrInvalidIntent, perr.Code)
}
