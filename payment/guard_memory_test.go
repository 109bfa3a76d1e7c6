package payment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroverse/icpay/types"
)

func TestGuardKeyStable(t *testing.T) {
	intent := types.TransferIntent{
		From:   types.NewAccount("alice-principal"),
		To:     types.NewAccount("bob-principal"),
		Amount: types.NewAmount(100),
		Memo:   []byte("sub"),
	}

	assert.Equal(t, GuardKey(intent), GuardKey(intent))

	other := intent
	other.Memo = []byte("other")
	assert.NotEqual(t, GuardKey(intent), GuardKey(other))
}

func TestMemoryStoreSingleFlight(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)

	status, _, err := s.Begin(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, status)

	status, _, err = s.Begin(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, StatusInFlight, status)

	require.NoError(t, s.Complete(ctx, "k", &Result{BlockIndex: 9}))

	status, result, err := s.Begin(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, StatusCached, status)
	require.NotNil(t, result)
	assert.Equal(t, uint64(9), result.BlockIndex)
}

func TestMemoryStoreWaitForClaimant(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)

	_, _, err := s.Begin(ctx, "k")
	require.NoError(t, err)

	done := make(chan *Result, 1)
	go func() {
		result, err := s.Wait(ctx, "k")
		require.NoError(t, err)
		done <- result
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Complete(ctx, "k", &Result{BlockIndex: 3}))

	select {
	case result := <-done:
		require.NotNil(t, result)
		assert.Equal(t, uint64(3), result.BlockIndex)
	case <-time.After(time.Second):
		t.Fatal("waiter never woke up")
	}
}

func TestMemoryStoreFailedClaimReleasesKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)

	_, _, err := s.Begin(ctx, "k")
	require.NoError(t, err)

	waitDone := make(chan *Result, 1)
	go func() {
		result, err := s.Wait(ctx, "k")
		require.NoError(t, err)
		waitDone <- result
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Fail(ctx, "k"))

	select {
	case result := <-waitDone:
		assert.Nil(t, result, "failed claim must yield no cached result")
	case <-time.After(time.Second):
		t.Fatal("waiter never woke up")
	}

	// The key is claimable again.
	status, _, err := s.Begin(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, status)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(20 * time.Millisecond)

	_, _, err := s.Begin(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx, "k", &Result{BlockIndex: 1}))

	time.Sleep(40 * time.Millisecond)

	status, _, err := s.Begin(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, status, "expired result must not dedupe")
}

func TestMemoryStoreWaitRespectsContext(t *testing.T) {
	s := NewMemoryStore(time.Minute)

	_, _, err := s.Begin(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = s.Wait(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
