package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentStateTransitions(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		assert.True(t, StateIdle.CanTransition(StatePreview))
		assert.True(t, StatePreview.CanTransition(StateProcessing))
		assert.True(t, StateProcessing.CanTransition(StateSuccess))
		assert.True(t, StateProcessing.CanTransition(StateError))
	})

	t.Run("cancel returns to idle", func(t *testing.T) {
		assert.True(t, StatePreview.CanTransition(StateIdle))
	})

	t.Run("no skipping preview", func(t *testing.T) {
		assert.False(t, StateIdle.CanTransition(StateProcessing))
		assert.False(t, StateIdle.CanTransition(StateSuccess))
	})

	t.Run("terminal states stay terminal", func(t *testing.T) {
		for _, terminal := range []PaymentState{StateSuccess, StateError} {
			assert.True(t, terminal.Terminal())
			for _, next := range []PaymentState{StateIdle, StatePreview, StateProcessing, StateSuccess, StateError} {
				assert.False(t, terminal.CanTransition(next), "%s -> %s", terminal, next)
			}
		}
	})
}
