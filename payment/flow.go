package payment

import (
	"sync"

	"github.com/neuroverse/icpay/ledger"
	"github.com/neuroverse/icpay/types"
)

// Flow is one user-initiated payment: a single dialog instance. It owns
// exactly one in-flight transfer intent at a time and walks the
// idle -> preview -> processing -> success|error state machine. Flows are
// cheap and disposable; closing a dialog discards its flow and a new
// dialog starts a fresh one at idle.
type Flow struct {
	mu         sync.Mutex
	state      types.PaymentState
	intent     types.TransferIntent
	agentID    string
	blockIndex uint64
	err        error
}

// NewFlow returns a flow at idle.
func NewFlow() *Flow {
	return &Flow{state: types.StateIdle}
}

// State returns the current payment state.
func (f *Flow) State() types.PaymentState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Intent returns the transfer intent under preview or processing.
func (f *Flow) Intent() types.TransferIntent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.intent
}

// BlockIndex returns the confirming block index; ok is false unless the
// flow reached success.
func (f *Flow) BlockIndex() (uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blockIndex, f.state == types.StateSuccess
}

// Err returns the failure that moved the flow to the error state.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// FailureReason returns the structured ledger rejection when the error
// state was caused by one, so callers can distinguish a cancelled flow
// from a failed transfer and branch on the rejection code.
func (f *Flow) FailureReason() (*ledger.TransferError, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil {
		return nil, false
	}
	return ledger.AsTransferError(f.err)
}

// transition moves the flow to next if legal, holding the lock.
func (f *Flow) transition(next types.PaymentState) error {
	if !f.state.CanTransition(next) {
		return types.ICPayError{
			Code:    types.ErrInvalidState,
			Message: "illegal payment state transition: " + f.state.String() + " -> " + next.String(),
		}
	}
	f.state = next
	return nil
}

func (f *Flow) succeed(blockIndex uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = types.StateSuccess
	f.blockIndex = blockIndex
}

func (f *Flow) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = types.StateError
	f.err = err
}
