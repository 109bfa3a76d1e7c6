package types

// PaymentState tracks a single user-initiated payment flow. A flow is
// created at Idle, moves to Preview on submit, to Processing on confirm,
// and ends in exactly one of Success or Error. Flows are never reused:
// reopening a dialog starts a fresh flow at Idle.
type PaymentState int

const (
	StateIdle PaymentState = iota
	StatePreview
	StateProcessing
	StateSuccess
	StateError
)

var stateNames = map[PaymentState]string{
	StateIdle:       "idle",
	StatePreview:    "preview",
	StateProcessing: "processing",
	StateSuccess:    "success",
	StateError:      "error",
}

func (s PaymentState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the flow has reached a final state.
func (s PaymentState) Terminal() bool {
	return s == StateSuccess || s == StateError
}

// CanTransition reports whether moving from s to next is a legal step.
// Error is a real terminal state carrying the failure reason; a flow
// never silently reverts from a failed transfer back to Idle.
func (s PaymentState) CanTransition(next PaymentState) bool {
	switch s {
	case StateIdle:
		return next == StatePreview
	case StatePreview:
		return next == StateProcessing || next == StateIdle
	case StateProcessing:
		return next == StateSuccess || next == StateError
	default:
		return false
	}
}
