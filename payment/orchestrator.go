package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/neuroverse/icpay/ledger"
	"github.com/neuroverse/icpay/logger"
	"github.com/neuroverse/icpay/metrics"
	"github.com/neuroverse/icpay/recorder"
	"github.com/neuroverse/icpay/registry"
	"github.com/neuroverse/icpay/types"
)

const defaultConfirmTimeout = 60 * time.Second

// Orchestrator drives single token transfers from initiation to a
// terminal state, keeping each Flow's payment state consistent with the
// actual ledger outcome. All collaborators enter through the
// constructor; the orchestrator holds no process-wide singletons.
type Orchestrator struct {
	token   string
	ledger  ledger.Client
	rec     recorder.Recorder
	reg     registry.Registry
	guard   Store
	log     logger.Logger
	metrics metrics.Recorder
	timeout time.Duration
	now     func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder sets the transaction audit store.
func WithRecorder(r recorder.Recorder) Option {
	return func(o *Orchestrator) { o.rec = r }
}

// WithRegistry sets the marketplace backend used for the
// subscribe-to-agent side effect.
func WithRegistry(r registry.Registry) Option {
	return func(o *Orchestrator) { o.reg = r }
}

// WithGuardStore sets the single-flight guard backend.
func WithGuardStore(s Store) Option {
	return func(o *Orchestrator) { o.guard = s }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTimeout bounds a single Confirm, ledger call included. On expiry
// the flow lands in the error state instead of hanging at processing.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithClock overrides the clock; tests use it to pin created_at_time.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator creates a payment orchestrator for one token ledger.
func NewOrchestrator(token string, client ledger.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		token:   token,
		ledger:  client,
		guard:   NewMemoryStore(DefaultGuardTTL),
		log:     logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		timeout: defaultConfirmTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// NewFlow starts a fresh payment flow at idle.
func (o *Orchestrator) NewFlow() *Flow {
	return NewFlow()
}

// Preview validates the intent and moves the flow idle -> preview. This
// step never touches the network: the user can re-edit and re-preview
// freely. The balance check against available is advisory; the ledger
// stays the final authority at Confirm.
func (o *Orchestrator) Preview(f *Flow, intent types.TransferIntent, available types.Amount) error {
	if err := intent.Validate(); err != nil {
		return types.ICPayError{Code: types.ErrInvalidIntent, Message: err.Error()}
	}

	needed := intent.Amount.Add(o.ledger.TransferFee())
	if needed.Cmp(available) > 0 {
		return types.ICPayError{
			Code:    types.ErrInsufficientFunds,
			Message: "amount plus fee exceeds available balance",
			Data:    map[string]string{"needed": needed.String(), "available": available.String()},
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transition(types.StatePreview); err != nil {
		return err
	}
	f.intent = intent
	f.agentID = ""
	return nil
}

// PreviewSubscription is Preview for an agent-subscription payment: on
// success the flow additionally subscribes the sender to the agent.
func (o *Orchestrator) PreviewSubscription(f *Flow, agentID string, intent types.TransferIntent, available types.Amount) error {
	if err := o.Preview(f, intent, available); err != nil {
		return err
	}
	f.mu.Lock()
	f.agentID = agentID
	f.mu.Unlock()
	return nil
}

// Cancel abandons a previewed payment, preview -> idle. A cancelled flow
// carries no error: cancellation and failure are distinct outcomes.
func (o *Orchestrator) Cancel(f *Flow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transition(types.StateIdle); err != nil {
		return err
	}
	f.intent = types.TransferIntent{}
	f.agentID = ""
	return nil
}

// Confirm executes the previewed transfer: preview -> processing, then
// exactly one ledger call, landing in success or error. Identical
// submissions inside the guard window resolve to the first attempt's
// block index without a second ledger call. On success the transaction
// record and subscription side effect are applied best-effort; their
// failures are logged and never block the success transition.
func (o *Orchestrator) Confirm(ctx context.Context, f *Flow) (uint64, error) {
	f.mu.Lock()
	if err := f.transition(types.StateProcessing); err != nil {
		f.mu.Unlock()
		return 0, err
	}
	intent := f.intent
	agentID := f.agentID
	f.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = o.now()
	}
	if intent.Fee.IsZero() {
		intent.Fee = o.ledger.TransferFee()
	}

	// The guard goes first: a duplicate of an already-settled transfer
	// must resolve to the original block index even when that transfer
	// has since drained the balance below amount plus fee.
	key := GuardKey(intent)
	claimed, cached, err := o.claim(ctx, key)
	if err != nil {
		f.fail(err)
		return 0, err
	}
	if cached != nil {
		o.log.Info("duplicate submission resolved from guard", map[string]any{
			"token": o.token, "block_index": cached.BlockIndex,
		})
		o.metrics.IncCounter("payment_deduplicated", map[string]string{"token": o.token})
		f.succeed(cached.BlockIndex)
		return cached.BlockIndex, nil
	}

	// Defense in depth: the preview check may be stale by now.
	if balance, err := o.ledger.BalanceOf(ctx, intent.From); err == nil {
		needed := intent.Amount.Add(intent.Fee)
		if needed.Cmp(balance) > 0 {
			if claimed {
				if failErr := o.guard.Fail(context.WithoutCancel(ctx), key); failErr != nil {
					o.log.Warn("guard release failed", map[string]any{"error": failErr.Error()})
				}
			}
			rejection := &ledger.TransferError{
				Code:    ledger.CodeInsufficientFunds,
				Message: "balance " + balance.String() + " below required " + needed.String(),
			}
			f.fail(rejection)
			o.metrics.IncCounter("payment_rejected", map[string]string{"token": o.token})
			return 0, rejection
		}
	} else {
		o.log.Warn("pre-transfer balance check failed, deferring to ledger", map[string]any{
			"token": o.token, "error": err.Error(),
		})
	}

	started := o.now()
	blockIndex, err := o.ledger.Transfer(ctx, intent)
	o.metrics.ObserveLatency("transfer", time.Since(started), map[string]string{"token": o.token})

	if err != nil {
		if claimed {
			if failErr := o.guard.Fail(context.WithoutCancel(ctx), key); failErr != nil {
				o.log.Warn("guard release failed", map[string]any{"error": failErr.Error()})
			}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = types.ICPayError{Code: types.ErrTimeout, Message: "ledger transfer timed out"}
		}
		f.fail(err)
		o.log.Error("ledger transfer failed", map[string]any{"token": o.token, "error": err.Error()})
		o.metrics.IncCounter("payment_error", map[string]string{"token": o.token})
		return 0, err
	}

	if claimed {
		if err := o.guard.Complete(context.WithoutCancel(ctx), key, &Result{BlockIndex: blockIndex}); err != nil {
			o.log.Warn("guard completion failed", map[string]any{"error": err.Error()})
		}
	}

	f.succeed(blockIndex)
	o.metrics.IncCounter("payment_success", map[string]string{"token": o.token})

	o.finalize(context.WithoutCancel(ctx), intent, agentID, blockIndex)
	return blockIndex, nil
}

// claim runs the single-flight protocol for key. It returns the cached
// result of an earlier identical submission, or claimed=true when this
// caller must perform the transfer itself. A guard backend outage
// degrades to an unguarded transfer rather than blocking payment.
func (o *Orchestrator) claim(ctx context.Context, key string) (claimed bool, cached *Result, err error) {
	for attempt := 0; attempt < 2; attempt++ {
		status, result, beginErr := o.guard.Begin(ctx, key)
		if beginErr != nil {
			o.log.Warn("guard unavailable, submitting unguarded", map[string]any{"error": beginErr.Error()})
			return false, nil, nil
		}

		switch status {
		case StatusCached:
			return false, result, nil
		case StatusNotFound:
			return true, nil, nil
		case StatusInFlight:
			result, waitErr := o.guard.Wait(ctx, key)
			if waitErr != nil {
				return false, nil, types.ICPayError{Code: types.ErrTimeout, Message: waitErr.Error()}
			}
			if result != nil {
				return false, result, nil
			}
			// The claimant failed; loop once to claim the key ourselves.
		}
	}
	return true, nil, nil
}

// finalize applies the post-success side effects: exactly one
// transaction record and, for subscription payments, the agent
// subscription. Both are best-effort.
func (o *Orchestrator) finalize(ctx context.Context, intent types.TransferIntent, agentID string, blockIndex uint64) {
	if o.rec != nil {
		record := types.TransactionRecord{
			ID:         uuid.NewString(),
			BlockIndex: blockIndex,
			Amount:     intent.Amount,
			From:       intent.From,
			To:         intent.To,
			AgentID:    agentID,
			Timestamp:  o.now(),
		}
		if err := o.rec.Record(ctx, record); err != nil {
			o.log.Error("transaction record write failed", map[string]any{
				"block_index": blockIndex, "error": err.Error(),
			})
		}
	}

	if agentID != "" && o.reg != nil {
		if _, err := o.reg.SubscribeToAgent(ctx, agentID, intent.From.Owner); err != nil {
			o.log.Error("agent subscription failed after payment", map[string]any{
				"agent_id": agentID, "error": err.Error(),
			})
		}
	}
}
