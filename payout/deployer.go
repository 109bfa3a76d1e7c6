// Package payout runs the creator-payout side of agent deployment: one
// marketplace registration followed by strictly sequential ledger
// transfers to the creators of the premium tools the agent was deployed
// with. Sequencing, pacing and retries follow the configured policy.
package payout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/neuroverse/icpay/ledger"
	"github.com/neuroverse/icpay/logger"
	"github.com/neuroverse/icpay/metrics"
	"github.com/neuroverse/icpay/recorder"
	"github.com/neuroverse/icpay/registry"
	"github.com/neuroverse/icpay/types"
)

// DeployRequest describes one agent deployment: who pays, what agent to
// register, and which tools (premium or free) it is deployed with.
type DeployRequest struct {
	Deployer types.Account
	Agent    types.Agent
	Tools    []types.Tool
}

// DeployResult is the full outcome of a deployment. Payouts holds one
// entry per premium tool in selection order; failed payouts are carried
// there rather than surfaced as the deployment's error.
type DeployResult struct {
	AgentID   string               `json:"agentId"`
	Breakdown types.CostBreakdown  `json:"breakdown"`
	Payouts   []types.PayoutResult `json:"payouts"`
	FeePayout *types.PayoutResult  `json:"feePayout,omitempty"`
}

// Deployer executes agent deployments against one token ledger.
type Deployer struct {
	token   string
	ledger  ledger.Client
	reg     registry.Registry
	rec     recorder.Recorder
	policy  types.PayoutPolicy
	log     logger.Logger
	metrics metrics.Recorder
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option configures a Deployer.
type Option func(*Deployer)

// WithRecorder sets the transaction audit store.
func WithRecorder(r recorder.Recorder) Option {
	return func(d *Deployer) { d.rec = r }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Deployer) { d.log = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(d *Deployer) { d.metrics = m }
}

// WithPolicy overrides the payout policy.
func WithPolicy(p types.PayoutPolicy) Option {
	return func(d *Deployer) { d.policy = p }
}

// WithClock overrides the clock used for transaction timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Deployer) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDeployer creates a deployer for one token ledger and marketplace
// registry.
func NewDeployer(token string, client ledger.Client, reg registry.Registry, opts ...Option) *Deployer {
	d := &Deployer{
		token:   token,
		ledger:  client,
		reg:     reg,
		policy:  types.DefaultPayoutPolicy(),
		log:     logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		now:     time.Now,
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Preview computes the cost breakdown for deploying with the given
// tools, without touching the registry or the ledger. First-time
// deployers get the welcome bonus folded into their available balance.
func (d *Deployer) Preview(ctx context.Context, deployer types.Account, tools []types.Tool) (types.CostBreakdown, error) {
	balance, err := d.ledger.BalanceOf(ctx, deployer)
	if err != nil {
		return types.CostBreakdown{}, types.ICPayError{
			Code:    types.ErrLedgerFailure,
			Message: "balance lookup failed: " + err.Error(),
		}
	}
	available := balance.Decimal(d.ledger.Decimals())

	if bonus, err := d.welcomeBonus(ctx, deployer); err == nil {
		available = available.Add(bonus)
	} else {
		d.log.Warn("first-deploy check failed, skipping welcome bonus", map[string]any{
			"principal": deployer.Owner, "error": err.Error(),
		})
	}

	return types.ComputeCostBreakdown(toolPrices(tools), d.policy.FeePercent, available), nil
}

// Deploy registers the agent and pays each premium tool's creator in
// tool selection order. The registry call is the deployment's single
// commit point: if it fails nothing is transferred. Individual payout
// failures are recorded in the result and logged, never promoted to the
// deployment's error; the agent stays registered either way.
func (d *Deployer) Deploy(ctx context.Context, req DeployRequest) (*DeployResult, error) {
	breakdown, err := d.Preview(ctx, req.Deployer, req.Tools)
	if err != nil {
		return nil, err
	}
	if !breakdown.Sufficient() {
		return nil, types.ICPayError{
			Code:    types.ErrInsufficientFunds,
			Message: "balance insufficient for deployment cost",
			Data:    breakdown,
		}
	}

	agent := req.Agent
	agent.Creator = req.Deployer
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = d.now()
	}
	created, err := d.reg.CreateAgent(ctx, agent)
	if err != nil {
		return nil, types.ICPayError{
			Code:    types.ErrRegistryFailure,
			Message: "agent registration failed: " + err.Error(),
		}
	}
	if !created.OK {
		return nil, types.ICPayError{
			Code:    types.ErrDeploymentFailed,
			Message: "agent registration rejected: " + created.Reason,
		}
	}

	result := &DeployResult{
		AgentID:   created.AgentID,
		Breakdown: breakdown,
	}

	first := true
	for _, tool := range req.Tools {
		if !tool.Premium() {
			continue
		}
		if !first {
			if err := d.sleep(ctx, d.policy.InterCallDelay); err != nil {
				result.Payouts = append(result.Payouts, types.PayoutResult{ToolID: tool.ID, Err: err})
				continue
			}
		}
		first = false

		result.Payouts = append(result.Payouts, d.payTool(ctx, req.Deployer, created.AgentID, tool))
	}

	d.payPlatformFee(ctx, req.Deployer, created.AgentID, breakdown, result)

	d.metrics.IncCounter("deployment_success", map[string]string{"token": d.token})
	return result, nil
}

// payTool transfers one tool's price to its creator, retrying only
// transient ledger failures.
func (d *Deployer) payTool(ctx context.Context, from types.Account, agentID string, tool types.Tool) types.PayoutResult {
	amount, err := types.AmountFromDecimal(tool.Price, d.ledger.Decimals())
	if err != nil {
		return types.PayoutResult{ToolID: tool.ID, Err: err}
	}

	intent := types.TransferIntent{
		From:      from,
		To:        tool.Creator,
		Amount:    amount,
		Fee:       d.ledger.TransferFee(),
		Memo:      []byte("payout:" + tool.ID),
		CreatedAt: d.now(),
	}

	blockIndex, err := d.transferWithRetry(ctx, intent)
	if err != nil {
		d.log.Error("tool payout failed", map[string]any{
			"tool_id": tool.ID, "creator": tool.Creator.Owner, "error": err.Error(),
		})
		d.metrics.IncCounter("payout_error", map[string]string{"token": d.token})
		return types.PayoutResult{ToolID: tool.ID, Err: err}
	}

	d.record(ctx, intent, agentID, blockIndex)
	d.metrics.IncCounter("payout_success", map[string]string{"token": d.token})
	return types.PayoutResult{ToolID: tool.ID, BlockIndex: blockIndex}
}

// payPlatformFee transfers the platform fee when a platform account is
// configured. Without one the fee only gates sufficiency.
func (d *Deployer) payPlatformFee(ctx context.Context, from types.Account, agentID string, breakdown types.CostBreakdown, result *DeployResult) {
	if d.policy.PlatformAccount == nil || !breakdown.PlatformFee.IsPositive() {
		return
	}

	amount, err := types.AmountFromDecimal(breakdown.PlatformFee, d.ledger.Decimals())
	if err != nil {
		d.log.Error("platform fee not representable on ledger", map[string]any{"error": err.Error()})
		return
	}

	if len(result.Payouts) > 0 {
		if err := d.sleep(ctx, d.policy.InterCallDelay); err != nil {
			result.FeePayout = &types.PayoutResult{ToolID: "platform-fee", Err: err}
			return
		}
	}

	intent := types.TransferIntent{
		From:      from,
		To:        *d.policy.PlatformAccount,
		Amount:    amount,
		Fee:       d.ledger.TransferFee(),
		Memo:      []byte("platform-fee:" + agentID),
		CreatedAt: d.now(),
	}

	blockIndex, err := d.transferWithRetry(ctx, intent)
	if err != nil {
		d.log.Error("platform fee payout failed", map[string]any{"error": err.Error()})
		result.FeePayout = &types.PayoutResult{ToolID: "platform-fee", Err: err}
		return
	}

	d.record(ctx, intent, agentID, blockIndex)
	result.FeePayout = &types.PayoutResult{ToolID: "platform-fee", BlockIndex: blockIndex}
}

// transferWithRetry submits one transfer, retrying up to MaxRetries
// times with doubling backoff, but only on temporary ledger errors.
// Rejections like insufficient funds fail immediately.
func (d *Deployer) transferWithRetry(ctx context.Context, intent types.TransferIntent) (uint64, error) {
	backoff := d.policy.Backoff
	var lastErr error
	for attempt := 0; attempt <= d.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := d.sleep(ctx, backoff); err != nil {
				return 0, err
			}
			backoff *= 2
		}

		blockIndex, err := d.ledger.Transfer(ctx, intent)
		if err == nil {
			return blockIndex, nil
		}
		lastErr = err

		if te, ok := ledger.AsTransferError(err); ok {
			if te.Code == ledger.CodeDuplicate {
				// The earlier attempt actually landed.
				return te.DuplicateOf, nil
			}
			if !te.Temporary() {
				return 0, err
			}
			d.log.Warn("transient ledger failure, retrying payout", map[string]any{
				"attempt": attempt + 1, "error": err.Error(),
			})
			continue
		}
		return 0, err
	}
	return 0, lastErr
}

// record writes the audit entry for a settled payout, best-effort.
func (d *Deployer) record(ctx context.Context, intent types.TransferIntent, agentID string, blockIndex uint64) {
	if d.rec == nil {
		return
	}
	entry := types.TransactionRecord{
		ID:         uuid.NewString(),
		BlockIndex: blockIndex,
		Amount:     intent.Amount,
		From:       intent.From,
		To:         intent.To,
		AgentID:    agentID,
		Timestamp:  d.now(),
	}
	if err := d.rec.Record(ctx, entry); err != nil {
		d.log.Error("payout record write failed", map[string]any{
			"block_index": blockIndex, "error": err.Error(),
		})
	}
}

// welcomeBonus returns the bonus owed to a first-time deployer, zero
// otherwise.
func (d *Deployer) welcomeBonus(ctx context.Context, deployer types.Account) (decimal.Decimal, error) {
	if !d.policy.WelcomeBonus.IsPositive() {
		return decimal.Zero, nil
	}
	existing, err := d.reg.GetAgentsForUser(ctx, deployer.Owner)
	if err != nil {
		return decimal.Zero, err
	}
	if len(existing) > 0 {
		return decimal.Zero, nil
	}
	return d.policy.WelcomeBonus, nil
}

// toolPrices extracts the premium tool prices in selection order.
func toolPrices(tools []types.Tool) []decimal.Decimal {
	prices := make([]decimal.Decimal, 0, len(tools))
	for _, t := range tools {
		if t.Premium() {
			prices = append(prices, t.Price)
		}
	}
	return prices
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
