// Package icpay implements the NeuroVerse marketplace payment pipeline:
// token transfer and agent-subscription orchestration, deployment
// creator payouts, and balance queries against ICRC-1 ledgers.
package icpay

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/neuroverse/icpay/ledger"
	"github.com/neuroverse/icpay/logger"
	"github.com/neuroverse/icpay/metrics"
	"github.com/neuroverse/icpay/payment"
	"github.com/neuroverse/icpay/payout"
	"github.com/neuroverse/icpay/recorder"
	"github.com/neuroverse/icpay/registry"
	"github.com/neuroverse/icpay/types"
)

const defaultTimeout = 60 * time.Second

// ICPay is the library's entry point. It owns one ledger client,
// payment orchestrator and deployer per supported token. All
// collaborators are injected at construction and released by Close;
// nothing lives in package-level state. The intended lifecycle is one
// ICPay per signed-in identity.
type ICPay struct {
	config *types.Config

	ledgers       map[string]ledger.Client
	orchestrators map[string]*payment.Orchestrator
	deployers     map[string]*payout.Deployer

	rec     recorder.Recorder
	reg     registry.Registry
	guard   payment.Store
	log     logger.Logger
	metrics metrics.Recorder
	timeout time.Duration

	// redisClient is set only when the guard's Redis backend was opened
	// from config, so Close knows to release it.
	redisClient *redis.Client
}

// New creates an ICPay instance from config, opening one ledger client
// per configured token.
func New(config *types.Config, opts ...Option) (*ICPay, error) {
	if config == nil {
		config = &types.Config{}
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, types.ICPayError{Code: types.ErrConfigError, Message: err.Error()}
	}

	// Work on a copy so defaulting never writes back into the caller's
	// struct.
	cfg := *config

	p := &ICPay{
		config:        &cfg,
		ledgers:       make(map[string]ledger.Client),
		orchestrators: make(map[string]*payment.Orchestrator),
		deployers:     make(map[string]*payout.Deployer),
		rec:           recorder.NewMemoryRecorder(),
		reg:           registry.NewMemoryRegistry(),
		log:           logger.NoopLogger{},
		metrics:       metrics.NoopRecorder{},
		timeout:       defaultTimeout,
	}
	if config.DefaultTimeout > 0 {
		p.timeout = config.DefaultTimeout
	}
	if payoutPolicyUnset(config.Payout) {
		p.config.Payout = types.DefaultPayoutPolicy()
	}
	if config.LogLevel != "" {
		p.log = logger.NewZapLogger(config.LogLevel)
	}
	if config.EnableMetrics {
		p.metrics = metrics.NewPrometheusRecorder()
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	if p.guard == nil {
		ttl := config.Guard.TTL
		if ttl <= 0 {
			ttl = payment.DefaultGuardTTL
		}
		if config.Guard.RedisAddr != "" {
			p.redisClient = redis.NewClient(&redis.Options{Addr: config.Guard.RedisAddr})
			p.guard = payment.NewRedisStore(p.redisClient, ttl)
		} else {
			p.guard = payment.NewMemoryStore(ttl)
		}
	}

	for _, lc := range config.Ledgers {
		if err := p.AddLedger(lc); err != nil {
			p.Close()
			return nil, err
		}
	}

	return p, nil
}

// NewWithDefaults creates an instance with no ledgers configured;
// callers add them with AddLedger.
func NewWithDefaults() *ICPay {
	p, _ := New(&types.Config{
		DefaultTimeout: defaultTimeout,
		LogLevel:       "info",
	})
	return p
}

// AddLedger registers a token ledger and builds its orchestrator and
// deployer. An empty gateway URL selects the in-process memory ledger.
func (p *ICPay) AddLedger(cfg types.LedgerConfig) error {
	if _, exists := p.ledgers[cfg.Token]; exists {
		return types.ICPayError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("ledger for token %s already registered", cfg.Token),
		}
	}

	var client ledger.Client
	if cfg.GatewayURL == "" {
		fee := types.NewAmount(0)
		if cfg.TransferFee != "" {
			parsed, err := types.AmountFromString(cfg.TransferFee)
			if err != nil {
				return types.ICPayError{Code: types.ErrConfigError, Message: "invalid transfer fee: " + err.Error()}
			}
			fee = parsed
		}
		client = ledger.NewMemoryLedger(cfg.Token, cfg.Decimals, fee)
	} else {
		gw, err := ledger.NewGatewayClient(cfg)
		if err != nil {
			return err
		}
		client = gw
	}

	p.ledgers[cfg.Token] = client
	p.orchestrators[cfg.Token] = payment.NewOrchestrator(cfg.Token, client,
		payment.WithRecorder(p.rec),
		payment.WithRegistry(p.reg),
		payment.WithGuardStore(p.guard),
		payment.WithLogger(p.log),
		payment.WithMetrics(p.metrics),
		payment.WithTimeout(p.timeout),
	)
	p.deployers[cfg.Token] = payout.NewDeployer(cfg.Token, client, p.reg,
		payout.WithRecorder(p.rec),
		payout.WithPolicy(p.config.Payout),
		payout.WithLogger(p.log),
		payout.WithMetrics(p.metrics),
	)

	p.log.Info("ledger registered", map[string]any{"token": cfg.Token, "gateway": cfg.GatewayURL != ""})
	return nil
}

// IsTokenSupported reports whether a ledger is registered for token.
func (p *ICPay) IsTokenSupported(token string) bool {
	_, ok := p.ledgers[token]
	return ok
}

// Ledger returns the raw ledger client for token.
func (p *ICPay) Ledger(token string) (ledger.Client, error) {
	client, ok := p.ledgers[token]
	if !ok {
		return nil, unsupported(token)
	}
	return client, nil
}

// Orchestrator returns the payment orchestrator for token, for callers
// that drive the preview/confirm flow step by step.
func (p *ICPay) Orchestrator(token string) (*payment.Orchestrator, error) {
	o, ok := p.orchestrators[token]
	if !ok {
		return nil, unsupported(token)
	}
	return o, nil
}

// Deployer returns the deployment payout runner for token.
func (p *ICPay) Deployer(token string) (*payout.Deployer, error) {
	d, ok := p.deployers[token]
	if !ok {
		return nil, unsupported(token)
	}
	return d, nil
}

// Pay runs a complete payment in one call: preview against the sender's
// live balance, then confirm. Callers needing the intermediate preview
// state drive the orchestrator directly instead.
func (p *ICPay) Pay(ctx context.Context, token string, intent types.TransferIntent) (uint64, error) {
	o, err := p.Orchestrator(token)
	if err != nil {
		return 0, err
	}
	client := p.ledgers[token]

	balance, err := client.BalanceOf(ctx, intent.From)
	if err != nil {
		return 0, types.ICPayError{Code: types.ErrLedgerFailure, Message: "balance lookup failed: " + err.Error()}
	}

	flow := o.NewFlow()
	if err := o.Preview(flow, intent, balance); err != nil {
		return 0, err
	}
	return o.Confirm(ctx, flow)
}

// Deploy registers an agent and pays its premium tool creators.
func (p *ICPay) Deploy(ctx context.Context, token string, req payout.DeployRequest) (*payout.DeployResult, error) {
	d, err := p.Deployer(token)
	if err != nil {
		return nil, err
	}
	return d.Deploy(ctx, req)
}

// Balance returns the account's balance on the token's ledger.
func (p *ICPay) Balance(ctx context.Context, token string, account types.Account) (types.Amount, error) {
	client, err := p.Ledger(token)
	if err != nil {
		return types.Amount{}, err
	}
	return client.BalanceOf(ctx, account)
}

// History returns the most recent transaction records for the account,
// newest first.
func (p *ICPay) History(ctx context.Context, account types.Account, limit int) ([]types.TransactionRecord, error) {
	return p.rec.ListByAccount(ctx, account, limit)
}

// Close releases every ledger client and any connection the instance
// opened itself. The instance is unusable after.
func (p *ICPay) Close() {
	for token, client := range p.ledgers {
		client.Close()
		delete(p.ledgers, token)
		delete(p.orchestrators, token)
		delete(p.deployers, token)
	}
	if p.redisClient != nil {
		p.redisClient.Close()
		p.redisClient = nil
	}
}

// payoutPolicyUnset reports whether the config carries no payout policy
// at all, in which case the marketplace defaults apply.
func payoutPolicyUnset(p types.PayoutPolicy) bool {
	return p.InterCallDelay == 0 && p.MaxRetries == 0 && p.Backoff == 0 &&
		p.FeePercent.IsZero() && p.WelcomeBonus.IsZero() && p.PlatformAccount == nil
}

func unsupported(token string) error {
	return types.ICPayError{
		Code:    types.ErrUnsupportedToken,
		Message: fmt.Sprintf("no ledger registered for token %s", token),
	}
}
