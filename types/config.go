package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerConfig describes one token ledger the pipeline can move funds on.
type LedgerConfig struct {
	// Token symbol, e.g. "ICP" or "NVS". Keys the ledger inside the library.
	Token string `json:"token" validate:"required"`

	// Base URL of the ICRC ledger gateway. Empty selects the in-process
	// memory ledger, which is only suitable for tests and local development.
	GatewayURL string `json:"gatewayUrl,omitempty" validate:"omitempty,url"`

	// Number of decimals in the token's display unit (8 for e8s tokens).
	Decimals int32 `json:"decimals" validate:"gte=0,lte=18"`

	// Flat ledger transfer fee in smallest units.
	TransferFee string `json:"transferFee,omitempty"`

	// Per-call timeout for gateway requests.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// GuardConfig controls the single-flight transfer guard.
type GuardConfig struct {
	// TTL is the deduplication window: identical (from, to, amount, memo)
	// submissions inside it resolve to the first attempt's result.
	TTL time.Duration `json:"ttl,omitempty"`

	// RedisAddr selects the Redis-backed store for multi-instance
	// deployments. Empty keeps the in-memory store.
	RedisAddr string `json:"redisAddr,omitempty"`
}

// PayoutPolicy governs the sequential creator-payout loop during agent
// deployment. Payouts are strictly sequential (concurrency cap of 1) to
// respect the ledger's created_at_time deduplication window; the pacing
// and retry behavior are policy, not magic constants.
type PayoutPolicy struct {
	// InterCallDelay is the pause between consecutive ledger calls.
	InterCallDelay time.Duration `json:"interCallDelay,omitempty"`

	// MaxRetries bounds re-attempts of a single payout after a
	// temporarily-unavailable ledger response.
	MaxRetries int `json:"maxRetries,omitempty" validate:"gte=0,lte=10"`

	// Backoff is the base delay before a retry; it doubles per attempt.
	Backoff time.Duration `json:"backoff,omitempty"`

	// FeePercent is the platform fee applied on top of tool costs.
	FeePercent decimal.Decimal `json:"feePercent"`

	// WelcomeBonus is credited to the available balance of first-time
	// deployers when checking cost sufficiency.
	WelcomeBonus decimal.Decimal `json:"welcomeBonus"`

	// PlatformAccount receives the platform fee when set. When empty the
	// fee is only used for sufficiency gating and no fee transfer happens.
	PlatformAccount *Account `json:"platformAccount,omitempty"`
}

// DefaultPayoutPolicy mirrors the marketplace defaults: half-second
// pacing, two retries, 10% platform fee.
func DefaultPayoutPolicy() PayoutPolicy {
	return PayoutPolicy{
		InterCallDelay: 500 * time.Millisecond,
		MaxRetries:     2,
		Backoff:        time.Second,
		FeePercent:     decimal.NewFromInt(10),
	}
}

// Config is the top-level library configuration.
type Config struct {
	DefaultTimeout time.Duration  `json:"defaultTimeout,omitempty"`
	Ledgers        []LedgerConfig `json:"ledgers,omitempty" validate:"dive"`
	Guard          GuardConfig    `json:"guard,omitempty"`
	Payout         PayoutPolicy   `json:"payout,omitempty"`
	LogLevel       string         `json:"logLevel,omitempty" validate:"omitempty,oneof=debug info warn error"`
	EnableMetrics  bool           `json:"enableMetrics,omitempty"`
}
