package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/neuroverse/icpay/types"
)

// Status is the outcome of checking the guard store for a transfer key.
type Status int

const (
	// StatusNotFound means no cached result and no in-flight submission;
	// the caller now holds the claim and must Complete or Fail it.
	StatusNotFound Status = iota
	// StatusCached means an identical submission already settled inside
	// the deduplication window.
	StatusCached
	// StatusInFlight means another submission with the same key is
	// currently processing.
	StatusInFlight
)

// Result is the cached outcome of a deduplicated transfer.
type Result struct {
	BlockIndex uint64 `json:"blockIndex"`
}

// Store is the single-flight guard backend. Implementations must be
// safe for concurrent use; the Redis store extends the guarantee across
// process instances.
type Store interface {
	// Begin atomically checks for a cached result or an in-flight claim,
	// claiming the key when neither exists.
	Begin(ctx context.Context, key string) (Status, *Result, error)

	// Wait blocks until the in-flight claimant finishes. A nil result
	// with nil error means the claimant failed and the key is free again.
	Wait(ctx context.Context, key string) (*Result, error)

	// Complete caches the result and releases the claim.
	Complete(ctx context.Context, key string, result *Result) error

	// Fail releases the claim without caching, so the transfer can be
	// legitimately retried.
	Fail(ctx context.Context, key string) error
}

// GuardKey derives the deduplication key for a transfer intent. Two
// submissions with the same sender, recipient, amount and memo inside
// the guard TTL are treated as one; callers that genuinely want two
// identical rapid payments must distinguish them via the memo.
func GuardKey(intent types.TransferIntent) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%x", intent.From.Key(), intent.To.Key(), intent.Amount.String(), intent.Memo)
	return hex.EncodeToString(h.Sum(nil))
}
