package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/neuroverse/icpay/types"
)

// dedupWindow is how long the memory ledger remembers submitted
// created_at_time transfers for duplicate detection, mirroring the
// ICRC-1 transaction window.
const dedupWindow = 24 * time.Hour

// MemoryLedger is an in-process ledger honoring the full transfer
// contract: balance checks, fee validation and created_at_time
// deduplication. It backs tests and local development; production
// deployments use GatewayClient.
type MemoryLedger struct {
	mu        sync.Mutex
	token     string
	decimals  int32
	fee       types.Amount
	balances  map[string]types.Amount
	dedup     map[string]dedupEntry
	nextBlock uint64
	now       func() time.Time

	// Transfers retains every committed transfer in commit order so
	// tests can assert call counts and sequencing.
	transfers []types.TransferIntent
}

type dedupEntry struct {
	blockIndex uint64
	seenAt     time.Time
}

// NewMemoryLedger creates an empty memory ledger for a token.
func NewMemoryLedger(token string, decimals int32, fee types.Amount) *MemoryLedger {
	return &MemoryLedger{
		token:    token,
		decimals: decimals,
		fee:      fee,
		balances: make(map[string]types.Amount),
		dedup:    make(map[string]dedupEntry),
		now:      time.Now,
	}
}

var _ Client = (*MemoryLedger)(nil)

// SetNow overrides the clock, letting tests drive the dedup window.
func (m *MemoryLedger) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Credit mints tokens into an account.
func (m *MemoryLedger) Credit(account types.Account, amount types.Amount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account.Key()] = m.balances[account.Key()].Add(amount)
}

// Transfer applies the intent atomically. Rejections are *TransferError
// values matching the ledger contract.
func (m *MemoryLedger) Transfer(ctx context.Context, intent types.TransferIntent) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, &TransferError{Code: CodeTemporarilyUnavailable, Message: err.Error()}
	}
	if err := intent.Validate(); err != nil {
		return 0, types.ICPayError{Code: types.ErrInvalidIntent, Message: err.Error()}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !intent.Fee.IsZero() && intent.Fee.Cmp(m.fee) != 0 {
		fee := m.fee
		return 0, &TransferError{
			Code:        CodeBadFee,
			Message:     fmt.Sprintf("expected fee %s, got %s", m.fee.String(), intent.Fee.String()),
			ExpectedFee: &fee,
		}
	}

	now := m.now()
	var dedupKey string
	if !intent.CreatedAt.IsZero() {
		age := now.Sub(intent.CreatedAt)
		if age > dedupWindow {
			return 0, &TransferError{Code: CodeTooOld, Message: "created_at_time outside the transaction window"}
		}
		if age < -2*time.Minute {
			return 0, &TransferError{Code: CodeCreatedInFuture, Message: "created_at_time is in the future"}
		}
		dedupKey = m.dedupKey(intent)
		if entry, ok := m.dedup[dedupKey]; ok && now.Sub(entry.seenAt) <= dedupWindow {
			return 0, &TransferError{
				Code:        CodeDuplicate,
				Message:     "transfer already applied",
				DuplicateOf: entry.blockIndex,
			}
		}
	}

	needed := intent.Amount.Add(m.fee)
	balance := m.balances[intent.From.Key()]
	if balance.Cmp(needed) < 0 {
		return 0, &TransferError{
			Code:    CodeInsufficientFunds,
			Message: fmt.Sprintf("balance %s below required %s", balance.String(), needed.String()),
		}
	}

	remaining, err := balance.Sub(needed)
	if err != nil {
		return 0, &TransferError{Code: CodeGenericError, Message: err.Error()}
	}
	m.balances[intent.From.Key()] = remaining
	m.balances[intent.To.Key()] = m.balances[intent.To.Key()].Add(intent.Amount)

	block := m.nextBlock
	m.nextBlock++
	m.transfers = append(m.transfers, intent)

	if dedupKey != "" {
		m.dedup[dedupKey] = dedupEntry{blockIndex: block, seenAt: now}
	}
	return block, nil
}

// BalanceOf returns the account balance.
func (m *MemoryLedger) BalanceOf(ctx context.Context, account types.Account) (types.Amount, error) {
	if err := ctx.Err(); err != nil {
		return types.Amount{}, &TransferError{Code: CodeTemporarilyUnavailable, Message: err.Error()}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[account.Key()], nil
}

func (m *MemoryLedger) Decimals() int32 {
	return m.decimals
}

func (m *MemoryLedger) TransferFee() types.Amount {
	return m.fee
}

func (m *MemoryLedger) Close() {}

// TransferCount reports how many transfers have committed.
func (m *MemoryLedger) TransferCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transfers)
}

// TransferAt returns the i-th committed transfer in commit order.
func (m *MemoryLedger) TransferAt(i int) types.TransferIntent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transfers[i]
}

func (m *MemoryLedger) dedupKey(intent types.TransferIntent) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%x|%d",
		intent.From.Key(), intent.To.Key(), intent.Amount.String(), intent.Memo, intent.CreatedAt.UnixNano())
	return hex.EncodeToString(h.Sum(nil))
}
