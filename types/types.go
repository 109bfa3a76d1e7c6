package types

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Account identifies a ledger balance holder: a principal plus an
// optional 32-byte subaccount. Immutable once constructed.
type Account struct {
	Owner      string `json:"owner" validate:"required"`
	Subaccount []byte `json:"subaccount,omitempty"`
}

// NewAccount returns an account with no subaccount.
func NewAccount(owner string) Account {
	return Account{Owner: owner}
}

// Validate checks the textual principal and subaccount length.
func (a Account) Validate() error {
	owner := strings.TrimSpace(a.Owner)
	if owner == "" {
		return fmt.Errorf("account owner is required")
	}
	for _, r := range owner {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '-' {
			return fmt.Errorf("account owner %q is not a valid principal", a.Owner)
		}
	}
	if len(a.Subaccount) > 32 {
		return fmt.Errorf("subaccount must be at most 32 bytes, got %d", len(a.Subaccount))
	}
	return nil
}

// Equal reports whether two accounts refer to the same balance holder.
func (a Account) Equal(other Account) bool {
	return a.Key() == other.Key()
}

// Key returns a stable map key for the account.
func (a Account) Key() string {
	if len(a.Subaccount) == 0 {
		return a.Owner
	}
	return a.Owner + "." + hex.EncodeToString(a.Subaccount)
}

func (a Account) String() string {
	return a.Key()
}

// TransferIntent is the input to a single ledger transfer call.
// Constructed fresh per attempt; never persisted before submission.
type TransferIntent struct {
	From      Account   `json:"from"`
	To        Account   `json:"to"`
	Amount    Amount    `json:"amount"`
	Fee       Amount    `json:"fee"`
	Memo      []byte    `json:"memo,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Validate checks the intent is well formed before it reaches the network.
func (t TransferIntent) Validate() error {
	if err := t.From.Validate(); err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if err := t.To.Validate(); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	if t.Amount.IsZero() {
		return fmt.Errorf("transfer amount must be greater than zero")
	}
	return nil
}

// TransactionRecord is the durable audit entry created after the ledger
// confirms a transfer. One record per successful transfer.
type TransactionRecord struct {
	ID         string    `json:"id"`
	BlockIndex uint64    `json:"blockIndex"`
	Amount     Amount    `json:"amount"`
	From       Account   `json:"from"`
	To         Account   `json:"to"`
	AgentID    string    `json:"agentId,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Tool is a marketplace tool an agent can be deployed with. Price is in
// display units of the marketplace token; zero means the tool is free.
type Tool struct {
	ID          string          `json:"id" validate:"required"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Creator     Account         `json:"creator"`
	Price       decimal.Decimal `json:"price"`
}

// Premium reports whether deploying with this tool owes its creator a payout.
func (t Tool) Premium() bool {
	return t.Price.IsPositive()
}

// Agent is a marketplace agent listing.
type Agent struct {
	ID          string    `json:"id"`
	Name        string    `json:"name" validate:"required"`
	Description string    `json:"description,omitempty"`
	Creator     Account   `json:"creator"`
	ToolIDs     []string  `json:"toolIds,omitempty"`
	Subscribers []string  `json:"subscribers,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PayoutResult is the outcome of one tool-creator payout within a
// deployment. Results are accumulated in tool selection order.
type PayoutResult struct {
	ToolID     string `json:"toolId"`
	BlockIndex uint64 `json:"blockIndex,omitempty"`
	Err        error  `json:"-"`
}

// Failed reports whether this payout did not reach the ledger.
func (p PayoutResult) Failed() bool {
	return p.Err != nil
}

// ICPayError is the library's structured error type.
type ICPayError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e ICPayError) Error() string {
	return e.Message
}

// Common error codes
const (
	ErrInvalidIntent     = "INVALID_INTENT"
	ErrInvalidState      = "INVALID_STATE"
	ErrInsufficientFunds = "INSUFFICIENT_FUNDS"
	ErrLedgerFailure     = "LEDGER_FAILURE"
	ErrRecorderFailure   = "RECORDER_FAILURE"
	ErrRegistryFailure   = "REGISTRY_FAILURE"
	ErrDeploymentFailed  = "DEPLOYMENT_FAILED"
	ErrUnsupportedToken  = "UNSUPPORTED_TOKEN"
	ErrTimeout           = "TIMEOUT"
	ErrConfigError       = "CONFIG_ERROR"
	ErrNotConnected      = "NOT_CONNECTED"
)
