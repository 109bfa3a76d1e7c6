package ledger

import (
	"context"

	"github.com/neuroverse/icpay/types"
)

// Client is the adapter contract for an ICRC-1 compatible token ledger.
// The ledger is the final authority on balances and transfer outcomes;
// callers treat client-side checks as advisory only.
type Client interface {
	// Transfer submits exactly one transfer and returns the ledger's
	// block index on success. Failures are *TransferError values.
	Transfer(ctx context.Context, intent types.TransferIntent) (uint64, error)

	// BalanceOf returns the current balance of an account in smallest units.
	BalanceOf(ctx context.Context, account types.Account) (types.Amount, error)

	// Decimals returns the token's display-unit precision.
	Decimals() int32

	// TransferFee returns the flat fee the ledger charges per transfer.
	TransferFee() types.Amount

	Close()
}
