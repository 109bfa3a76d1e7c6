// Package recorder persists the audit trail of completed transfers.
// Records are written only after the ledger confirms a transfer, one
// record per confirmed block index.
package recorder

import (
	"context"

	"github.com/neuroverse/icpay/types"
)

// Recorder is the durable store for transaction records.
type Recorder interface {
	Record(ctx context.Context, record types.TransactionRecord) error
	ListByAccount(ctx context.Context, account types.Account, limit int) ([]types.TransactionRecord, error)
}
