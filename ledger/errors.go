package ledger

import (
	"errors"
	"fmt"

	"github.com/neuroverse/icpay/types"
)

// ErrorCode identifies a ledger transfer rejection. The taxonomy is
// owned by the ledger contract (ICRC-1) and not redefined elsewhere.
type ErrorCode string

const (
	CodeInsufficientFunds      ErrorCode = "insufficient_funds"
	CodeBadFee                 ErrorCode = "bad_fee"
	CodeTooOld                 ErrorCode = "too_old"
	CodeCreatedInFuture        ErrorCode = "created_in_future"
	CodeTemporarilyUnavailable ErrorCode = "temporarily_unavailable"
	CodeDuplicate              ErrorCode = "duplicate"
	CodeGenericError           ErrorCode = "generic_error"
)

// TransferError is the structured rejection returned by a ledger client.
type TransferError struct {
	Code    ErrorCode
	Message string

	// ExpectedFee is set for bad_fee rejections.
	ExpectedFee *types.Amount

	// DuplicateOf is the block index of the original transfer for
	// duplicate rejections.
	DuplicateOf uint64
}

func (e *TransferError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ledger transfer rejected: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("ledger transfer rejected: %s", e.Code)
}

// Temporary reports whether retrying the same transfer may succeed.
func (e *TransferError) Temporary() bool {
	return e.Code == CodeTemporarilyUnavailable
}

// AsTransferError unwraps err into a *TransferError if one is present.
func AsTransferError(err error) (*TransferError, bool) {
	var te *TransferError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
