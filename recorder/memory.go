package recorder

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/neuroverse/icpay/types"
)

// MemoryRecorder keeps records in process memory, newest first. It backs
// tests and local development.
type MemoryRecorder struct {
	mu      sync.RWMutex
	records []types.TransactionRecord
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

var _ Recorder = (*MemoryRecorder)(nil)

// Record stores the entry, assigning an ID when the caller left it empty.
func (m *MemoryRecorder) Record(_ context.Context, record types.TransactionRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append([]types.TransactionRecord{record}, m.records...)
	return nil
}

// ListByAccount returns records where the account is sender or receiver,
// newest first.
func (m *MemoryRecorder) ListByAccount(_ context.Context, account types.Account, limit int) ([]types.TransactionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.TransactionRecord
	for _, record := range m.records {
		if limit > 0 && len(out) >= limit {
			break
		}
		if record.From.Equal(account) || record.To.Equal(account) {
			out = append(out, record)
		}
	}
	return out, nil
}

// Len reports the number of stored records.
func (m *MemoryRecorder) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
