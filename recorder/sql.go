package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/neuroverse/icpay/types"
)

const transactionsSchema = `
CREATE TABLE IF NOT EXISTS transactions (
	id          VARCHAR(36)  NOT NULL PRIMARY KEY,
	block_index BIGINT UNSIGNED NOT NULL,
	amount      VARCHAR(80)  NOT NULL,
	from_owner  VARCHAR(128) NOT NULL,
	to_owner    VARCHAR(128) NOT NULL,
	agent_id    VARCHAR(64)  NULL,
	created_at  BIGINT       NOT NULL,
	INDEX idx_transactions_from (from_owner),
	INDEX idx_transactions_to (to_owner)
)`

// SQLRecorder stores transaction records in MySQL.
type SQLRecorder struct {
	db *sql.DB
}

// NewSQLRecorder opens the database, verifies connectivity and ensures
// the transactions table exists.
func NewSQLRecorder(ctx context.Context, dsn string) (*SQLRecorder, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open transaction store: %w", err)
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping transaction store: %w", err)
	}
	if _, err := db.ExecContext(ctx, transactionsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure transactions schema: %w", err)
	}
	return &SQLRecorder{db: db}, nil
}

var _ Recorder = (*SQLRecorder)(nil)

// Record inserts the entry, assigning an ID when the caller left it empty.
func (s *SQLRecorder) Record(ctx context.Context, record types.TransactionRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	var agentID sql.NullString
	if record.AgentID != "" {
		agentID = sql.NullString{String: record.AgentID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, block_index, amount, from_owner, to_owner, agent_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.BlockIndex, record.Amount.String(),
		record.From.Key(), record.To.Key(), agentID, record.Timestamp.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert transaction record: %w", err)
	}
	return nil
}

// ListByAccount returns records where the account is sender or receiver,
// newest first.
func (s *SQLRecorder) ListByAccount(ctx context.Context, account types.Account, limit int) ([]types.TransactionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, block_index, amount, from_owner, to_owner, agent_id, created_at
		 FROM transactions
		 WHERE from_owner = ? OR to_owner = ?
		 ORDER BY created_at DESC, block_index DESC
		 LIMIT ?`,
		account.Key(), account.Key(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query transaction records: %w", err)
	}
	defer rows.Close()

	var out []types.TransactionRecord
	for rows.Next() {
		var (
			record    types.TransactionRecord
			amount    string
			fromOwner string
			toOwner   string
			agentID   sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&record.ID, &record.BlockIndex, &amount, &fromOwner, &toOwner, &agentID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction record: %w", err)
		}

		parsed, err := types.AmountFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("stored amount %q is malformed: %w", amount, err)
		}
		record.Amount = parsed
		record.From = types.NewAccount(fromOwner)
		record.To = types.NewAccount(toOwner)
		if agentID.Valid {
			record.AgentID = agentID.String
		}
		record.Timestamp = time.Unix(createdAt, 0)
		out = append(out, record)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *SQLRecorder) Close() error {
	return s.db.Close()
}
