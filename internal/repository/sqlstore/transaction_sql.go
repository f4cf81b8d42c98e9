// internal/repository/sqlstore/transaction_sql.go
package sqlstore

import (
	"context"
	"fmt"

	"papertrade/internal/domain"
	"papertrade/internal/repository"
)

// TransactionRepository implements repository.TransactionRepository on SQLite or PostgreSQL.
type TransactionRepository struct{}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository() repository.TransactionRepository {
	return &TransactionRepository{}
}

// CreateTransaction appends a record. Insertion order defines log order.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, q repository.DBExecutor, record *domain.TransactionRecord) error {
	query := q.Rebind(`
		INSERT INTO transactions (id, kind, asset_id, quantity, unit_price, total_value, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err := q.ExecContext(ctx, query,
		record.ID,
		string(record.Kind),
		record.AssetID,
		record.Quantity,
		record.UnitPrice,
		record.TotalValue,
		record.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetTransactions retrieves a page of the log, most recent first.
// It performs two queries: one for the data and one for the total count.
func (r *TransactionRepository) GetTransactions(ctx context.Context, q repository.DBExecutor, limit, offset int) ([]domain.TransactionRecord, int64, error) {
	records := []domain.TransactionRecord{}

	query := q.Rebind(`
		SELECT id, kind, asset_id, quantity, unit_price, total_value, created_at
		FROM transactions
		ORDER BY seq DESC
		LIMIT ? OFFSET ?`)
	if err := q.SelectContext(ctx, &records, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	var total int64
	if err := q.GetContext(ctx, &total, q.Rebind(`SELECT COUNT(*) FROM transactions`)); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	return records, total, nil
}

// DeleteTransactions empties the log.
func (r *TransactionRepository) DeleteTransactions(ctx context.Context, q repository.DBExecutor) error {
	if _, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM transactions`)); err != nil {
		return fmt.Errorf("failed to delete transactions: %w", err)
	}
	return nil
}
