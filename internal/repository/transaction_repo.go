// internal/repository/transaction_repo.go
package repository

import (
	"context"

	"papertrade/internal/domain"
)

// TransactionRepository defines the interface for the append-only trade log.
type TransactionRepository interface {
	// CreateTransaction appends a record to the log using the provided DBExecutor.
	CreateTransaction(ctx context.Context, q DBExecutor, record *domain.TransactionRecord) error
	// GetTransactions returns a page of the log, most recent first, and the total number of records.
	GetTransactions(ctx context.Context, q DBExecutor, limit, offset int) ([]domain.TransactionRecord, int64, error)
	// DeleteTransactions empties the log.
	DeleteTransactions(ctx context.Context, q DBExecutor) error
}
