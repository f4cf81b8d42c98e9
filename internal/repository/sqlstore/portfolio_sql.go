// internal/repository/sqlstore/portfolio_sql.go
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"papertrade/internal/domain"
	"papertrade/internal/repository"
	"papertrade/internal/util"
)

// PortfolioRepository implements repository.PortfolioRepository on SQLite or PostgreSQL.
type PortfolioRepository struct{}

// NewPortfolioRepository creates a new PortfolioRepository.
func NewPortfolioRepository() repository.PortfolioRepository {
	return &PortfolioRepository{}
}

// GetSnapshot reads the balance row and the holdings in their saved order.
func (r *PortfolioRepository) GetSnapshot(ctx context.Context, q repository.DBExecutor) (*domain.Snapshot, error) {
	snapshot := &domain.Snapshot{}
	query := q.Rebind(`SELECT amount, updated_at FROM balances WHERE id = 1`)
	if err := q.GetContext(ctx, snapshot, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	holdings := []domain.Holding{}
	query = q.Rebind(`
		SELECT asset_id, quantity, average_cost, last_updated
		FROM holdings
		ORDER BY position`)
	if err := q.SelectContext(ctx, &holdings, query); err != nil {
		return nil, fmt.Errorf("failed to get holdings: %w", err)
	}
	snapshot.Holdings = holdings
	return snapshot, nil
}

// SaveSnapshot upserts the balance and replaces all holdings.
// Run it inside a transaction so readers never see a partial portfolio.
func (r *PortfolioRepository) SaveSnapshot(ctx context.Context, q repository.DBExecutor, snapshot *domain.Snapshot) error {
	updatedAt := snapshot.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := q.Rebind(`
		INSERT INTO balances (id, amount, updated_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at`)
	if _, err := q.ExecContext(ctx, query, snapshot.Balance, updatedAt); err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}

	if _, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM holdings`)); err != nil {
		return fmt.Errorf("failed to clear holdings: %w", err)
	}

	insert := q.Rebind(`
		INSERT INTO holdings (asset_id, quantity, average_cost, last_updated, position)
		VALUES (?, ?, ?, ?, ?)`)
	for i, h := range snapshot.Holdings {
		if _, err := q.ExecContext(ctx, insert, h.AssetID, h.Quantity, h.AverageCost, h.LastUpdated.UTC(), i); err != nil {
			return fmt.Errorf("failed to save holding %s: %w", h.AssetID, err)
		}
	}
	return nil
}

// DeleteSnapshot removes the balance row and all holdings.
func (r *PortfolioRepository) DeleteSnapshot(ctx context.Context, q repository.DBExecutor) error {
	if _, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM holdings`)); err != nil {
		return fmt.Errorf("failed to delete holdings: %w", err)
	}
	if _, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM balances`)); err != nil {
		return fmt.Errorf("failed to delete balance: %w", err)
	}
	return nil
}
