// internal/repository/portfolio_repo.go
package repository

import (
	"context"

	"papertrade/internal/domain"
)

// PortfolioRepository persists the balance and the ordered holdings list.
type PortfolioRepository interface {
	// GetSnapshot loads the persisted portfolio, or returns util.ErrNotFound if none was ever saved.
	GetSnapshot(ctx context.Context, q DBExecutor) (*domain.Snapshot, error)
	// SaveSnapshot overwrites the persisted balance and holdings.
	SaveSnapshot(ctx context.Context, q DBExecutor, snapshot *domain.Snapshot) error
	// DeleteSnapshot removes the persisted balance and holdings.
	DeleteSnapshot(ctx context.Context, q DBExecutor) error
}
