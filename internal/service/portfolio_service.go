// internal/service/portfolio_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"papertrade/internal/dispatch"
	"papertrade/internal/domain"
	"papertrade/internal/metrics"
	"papertrade/internal/repository"
	"papertrade/internal/util"
	"papertrade/pkg/db"
)

// PriceFeed is the subset of the price feed client the engine depends on.
type PriceFeed interface {
	FetchPrice(ctx context.Context, assetID string) (domain.PriceQuote, error)
	FetchPriceAsync(ctx context.Context, assetID string, d dispatch.Dispatcher, cb func(domain.PriceQuote, error))
	LastQuote(assetID string) (domain.PriceQuote, bool)
	Symbol(assetID string) string
}

// ZeroPricePolicy decides what a trade does when no price can be obtained.
type ZeroPricePolicy string

const (
	// ZeroPriceAllow executes the trade at a price of 0.
	ZeroPriceAllow ZeroPricePolicy = "allow"
	// ZeroPriceReject fails the trade with util.ErrPriceUnavailable.
	ZeroPriceReject ZeroPricePolicy = "reject"
)

// Options holds the engine settings.
type Options struct {
	InitialBalance    float64         `mapstructure:"initial_balance"`
	ZeroPricePolicy   ZeroPricePolicy `mapstructure:"zero_price_policy"`
	StrictPersistence bool            `mapstructure:"strict_persistence"` // Fail mutations whose write fails
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		InitialBalance:  domain.DefaultInitialBalance,
		ZeroPricePolicy: ZeroPriceAllow,
	}
}

// PortfolioService defines the virtual portfolio engine.
type PortfolioService interface {
	Deposit(ctx context.Context, amount float64) (float64, error)
	SetBalance(ctx context.Context, amount float64, isAddition bool) (float64, error)
	Buy(ctx context.Context, assetID string, quantity float64) (*domain.TransactionRecord, error)
	Sell(ctx context.Context, assetID string, quantity float64) (*domain.TransactionRecord, error)
	BuyAsync(ctx context.Context, assetID string, quantity float64, d dispatch.Dispatcher, cb TradeCallback)
	SellAsync(ctx context.Context, assetID string, quantity float64, d dispatch.Dispatcher, cb TradeCallback)

	GetBalance() float64
	GetTotalValue() float64
	GetTotalValueAsync(ctx context.Context, d dispatch.Dispatcher, cb func(total float64))
	GetInvestmentsValue(ctx context.Context) float64
	GetInvestmentsValueCached() float64
	GetInvestmentsValueAsync(ctx context.Context, d dispatch.Dispatcher, cb func(investments float64))
	GetProfitLoss(ctx context.Context) float64
	CachedPrice(assetID string) float64

	HasHolding(assetID string) bool
	GetHolding(assetID string) (domain.Holding, bool)
	ListHoldings() []domain.Holding
	GetTransactionHistory(ctx context.Context, limit, offset int) ([]domain.TransactionRecord, int64, error)
	Reset(ctx context.Context) error
}

// TradeCallback receives the outcome of an asynchronous trade.
type TradeCallback func(record *domain.TransactionRecord, err error)

// portfolioService implements the PortfolioService interface.
type portfolioService struct {
	dbBeginner      db.DBTxBeginner       // For starting transactions (e.g., *sqlx.DB)
	dbExecutor      repository.DBExecutor // For non-transactional reads (e.g., *sqlx.DB)
	portfolioRepo   repository.PortfolioRepository
	transactionRepo repository.TransactionRepository
	feed            PriceFeed
	beginTx         db.BeginTxFunc
	commitTx        db.CommitTxFunc
	rollbackTx      db.RollbackTxFunc
	opts            Options
	metrics         *metrics.Metrics
	logger          *slog.Logger

	// mu serializes every mutation from validation through persistence.
	mu    sync.Mutex
	state *domain.Snapshot
}

// NewPortfolioService creates the engine and loads the persisted portfolio.
// A store without saved state yields a fresh portfolio holding opts.InitialBalance.
func NewPortfolioService(
	ctx context.Context,
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	portfolioRepo repository.PortfolioRepository,
	transactionRepo repository.TransactionRepository,
	feed PriceFeed,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	opts Options,
	m *metrics.Metrics,
	logger *slog.Logger,
) (PortfolioService, error) {
	if opts.ZeroPricePolicy == "" {
		opts.ZeroPricePolicy = ZeroPriceAllow
	}
	s := &portfolioService{
		dbBeginner:      dbBeginner,
		dbExecutor:      dbExecutor,
		portfolioRepo:   portfolioRepo,
		transactionRepo: transactionRepo,
		feed:            feed,
		beginTx:         beginTx,
		commitTx:        commitTx,
		rollbackTx:      rollbackTx,
		opts:            opts,
		metrics:         m,
		logger:          logger.With("component", "portfolio"),
	}

	state, err := s.portfolioRepo.GetSnapshot(ctx, s.dbExecutor)
	switch {
	case errors.Is(err, util.ErrNotFound):
		state = domain.NewSnapshot(opts.InitialBalance)
		s.logger.Info("No saved portfolio, starting fresh", "balance", opts.InitialBalance)
	case err != nil:
		return nil, fmt.Errorf("load portfolio: %w", err)
	default:
		state.Holdings = dropDust(state.Holdings)
	}
	s.state = state
	s.metrics.Balance.Set(state.Balance)
	return s, nil
}

// Deposit adds virtual cash and returns the new balance.
func (s *portfolioService) Deposit(ctx context.Context, amount float64) (float64, error) {
	if !isPositive(amount) {
		return 0, fmt.Errorf("deposit: amount must be positive: %w", util.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	next.Balance += amount
	if err := s.commit(ctx, "deposit", next, nil); err != nil {
		return s.state.Balance, err
	}
	return next.Balance, nil
}

// SetBalance adds amount to the balance, or replaces the balance with it.
func (s *portfolioService) SetBalance(ctx context.Context, amount float64, isAddition bool) (float64, error) {
	if isAddition {
		return s.Deposit(ctx, amount)
	}
	if !isPositive(amount) {
		return 0, fmt.Errorf("set balance: amount must be positive: %w", util.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	next.Balance = amount
	if err := s.commit(ctx, "set balance", next, nil); err != nil {
		return s.state.Balance, err
	}
	return next.Balance, nil
}

// GetBalance returns the cash balance.
func (s *portfolioService) GetBalance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Balance
}

// HasHolding reports whether the portfolio holds the asset.
func (s *portfolioService) HasHolding(assetID string) bool {
	_, ok := s.GetHolding(assetID)
	return ok
}

// GetHolding returns a copy of the holding for assetID.
func (s *portfolioService) GetHolding(assetID string) (domain.Holding, bool) {
	symbol := s.feed.Symbol(assetID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.state.Find(symbol); i >= 0 {
		return s.state.Holdings[i], true
	}
	return domain.Holding{}, false
}

// ListHoldings returns a copy of the holdings in acquisition order.
func (s *portfolioService) ListHoldings() []domain.Holding {
	s.mu.Lock()
	defer s.mu.Unlock()
	holdings := make([]domain.Holding, len(s.state.Holdings))
	copy(holdings, s.state.Holdings)
	return holdings
}

// GetTransactionHistory retrieves a page of the trade log, most recent first.
func (s *portfolioService) GetTransactionHistory(ctx context.Context, limit, offset int) ([]domain.TransactionRecord, int64, error) {
	if limit <= 0 || offset < 0 {
		return nil, 0, fmt.Errorf("transaction history: bad page: %w", util.ErrInvalidInput)
	}
	records, total, err := s.transactionRepo.GetTransactions(ctx, s.dbExecutor, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("transaction history: %w", err)
	}
	return records, total, nil
}

// Reset clears the persisted portfolio and trade log and restarts from the initial balance.
func (s *portfolioService) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.inTx(ctx, func(q repository.DBExecutor) error {
		if err := s.portfolioRepo.DeleteSnapshot(ctx, q); err != nil {
			return err
		}
		return s.transactionRepo.DeleteTransactions(ctx, q)
	})
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	s.state = domain.NewSnapshot(s.opts.InitialBalance)
	s.metrics.Balance.Set(s.state.Balance)
	s.logger.Info("Portfolio reset", "balance", s.state.Balance)
	return nil
}

// commit writes next (and record, if any) in one transaction and makes next
// the live state. Callers must hold s.mu. A failed write is logged and, unless
// persistence is strict, the in-memory state still advances.
func (s *portfolioService) commit(ctx context.Context, op string, next *domain.Snapshot, record *domain.TransactionRecord) error {
	next.UpdatedAt = time.Now().UTC()

	// The write must not be abandoned halfway because the caller went away.
	ctx = context.WithoutCancel(ctx)
	err := s.inTx(ctx, func(q repository.DBExecutor) error {
		if err := s.portfolioRepo.SaveSnapshot(ctx, q, next); err != nil {
			return err
		}
		if record != nil {
			return s.transactionRepo.CreateTransaction(ctx, q, record)
		}
		return nil
	})
	if err != nil {
		s.metrics.PersistenceFailures.Inc()
		s.logger.Error("Failed to persist portfolio", "op", op, "strict", s.opts.StrictPersistence, "error", err)
		if s.opts.StrictPersistence {
			return fmt.Errorf("%s: %w: %w", op, util.ErrPersistenceFailed, err)
		}
	}

	s.state = next
	s.metrics.Balance.Set(next.Balance)
	return nil
}

// inTx runs fn inside a database transaction.
func (s *portfolioService) inTx(ctx context.Context, fn func(q repository.DBExecutor) error) error {
	txController, err := s.beginTx(ctx, s.dbBeginner) // Use injected function
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController) // Use injected function

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("transaction controller does not implement DBExecutor")
	}

	if err := fn(txExecutor); err != nil {
		return err
	}

	if err := s.commitTx(txController); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isPositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1) && !math.IsNaN(v)
}

func dropDust(holdings []domain.Holding) []domain.Holding {
	kept := holdings[:0]
	for _, h := range holdings {
		if h.Quantity > domain.DustThreshold {
			kept = append(kept, h)
		}
	}
	return kept
}
