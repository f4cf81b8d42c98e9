// internal/service/mocks_test.go
package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"papertrade/internal/dispatch"
	"papertrade/internal/domain"
	"papertrade/internal/metrics"
	"papertrade/internal/repository"
	"papertrade/internal/util"
	"papertrade/pkg/db"
)

// MockDBExecutor is a mock implementation of repository.DBExecutor.
type MockDBExecutor struct {
	mock.Mock
}

func (m *MockDBExecutor) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	argsCalled := m.Called(ctx, query, args)
	return argsCalled.Get(0).(sql.Result), argsCalled.Error(1)
}

func (m *MockDBExecutor) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	m.Called(ctx, query, args)
	return &sql.Row{}
}

func (m *MockDBExecutor) Rebind(query string) string {
	return query
}

// MockPortfolioRepository is a mock implementation of repository.PortfolioRepository.
type MockPortfolioRepository struct {
	mock.Mock
}

func (m *MockPortfolioRepository) GetSnapshot(ctx context.Context, q repository.DBExecutor) (*domain.Snapshot, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Snapshot), args.Error(1)
}

func (m *MockPortfolioRepository) SaveSnapshot(ctx context.Context, q repository.DBExecutor, snapshot *domain.Snapshot) error {
	args := m.Called(ctx, q, snapshot)
	return args.Error(0)
}

func (m *MockPortfolioRepository) DeleteSnapshot(ctx context.Context, q repository.DBExecutor) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

// MockTransactionRepository is a mock implementation of repository.TransactionRepository.
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) CreateTransaction(ctx context.Context, q repository.DBExecutor, record *domain.TransactionRecord) error {
	args := m.Called(ctx, q, record)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetTransactions(ctx context.Context, q repository.DBExecutor, limit, offset int) ([]domain.TransactionRecord, int64, error) {
	args := m.Called(ctx, q, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.TransactionRecord), args.Get(1).(int64), args.Error(2)
}

func (m *MockTransactionRepository) DeleteTransactions(ctx context.Context, q repository.DBExecutor) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

// MockDBBeginner is a mock implementation of db.DBTxBeginner.
type MockDBBeginner struct {
	mock.Mock
}

func (m *MockDBBeginner) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	args := m.Called(ctx, opts)
	return &sqlx.Tx{}, args.Error(1)
}

// MockTxController is a mock implementation of db.TxController.
// It also implicitly implements repository.DBExecutor for testing purposes
// by embedding MockDBExecutor.
type MockTxController struct {
	mock.Mock
	MockDBExecutor // Embed MockDBExecutor to satisfy repository.DBExecutor interface
}

func (m *MockTxController) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTxController) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// MockPriceFeed is a mock implementation of PriceFeed. Symbol upper-cases its input.
type MockPriceFeed struct {
	mock.Mock
}

func (m *MockPriceFeed) FetchPrice(ctx context.Context, assetID string) (domain.PriceQuote, error) {
	args := m.Called(ctx, assetID)
	return args.Get(0).(domain.PriceQuote), args.Error(1)
}

// FetchPriceAsync resolves with the configured FetchPriceAsync return values on a new goroutine.
func (m *MockPriceFeed) FetchPriceAsync(ctx context.Context, assetID string, d dispatch.Dispatcher, cb func(domain.PriceQuote, error)) {
	args := m.Called(ctx, assetID)
	quote, err := args.Get(0).(domain.PriceQuote), args.Error(1)
	go dispatch.OrInline(d).Post(func() { cb(quote, err) })
}

func (m *MockPriceFeed) LastQuote(assetID string) (domain.PriceQuote, bool) {
	args := m.Called(assetID)
	return args.Get(0).(domain.PriceQuote), args.Bool(1)
}

func (m *MockPriceFeed) Symbol(assetID string) string {
	return strings.ToUpper(strings.TrimSpace(assetID))
}

func quote(symbol string, price float64) domain.PriceQuote {
	return domain.PriceQuote{AssetID: symbol, Pair: symbol + "USDT", Price: price}
}

// harness bundles a service with fresh mocks, the way each test case needs them.
type harness struct {
	ctx             context.Context
	portfolioRepo   *MockPortfolioRepository
	transactionRepo *MockTransactionRepository
	feed            *MockPriceFeed
	dbBeginner      *MockDBBeginner
	dbExecutor      *MockDBExecutor
	txController    *MockTxController
	metrics         *metrics.Metrics
	service         PortfolioService
}

// newHarness builds a service whose store returns initial, or nothing when initial is nil.
func newHarness(t *testing.T, initial *domain.Snapshot, opts Options) *harness {
	t.Helper()
	h := &harness{
		ctx:             context.Background(),
		portfolioRepo:   new(MockPortfolioRepository),
		transactionRepo: new(MockTransactionRepository),
		feed:            new(MockPriceFeed),
		dbBeginner:      new(MockDBBeginner),
		dbExecutor:      new(MockDBExecutor),
		txController:    new(MockTxController),
		metrics:         metrics.New(),
	}

	if initial == nil {
		h.portfolioRepo.On("GetSnapshot", mock.Anything, h.dbExecutor).Return(nil, util.ErrNotFound).Once()
	} else {
		h.portfolioRepo.On("GetSnapshot", mock.Anything, h.dbExecutor).Return(initial, nil).Once()
	}

	svc, err := NewPortfolioService(
		h.ctx,
		h.dbBeginner,
		h.dbExecutor,
		h.portfolioRepo,
		h.transactionRepo,
		h.feed,
		func(ctx context.Context, dbConn db.DBTxBeginner) (db.TxController, error) {
			return h.txController, nil
		},
		func(tx db.TxController) error {
			return h.txController.Commit()
		},
		func(tx db.TxController) {
			_ = h.txController.Rollback()
		},
		opts,
		h.metrics,
		discardLogger(),
	)
	require.NoError(t, err)
	h.service = svc
	return h
}

// expectWrites expects n committed transactions.
func (h *harness) expectWrites(n int) {
	h.txController.On("Commit").Return(nil).Times(n)
	// Rollback runs deferred after every commit and is a no-op then.
	h.txController.On("Rollback").Return(sql.ErrTxDone).Maybe()
}

func (h *harness) assertExpectations(t *testing.T) {
	mock.AssertExpectationsForObjects(t, h.portfolioRepo, h.transactionRepo, h.feed, h.dbBeginner, h.dbExecutor, h.txController)
}

func snapshotWith(balance float64, holdings ...domain.Holding) *domain.Snapshot {
	s := domain.NewSnapshot(balance)
	s.Holdings = append(s.Holdings, holdings...)
	return s
}

func balanceIs(v float64) interface{} {
	return mock.MatchedBy(func(s *domain.Snapshot) bool { return s.Balance == v })
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
