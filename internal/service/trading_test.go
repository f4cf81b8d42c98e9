// internal/service/trading_test.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"papertrade/internal/dispatch"
	"papertrade/internal/domain"
	"papertrade/internal/util"
)

func isRecord(kind domain.TransactionKind, symbol string, quantity, price float64) interface{} {
	return mock.MatchedBy(func(r *domain.TransactionRecord) bool {
		return r.Kind == kind && r.AssetID == symbol && r.Quantity == quantity && r.UnitPrice == price
	})
}

func TestBuy(t *testing.T) {
	t.Run("SuccessfulBuy", func(t *testing.T) {
		h := newHarness(t, nil, DefaultOptions())
		h.expectWrites(1)
		h.feed.On("FetchPrice", mock.Anything, "BTC").Return(quote("BTC", 100), nil).Once()
		h.portfolioRepo.On("SaveSnapshot", mock.Anything, mock.Anything, balanceIs(9950)).Return(nil).Once()
		h.transactionRepo.On("CreateTransaction", mock.Anything, mock.Anything, isRecord(domain.TransactionKindBuy, "BTC", 0.5, 100)).Return(nil).Once()

		record, err := h.service.Buy(h.ctx, "btc", 0.5)

		require.NoError(t, err)
		assert.Equal(t, domain.TransactionKindBuy, record.Kind)
		assert.Equal(t, 50.0, record.TotalValue)
		assert.NotEmpty(t, record.ID)
		assert.Equal(t, 9950.0, h.service.GetBalance())

		holding, ok := h.service.GetHolding("BTC")
		require.True(t, ok)
		assert.Equal(t, 0.5, holding.Quantity)
		assert.Equal(t, 100.0, holding.AverageCost)
		h.assertExpectations(t)
	})

	t.Run("WeightedAverageCost", func(t *testing.T) {
		h := newHarness(t, nil, DefaultOptions())
		h.expectWrites(2)
		h.feed.On("FetchPrice", mock.Anything, "BTC").Return(quote("BTC", 100), nil).Once()
		h.feed.On("FetchPrice", mock.Anything, "BTC").Return(quote("BTC", 200), nil).Once()
		h.portfolioRepo.On("SaveSnapshot", mock.Anything, mock.Anything, mock.Anything).Return(nil).Twice()
		h.transactionRepo.On("CreateTransaction", mock.Anything, mock.Anything, mock.Anything).Return(nil).Twice()

		_, err := h.service.Buy(h.ctx, "BTC", 1)
		require.NoError(t, err)
		_, err = h.service.Buy(h.ctx, "BTC", 1)
		require.NoError(t, err)

		holding, ok := h.service.GetHolding("BTC")
		require.True(t, ok)
		assert.Equal(t, 2.0, holding.Quantity)
		assert.Equal(t, 150.0, holding.AverageCost)
		assert.Equal(t, 9700.0, h.service.GetBalance())
		assert.Len(t, h.service.ListHoldings(), 1)
		h.assertExpectations(t)
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		h := newHarness(t, snapshotWith(100), DefaultOptions())
		h.feed.On("FetchPrice", mock.Anything, "BTC").Return(quote("BTC", 100), nil).Once()

		record, err := h.service.Buy(h.ctx, "BTC", 1.01)

		assert.ErrorIs(t, err, util.ErrInsufficientFunds)
		assert.Nil(t, record)
		assert.Equal(t, 100.0, h.service.GetBalance())
		assert.False(t, h.service.HasHolding("BTC"))
		h.txController.AssertNotCalled(t, "Commit")
		h.portfolioRepo.AssertNotCalled(t, "SaveSnapshot", mock.Anything, mock.Anything, mock.Anything)
		h.assertExpectations(t)
	})

	t.Run("ExactBalanceIsAllowed", func(t *testing.T) {
		h := newHarness(t, snapshotWith(100), DefaultOptions())
		h.expectWrites(1)
		h.feed.On("FetchPrice", mock.Anything, "ETH").Return(quote("ETH", 25), nil).Once()
		h.portfolioRepo.On("SaveSnapshot", mock.Anything, mock.Anything, balanceIs(0)).Return(nil).Once()
		h.transactionRepo.On("CreateTransaction", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

		_, err := h.service.Buy(h.ctx, "ETH", 4)

		require.NoError(t, err)
		assert.Zero(t, h.service.GetBalance())
		h.assertExpectations(t)
	})

	t.Run("InvalidQuantity", func(t *testing.T) {
		h := newHarness(t, nil, DefaultOptions())

		for _, qty := range []float64{0, -1} {
			_, err := h.service.Buy(h.ctx, "BTC", qty)
			assert.ErrorIs(t, err, util.ErrInvalidInput)
		}
		_, err := h.service.Buy(h.ctx, "  ", 1)
		assert.ErrorIs(t, err, util.ErrInvalidInput)

		h.feed.AssertNotCalled(t, "FetchPrice", mock.Anything, mock.Anything)
		h.assertExpectations(t)
	})

	t.Run("DustQuantityRejected", func(t *testing.T) {
		h := newHarness(t, nil, DefaultOptions())

		for _, qty := range []float64{1e-9, domain.DustThreshold} {
			record, err := h.service.Buy(h.ctx, "BTC", qty)
			assert.ErrorIs(t, err, util.ErrInvalidInput, "%g", qty)
			assert.Nil(t, record)
		}

		assert.False(t, h.service.HasHolding("BTC"))
		assert.Equal(t, 10000.0, h.service.GetBalance())
		h.feed.AssertNotCalled(t, "FetchPrice", mock.Anything, mock.Anything)
		h.assertExpectations(t)
	})

	t.Run("UnavailablePriceTradesAtZeroByDefault", func(t *testing.T) {
		h := newHarness(t, nil, DefaultOptions())
		h.expectWrites(1)
		h.feed.On("FetchPrice", mock.Anything, "BTC").Return(quote("BTC", 0), fmt.Errorf("fetch: %w", util.ErrQuoteUnavailable)).Once()
		h.portfolioRepo.On("SaveSnapshot", mock.Anything, mock.Anything, balanceIs(10000)).Return(nil).Once()
		h.transactionRepo.On("CreateTransaction", mock.Anything, mock.Anything, isRecord(domain.TransactionKindBuy, "BTC", 3, 0)).Return(nil).Once()

		record, err := h.service.Buy(h.ctx, "BTC", 3)

		require.NoError(t, err)
		assert.Zero(t, record.TotalValue)
		holding, ok := h.service.GetHolding("BTC")
		require.True(t, ok)
		assert.Zero(t, holding.AverageCost)
		h.assertExpectations(t)
	})

	t.Run("UnavailablePriceRejectedByPolicy", func(t *testing.T) {
		opts := DefaultOptions()
		opts.ZeroPricePolicy = ZeroPriceReject
		h := newHarness(t, nil, opts)
		h.feed.On("FetchPrice", mock.Anything, "BTC").Return(quote("BTC", 0), fmt.Errorf("fetch: %w", util.ErrQuoteUnavailable)).Once()

		_, err := h.service.Buy(h.ctx, "BTC", 3)

		assert.ErrorIs(t, err, util.ErrPriceUnavailable)
		assert.ErrorIs(t, err, util.ErrQuoteUnavailable)
		assert.False(t, h.service.HasHolding("BTC"))
		h.assertExpectations(t)
	})

	t.Run("ForegroundFetchRefusalIsNeverTradedAtZero", func(t *testing.T) {
		h := newHarness(t, nil, DefaultOptions())
		fg := dispatch.WithForeground(h.ctx)
		h.feed.On("FetchPrice", fg, "BTC").Return(quote("BTC", 0), fmt.Errorf("fetch: %w: %w", util.ErrQuoteUnavailable, util.ErrBlockingForbidden)).Once()

		_, err := h.service.Buy(fg, "BTC", 1)

		assert.ErrorIs(t, err, util.ErrBlockingForbidden)
		assert.False(t, h.service.HasHolding("BTC"))
		h.assertExpectations(t)
	})

	t.Run("StrictPersistenceFailureRollsBack", func(t *testing.T) {
		opts := DefaultOptions()
		opts.StrictPersistence = true
		h := newHarness(t, nil, opts)
		h.txController.On("Rollback").Return(nil).Once()
		h.feed.On("FetchPrice", mock.Anything, "BTC").Return(quote("BTC", 100), nil).Once()
		h.portfolioRepo.On("SaveSnapshot", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		h.transactionRepo.On("CreateTransaction", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("constraint")).Once()

		_, err := h.service.Buy(h.ctx, "BTC", 1)

		assert.ErrorIs(t, err, util.ErrPersistenceFailed)
		assert.Equal(t, 10000.0, h.service.GetBalance())
		assert.False(t, h.service.HasHolding("BTC"))
		h.assertExpectations(t)
	})

	t.Run("ConcurrentBuysNeverOverdraw", func(t *testing.T) {
		h := newHarness(t, snapshotWith(1000), DefaultOptions())
		h.txController.On("Commit").Return(nil)
		h.txController.On("Rollback").Return(nil)
		h.feed.On("FetchPrice", mock.Anything, "BTC").Return(quote("BTC", 100), nil)
		h.portfolioRepo.On("SaveSnapshot", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		h.transactionRepo.On("CreateTransaction", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			rejected  int
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := h.service.Buy(h.ctx, "BTC", 1)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					succeeded++
				} else if errors.Is(err, util.ErrInsufficientFunds) {
					rejected++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 10, succeeded)
		assert.Equal(t, 10, rejected)
		assert.Zero(t, h.service.GetBalance())
		holding, _ := h.service.GetHolding("BTC")
		assert.Equal(t, 10.0, holding.Quantity)
	})
}

func TestSell(t *testing.T) {
	btc := func(qty float64) domain.Holding {
		return domain.Holding{AssetID: "BTC", Quantity: qty, AverageCost: 100, LastUpdated: time.Now()}
	}

	t.Run("PartialSell", func(t *testing.T) {
		h := newHarness(t, snapshotWith(9900, btc(1)), DefaultOptions())
		h.expectWrites(1)
		h.feed.On("FetchPrice", mock.Anything, "BTC").Return(quote("BTC", 150), nil).Once()
		h.portfolioRepo.On("SaveSnapshot", mock.Anything, mock.Anything, balanceIs(9975)).Return(nil).Once()
		h.transactionRepo.On("CreateTransaction", mock.Anything, mock.Anything, isRecord(domain.TransactionKindSell, "BTC", 0.5, 150)).Return(nil).Once()

		record, err := h.service.Sell(h.ctx, "BTC", 0.5)

		require.NoError(t, err)
		assert.Equal(t, domain.TransactionKindSell, record.Kind)
		assert.Equal(t, 9975.0, h.service.GetBalance())
		holding, ok := h.service.GetHolding("BTC")
		require.True(t, ok)
		assert.Equal(t, 0.5, holding.Quantity)
		assert.Equal(t, 100.0, holding.AverageCost, "selling leaves the cost basis alone")
		h.assertExpectations(t)
	})

	t.Run("DustRemainderClosesPosition", func(t *testing.T) {
		h := newHarness(t, snapshotWith(0, btc(1)), DefaultOptions())
		h.expectWrites(1)
		h.feed.On("FetchPrice", mock.Anything, "BTC").Return(quote("BTC", 100), nil).Once()
		h.portfolioRepo.On("SaveSnapshot", mock.Anything, mock.Anything, mock.MatchedBy(func(s *domain.Snapshot) bool {
			return len(s.Holdings) == 0
		})).Return(nil).Once()
		h.transactionRepo.On("CreateTransaction", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

		_, err := h.service.Sell(h.ctx, "BTC", 0.999999995)

		require.NoError(t, err)
		assert.False(t, h.service.HasHolding("BTC"))
		h.assertExpectations(t)
	})

	t.Run("RemainderAtDustThresholdClosesPosition", func(t *testing.T) {
		h := newHarness(t, snapshotWith(0, btc(2*domain.DustThreshold)), DefaultOptions())
		h.expectWrites(1)
		h.feed.On("FetchPrice", mock.Anything, "BTC").Return(quote("BTC", 100), nil).Once()
		h.portfolioRepo.On("SaveSnapshot", mock.Anything, mock.Anything, mock.MatchedBy(func(s *domain.Snapshot) bool {
			return len(s.Holdings) == 0
		})).Return(nil).Once()
		h.transactionRepo.On("CreateTransaction", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

		_, err := h.service.Sell(h.ctx, "BTC", domain.DustThreshold)

		require.NoError(t, err)
		assert.False(t, h.service.HasHolding("BTC"))
		h.assertExpectations(t)
	})

	t.Run("RemainderAboveDustThresholdIsKept", func(t *testing.T) {
		h := newHarness(t, snapshotWith(0, btc(3*domain.DustThreshold)), DefaultOptions())
		h.expectWrites(1)
		h.feed.On("FetchPrice", mock.Anything, "BTC").Return(quote("BTC", 100), nil).Once()
		h.portfolioRepo.On("SaveSnapshot", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		h.transactionRepo.On("CreateTransaction", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

		_, err := h.service.Sell(h.ctx, "BTC", domain.DustThreshold)

		require.NoError(t, err)
		holding, ok := h.service.GetHolding("BTC")
		require.True(t, ok)
		assert.Greater(t, holding.Quantity, domain.DustThreshold)
		h.assertExpectations(t)
	})

	t.Run("InsufficientHoldings", func(t *testing.T) {
		h := newHarness(t, snapshotWith(0, btc(1)), DefaultOptions())

		_, err := h.service.Sell(h.ctx, "BTC", 1.5)

		assert.ErrorIs(t, err, util.ErrInsufficientHoldings)
		holding, _ := h.service.GetHolding("BTC")
		assert.Equal(t, 1.0, holding.Quantity)
		h.feed.AssertNotCalled(t, "FetchPrice", mock.Anything, mock.Anything)
		h.assertExpectations(t)
	})

	t.Run("NotHeld", func(t *testing.T) {
		h := newHarness(t, nil, DefaultOptions())

		_, err := h.service.Sell(h.ctx, "ETH", 1)

		assert.ErrorIs(t, err, util.ErrHoldingNotFound)
		h.assertExpectations(t)
	})

	t.Run("BuySellRoundTripRestoresBalance", func(t *testing.T) {
		h := newHarness(t, nil, DefaultOptions())
		h.expectWrites(2)
		h.feed.On("FetchPrice", mock.Anything, "SOL").Return(quote("SOL", 50), nil).Twice()
		h.portfolioRepo.On("SaveSnapshot", mock.Anything, mock.Anything, mock.Anything).Return(nil).Twice()
		h.transactionRepo.On("CreateTransaction", mock.Anything, mock.Anything, mock.Anything).Return(nil).Twice()

		_, err := h.service.Buy(h.ctx, "SOL", 2)
		require.NoError(t, err)
		_, err = h.service.Sell(h.ctx, "SOL", 2)
		require.NoError(t, err)

		assert.Equal(t, 10000.0, h.service.GetBalance())
		assert.Empty(t, h.service.ListHoldings())
		h.assertExpectations(t)
	})
}

func TestTradeAsync(t *testing.T) {
	t.Run("BuyAppliedOnDispatcher", func(t *testing.T) {
		h := newHarness(t, nil, DefaultOptions())
		h.expectWrites(1)
		h.feed.On("FetchPriceAsync", mock.Anything, "ETH").Return(quote("ETH", 10), nil).Once()
		h.portfolioRepo.On("SaveSnapshot", mock.Anything, mock.Anything, balanceIs(9980)).Return(nil).Once()
		h.transactionRepo.On("CreateTransaction", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

		loop := dispatch.NewLoop(4)
		var (
			record *domain.TransactionRecord
			err    error
		)
		h.service.BuyAsync(loop.Context(h.ctx), "eth", 2, loop, func(r *domain.TransactionRecord, e error) {
			record, err = r, e
			loop.Close()
		})

		ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
		defer cancel()
		require.NoError(t, loop.Run(ctx))

		require.NoError(t, err)
		assert.Equal(t, "ETH", record.AssetID)
		assert.Equal(t, 9980.0, h.service.GetBalance())
		h.assertExpectations(t)
	})

	t.Run("SellValidationErrorDelivered", func(t *testing.T) {
		h := newHarness(t, nil, DefaultOptions())

		done := make(chan error, 1)
		h.service.SellAsync(h.ctx, "BTC", -1, nil, func(_ *domain.TransactionRecord, err error) {
			done <- err
		})

		assert.ErrorIs(t, <-done, util.ErrInvalidInput)
		h.assertExpectations(t)
	})

	t.Run("SellWithoutHoldingDelivered", func(t *testing.T) {
		h := newHarness(t, nil, DefaultOptions())
		h.feed.On("FetchPriceAsync", mock.Anything, "BTC").Return(quote("BTC", 10), nil).Once()

		done := make(chan error, 1)
		h.service.SellAsync(h.ctx, "BTC", 1, nil, func(_ *domain.TransactionRecord, err error) {
			done <- err
		})

		select {
		case err := <-done:
			assert.ErrorIs(t, err, util.ErrHoldingNotFound)
		case <-time.After(5 * time.Second):
			t.Fatal("callback not invoked")
		}
		h.assertExpectations(t)
	})
}
