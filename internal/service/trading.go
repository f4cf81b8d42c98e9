// internal/service/trading.go
package service

import (
	"context"
	"errors"
	"fmt"

	"papertrade/internal/dispatch"
	"papertrade/internal/domain"
	"papertrade/internal/metrics"
	"papertrade/internal/util"
)

// Buy purchases quantity units of an asset at the current price.
// It fails without mutating anything if the cost exceeds the balance.
func (s *portfolioService) Buy(ctx context.Context, assetID string, quantity float64) (*domain.TransactionRecord, error) {
	symbol, err := s.validateTrade(domain.TransactionKindBuy, assetID, quantity)
	if err != nil {
		return nil, err
	}

	quote, err := s.feed.FetchPrice(ctx, symbol)
	price, err := s.tradePrice(domain.TransactionKindBuy, symbol, quote, err)
	if err != nil {
		return nil, err
	}
	return s.applyBuy(ctx, symbol, quantity, price)
}

// Sell disposes of quantity units of a held asset at the current price.
// A position left below the dust threshold is closed.
func (s *portfolioService) Sell(ctx context.Context, assetID string, quantity float64) (*domain.TransactionRecord, error) {
	symbol, err := s.validateTrade(domain.TransactionKindSell, assetID, quantity)
	if err != nil {
		return nil, err
	}

	// Fail before any network round trip when the position cannot cover the sale.
	s.mu.Lock()
	err = s.checkHoldingLocked(symbol, quantity)
	s.mu.Unlock()
	if err != nil {
		s.countTrade(domain.TransactionKindSell, metrics.OutcomeRejected)
		return nil, err
	}

	quote, err := s.feed.FetchPrice(ctx, symbol)
	price, err := s.tradePrice(domain.TransactionKindSell, symbol, quote, err)
	if err != nil {
		return nil, err
	}
	return s.applySell(ctx, symbol, quantity, price)
}

// BuyAsync fetches the price on a worker, then applies the purchase and
// invokes cb as one task on d.
func (s *portfolioService) BuyAsync(ctx context.Context, assetID string, quantity float64, d dispatch.Dispatcher, cb TradeCallback) {
	s.tradeAsync(ctx, domain.TransactionKindBuy, assetID, quantity, d, cb)
}

// SellAsync is the asynchronous form of Sell; see BuyAsync.
func (s *portfolioService) SellAsync(ctx context.Context, assetID string, quantity float64, d dispatch.Dispatcher, cb TradeCallback) {
	s.tradeAsync(ctx, domain.TransactionKindSell, assetID, quantity, d, cb)
}

func (s *portfolioService) tradeAsync(ctx context.Context, kind domain.TransactionKind, assetID string, quantity float64, d dispatch.Dispatcher, cb TradeCallback) {
	d = dispatch.OrInline(d)

	symbol, err := s.validateTrade(kind, assetID, quantity)
	if err != nil {
		d.Post(func() { cb(nil, err) })
		return
	}

	s.feed.FetchPriceAsync(ctx, symbol, d, func(quote domain.PriceQuote, fetchErr error) {
		price, err := s.tradePrice(kind, symbol, quote, fetchErr)
		if err != nil {
			cb(nil, err)
			return
		}
		var record *domain.TransactionRecord
		if kind == domain.TransactionKindBuy {
			record, err = s.applyBuy(ctx, symbol, quantity, price)
		} else {
			record, err = s.applySell(ctx, symbol, quantity, price)
		}
		cb(record, err)
	})
}

func (s *portfolioService) applyBuy(ctx context.Context, symbol string, quantity, price float64) (*domain.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cost := quantity * price
	if cost > s.state.Balance {
		s.countTrade(domain.TransactionKindBuy, metrics.OutcomeRejected)
		return nil, fmt.Errorf("buy %s: cost %s exceeds balance %s: %w",
			symbol, domain.FormatUSD(cost), domain.FormatUSD(s.state.Balance), util.ErrInsufficientFunds)
	}

	next := s.state.Clone()
	next.Balance -= cost
	if i := next.Find(symbol); i >= 0 {
		next.Holdings[i].Add(quantity, price)
	} else {
		next.Holdings = append(next.Holdings, *domain.NewHolding(symbol, quantity, price))
	}

	record := domain.NewTransactionRecord(domain.TransactionKindBuy, symbol, quantity, price)
	if err := s.commit(ctx, "buy", next, record); err != nil {
		s.countTrade(domain.TransactionKindBuy, metrics.OutcomeFailure)
		return nil, err
	}
	s.countTrade(domain.TransactionKindBuy, metrics.OutcomeSuccess)
	s.logger.Info("Bought", "asset", symbol, "quantity", quantity, "price", price, "balance", next.Balance)
	return record, nil
}

func (s *portfolioService) applySell(ctx context.Context, symbol string, quantity, price float64) (*domain.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The position may have changed while the price was being fetched.
	if err := s.checkHoldingLocked(symbol, quantity); err != nil {
		s.countTrade(domain.TransactionKindSell, metrics.OutcomeRejected)
		return nil, err
	}

	next := s.state.Clone()
	next.Balance += quantity * price
	i := next.Find(symbol)
	if closed := next.Holdings[i].Reduce(quantity); closed {
		next.Remove(i)
	}

	record := domain.NewTransactionRecord(domain.TransactionKindSell, symbol, quantity, price)
	if err := s.commit(ctx, "sell", next, record); err != nil {
		s.countTrade(domain.TransactionKindSell, metrics.OutcomeFailure)
		return nil, err
	}
	s.countTrade(domain.TransactionKindSell, metrics.OutcomeSuccess)
	s.logger.Info("Sold", "asset", symbol, "quantity", quantity, "price", price, "balance", next.Balance)
	return record, nil
}

func (s *portfolioService) validateTrade(kind domain.TransactionKind, assetID string, quantity float64) (string, error) {
	symbol := s.feed.Symbol(assetID)
	if symbol == "" {
		s.countTrade(kind, metrics.OutcomeRejected)
		return "", fmt.Errorf("%s: missing asset: %w", kind, util.ErrInvalidInput)
	}
	if !isPositive(quantity) {
		s.countTrade(kind, metrics.OutcomeRejected)
		return "", fmt.Errorf("%s %s: quantity must be positive: %w", kind, symbol, util.ErrInvalidInput)
	}
	if kind == domain.TransactionKindBuy && quantity <= domain.DustThreshold {
		s.countTrade(kind, metrics.OutcomeRejected)
		return "", fmt.Errorf("%s %s: quantity %g is dust: %w", kind, symbol, quantity, util.ErrInvalidInput)
	}
	return symbol, nil
}

func (s *portfolioService) checkHoldingLocked(symbol string, quantity float64) error {
	i := s.state.Find(symbol)
	if i < 0 {
		return fmt.Errorf("sell %s: %w", symbol, util.ErrHoldingNotFound)
	}
	if held := s.state.Holdings[i].Quantity; held < quantity {
		return fmt.Errorf("sell %s: have %.8f, want %.8f: %w", symbol, held, quantity, util.ErrInsufficientHoldings)
	}
	return nil
}

// tradePrice applies the zero price policy to a fetched quote. A fetch refused
// on a foreground context is always an error.
func (s *portfolioService) tradePrice(kind domain.TransactionKind, symbol string, quote domain.PriceQuote, err error) (float64, error) {
	if err == nil && quote.Price > 0 {
		return quote.Price, nil
	}
	if err == nil {
		err = util.ErrQuoteUnavailable
	}

	if errors.Is(err, util.ErrBlockingForbidden) || s.opts.ZeroPricePolicy == ZeroPriceReject {
		s.countTrade(kind, metrics.OutcomeFailure)
		return 0, fmt.Errorf("%s %s: %w: %w", kind, symbol, util.ErrPriceUnavailable, err)
	}

	s.logger.Warn("Price unavailable, trading at zero", "kind", kind, "asset", symbol, "error", err)
	return 0, nil
}

func (s *portfolioService) countTrade(kind domain.TransactionKind, outcome string) {
	s.metrics.Trades.WithLabelValues(string(kind), outcome).Inc()
}
