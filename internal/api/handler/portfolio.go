// internal/api/handler/portfolio.go
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"papertrade/internal/api/types"
	"papertrade/internal/dispatch"
	"papertrade/internal/domain"
	"papertrade/internal/service"
	"papertrade/internal/util"
)

// PortfolioHandler handles HTTP requests related to the virtual portfolio.
type PortfolioHandler struct {
	responder
	service service.PortfolioService
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(svc service.PortfolioService, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		responder: newResponder(logger),
		service:   svc,
	}
}

// AmountRequest represents the request body for deposit.
type AmountRequest struct {
	Amount float64 `json:"amount" validate:"gt=0"`
}

// SetBalanceRequest represents the request body for setting the balance.
type SetBalanceRequest struct {
	Amount     float64 `json:"amount" validate:"gt=0"`
	IsAddition bool    `json:"is_addition"`
}

// TradeRequest represents the request body for buy and sell.
type TradeRequest struct {
	AssetID  string  `json:"asset_id" validate:"required,printascii,max=32"`
	Quantity float64 `json:"quantity" validate:"gt=0"`
}

// SummaryResponse is the portfolio overview.
type SummaryResponse struct {
	Balance     float64          `json:"balance"`
	Investments float64          `json:"investments"`
	TotalValue  float64          `json:"total_value"`
	ProfitLoss  float64          `json:"profit_loss"`
	Holdings    []domain.Holding `json:"holdings"`
	Fresh       bool             `json:"fresh"`
}

// HoldingResponse is a holding valued at the last known price.
type HoldingResponse struct {
	domain.Holding
	Price                float64 `json:"price"`
	CurrentValue         float64 `json:"current_value"`
	ProfitLoss           float64 `json:"profit_loss"`
	ProfitLossPercentage float64 `json:"profit_loss_percentage"`
}

// GetSummary handles the portfolio overview request.
// GET /portfolio?fresh=true
// Without fresh the figures come from cached prices and never block on the network.
func (h *PortfolioHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	fresh, _ := strconv.ParseBool(r.URL.Query().Get("fresh"))

	resp := SummaryResponse{
		Balance:  h.service.GetBalance(),
		Holdings: h.service.ListHoldings(),
		Fresh:    fresh,
	}

	if fresh {
		total, err := h.freshTotal(r.Context())
		if err != nil {
			h.respondWithError(w, err)
			return
		}
		resp.TotalValue = total
		resp.Investments = total - resp.Balance
		resp.ProfitLoss = h.service.GetProfitLoss(r.Context())
	} else {
		resp.Investments = h.service.GetInvestmentsValueCached()
		resp.TotalValue = resp.Balance + resp.Investments
		resp.ProfitLoss = h.service.GetProfitLoss(dispatch.WithForeground(r.Context()))
	}

	h.respondWithJSON(w, http.StatusOK, resp)
}

// freshTotal waits for the asynchronous valuation or the request to end.
func (h *PortfolioHandler) freshTotal(ctx context.Context) (float64, error) {
	result := make(chan float64, 1)
	h.service.GetTotalValueAsync(ctx, nil, func(total float64) { result <- total })
	select {
	case total := <-result:
		return total, nil
	case <-ctx.Done():
		return 0, fmt.Errorf("valuation: %w: %w", util.ErrQuoteUnavailable, ctx.Err())
	}
}

// Deposit handles the deposit request.
// POST /portfolio/deposit
func (h *PortfolioHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if err := h.decode(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	balance, err := h.service.Deposit(r.Context(), req.Amount)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Deposit successful",
		"new_balance": balance,
	})
}

// SetBalance handles the set balance request.
// PUT /portfolio/balance
func (h *PortfolioHandler) SetBalance(w http.ResponseWriter, r *http.Request) {
	var req SetBalanceRequest
	if err := h.decode(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	balance, err := h.service.SetBalance(r.Context(), req.Amount, req.IsAddition)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Balance updated",
		"new_balance": balance,
	})
}

// Buy handles the buy request.
// POST /portfolio/buy
func (h *PortfolioHandler) Buy(w http.ResponseWriter, r *http.Request) {
	h.trade(w, r, h.service.Buy)
}

// Sell handles the sell request.
// POST /portfolio/sell
func (h *PortfolioHandler) Sell(w http.ResponseWriter, r *http.Request) {
	h.trade(w, r, h.service.Sell)
}

func (h *PortfolioHandler) trade(w http.ResponseWriter, r *http.Request, exec func(context.Context, string, float64) (*domain.TransactionRecord, error)) {
	var req TradeRequest
	if err := h.decode(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	record, err := exec(r.Context(), req.AssetID, req.Quantity)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"transaction": record,
		"new_balance": h.service.GetBalance(),
	})
}

// Reset handles the reset request.
// DELETE /portfolio
func (h *PortfolioHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reset(r.Context()); err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Portfolio reset",
		"new_balance": h.service.GetBalance(),
	})
}

// ListHoldings handles the holdings request.
// GET /portfolio/holdings
func (h *PortfolioHandler) ListHoldings(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"data": h.service.ListHoldings(),
	})
}

// GetHolding handles the single holding request. The holding is valued at
// the last cached price.
// GET /portfolio/holdings/{assetID}
func (h *PortfolioHandler) GetHolding(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")
	holding, ok := h.service.GetHolding(assetID)
	if !ok {
		h.respondWithError(w, fmt.Errorf("%s: %w", assetID, util.ErrHoldingNotFound))
		return
	}

	price := h.service.CachedPrice(holding.AssetID)
	h.respondWithJSON(w, http.StatusOK, HoldingResponse{
		Holding:              holding,
		Price:                price,
		CurrentValue:         holding.CurrentValue(price),
		ProfitLoss:           holding.ProfitLoss(price),
		ProfitLossPercentage: holding.ProfitLossPercentage(price),
	})
}

// GetTransactionHistory handles the trade log request.
// GET /portfolio/transactions
func (h *PortfolioHandler) GetTransactionHistory(w http.ResponseWriter, r *http.Request) {
	// Parse query parameters for pagination
	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 10 // Default limit
	}
	offset, err := strconv.Atoi(offsetStr)
	if err != nil || offset < 0 {
		offset = 0 // Default offset
	}

	records, total, err := h.service.GetTransactionHistory(r.Context(), limit, offset)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if records == nil {
		records = []domain.TransactionRecord{}
	}

	h.respondWithJSON(w, http.StatusOK, types.PaginatedResponse[domain.TransactionRecord]{
		Data:       records,
		Limit:      limit,
		Offset:     offset,
		TotalCount: total,
	})
}
