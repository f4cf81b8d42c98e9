// internal/api/handler/response.go
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"papertrade/internal/util" // For custom errors
)

// DefaultTimeout bounds every non-streaming request.
const DefaultTimeout = 30 * time.Second

// responder carries the helpers shared by all handlers.
type responder struct {
	logger   *slog.Logger
	validate *validator.Validate
}

func newResponder(logger *slog.Logger) responder {
	return responder{
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Helper function to send JSON responses.
func (h responder) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// Helper function to send error responses.
func (h responder) respondWithError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case util.IsError(err, util.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		message = err.Error() // Use the error message directly for invalid input
	case util.IsError(err, util.ErrHoldingNotFound), util.IsError(err, util.ErrSymbolNotFound), util.IsError(err, util.ErrNotFound):
		statusCode = http.StatusNotFound
		message = err.Error()
	case util.IsError(err, util.ErrInsufficientFunds):
		statusCode = http.StatusPaymentRequired // 402 Payment Required
		message = "Insufficient funds"
	case util.IsError(err, util.ErrInsufficientHoldings):
		statusCode = http.StatusConflict
		message = "Insufficient holdings"
	case util.IsError(err, util.ErrPriceUnavailable), util.IsError(err, util.ErrQuoteUnavailable):
		statusCode = http.StatusServiceUnavailable
		message = err.Error()
	case util.IsError(err, util.ErrPersistenceFailed):
		message = "Portfolio could not be saved"
		h.logger.Error("Persistence failure", "error", err)
	default:
		h.logger.Error("Unhandled service error", "error", err)
	}

	h.respondWithJSON(w, statusCode, map[string]string{"error": message})
}

// decode reads a JSON body into dst and validates its struct tags.
func (h responder) decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("malformed request body: %w", util.ErrInvalidInput)
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("field %s failed %s: %w", fe.Field(), fe.Tag(), util.ErrInvalidInput)
		}
		return fmt.Errorf("%v: %w", err, util.ErrInvalidInput)
	}
	return nil
}
