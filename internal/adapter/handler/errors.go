package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/domain"
)

// respondError renders the engine's typed errors at the HTTP boundary.
// Client-retryable conditions and infrastructure failures get distinct
// status codes so callers can tell them apart without parsing messages.
func respondError(c *fiber.Ctx, err error) error {
	var verr *domain.ValidationError
	var anf *domain.AccountNotFoundError
	var dup *domain.DuplicateTransactionError
	var ife *domain.InsufficientFundsError
	var ccf *domain.ConcurrencyConflictError
	var serr *domain.StoreError

	switch {
	case errors.As(err, &verr):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": verr.Error(),
			"field": verr.Field,
		})
	case errors.As(err, &anf):
		return c.Status(http.StatusNotFound).JSON(fiber.Map{
			"error":          anf.Error(),
			"account_number": anf.AccountNumber,
		})
	case errors.As(err, &dup):
		return c.Status(http.StatusConflict).JSON(fiber.Map{
			"error":          dup.Error(),
			"transaction_id": dup.TransactionID,
		})
	case errors.As(err, &ife):
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":          ife.Error(),
			"account_number": ife.AccountNumber,
			"requested":      ife.Requested.StringFixed(2),
			"available":      ife.Available.StringFixed(2),
		})
	case errors.As(err, &ccf):
		return c.Status(http.StatusConflict).JSON(fiber.Map{
			"error":          ccf.Error(),
			"transaction_id": ccf.TransactionID,
		})
	case errors.As(err, &serr):
		slog.Error("store failure", "error", serr)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal storage failure",
		})
	default:
		slog.Error("unexpected handler error", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}
}
