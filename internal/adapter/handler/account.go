package handler

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/domain"
	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/engine"
)

type AccountHandler struct {
	Engine *engine.Engine
}

// CreateAccountRequest defines what the client sends us.
type CreateAccountRequest struct {
	AccountNumber  string `json:"account_number"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	OpeningBalance string `json:"opening_balance"`
}

func (h *AccountHandler) CreateAccount(c *fiber.Ctx) error {
	var req CreateAccountRequest

	// 1. Parse JSON
	if err := c.BodyParser(&req); err != nil {
		slog.Warn("Invalid account body", "error", err)
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	// 2. Validate input
	if req.AccountNumber == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "account_number is required"})
	}
	if req.FirstName == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "first_name is required"})
	}

	balance := decimal.Zero
	if req.OpeningBalance != "" {
		parsed, err := decimal.NewFromString(req.OpeningBalance)
		if err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "opening_balance is not a valid decimal"})
		}
		balance = parsed
	}

	account := &domain.Account{
		AccountNumber: req.AccountNumber,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Balance:       balance,
	}

	// 3. Create
	if err := h.Engine.CreateAccount(c.Context(), account); err != nil {
		return respondError(c, err)
	}

	slog.Info("account created", "account_number", account.AccountNumber)

	// 4. Return success. Balances render at fixed 2-decimal precision on
	// every endpoint, so the raw decimal never reaches the wire.
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"id":             account.ID,
		"account_number": account.AccountNumber,
		"first_name":     account.FirstName,
		"last_name":      account.LastName,
		"balance":        account.Balance.StringFixed(2),
		"version":        account.Version,
		"created_at":     account.CreatedAt,
	})
}

func (h *AccountHandler) GetBalance(c *fiber.Ctx) error {
	number := c.Params("number")

	balance, err := h.Engine.GetBalance(c.Context(), number)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"account_number": number,
		"balance":        balance.StringFixed(2),
	})
}
