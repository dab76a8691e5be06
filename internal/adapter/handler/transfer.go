package handler

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/jalpeshmakadia/secure-fund-transfer/internal/adapter/middleware"
	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/domain"
	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/engine"
	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/worker"
)

type TransferHandler struct {
	Engine   *engine.Engine
	Queue    worker.TransferQueue
	Notifier *worker.Notifier

	// Async hands execution to the queue worker and answers 202; otherwise
	// the transfer runs inside the request and the terminal result comes
	// back directly.
	Async bool
}

type TransferRequest struct {
	FromAccountNumber string `json:"from_account_number"`
	ToAccountNumber   string `json:"to_account_number"`
	Amount            string `json:"amount"`
	TransactionID     string `json:"transaction_id"`
}

// CreateTransfer runs the create-then-execute sequence: the idempotency
// guard persists the pending record, then execution happens inline or via
// the queue.
func (h *TransferHandler) CreateTransfer(c *fiber.Ctx) error {
	var req TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	transactionID := req.TransactionID
	if transactionID == "" {
		if key, ok := c.Locals(middleware.TransactionIDLocal).(string); ok {
			transactionID = key
		}
	}

	txn, err := h.Engine.CreatePending(c.Context(), engine.CreatePendingInput{
		FromAccountNumber: req.FromAccountNumber,
		ToAccountNumber:   req.ToAccountNumber,
		Amount:            req.Amount,
		TransactionID:     transactionID,
	})
	if err != nil {
		return respondError(c, err)
	}

	if h.Async {
		if err := h.Queue.Enqueue(c.Context(), txn.TransactionID); err != nil {
			return respondError(c, err)
		}
		return c.Status(http.StatusAccepted).JSON(fiber.Map{
			"transaction_id": txn.TransactionID,
			"status":         txn.Status,
		})
	}

	res, err := h.Engine.Execute(c.Context(), txn.TransactionID)
	if err != nil {
		// The engine already committed the FAILED record; tell the waiting
		// subscriber too before rendering the failure.
		if failed, gErr := h.Engine.GetByID(c.Context(), txn.TransactionID); gErr == nil && failed != nil {
			h.Notifier.TransferFinished(c.Context(), failed)
		}
		return respondError(c, err)
	}

	h.Notifier.TransferFinished(c.Context(), &res.Transaction)
	return c.JSON(resultResponse(res))
}

// GetTransaction renders a single transaction by id.
func (h *TransferHandler) GetTransaction(c *fiber.Ctx) error {
	txn, err := h.Engine.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if txn == nil {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "transaction not found"})
	}
	return c.JSON(transactionResponse(txn))
}

// ListTransactions pages through an account's incoming and outgoing
// transfers. The engine clamps out-of-range limits rather than rejecting
// them.
func (h *TransferHandler) ListTransactions(c *fiber.Ctx) error {
	page, err := h.Engine.ListByAccount(c.Context(),
		c.Params("number"),
		c.QueryInt("limit", 0),
		c.QueryInt("offset", 0),
		c.Query("status"),
	)
	if err != nil {
		return respondError(c, err)
	}

	items := make([]fiber.Map, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, transactionResponse(&page.Items[i]))
	}
	return c.JSON(fiber.Map{
		"items":  items,
		"total":  page.Total,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

func transactionResponse(txn *domain.Transaction) fiber.Map {
	m := fiber.Map{
		"transaction_id":      txn.TransactionID,
		"status":              txn.Status,
		"from_account_number": txn.FromAccountNumber,
		"to_account_number":   txn.ToAccountNumber,
		"amount":              txn.Amount.StringFixed(2),
		"created_at":          txn.CreatedAt,
	}
	if txn.CompletedAt != nil {
		m["completed_at"] = txn.CompletedAt
	}
	if txn.ErrorMessage != "" {
		m["error_message"] = txn.ErrorMessage
	}
	return m
}

func resultResponse(res *engine.Result) fiber.Map {
	m := transactionResponse(&res.Transaction)
	m["balances"] = fiber.Map{
		res.Transaction.FromAccountNumber: res.FromBalance.StringFixed(2),
		res.Transaction.ToAccountNumber:   res.ToBalance.StringFixed(2),
	}
	return m
}
