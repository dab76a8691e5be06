package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// TransactionIDLocal is the fiber.Ctx locals key the idempotency key is
// stashed under.
const TransactionIDLocal = "transaction_id"

// IdempotencyKey binds the Idempotency-Key header to the request as the
// client-supplied transaction id. The engine's idempotency guard does the
// actual enforcement: re-creation under a known id is rejected there, and
// re-execution of a terminal transaction returns the stored outcome. This
// middleware only carries the key; requests without one get an engine-minted
// id instead.
func IdempotencyKey() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key := c.Get("Idempotency-Key"); key != "" {
			c.Locals(TransactionIDLocal, key)
		}
		return c.Next()
	}
}
