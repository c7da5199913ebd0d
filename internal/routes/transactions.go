package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ismail-platform/wallet/internal/engine"
)

// RegisterTransactionRoutes wires the money movement endpoints.
func RegisterTransactionRoutes(r fiber.Router, h *engine.Handler) {
	r.Post("/wallets/:walletId/credit", h.Credit)
	r.Post("/wallets/:walletId/transfer", h.Transfer)
	r.Post("/wallets/:walletId/withdraw", h.Withdraw)
	r.Get("/fx/convert", h.Convert)
}
