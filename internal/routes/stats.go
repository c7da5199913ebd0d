package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ismail-platform/wallet/internal/stats"
)

// RegisterStatsRoutes wires read-only query endpoints.
func RegisterStatsRoutes(r fiber.Router, h *stats.Handler) {
	r.Get("/wallets/:walletId/balance", h.Balance)
	r.Get("/wallets/:walletId/history", h.History)
	r.Get("/wallets/:walletId/summary", h.Summary)
}
