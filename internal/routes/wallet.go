package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ismail-platform/wallet/internal/wallet"
)

// RegisterWalletRoutes wires wallet lifecycle endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Post("/wallets", h.Create)
	r.Get("/wallets/:walletId", h.Get)
	r.Post("/wallets/:walletId/freeze", h.Freeze)
	r.Post("/wallets/:walletId/unfreeze", h.Unfreeze)
	r.Post("/wallets/:walletId/close", h.Close)
}
