package stats

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ismail-platform/wallet/internal/ledger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handler exposes read-only balance, history and summary endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a stats HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Balance returns the current balance of a wallet.
func (h *Handler) Balance(c *fiber.Ctx) error {
	walletID := c.Params("walletId")
	balance, version, err := h.service.Balance(c.UserContext(), walletID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_id": walletID,
		"balance":   balance.Amount,
		"currency":  string(balance.Currency),
		"version":   version,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// History returns a page of ledger entries, newest first.
func (h *Handler) History(c *fiber.Ctx) error {
	page := ledger.Page{
		Number: c.QueryInt("page", 0),
		Size:   c.QueryInt("size", defaultPageSize),
	}
	if page.Number < 0 {
		page.Number = 0
	}
	if page.Size <= 0 || page.Size > maxPageSize {
		page.Size = defaultPageSize
	}

	entries, err := h.service.History(c.UserContext(), c.Params("walletId"), page)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"page":    page.Number,
		"size":    page.Size,
		"entries": entries,
	})
}

// Summary returns lifetime aggregates for a wallet.
func (h *Handler) Summary(c *fiber.Ctx) error {
	summary, err := h.service.Summarize(c.UserContext(), c.Params("walletId"))
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(summary)
}
