package engine

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the transaction endpoints.
type Handler struct {
	engine *Engine
}

// NewHandler builds a transaction HTTP handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

type creditRequest struct {
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	Method            string `json:"method"`
	ExternalReference string `json:"external_reference"`
	IdempotencyKey    string `json:"idempotency_key"`
}

// Credit applies incoming funds to the wallet.
func (h *Handler) Credit(c *fiber.Ctx) error {
	var req creditRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	result, err := h.engine.Credit(c.UserContext(), CreditInput{
		WalletID:          c.Params("walletId"),
		Amount:            req.Amount,
		Currency:          req.Currency,
		Method:            req.Method,
		ExternalReference: req.ExternalReference,
		IdempotencyKey:    idempotencyKey(c, req.IdempotencyKey),
	})
	if err != nil {
		return reject(c, err)
	}
	return c.Status(http.StatusCreated).JSON(result)
}

type transferRequest struct {
	RecipientIsmailID string `json:"recipient_ismail_id"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	PIN               string `json:"pin"`
	IdempotencyKey    string `json:"idempotency_key"`
}

// Transfer moves funds to another wallet.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	userID, _ := c.Locals("user_id").(string)
	result, err := h.engine.Transfer(c.UserContext(), TransferInput{
		WalletID:          c.Params("walletId"),
		RecipientIsmailID: req.RecipientIsmailID,
		Amount:            req.Amount,
		Currency:          req.Currency,
		PIN:               req.PIN,
		IdempotencyKey:    idempotencyKey(c, req.IdempotencyKey),
		RequestorUserID:   userID,
	})
	if err != nil {
		return reject(c, err)
	}
	return c.Status(http.StatusCreated).JSON(result)
}

type withdrawRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Method         string `json:"method"`
	Destination    string `json:"destination"`
	PIN            string `json:"pin"`
	IdempotencyKey string `json:"idempotency_key"`
}

// Withdraw pays out to an external rail.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req withdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	userID, _ := c.Locals("user_id").(string)
	result, err := h.engine.Withdraw(c.UserContext(), WithdrawInput{
		WalletID:       c.Params("walletId"),
		Amount:         req.Amount,
		Currency:       req.Currency,
		Method:         req.Method,
		Destination:    req.Destination,
		PIN:            req.PIN,
		IdempotencyKey: idempotencyKey(c, req.IdempotencyKey),
		RequestorUserID: userID,
	})
	if err != nil {
		return reject(c, err)
	}
	return c.Status(http.StatusCreated).JSON(result)
}

// Convert quotes a currency conversion without touching the ledger.
func (h *Handler) Convert(c *fiber.Ctx) error {
	amount := int64(c.QueryInt("amount"))
	result, err := h.engine.Convert(c.UserContext(), amount, c.Query("from"), c.Query("to"))
	if err != nil {
		return reject(c, err)
	}
	return c.Status(http.StatusOK).JSON(result)
}

// idempotencyKey prefers the Idempotency-Key header over the request body.
func idempotencyKey(c *fiber.Ctx, bodyKey string) string {
	if header := c.Get("Idempotency-Key"); header != "" {
		return header
	}
	return bodyKey
}

// reject maps a domain error to its stable reason code.
func reject(c *fiber.Ctx, err error) error {
	reason := Classify(err)
	return c.Status(reason.Status).JSON(fiber.Map{
		"error":   reason.Code,
		"message": err.Error(),
	})
}
