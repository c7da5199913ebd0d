package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes wallet lifecycle HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	IsmailID string `json:"ismail_id"`
	Currency string `json:"currency"`
	PIN      string `json:"pin"`
}

type walletResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	IsmailID  string    `json:"ismail_id"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	Tier      string    `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
}

func toResponse(account Account) walletResponse {
	return walletResponse{
		ID:        account.ID,
		OwnerID:   account.OwnerID,
		IsmailID:  account.IsmailID,
		Currency:  string(account.Currency),
		Status:    string(account.Status),
		Tier:      string(account.Tier),
		CreatedAt: account.CreatedAt,
	}
}

// Create provisions a wallet for the authenticated owner.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	ownerID, _ := c.Locals("user_id").(string)
	account, err := h.service.Create(c.UserContext(), CreateInput{
		OwnerID:  ownerID,
		IsmailID: req.IsmailID,
		Currency: req.Currency,
		PIN:      req.PIN,
	})
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toResponse(account))
}

// Get returns wallet metadata, owner only.
func (h *Handler) Get(c *fiber.Ctx) error {
	account, err := h.ownedWallet(c)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toResponse(account))
}

// Freeze suspends the wallet.
func (h *Handler) Freeze(c *fiber.Ctx) error {
	account, err := h.ownedWallet(c)
	if err != nil {
		return err
	}
	if err := h.service.Freeze(c.UserContext(), account.ID); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}

// Unfreeze reactivates a FROZEN wallet.
func (h *Handler) Unfreeze(c *fiber.Ctx) error {
	account, err := h.ownedWallet(c)
	if err != nil {
		return err
	}
	if err := h.service.Unfreeze(c.UserContext(), account.ID); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}

// Close permanently retires the wallet.
func (h *Handler) Close(c *fiber.Ctx) error {
	account, err := h.ownedWallet(c)
	if err != nil {
		return err
	}
	if err := h.service.Close(c.UserContext(), account.ID); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *Handler) ownedWallet(c *fiber.Ctx) (Account, error) {
	account, err := h.service.Get(c.UserContext(), c.Params("walletId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Account{}, fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return Account{}, fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	userID, _ := c.Locals("user_id").(string)
	if userID != "" && account.OwnerID != userID {
		return Account{}, fiber.NewError(http.StatusForbidden, "not owner of wallet")
	}
	return account, nil
}
