package settlement

import (
	"context"

	"github.com/google/uuid"

	"github.com/ismail-platform/wallet/internal/money"
)

const (
	// StatusConfirmed indicates the external rail accepted the payout.
	StatusConfirmed = "confirmed"
	// StatusRejected indicates the rail refused the payout.
	StatusRejected = "rejected"
)

// Request describes a payout to an external payment rail after the ledger
// has committed the withdrawal.
type Request struct {
	WalletID    string
	Amount      money.Money
	Method      string
	Destination string
	Reference   string
}

// Confirmation captures the rail's response.
type Confirmation struct {
	Reference string
	Status    string
}

// Provider is the narrow connector to external payment rails
// (mobile money, card payouts). Gateway protocol details live behind it.
type Provider interface {
	Settle(ctx context.Context, request Request) (Confirmation, error)
}

// StaticProvider simulates a rail that always confirms.
type StaticProvider struct{}

// Settle approves the payout with a synthetic reference.
func (StaticProvider) Settle(_ context.Context, _ Request) (Confirmation, error) {
	return Confirmation{Reference: uuid.NewString(), Status: StatusConfirmed}, nil
}
