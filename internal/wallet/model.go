package wallet

import (
	"time"

	"github.com/ismail-platform/wallet/internal/money"
)

// Status is the lifecycle state of a wallet account. Accounts are never
// deleted, only transitioned to CLOSED.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusFrozen Status = "FROZEN"
	StatusClosed Status = "CLOSED"
)

// Tier selects the spending-limit profile applied to the wallet.
type Tier string

const (
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// Account holds wallet metadata. The balance itself lives in the ledger
// store; this record carries identity, status and the PIN credential.
type Account struct {
	ID        string
	OwnerID   string
	IsmailID  string
	Currency  money.Currency
	Status    Status
	Tier      Tier
	PINHash   []byte
	CreatedAt time.Time
}
