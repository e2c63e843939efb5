package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds a single employee's balance. Amounts are in minor units.
// Balance == TotalDeposited - TotalWithdrawn holds after every operation.
type Wallet struct {
	WalletID       uuid.UUID // UUIDv7
	OwnerID        uuid.UUID // employee identity, only the owner may withdraw
	OrgID          uuid.UUID // admin identity of the owning organization
	Balance        int64
	TotalDeposited int64
	TotalWithdrawn int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
