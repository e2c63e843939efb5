package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a registered organization in the ledger.
// Organizations are keyed by the admin identity that registered them -
// one organization per admin.
type Organization struct {
	AdminID       uuid.UUID // pre-verified identity of the registering admin
	Name          string
	Metadata      map[string]string
	EmployeeCap   int
	EmployeeCount int
	Treasury      Treasury
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Treasury tracks an organization's deposit/withdrawal bookkeeping.
// The invariant (TotalDeposited - TotalWithdrawn) <= SpendLimit must hold
// after every treasury update.
type Treasury struct {
	TotalDeposited int64
	TotalWithdrawn int64
	SpendLimit     int64
}

// Available returns the net funds currently held by the treasury.
func (t Treasury) Available() int64 {
	return t.TotalDeposited - t.TotalWithdrawn
}

// EmployeeProfile is an employee entry on an organization's roster.
// It holds a weak reference to the employee's wallet (resolved through the
// wallet store), never an owning pointer.
type EmployeeProfile struct {
	EmployeeID  uuid.UUID
	WalletID    uuid.UUID
	Role        string
	Active      bool
	AddedAt     time.Time
	LastUpdated time.Time
}
