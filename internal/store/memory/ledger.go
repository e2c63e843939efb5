package memory

import (
	"sync"

	"github.com/google/uuid"
	"github.com/wolfeidau/orgledger/internal/models"
	"github.com/wolfeidau/orgledger/internal/store"
)

// Compile-time interface checks
var (
	_ store.OrganizationStore = (*Ledger)(nil)
	_ store.WalletStore       = (*Ledger)(nil)
	_ store.PoolStore         = (*Ledger)(nil)
	_ store.PayrollStore      = (*Ledger)(nil)
)

// rosterKey addresses an employee profile nested under its organization.
type rosterKey struct {
	AdminID    uuid.UUID
	EmployeeID uuid.UUID
}

// poolMember addresses a commitment or nullifier within a pool.
type poolMember struct {
	PoolID uuid.UUID
	Value  string // raw bytes of the commitment/nullifier
}

// Ledger implements all four store interfaces over in-memory versioned
// tables. A single RWMutex serializes every operation, so transitions that
// touch more than one table (Transfer, ConsumeRecipient + Credit) are
// trivially atomic. Data is lost on restart - this implementation is for
// tests and local development.
type Ledger struct {
	mu sync.RWMutex

	orgs       *table[uuid.UUID, models.Organization] // admin_id -> Organization
	employees  *table[rosterKey, models.EmployeeProfile]
	wallets    *table[uuid.UUID, models.Wallet]
	pools      *table[uuid.UUID, models.Pool]
	commits    *table[poolMember, struct{}]
	nullifiers *table[poolMember, struct{}]
	batches    *table[uuid.UUID, models.Batch]

	runs      []models.PayrollRun
	nextRunID int64
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{
		orgs:       newTable[uuid.UUID, models.Organization](),
		employees:  newTable[rosterKey, models.EmployeeProfile](),
		wallets:    newTable[uuid.UUID, models.Wallet](),
		pools:      newTable[uuid.UUID, models.Pool](),
		commits:    newTable[poolMember, struct{}](),
		nullifiers: newTable[poolMember, struct{}](),
		batches:    newTable[uuid.UUID, models.Batch](),
		nextRunID:  1,
	}
}
