package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxBatchSize is the maximum number of pending recipients a payroll batch
// may hold.
const MaxBatchSize = 500

// Batch escrows funds for a payroll distribution. Recipients are paid out
// one at a time, each consuming their entry from the pending map, until the
// batch is closed. Sum of pending amounts never exceeds Balance.
type Batch struct {
	BatchID     uuid.UUID // UUIDv7
	OrgID       uuid.UUID
	Balance     int64 // escrowed funds not yet paid out
	TotalAmount int64 // sum of pending recipient amounts
	Recipients  map[uuid.UUID]int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RunStatus is the terminal status of a payroll run record.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
)

// PayrollRun is an append-only history record written for each successful
// single payout. RunIDs are assigned monotonically by the store.
type PayrollRun struct {
	RunID         int64
	OrgID         uuid.UUID
	ExecutorID    uuid.UUID
	TotalAmount   int64
	EmployeeCount int
	ExecutedAt    time.Time
	Status        RunStatus
}
