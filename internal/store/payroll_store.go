package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/orgledger/internal/models"
)

// Sentinel errors for payroll store operations
var (
	ErrBatchNotFound     = errors.New("batch not found")
	ErrBatchFull         = errors.New("batch recipient limit reached")
	ErrRecipientNotFound = errors.New("recipient not pending in batch")
)

// PayrollStore defines the interface for payroll batch and run-history
// storage. Batches escrow funds and pay recipients out one at a time; runs
// are an append-only history keyed by a monotonically increasing run ID.
type PayrollStore interface {
	// CreateBatch stores a new batch with its escrowed funding.
	CreateBatch(ctx context.Context, batch *models.Batch) error

	// GetBatch retrieves a batch by ID.
	// Returns ErrBatchNotFound if it doesn't exist.
	GetBatch(ctx context.Context, batchID uuid.UUID) (*models.Batch, error)

	// AddRecipient adds a pending recipient to the batch. If the employee is
	// already pending the call is a no-op and added is false - the existing
	// amount is NOT updated. Returns ErrBatchFull at models.MaxBatchSize
	// recipients, ErrInsufficientFunds if pending amounts would exceed the
	// escrowed balance.
	AddRecipient(ctx context.Context, batchID, employeeID uuid.UUID, amount int64) (added bool, err error)

	// ConsumeRecipient removes the employee's pending entry and deducts its
	// amount from the batch balance in one transition, returning the amount.
	// Returns ErrRecipientNotFound if the employee isn't pending,
	// ErrInsufficientFunds if the batch balance < the pending amount.
	ConsumeRecipient(ctx context.Context, batchID, employeeID uuid.UUID) (int64, error)

	// RestoreRecipient re-adds a consumed recipient entry and returns its
	// amount to the batch balance. It exists only as the compensation step
	// when the downstream wallet credit of a payout fails.
	RestoreRecipient(ctx context.Context, batchID, employeeID uuid.UUID, amount int64) error

	// CloseBatch destroys the batch, returning its residual escrowed
	// balance. Any still-pending recipients are discarded without payment.
	// Returns ErrBatchNotFound if it doesn't exist.
	CloseBatch(ctx context.Context, batchID uuid.UUID) (int64, error)

	// RecipientAmount reports the pending amount for an employee, and
	// whether the employee is pending at all.
	RecipientAmount(ctx context.Context, batchID, employeeID uuid.UUID) (int64, bool, error)

	// RecipientCount returns the number of pending recipients in the batch.
	RecipientCount(ctx context.Context, batchID uuid.UUID) (int, error)

	// AppendRun appends a payroll run history record, assigning and
	// returning its monotonically increasing run ID.
	AppendRun(ctx context.Context, run *models.PayrollRun) (int64, error)

	// ListRuns returns the run history for an organization in run ID order.
	ListRuns(ctx context.Context, orgID uuid.UUID) ([]*models.PayrollRun, error)
}
