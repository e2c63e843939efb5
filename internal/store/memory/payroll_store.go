package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/orgledger/internal/models"
	"github.com/wolfeidau/orgledger/internal/store"
)

// cloneBatch copies a batch record including its recipients map.
func cloneBatch(batch models.Batch) models.Batch {
	clone := batch
	if batch.Recipients != nil {
		clone.Recipients = make(map[uuid.UUID]int64, len(batch.Recipients))
		for k, v := range batch.Recipients {
			clone.Recipients[k] = v
		}
	}
	return clone
}

// CreateBatch stores a new batch with its escrowed funding.
func (l *Ledger) CreateBatch(ctx context.Context, batch *models.Batch) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.batches.put(batch.BatchID, cloneBatch(*batch))

	return nil
}

// GetBatch retrieves a batch by ID.
func (l *Ledger) GetBatch(ctx context.Context, batchID uuid.UUID) (*models.Batch, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	batch, ok := l.batches.get(batchID)
	if !ok {
		return nil, store.ErrBatchNotFound
	}

	clone := cloneBatch(batch)
	return &clone, nil
}

// AddRecipient adds a pending recipient. A duplicate employee is a no-op.
func (l *Ledger) AddRecipient(ctx context.Context, batchID, employeeID uuid.UUID, amount int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch, ok := l.batches.get(batchID)
	if !ok {
		return false, store.ErrBatchNotFound
	}

	if _, pending := batch.Recipients[employeeID]; pending {
		// Existing amount is deliberately left alone.
		return false, nil
	}

	if len(batch.Recipients) >= models.MaxBatchSize {
		return false, store.ErrBatchFull
	}

	if batch.TotalAmount+amount > batch.Balance {
		return false, store.ErrInsufficientFunds
	}

	batch = cloneBatch(batch)
	if batch.Recipients == nil {
		batch.Recipients = make(map[uuid.UUID]int64)
	}
	batch.Recipients[employeeID] = amount
	batch.TotalAmount += amount
	batch.UpdatedAt = time.Now()
	l.batches.put(batchID, batch)

	return true, nil
}

// ConsumeRecipient removes the pending entry and deducts its amount.
func (l *Ledger) ConsumeRecipient(ctx context.Context, batchID, employeeID uuid.UUID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch, ok := l.batches.get(batchID)
	if !ok {
		return 0, store.ErrBatchNotFound
	}

	amount, pending := batch.Recipients[employeeID]
	if !pending {
		return 0, store.ErrRecipientNotFound
	}

	if batch.Balance < amount {
		return 0, store.ErrInsufficientFunds
	}

	batch = cloneBatch(batch)
	delete(batch.Recipients, employeeID)
	batch.Balance -= amount
	batch.TotalAmount -= amount
	batch.UpdatedAt = time.Now()
	l.batches.put(batchID, batch)

	return amount, nil
}

// RestoreRecipient re-adds a consumed recipient entry. Compensation hook
// only - see the interface contract.
func (l *Ledger) RestoreRecipient(ctx context.Context, batchID, employeeID uuid.UUID, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch, ok := l.batches.get(batchID)
	if !ok {
		return store.ErrBatchNotFound
	}

	batch = cloneBatch(batch)
	if batch.Recipients == nil {
		batch.Recipients = make(map[uuid.UUID]int64)
	}
	batch.Recipients[employeeID] = amount
	batch.Balance += amount
	batch.TotalAmount += amount
	batch.UpdatedAt = time.Now()
	l.batches.put(batchID, batch)

	return nil
}

// CloseBatch destroys the batch and returns the residual escrowed balance.
// Pending recipients are discarded without payment.
func (l *Ledger) CloseBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch, ok := l.batches.get(batchID)
	if !ok {
		return 0, store.ErrBatchNotFound
	}

	l.batches.remove(batchID)

	return batch.Balance, nil
}

// RecipientAmount reports the pending amount for an employee.
func (l *Ledger) RecipientAmount(ctx context.Context, batchID, employeeID uuid.UUID) (int64, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	batch, ok := l.batches.get(batchID)
	if !ok {
		return 0, false, store.ErrBatchNotFound
	}

	amount, pending := batch.Recipients[employeeID]
	return amount, pending, nil
}

// RecipientCount returns the number of pending recipients in the batch.
func (l *Ledger) RecipientCount(ctx context.Context, batchID uuid.UUID) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	batch, ok := l.batches.get(batchID)
	if !ok {
		return 0, store.ErrBatchNotFound
	}

	return len(batch.Recipients), nil
}

// AppendRun appends a payroll run record, assigning the next run ID.
func (l *Ledger) AppendRun(ctx context.Context, run *models.PayrollRun) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	run.RunID = l.nextRunID
	l.nextRunID++

	l.runs = append(l.runs, *run)

	return run.RunID, nil
}

// ListRuns returns the run history for an organization in run ID order.
func (l *Ledger) ListRuns(ctx context.Context, orgID uuid.UUID) ([]*models.PayrollRun, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []*models.PayrollRun
	for i := range l.runs {
		if l.runs[i].OrgID == orgID {
			clone := l.runs[i]
			result = append(result, &clone)
		}
	}

	return result, nil
}
