package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgledger/internal/models"
	"github.com/wolfeidau/orgledger/internal/store"
	"github.com/wolfeidau/orgledger/internal/telemetry"
)

// Payroll funds batches, assigns per-employee amounts, and pays them out
// one employee at a time, recording run history as it goes.
type Payroll struct {
	payroll store.PayrollStore
	wallets store.WalletStore
	sink    EventSink
}

// NewPayroll creates a payroll distributor over the given stores.
func NewPayroll(payroll store.PayrollStore, wallets store.WalletStore, sink EventSink) *Payroll {
	return &Payroll{
		payroll: payroll,
		wallets: wallets,
		sink:    sink,
	}
}

// CreateBatch escrows funding for a new payroll batch with zero recipients.
func (p *Payroll) CreateBatch(ctx context.Context, orgID uuid.UUID, funding int64) (*models.Batch, error) {
	if funding <= 0 {
		return nil, fmt.Errorf("%w: funding must be positive", ErrInvalidAmount)
	}

	now := time.Now()
	batch := &models.Batch{
		BatchID:    uuid.Must(uuid.NewV7()),
		OrgID:      orgID,
		Balance:    funding,
		Recipients: make(map[uuid.UUID]int64),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := p.payroll.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}

	telemetry.GetMetrics().BatchesCreated.Add(ctx, 1)

	publishEvent(ctx, p.sink, BatchCreated{
		BatchID: batch.BatchID,
		OrgID:   orgID,
		Funding: funding,
		At:      now,
	})

	return batch, nil
}

// AddToBatch adds a pending recipient. If the employee is already pending
// the call silently does nothing - the existing amount is NOT updated.
// That no-op is long-standing observed behaviour; callers that want to
// change an amount must consume the entry and re-add it.
func (p *Payroll) AddToBatch(ctx context.Context, batchID, employee uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: recipient amount must be positive", ErrInvalidAmount)
	}

	added, err := p.payroll.AddRecipient(ctx, batchID, employee, amount)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrBatchNotFound):
			return fmt.Errorf("%w: batch %s", ErrNotFound, batchID)
		case errors.Is(err, store.ErrBatchFull):
			return fmt.Errorf("%w: batch recipient limit %d", ErrCapacityExceeded, models.MaxBatchSize)
		case errors.Is(err, store.ErrInsufficientFunds):
			return fmt.Errorf("%w: pending amounts would exceed escrow", ErrInsufficientFunds)
		}
		return fmt.Errorf("failed to add recipient: %w", err)
	}

	if !added {
		log.Debug().
			Str("batch_id", batchID.String()).
			Str("employee_id", employee.String()).
			Msg("duplicate recipient ignored")
	}

	return nil
}

// ExecuteSingle pays one pending recipient: the entry is consumed, the
// wallet credited, and a run history record appended. The step is atomic -
// a failure after the consume compensates by restoring the entry, so either
// the wallet is credited and history recorded, or nothing changes.
func (p *Payroll) ExecuteSingle(ctx context.Context, executor, batchID, walletID uuid.UUID) (*models.PayrollRun, error) {
	wallet, err := p.wallets.GetWallet(ctx, walletID)
	if err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			return nil, fmt.Errorf("%w: wallet %s", ErrNotFound, walletID)
		}
		return nil, err
	}
	employee := wallet.OwnerID

	batch, err := p.payroll.GetBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, store.ErrBatchNotFound) {
			return nil, fmt.Errorf("%w: batch %s", ErrNotFound, batchID)
		}
		return nil, err
	}

	amount, err := p.payroll.ConsumeRecipient(ctx, batchID, employee)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrRecipientNotFound):
			return nil, fmt.Errorf("%w: employee %s not pending in batch", ErrNotFound, employee)
		case errors.Is(err, store.ErrInsufficientFunds):
			return nil, fmt.Errorf("%w: batch balance below pending amount", ErrInsufficientFunds)
		}
		return nil, fmt.Errorf("failed to consume recipient: %w", err)
	}

	if _, err := p.wallets.Credit(ctx, walletID, amount); err != nil {
		p.restoreRecipient(ctx, batchID, employee, amount)
		return nil, fmt.Errorf("failed to credit wallet: %w", err)
	}

	run := &models.PayrollRun{
		OrgID:         batch.OrgID,
		ExecutorID:    executor,
		TotalAmount:   amount,
		EmployeeCount: 1,
		ExecutedAt:    time.Now(),
		Status:        models.RunStatusCompleted,
	}

	runID, err := p.payroll.AppendRun(ctx, run)
	if err != nil {
		// Unwind the credit and the consume so the failed step leaves no
		// trace.
		if _, derr := p.wallets.Debit(ctx, walletID, amount); derr != nil {
			log.Error().Err(derr).
				Str("wallet_id", walletID.String()).
				Msg("failed to revert credit after run append failure")
		}
		p.restoreRecipient(ctx, batchID, employee, amount)
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	run.RunID = runID

	telemetry.GetMetrics().PayrollRuns.Add(ctx, 1)

	now := time.Now()
	publishEvent(ctx, p.sink, PayrollDistributed{
		BatchID:    batchID,
		EmployeeID: employee,
		Amount:     amount,
		At:         now,
	})
	publishEvent(ctx, p.sink, PayrollRunCompleted{
		RunID:      runID,
		OrgID:      batch.OrgID,
		ExecutorID: executor,
		Amount:     amount,
		At:         now,
	})

	return run, nil
}

// BatchExecute consumes one pending recipient and returns the payment
// amount to the caller instead of crediting a wallet or writing history.
// It exists so a coordinated execution window can settle many recipients
// without contending on shared run-history state; the caller is responsible
// for crediting the corresponding wallet.
func (p *Payroll) BatchExecute(ctx context.Context, batchID, walletID uuid.UUID) (int64, error) {
	wallet, err := p.wallets.GetWallet(ctx, walletID)
	if err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			return 0, fmt.Errorf("%w: wallet %s", ErrNotFound, walletID)
		}
		return 0, err
	}
	employee := wallet.OwnerID

	amount, err := p.payroll.ConsumeRecipient(ctx, batchID, employee)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrBatchNotFound):
			return 0, fmt.Errorf("%w: batch %s", ErrNotFound, batchID)
		case errors.Is(err, store.ErrRecipientNotFound):
			return 0, fmt.Errorf("%w: employee %s not pending in batch", ErrNotFound, employee)
		case errors.Is(err, store.ErrInsufficientFunds):
			return 0, fmt.Errorf("%w: batch balance below pending amount", ErrInsufficientFunds)
		}
		return 0, fmt.Errorf("failed to consume recipient: %w", err)
	}

	publishEvent(ctx, p.sink, PayrollDistributed{
		BatchID:    batchID,
		EmployeeID: employee,
		Amount:     amount,
		At:         time.Now(),
	})

	return amount, nil
}

// CloseBatch destroys the batch and returns the unclaimed escrowed balance
// to the caller. Still-pending recipients are discarded WITHOUT payment -
// close only once every intended recipient has been executed.
func (p *Payroll) CloseBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	pending, err := p.payroll.RecipientCount(ctx, batchID)
	if err != nil {
		if errors.Is(err, store.ErrBatchNotFound) {
			return 0, fmt.Errorf("%w: batch %s", ErrNotFound, batchID)
		}
		return 0, err
	}

	residual, err := p.payroll.CloseBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, store.ErrBatchNotFound) {
			return 0, fmt.Errorf("%w: batch %s", ErrNotFound, batchID)
		}
		return 0, fmt.Errorf("failed to close batch: %w", err)
	}

	if pending > 0 {
		log.Warn().
			Str("batch_id", batchID.String()).
			Int("forfeited", pending).
			Msg("closed batch with pending recipients, amounts forfeited")
	}

	telemetry.GetMetrics().BatchesClosed.Add(ctx, 1)

	publishEvent(ctx, p.sink, BatchClosed{
		BatchID:   batchID,
		Residual:  residual,
		Forfeited: pending,
		At:        time.Now(),
	})

	return residual, nil
}

// BatchBalance returns the remaining escrowed balance of a batch.
func (p *Payroll) BatchBalance(ctx context.Context, batchID uuid.UUID) (int64, error) {
	batch, err := p.payroll.GetBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, store.ErrBatchNotFound) {
			return 0, fmt.Errorf("%w: batch %s", ErrNotFound, batchID)
		}
		return 0, err
	}
	return batch.Balance, nil
}

// PendingCount returns the number of pending recipients in a batch.
func (p *Payroll) PendingCount(ctx context.Context, batchID uuid.UUID) (int, error) {
	count, err := p.payroll.RecipientCount(ctx, batchID)
	if err != nil {
		if errors.Is(err, store.ErrBatchNotFound) {
			return 0, fmt.Errorf("%w: batch %s", ErrNotFound, batchID)
		}
		return 0, err
	}
	return count, nil
}

// PendingAmount reports the pending amount for an employee, and whether the
// employee is pending at all.
func (p *Payroll) PendingAmount(ctx context.Context, batchID, employee uuid.UUID) (int64, bool, error) {
	amount, pending, err := p.payroll.RecipientAmount(ctx, batchID, employee)
	if err != nil {
		if errors.Is(err, store.ErrBatchNotFound) {
			return 0, false, fmt.Errorf("%w: batch %s", ErrNotFound, batchID)
		}
		return 0, false, err
	}
	return amount, pending, nil
}

// Runs returns the payroll run history for an organization.
func (p *Payroll) Runs(ctx context.Context, orgID uuid.UUID) ([]*models.PayrollRun, error) {
	return p.payroll.ListRuns(ctx, orgID)
}

func (p *Payroll) restoreRecipient(ctx context.Context, batchID, employee uuid.UUID, amount int64) {
	if err := p.payroll.RestoreRecipient(ctx, batchID, employee, amount); err != nil {
		log.Error().Err(err).
			Str("batch_id", batchID.String()).
			Str("employee_id", employee.String()).
			Int64("amount", amount).
			Msg("failed to restore recipient after payout failure")
	}
}
