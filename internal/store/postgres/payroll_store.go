package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgledger/internal/models"
	"github.com/wolfeidau/orgledger/internal/store"
)

// CreateBatch stores a new batch with its escrowed funding.
func (l *Ledger) CreateBatch(ctx context.Context, batch *models.Batch) error {
	query := `
		INSERT INTO batches (batch_id, org_id, balance, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := l.pool.Exec(ctx, query,
		batch.BatchID,
		batch.OrgID,
		batch.Balance,
		batch.TotalAmount,
		batch.CreatedAt,
		batch.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create batch: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("batch_id", batch.BatchID.String()).
		Int64("balance", batch.Balance).
		Msg("Created batch")

	return nil
}

// GetBatch retrieves a batch and its pending recipients.
func (l *Ledger) GetBatch(ctx context.Context, batchID uuid.UUID) (*models.Batch, error) {
	query := `
		SELECT batch_id, org_id, balance, total_amount, created_at, updated_at
		FROM batches
		WHERE batch_id = $1
	`

	var batch models.Batch
	err := l.pool.QueryRow(ctx, query, batchID).Scan(
		&batch.BatchID,
		&batch.OrgID,
		&batch.Balance,
		&batch.TotalAmount,
		&batch.CreatedAt,
		&batch.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrBatchNotFound
		}
		return nil, fmt.Errorf("failed to get batch: %w", mapPostgresError(err))
	}

	rows, err := l.pool.Query(ctx,
		`SELECT employee_id, amount FROM batch_recipients WHERE batch_id = $1`,
		batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list batch recipients: %w", mapPostgresError(err))
	}
	defer rows.Close()

	batch.Recipients = make(map[uuid.UUID]int64)
	for rows.Next() {
		var employeeID uuid.UUID
		var amount int64
		if err := rows.Scan(&employeeID, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan batch recipient: %w", err)
		}
		batch.Recipients[employeeID] = amount
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batch recipients: %w", err)
	}

	return &batch, nil
}

// AddRecipient adds a pending recipient to the batch. Duplicates are a
// no-op, preserving the original amount.
func (l *Ledger) AddRecipient(ctx context.Context, batchID, employeeID uuid.UUID, amount int64) (bool, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	// Lock the batch so the cap and escrow checks hold through the insert.
	var balance, total int64
	err = tx.QueryRow(ctx,
		`SELECT balance, total_amount FROM batches WHERE batch_id = $1 FOR UPDATE`,
		batchID,
	).Scan(&balance, &total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, store.ErrBatchNotFound
		}
		return false, fmt.Errorf("failed to lock batch: %w", mapPostgresError(err))
	}

	var pending bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM batch_recipients WHERE batch_id = $1 AND employee_id = $2)`,
		batchID, employeeID,
	).Scan(&pending)
	if err != nil {
		return false, fmt.Errorf("failed to check recipient: %w", mapPostgresError(err))
	}
	if pending {
		return false, nil
	}

	var count int
	err = tx.QueryRow(ctx,
		`SELECT count(*) FROM batch_recipients WHERE batch_id = $1`,
		batchID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count recipients: %w", mapPostgresError(err))
	}
	if count >= models.MaxBatchSize {
		return false, store.ErrBatchFull
	}

	if total+amount > balance {
		return false, store.ErrInsufficientFunds
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO batch_recipients (batch_id, employee_id, amount) VALUES ($1, $2, $3)`,
		batchID, employeeID, amount,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert recipient: %w", mapPostgresError(err))
	}

	_, err = tx.Exec(ctx,
		`UPDATE batches SET total_amount = total_amount + $2, updated_at = now() WHERE batch_id = $1`,
		batchID, amount,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update batch total: %w", mapPostgresError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}

	return true, nil
}

// ConsumeRecipient removes the pending entry and deducts its amount from
// the batch balance in one transaction.
func (l *Ledger) ConsumeRecipient(ctx context.Context, batchID, employeeID uuid.UUID) (int64, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	var amount int64
	err = tx.QueryRow(ctx,
		`DELETE FROM batch_recipients WHERE batch_id = $1 AND employee_id = $2 RETURNING amount`,
		batchID, employeeID,
	).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, gerr := l.GetBatch(ctx, batchID); gerr != nil {
				return 0, gerr
			}
			return 0, store.ErrRecipientNotFound
		}
		return 0, fmt.Errorf("failed to consume recipient: %w", mapPostgresError(err))
	}

	tag, err := tx.Exec(ctx, `
		UPDATE batches
		SET balance = balance - $2, total_amount = total_amount - $2, updated_at = now()
		WHERE batch_id = $1 AND balance >= $2
	`, batchID, amount)
	if err != nil {
		return 0, fmt.Errorf("failed to deduct payout from batch: %w", mapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		// Rollback discards the recipient delete as well.
		return 0, store.ErrInsufficientFunds
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	return amount, nil
}

// RestoreRecipient reverses a ConsumeRecipient transition. Compensation
// path only, never part of the normal flow.
func (l *Ledger) RestoreRecipient(ctx context.Context, batchID, employeeID uuid.UUID, amount int64) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	_, err = tx.Exec(ctx,
		`INSERT INTO batch_recipients (batch_id, employee_id, amount) VALUES ($1, $2, $3)`,
		batchID, employeeID, amount,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrBatchNotFound
		}
		return fmt.Errorf("failed to restore recipient: %w", mapPostgresError(err))
	}

	_, err = tx.Exec(ctx, `
		UPDATE batches
		SET balance = balance + $2, total_amount = total_amount + $2, updated_at = now()
		WHERE batch_id = $1
	`, batchID, amount)
	if err != nil {
		return fmt.Errorf("failed to restore batch balance: %w", mapPostgresError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

// CloseBatch destroys the batch and returns its residual escrow. Pending
// recipients cascade away unpaid.
func (l *Ledger) CloseBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	var residual int64
	err := l.pool.QueryRow(ctx,
		`DELETE FROM batches WHERE batch_id = $1 RETURNING balance`,
		batchID,
	).Scan(&residual)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, store.ErrBatchNotFound
		}
		return 0, fmt.Errorf("failed to close batch: %w", mapPostgresError(err))
	}

	return residual, nil
}

// RecipientAmount reports the pending amount for an employee.
func (l *Ledger) RecipientAmount(ctx context.Context, batchID, employeeID uuid.UUID) (int64, bool, error) {
	var amount int64
	err := l.pool.QueryRow(ctx,
		`SELECT amount FROM batch_recipients WHERE batch_id = $1 AND employee_id = $2`,
		batchID, employeeID,
	).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, gerr := l.GetBatch(ctx, batchID); gerr != nil {
				return 0, false, gerr
			}
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get recipient amount: %w", mapPostgresError(err))
	}
	return amount, true, nil
}

// RecipientCount returns the number of pending recipients in the batch.
func (l *Ledger) RecipientCount(ctx context.Context, batchID uuid.UUID) (int, error) {
	exists, err := l.batchExists(ctx, batchID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, store.ErrBatchNotFound
	}

	var count int
	err = l.pool.QueryRow(ctx,
		`SELECT count(*) FROM batch_recipients WHERE batch_id = $1`,
		batchID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recipients: %w", mapPostgresError(err))
	}
	return count, nil
}

func (l *Ledger) batchExists(ctx context.Context, batchID uuid.UUID) (bool, error) {
	var exists bool
	err := l.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM batches WHERE batch_id = $1)`,
		batchID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check batch: %w", mapPostgresError(err))
	}
	return exists, nil
}

// AppendRun appends a payroll run record, assigning its run ID from the
// run sequence.
func (l *Ledger) AppendRun(ctx context.Context, run *models.PayrollRun) (int64, error) {
	query := `
		INSERT INTO payroll_runs (org_id, executor_id, total_amount, employee_count, executed_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING run_id
	`

	var runID int64
	err := l.pool.QueryRow(ctx, query,
		run.OrgID,
		run.ExecutorID,
		run.TotalAmount,
		run.EmployeeCount,
		run.ExecutedAt,
		run.Status,
	).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("failed to append payroll run: %w", mapPostgresError(err))
	}

	run.RunID = runID

	return runID, nil
}

// ListRuns returns the payroll run history for an organization.
func (l *Ledger) ListRuns(ctx context.Context, orgID uuid.UUID) ([]*models.PayrollRun, error) {
	query := `
		SELECT run_id, org_id, executor_id, total_amount, employee_count, executed_at, status
		FROM payroll_runs
		WHERE org_id = $1
		ORDER BY run_id
	`

	rows, err := l.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll runs: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var runs []*models.PayrollRun
	for rows.Next() {
		var run models.PayrollRun
		err := rows.Scan(
			&run.RunID,
			&run.OrgID,
			&run.ExecutorID,
			&run.TotalAmount,
			&run.EmployeeCount,
			&run.ExecutedAt,
			&run.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll run: %w", err)
		}
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payroll runs: %w", err)
	}

	return runs, nil
}
