package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgledger/internal/models"
	"github.com/wolfeidau/orgledger/internal/store"
)

// CreatePool stores a new privacy pool.
func (l *Ledger) CreatePool(ctx context.Context, pool *models.Pool) error {
	query := `
		INSERT INTO pools (
			pool_id, denomination, balance, merkle_root, total_deposits, total_withdrawals,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := l.pool.Exec(ctx, query,
		pool.PoolID,
		pool.Denomination,
		pool.Balance,
		pool.MerkleRoot,
		pool.TotalDeposits,
		pool.TotalWithdrawals,
		pool.CreatedAt,
		pool.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("pool_id", pool.PoolID.String()).
		Int64("denomination", pool.Denomination).
		Msg("Created pool")

	return nil
}

// GetPool retrieves a pool by ID.
func (l *Ledger) GetPool(ctx context.Context, poolID uuid.UUID) (*models.Pool, error) {
	query := `
		SELECT pool_id, denomination, balance, merkle_root, total_deposits, total_withdrawals,
			created_at, updated_at
		FROM pools
		WHERE pool_id = $1
	`

	var pool models.Pool
	err := l.pool.QueryRow(ctx, query, poolID).Scan(
		&pool.PoolID,
		&pool.Denomination,
		&pool.Balance,
		&pool.MerkleRoot,
		&pool.TotalDeposits,
		&pool.TotalWithdrawals,
		&pool.CreatedAt,
		&pool.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrPoolNotFound
		}
		return nil, fmt.Errorf("failed to get pool: %w", mapPostgresError(err))
	}

	return &pool, nil
}

// AddCommitment records a commitment and folds its value into the pool in a
// single transaction.
func (l *Ledger) AddCommitment(ctx context.Context, poolID uuid.UUID, commitment []byte, amount int64) (*models.Pool, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	_, err = tx.Exec(ctx,
		`INSERT INTO pool_commitments (pool_id, commitment, created_at) VALUES ($1, $2, now())`,
		poolID, commitment,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrCommitmentExists
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrPoolNotFound
		}
		return nil, fmt.Errorf("failed to record commitment: %w", mapPostgresError(err))
	}

	var pool models.Pool
	err = tx.QueryRow(ctx, `
		UPDATE pools
		SET balance = balance + $2, total_deposits = total_deposits + $2, updated_at = now()
		WHERE pool_id = $1
		RETURNING pool_id, denomination, balance, merkle_root, total_deposits, total_withdrawals,
			created_at, updated_at
	`, poolID, amount).Scan(
		&pool.PoolID,
		&pool.Denomination,
		&pool.Balance,
		&pool.MerkleRoot,
		&pool.TotalDeposits,
		&pool.TotalWithdrawals,
		&pool.CreatedAt,
		&pool.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrPoolNotFound
		}
		return nil, fmt.Errorf("failed to fold deposit into pool: %w", mapPostgresError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	log.Debug().
		Str("pool_id", poolID.String()).
		Str("commitment", base58.Encode(commitment)).
		Msg("Recorded commitment")

	return &pool, nil
}

// SetMerkleRoot overwrites the stored root, returning the previous value.
func (l *Ledger) SetMerkleRoot(ctx context.Context, poolID uuid.UUID, root []byte) ([]byte, error) {
	// RETURNING reports the post-update row, so read the old root inside a
	// transaction with the row locked.
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	var oldRoot []byte
	err = tx.QueryRow(ctx,
		`SELECT merkle_root FROM pools WHERE pool_id = $1 FOR UPDATE`,
		poolID,
	).Scan(&oldRoot)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrPoolNotFound
		}
		return nil, fmt.Errorf("failed to lock pool: %w", mapPostgresError(err))
	}

	_, err = tx.Exec(ctx,
		`UPDATE pools SET merkle_root = $2, updated_at = now() WHERE pool_id = $1`,
		poolID, root,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set merkle root: %w", mapPostgresError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return oldRoot, nil
}

// SpendNullifier marks a nullifier spent and deducts the amount from the
// pool balance, both in one transaction.
func (l *Ledger) SpendNullifier(ctx context.Context, poolID uuid.UUID, nullifier []byte, amount int64) (*models.Pool, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	_, err = tx.Exec(ctx,
		`INSERT INTO pool_nullifiers (pool_id, nullifier, spent_at) VALUES ($1, $2, now())`,
		poolID, nullifier,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrNullifierSpent
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrPoolNotFound
		}
		return nil, fmt.Errorf("failed to record nullifier: %w", mapPostgresError(err))
	}

	var pool models.Pool
	err = tx.QueryRow(ctx, `
		UPDATE pools
		SET balance = balance - $2, total_withdrawals = total_withdrawals + $2, updated_at = now()
		WHERE pool_id = $1 AND balance >= $2
		RETURNING pool_id, denomination, balance, merkle_root, total_deposits, total_withdrawals,
			created_at, updated_at
	`, poolID, amount).Scan(
		&pool.PoolID,
		&pool.Denomination,
		&pool.Balance,
		&pool.MerkleRoot,
		&pool.TotalDeposits,
		&pool.TotalWithdrawals,
		&pool.CreatedAt,
		&pool.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The tx rollback also discards the nullifier insert, leaving
			// the pool untouched.
			return nil, store.ErrInsufficientFunds
		}
		return nil, fmt.Errorf("failed to deduct withdrawal from pool: %w", mapPostgresError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	log.Debug().
		Str("pool_id", poolID.String()).
		Str("nullifier", base58.Encode(nullifier)).
		Msg("Spent nullifier")

	return &pool, nil
}

// UnspendNullifier reverses a SpendNullifier transition. Compensation path
// only, never part of the normal flow.
func (l *Ledger) UnspendNullifier(ctx context.Context, poolID uuid.UUID, nullifier []byte, amount int64) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	tag, err := tx.Exec(ctx,
		`DELETE FROM pool_nullifiers WHERE pool_id = $1 AND nullifier = $2`,
		poolID, nullifier,
	)
	if err != nil {
		return fmt.Errorf("failed to remove nullifier: %w", mapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrPoolNotFound
	}

	_, err = tx.Exec(ctx, `
		UPDATE pools
		SET balance = balance + $2, total_withdrawals = total_withdrawals - $2, updated_at = now()
		WHERE pool_id = $1
	`, poolID, amount)
	if err != nil {
		return fmt.Errorf("failed to restore pool balance: %w", mapPostgresError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

// HasCommitment reports whether the commitment has been recorded.
func (l *Ledger) HasCommitment(ctx context.Context, poolID uuid.UUID, commitment []byte) (bool, error) {
	var exists bool
	err := l.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM pool_commitments WHERE pool_id = $1 AND commitment = $2)`,
		poolID, commitment,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check commitment: %w", mapPostgresError(err))
	}
	return exists, nil
}

// NullifierSpent reports whether the nullifier has been spent.
func (l *Ledger) NullifierSpent(ctx context.Context, poolID uuid.UUID, nullifier []byte) (bool, error) {
	var exists bool
	err := l.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM pool_nullifiers WHERE pool_id = $1 AND nullifier = $2)`,
		poolID, nullifier,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check nullifier: %w", mapPostgresError(err))
	}
	return exists, nil
}
