package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/orgledger/internal/models"
)

// Sentinel errors for privacy pool store operations
var (
	ErrPoolNotFound     = errors.New("pool not found")
	ErrCommitmentExists = errors.New("commitment already recorded")
	ErrNullifierSpent   = errors.New("nullifier already spent")
)

// PoolStore defines the interface for privacy pool storage. Commitment and
// nullifier sets grow monotonically; each may contain a given value at most
// once, which is what prevents deposit replay and withdrawal double-spend.
type PoolStore interface {
	// CreatePool stores a new pool.
	CreatePool(ctx context.Context, pool *models.Pool) error

	// GetPool retrieves a pool by ID.
	// Returns ErrPoolNotFound if it doesn't exist.
	GetPool(ctx context.Context, poolID uuid.UUID) (*models.Pool, error)

	// AddCommitment records a commitment and folds amount into the pool
	// balance and TotalDeposits in one transition, returning the updated pool.
	// Returns ErrCommitmentExists if the commitment was already recorded.
	AddCommitment(ctx context.Context, poolID uuid.UUID, commitment []byte, amount int64) (*models.Pool, error)

	// SetMerkleRoot overwrites the stored merkle root unconditionally,
	// returning the previous root.
	SetMerkleRoot(ctx context.Context, poolID uuid.UUID, root []byte) ([]byte, error)

	// SpendNullifier marks a nullifier spent and deducts amount from the
	// pool balance, incrementing TotalWithdrawals, in one transition.
	// Returns ErrNullifierSpent if the nullifier was already spent,
	// ErrInsufficientFunds if the pool balance < amount. Either way the
	// pool is left unchanged on failure.
	SpendNullifier(ctx context.Context, poolID uuid.UUID, nullifier []byte, amount int64) (*models.Pool, error)

	// UnspendNullifier reverses a SpendNullifier transition. It exists only
	// as the compensation step when the downstream recipient credit of a
	// withdrawal fails; it is never part of the normal flow.
	UnspendNullifier(ctx context.Context, poolID uuid.UUID, nullifier []byte, amount int64) error

	// HasCommitment reports whether the commitment has been recorded.
	HasCommitment(ctx context.Context, poolID uuid.UUID, commitment []byte) (bool, error)

	// NullifierSpent reports whether the nullifier has been spent.
	NullifierSpent(ctx context.Context, poolID uuid.UUID, nullifier []byte) (bool, error)
}
