package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/orgledger/internal/models"
	"github.com/wolfeidau/orgledger/internal/store"
)

// clonePool copies a pool record including its merkle root bytes.
func clonePool(pool models.Pool) models.Pool {
	clone := pool
	if pool.MerkleRoot != nil {
		clone.MerkleRoot = append([]byte(nil), pool.MerkleRoot...)
	}
	return clone
}

// CreatePool stores a new pool.
func (l *Ledger) CreatePool(ctx context.Context, pool *models.Pool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pools.put(pool.PoolID, clonePool(*pool))

	return nil
}

// GetPool retrieves a pool by ID.
func (l *Ledger) GetPool(ctx context.Context, poolID uuid.UUID) (*models.Pool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pool, ok := l.pools.get(poolID)
	if !ok {
		return nil, store.ErrPoolNotFound
	}

	clone := clonePool(pool)
	return &clone, nil
}

// AddCommitment records a commitment and folds amount into the pool balance.
func (l *Ledger) AddCommitment(ctx context.Context, poolID uuid.UUID, commitment []byte, amount int64) (*models.Pool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pool, ok := l.pools.get(poolID)
	if !ok {
		return nil, store.ErrPoolNotFound
	}

	member := poolMember{PoolID: poolID, Value: string(commitment)}
	if l.commits.has(member) {
		return nil, store.ErrCommitmentExists
	}

	l.commits.put(member, struct{}{})

	pool.Balance += amount
	pool.TotalDeposits += amount
	pool.UpdatedAt = time.Now()
	l.pools.put(poolID, pool)

	clone := clonePool(pool)
	return &clone, nil
}

// SetMerkleRoot overwrites the stored merkle root, returning the old one.
func (l *Ledger) SetMerkleRoot(ctx context.Context, poolID uuid.UUID, root []byte) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pool, ok := l.pools.get(poolID)
	if !ok {
		return nil, store.ErrPoolNotFound
	}

	old := pool.MerkleRoot

	pool.MerkleRoot = append([]byte(nil), root...)
	pool.UpdatedAt = time.Now()
	l.pools.put(poolID, pool)

	return old, nil
}

// SpendNullifier marks a nullifier spent and deducts amount from the pool.
func (l *Ledger) SpendNullifier(ctx context.Context, poolID uuid.UUID, nullifier []byte, amount int64) (*models.Pool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pool, ok := l.pools.get(poolID)
	if !ok {
		return nil, store.ErrPoolNotFound
	}

	member := poolMember{PoolID: poolID, Value: string(nullifier)}
	if l.nullifiers.has(member) {
		return nil, store.ErrNullifierSpent
	}

	if pool.Balance < amount {
		return nil, store.ErrInsufficientFunds
	}

	l.nullifiers.put(member, struct{}{})

	pool.Balance -= amount
	pool.TotalWithdrawals += amount
	pool.UpdatedAt = time.Now()
	l.pools.put(poolID, pool)

	clone := clonePool(pool)
	return &clone, nil
}

// UnspendNullifier reverses a SpendNullifier transition. Compensation hook
// only - see the interface contract.
func (l *Ledger) UnspendNullifier(ctx context.Context, poolID uuid.UUID, nullifier []byte, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	pool, ok := l.pools.get(poolID)
	if !ok {
		return store.ErrPoolNotFound
	}

	member := poolMember{PoolID: poolID, Value: string(nullifier)}
	if !l.nullifiers.remove(member) {
		return store.ErrPoolNotFound
	}

	pool.Balance += amount
	pool.TotalWithdrawals -= amount
	pool.UpdatedAt = time.Now()
	l.pools.put(poolID, pool)

	return nil
}

// HasCommitment reports whether the commitment has been recorded.
func (l *Ledger) HasCommitment(ctx context.Context, poolID uuid.UUID, commitment []byte) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.pools.has(poolID) {
		return false, store.ErrPoolNotFound
	}

	return l.commits.has(poolMember{PoolID: poolID, Value: string(commitment)}), nil
}

// NullifierSpent reports whether the nullifier has been spent.
func (l *Ledger) NullifierSpent(ctx context.Context, poolID uuid.UUID, nullifier []byte) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.pools.has(poolID) {
		return false, store.ErrPoolNotFound
	}

	return l.nullifiers.has(poolMember{PoolID: poolID, Value: string(nullifier)}), nil
}
