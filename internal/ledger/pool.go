package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgledger/internal/models"
	"github.com/wolfeidau/orgledger/internal/store"
	"github.com/wolfeidau/orgledger/internal/telemetry"
)

// Verifier is the external proof oracle consulted on pool withdrawals. The
// ledger treats it as an opaque pass/fail check - implementations can be
// swapped without affecting any pool invariant.
type Verifier interface {
	Verify(ctx context.Context, proof, nullifier, root []byte) (bool, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, proof, nullifier, root []byte) (bool, error)

func (f VerifierFunc) Verify(ctx context.Context, proof, nullifier, root []byte) (bool, error) {
	return f(ctx, proof, nullifier, root)
}

// Pools manages fixed-denomination anonymous deposit/withdraw pools.
// Deposits record a commitment, withdrawals spend a nullifier; both sets are
// insert-once, which is the whole replay/double-spend defence.
type Pools struct {
	pools    store.PoolStore
	wallets  store.WalletStore
	verifier Verifier
	sink     EventSink
}

// NewPools creates a pool service. The verifier is the external proof
// oracle; the wallet store receives withdrawal payouts.
func NewPools(pools store.PoolStore, wallets store.WalletStore, verifier Verifier, sink EventSink) *Pools {
	return &Pools{
		pools:    pools,
		wallets:  wallets,
		verifier: verifier,
		sink:     sink,
	}
}

// InitPool creates a pool with the given fixed denomination, empty
// commitment/nullifier sets, an empty root, and zero totals.
func (p *Pools) InitPool(ctx context.Context, denomination int64) (*models.Pool, error) {
	if denomination <= 0 {
		return nil, fmt.Errorf("%w: denomination must be positive", ErrInvalidAmount)
	}

	now := time.Now()
	pool := &models.Pool{
		PoolID:       uuid.Must(uuid.NewV7()),
		Denomination: denomination,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := p.pools.CreatePool(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	publishEvent(ctx, p.sink, PoolInitialized{
		PoolID:       pool.PoolID,
		Denomination: denomination,
		At:           now,
	})

	return pool, nil
}

// Deposit folds exactly one denomination into the pool under a fresh
// commitment. Amounts other than the denomination are rejected outright.
func (p *Pools) Deposit(ctx context.Context, poolID uuid.UUID, amount int64, commitment []byte) (*models.Pool, error) {
	pool, err := p.getPool(ctx, poolID)
	if err != nil {
		return nil, err
	}

	if amount != pool.Denomination {
		return nil, fmt.Errorf("%w: deposit %d does not match denomination %d", ErrInvalidAmount, amount, pool.Denomination)
	}

	pool, err = p.pools.AddCommitment(ctx, poolID, commitment, amount)
	if err != nil {
		if errors.Is(err, store.ErrCommitmentExists) {
			return nil, fmt.Errorf("%w: commitment %s", ErrAlreadyExists, base58.Encode(commitment))
		}
		return nil, fmt.Errorf("failed to record deposit: %w", err)
	}

	telemetry.GetMetrics().PoolDeposits.Add(ctx, 1)

	publishEvent(ctx, p.sink, AnonymousDeposit{
		PoolID:     poolID,
		Commitment: commitment,
		Amount:     amount,
		At:         time.Now(),
	})

	return pool, nil
}

// UpdateMerkleRoot overwrites the stored root with one computed by the
// external indexer. The pool trusts whatever root it is given; the
// administrative trust boundary sits in the auth layer in front of the
// ledger.
func (p *Pools) UpdateMerkleRoot(ctx context.Context, poolID uuid.UUID, newRoot []byte) error {
	oldRoot, err := p.pools.SetMerkleRoot(ctx, poolID, newRoot)
	if err != nil {
		if errors.Is(err, store.ErrPoolNotFound) {
			return fmt.Errorf("%w: pool %s", ErrNotFound, poolID)
		}
		return fmt.Errorf("failed to update merkle root: %w", err)
	}

	telemetry.GetMetrics().MerkleRootUpdates.Add(ctx, 1)

	publishEvent(ctx, p.sink, MerkleRootUpdated{
		PoolID:  poolID,
		OldRoot: oldRoot,
		NewRoot: newRoot,
		At:      time.Now(),
	})

	return nil
}

// Withdraw spends a nullifier and pays one denomination to the recipient
// wallet. Checks run in a fixed order: nullifier replay, exact root
// equality, proof oracle, pool funds. The claimed root must match the
// pool's current root exactly - a withdrawal racing a root update fails and
// must be resubmitted against the new root.
func (p *Pools) Withdraw(ctx context.Context, poolID uuid.UUID, nullifier []byte, recipientWalletID uuid.UUID, proof, claimedRoot []byte) error {
	pool, err := p.getPool(ctx, poolID)
	if err != nil {
		return err
	}

	spent, err := p.pools.NullifierSpent(ctx, poolID, nullifier)
	if err != nil {
		return fmt.Errorf("failed to check nullifier: %w", err)
	}
	if spent {
		return fmt.Errorf("%w: nullifier %s", ErrNullifierReplayed, base58.Encode(nullifier))
	}

	if !bytes.Equal(claimedRoot, pool.MerkleRoot) {
		return fmt.Errorf("%w: claimed root %s, current root %s", ErrRootMismatch,
			base58.Encode(claimedRoot), base58.Encode(pool.MerkleRoot))
	}

	ok, err := p.verifier.Verify(ctx, proof, nullifier, claimedRoot)
	if err != nil {
		return fmt.Errorf("proof verification failed: %w", err)
	}
	if !ok {
		return ErrProofInvalid
	}

	if pool.Balance < pool.Denomination {
		return fmt.Errorf("%w: pool balance below denomination", ErrInsufficientFunds)
	}

	// Resolve the recipient before spending so the credit below can only
	// fail on infrastructure errors.
	if _, err := p.wallets.GetWallet(ctx, recipientWalletID); err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			return fmt.Errorf("%w: recipient wallet %s", ErrNotFound, recipientWalletID)
		}
		return err
	}

	if _, err := p.pools.SpendNullifier(ctx, poolID, nullifier, pool.Denomination); err != nil {
		switch {
		case errors.Is(err, store.ErrNullifierSpent):
			return fmt.Errorf("%w: nullifier %s", ErrNullifierReplayed, base58.Encode(nullifier))
		case errors.Is(err, store.ErrInsufficientFunds):
			return fmt.Errorf("%w: pool balance below denomination", ErrInsufficientFunds)
		}
		return fmt.Errorf("failed to spend nullifier: %w", err)
	}

	if _, err := p.wallets.Credit(ctx, recipientWalletID, pool.Denomination); err != nil {
		// Compensate so the aborted withdrawal leaves no trace.
		if uerr := p.pools.UnspendNullifier(ctx, poolID, nullifier, pool.Denomination); uerr != nil {
			log.Error().Err(uerr).
				Str("pool_id", poolID.String()).
				Str("nullifier", base58.Encode(nullifier)).
				Msg("failed to revert nullifier after credit failure")
		}
		return fmt.Errorf("failed to credit recipient: %w", err)
	}

	telemetry.GetMetrics().PoolWithdrawals.Add(ctx, 1)

	publishEvent(ctx, p.sink, AnonymousWithdrawal{
		PoolID:            poolID,
		Nullifier:         nullifier,
		RecipientWalletID: recipientWalletID,
		Amount:            pool.Denomination,
		At:                time.Now(),
	})

	return nil
}

// GetPool returns a pool snapshot (balance, denomination, root, totals).
func (p *Pools) GetPool(ctx context.Context, poolID uuid.UUID) (*models.Pool, error) {
	return p.getPool(ctx, poolID)
}

// HasCommitment reports whether a commitment has been recorded.
func (p *Pools) HasCommitment(ctx context.Context, poolID uuid.UUID, commitment []byte) (bool, error) {
	has, err := p.pools.HasCommitment(ctx, poolID, commitment)
	if err != nil {
		if errors.Is(err, store.ErrPoolNotFound) {
			return false, fmt.Errorf("%w: pool %s", ErrNotFound, poolID)
		}
		return false, err
	}
	return has, nil
}

// NullifierSpent reports whether a nullifier has been spent.
func (p *Pools) NullifierSpent(ctx context.Context, poolID uuid.UUID, nullifier []byte) (bool, error) {
	spent, err := p.pools.NullifierSpent(ctx, poolID, nullifier)
	if err != nil {
		if errors.Is(err, store.ErrPoolNotFound) {
			return false, fmt.Errorf("%w: pool %s", ErrNotFound, poolID)
		}
		return false, err
	}
	return spent, nil
}

func (p *Pools) getPool(ctx context.Context, poolID uuid.UUID) (*models.Pool, error) {
	pool, err := p.pools.GetPool(ctx, poolID)
	if err != nil {
		if errors.Is(err, store.ErrPoolNotFound) {
			return nil, fmt.Errorf("%w: pool %s", ErrNotFound, poolID)
		}
		return nil, err
	}
	return pool, nil
}
