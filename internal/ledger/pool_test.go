package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/orgledger/internal/store/memory"
)

// allowAll accepts every proof.
var allowAll = VerifierFunc(func(_ context.Context, _, _, _ []byte) (bool, error) {
	return true, nil
})

// denyAll rejects every proof.
var denyAll = VerifierFunc(func(_ context.Context, _, _, _ []byte) (bool, error) {
	return false, nil
})

func TestPoolDeposit(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, verifier Verifier) (*Pools, *Wallets, uuid.UUID, *MemorySink) {
		t.Helper()
		sink := NewMemorySink()
		l := memory.NewLedger()
		pools := NewPools(l, l, verifier, sink)
		wallets := NewWallets(l, sink)

		pool, err := pools.InitPool(ctx, 1_000)
		require.NoError(t, err)
		require.Equal(t, int64(0), pool.Balance)
		require.Empty(t, pool.MerkleRoot)

		return pools, wallets, pool.PoolID, sink
	}

	t.Run("deposit must match denomination exactly", func(t *testing.T) {
		pools, _, poolID, _ := setup(t, allowAll)

		_, err := pools.Deposit(ctx, poolID, 999, []byte("c1"))
		require.ErrorIs(t, err, ErrInvalidAmount)

		pool, err := pools.Deposit(ctx, poolID, 1_000, []byte("c1"))
		require.NoError(t, err)
		require.Equal(t, int64(1_000), pool.Balance)
	})

	t.Run("duplicate commitment is rejected", func(t *testing.T) {
		pools, _, poolID, _ := setup(t, allowAll)

		_, err := pools.Deposit(ctx, poolID, 1_000, []byte("c1"))
		require.NoError(t, err)

		_, err = pools.Deposit(ctx, poolID, 1_000, []byte("c1"))
		require.ErrorIs(t, err, ErrAlreadyExists)

		pool, err := pools.GetPool(ctx, poolID)
		require.NoError(t, err)
		require.Equal(t, int64(1_000), pool.Balance)
	})

	t.Run("unknown pool maps to not found", func(t *testing.T) {
		pools, _, _, _ := setup(t, allowAll)

		_, err := pools.Deposit(ctx, uuid.Must(uuid.NewV7()), 1_000, []byte("c1"))
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("non-positive denomination is rejected at init", func(t *testing.T) {
		l := memory.NewLedger()
		pools := NewPools(l, l, allowAll, nil)

		_, err := pools.InitPool(ctx, 0)
		require.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestPoolWithdraw(t *testing.T) {
	ctx := context.Background()

	// seed prepares a funded pool with a current root, plus a recipient
	// wallet.
	seed := func(t *testing.T, verifier Verifier) (*Pools, *Wallets, uuid.UUID, uuid.UUID) {
		t.Helper()
		l := memory.NewLedger()
		sink := NewMemorySink()
		pools := NewPools(l, l, verifier, sink)
		wallets := NewWallets(l, sink)

		pool, err := pools.InitPool(ctx, 1_000)
		require.NoError(t, err)
		_, err = pools.Deposit(ctx, pool.PoolID, 1_000, []byte("c1"))
		require.NoError(t, err)
		_, err = pools.Deposit(ctx, pool.PoolID, 1_000, []byte("c2"))
		require.NoError(t, err)
		require.NoError(t, pools.UpdateMerkleRoot(ctx, pool.PoolID, []byte("root-1")))

		recipient, err := wallets.CreateWallet(ctx, uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()))
		require.NoError(t, err)

		return pools, wallets, pool.PoolID, recipient.WalletID
	}

	t.Run("valid withdrawal pays one denomination", func(t *testing.T) {
		pools, wallets, poolID, walletID := seed(t, allowAll)

		err := pools.Withdraw(ctx, poolID, []byte("n1"), walletID, []byte("proof"), []byte("root-1"))
		require.NoError(t, err)

		wallet, err := wallets.GetWallet(ctx, walletID)
		require.NoError(t, err)
		require.Equal(t, int64(1_000), wallet.Balance)

		pool, err := pools.GetPool(ctx, poolID)
		require.NoError(t, err)
		require.Equal(t, int64(1_000), pool.Balance)
		require.Equal(t, int64(1_000), pool.TotalWithdrawals)
	})

	t.Run("nullifier replay is rejected", func(t *testing.T) {
		pools, _, poolID, walletID := seed(t, allowAll)

		require.NoError(t, pools.Withdraw(ctx, poolID, []byte("n1"), walletID, []byte("proof"), []byte("root-1")))

		err := pools.Withdraw(ctx, poolID, []byte("n1"), walletID, []byte("proof"), []byte("root-1"))
		require.ErrorIs(t, err, ErrNullifierReplayed)
	})

	t.Run("stale root is rejected before the proof check", func(t *testing.T) {
		verifierCalled := false
		counting := VerifierFunc(func(_ context.Context, _, _, _ []byte) (bool, error) {
			verifierCalled = true
			return true, nil
		})
		pools, _, poolID, walletID := seed(t, counting)
		verifierCalled = false

		err := pools.Withdraw(ctx, poolID, []byte("n1"), walletID, []byte("proof"), []byte("stale-root"))
		require.ErrorIs(t, err, ErrRootMismatch)
		require.False(t, verifierCalled)
	})

	t.Run("invalid proof is rejected without spending", func(t *testing.T) {
		pools, _, poolID, walletID := seed(t, denyAll)

		err := pools.Withdraw(ctx, poolID, []byte("n1"), walletID, []byte("proof"), []byte("root-1"))
		require.ErrorIs(t, err, ErrProofInvalid)

		spent, err := pools.NullifierSpent(ctx, poolID, []byte("n1"))
		require.NoError(t, err)
		require.False(t, spent)
	})

	t.Run("verifier errors propagate", func(t *testing.T) {
		oracleDown := VerifierFunc(func(_ context.Context, _, _, _ []byte) (bool, error) {
			return false, errors.New("oracle unavailable")
		})
		pools, _, poolID, walletID := seed(t, oracleDown)

		err := pools.Withdraw(ctx, poolID, []byte("n1"), walletID, []byte("proof"), []byte("root-1"))
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrProofInvalid)
	})

	t.Run("empty pool rejects withdrawals", func(t *testing.T) {
		pools, wallets, poolID, walletID := seed(t, allowAll)

		require.NoError(t, pools.Withdraw(ctx, poolID, []byte("n1"), walletID, []byte("p"), []byte("root-1")))
		require.NoError(t, pools.Withdraw(ctx, poolID, []byte("n2"), walletID, []byte("p"), []byte("root-1")))

		err := pools.Withdraw(ctx, poolID, []byte("n3"), walletID, []byte("p"), []byte("root-1"))
		require.ErrorIs(t, err, ErrInsufficientFunds)

		// Conservation: everything deposited ended up in the wallet.
		wallet, err := wallets.GetWallet(ctx, walletID)
		require.NoError(t, err)
		require.Equal(t, int64(2_000), wallet.Balance)
	})

	t.Run("unknown recipient wallet is rejected without spending", func(t *testing.T) {
		pools, _, poolID, _ := seed(t, allowAll)

		err := pools.Withdraw(ctx, poolID, []byte("n1"), uuid.Must(uuid.NewV7()), []byte("p"), []byte("root-1"))
		require.ErrorIs(t, err, ErrNotFound)

		spent, err := pools.NullifierSpent(ctx, poolID, []byte("n1"))
		require.NoError(t, err)
		require.False(t, spent)
	})
}

func TestUpdateMerkleRoot(t *testing.T) {
	ctx := context.Background()

	l := memory.NewLedger()
	sink := NewMemorySink()
	pools := NewPools(l, l, allowAll, sink)

	pool, err := pools.InitPool(ctx, 500)
	require.NoError(t, err)

	t.Run("root updates unconditionally and emits old and new", func(t *testing.T) {
		require.NoError(t, pools.UpdateMerkleRoot(ctx, pool.PoolID, []byte("r1")))
		require.NoError(t, pools.UpdateMerkleRoot(ctx, pool.PoolID, []byte("r2")))

		got, err := pools.GetPool(ctx, pool.PoolID)
		require.NoError(t, err)
		require.Equal(t, []byte("r2"), got.MerkleRoot)

		var updates []MerkleRootUpdated
		for _, e := range sink.Events() {
			if u, ok := e.(MerkleRootUpdated); ok {
				updates = append(updates, u)
			}
		}
		require.Len(t, updates, 2)
		require.Equal(t, []byte("r1"), updates[1].OldRoot)
		require.Equal(t, []byte("r2"), updates[1].NewRoot)
	})

	t.Run("unknown pool maps to not found", func(t *testing.T) {
		err := pools.UpdateMerkleRoot(ctx, uuid.Must(uuid.NewV7()), []byte("r1"))
		require.ErrorIs(t, err, ErrNotFound)
	})
}
