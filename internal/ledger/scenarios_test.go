package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/orgledger/internal/store/memory"
)

// services bundles all four ledger services over one shared memory store, the
// way the CLI wires them in production.
type services struct {
	registry *Registry
	wallets  *Wallets
	pools    *Pools
	payroll  *Payroll
	sink     *MemorySink
}

func newServices(t *testing.T, verifier Verifier) *services {
	t.Helper()
	l := memory.NewLedger()
	sink := NewMemorySink()
	return &services{
		registry: NewRegistry(l, sink),
		wallets:  NewWallets(l, sink),
		pools:    NewPools(l, l, verifier, sink),
		payroll:  NewPayroll(l, l, sink),
		sink:     sink,
	}
}

func TestPayrollLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newServices(t, allowAll)

	admin := uuid.Must(uuid.NewV7())
	org, err := svc.registry.RegisterOrganization(ctx, admin, "acme", nil, 5, 100_000)
	require.NoError(t, err)

	_, err = svc.registry.RecordDeposit(ctx, admin, admin, 50_000)
	require.NoError(t, err)

	alice := uuid.Must(uuid.NewV7())
	bob := uuid.Must(uuid.NewV7())

	aliceWallet, err := svc.wallets.CreateWallet(ctx, alice, admin)
	require.NoError(t, err)
	bobWallet, err := svc.wallets.CreateWallet(ctx, bob, admin)
	require.NoError(t, err)

	_, err = svc.registry.AddEmployee(ctx, admin, admin, alice, aliceWallet.WalletID, "engineer")
	require.NoError(t, err)
	_, err = svc.registry.AddEmployee(ctx, admin, admin, bob, bobWallet.WalletID, "designer")
	require.NoError(t, err)

	count, err := svc.registry.EmployeeCount(ctx, admin)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// Fund a batch and route both payments through it.
	batch, err := svc.payroll.CreateBatch(ctx, admin, 10_000)
	require.NoError(t, err)
	require.NoError(t, svc.payroll.AddToBatch(ctx, batch.BatchID, alice, 4_000))
	require.NoError(t, svc.payroll.AddToBatch(ctx, batch.BatchID, bob, 3_500))

	executor := uuid.Must(uuid.NewV7())
	run1, err := svc.payroll.ExecuteSingle(ctx, executor, batch.BatchID, aliceWallet.WalletID)
	require.NoError(t, err)
	require.Equal(t, int64(4_000), run1.TotalAmount)

	run2, err := svc.payroll.ExecuteSingle(ctx, executor, batch.BatchID, bobWallet.WalletID)
	require.NoError(t, err)
	require.Equal(t, int64(3_500), run2.TotalAmount)

	gotAlice, err := svc.wallets.GetWallet(ctx, aliceWallet.WalletID)
	require.NoError(t, err)
	require.Equal(t, int64(4_000), gotAlice.Balance)

	gotBob, err := svc.wallets.GetWallet(ctx, bobWallet.WalletID)
	require.NoError(t, err)
	require.Equal(t, int64(3_500), gotBob.Balance)

	runs, err := svc.payroll.Runs(ctx, org.AdminID)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	residual, err := svc.payroll.CloseBatch(ctx, batch.BatchID)
	require.NoError(t, err)

	// Conservation: every unit escrowed is either paid out or returned.
	require.Equal(t, int64(10_000), gotAlice.Balance+gotBob.Balance+residual)
}

func TestAnonymousPoolFlow(t *testing.T) {
	ctx := context.Background()
	svc := newServices(t, allowAll)

	pool, err := svc.pools.InitPool(ctx, 1_000)
	require.NoError(t, err)

	_, err = svc.pools.Deposit(ctx, pool.PoolID, 1_000, []byte("c-1"))
	require.NoError(t, err)
	_, err = svc.pools.Deposit(ctx, pool.PoolID, 1_000, []byte("c-2"))
	require.NoError(t, err)

	root := []byte("root-after-two-leaves")
	require.NoError(t, svc.pools.UpdateMerkleRoot(ctx, pool.PoolID, root))

	recipient, err := svc.wallets.CreateWallet(ctx, uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()))
	require.NoError(t, err)

	err = svc.pools.Withdraw(ctx, pool.PoolID, []byte("n-1"), recipient.WalletID, []byte("proof"), root)
	require.NoError(t, err)

	// A spent nullifier is dead forever, even against the current root.
	err = svc.pools.Withdraw(ctx, pool.PoolID, []byte("n-1"), recipient.WalletID, []byte("proof"), root)
	require.ErrorIs(t, err, ErrNullifierReplayed)

	err = svc.pools.Withdraw(ctx, pool.PoolID, []byte("n-2"), recipient.WalletID, []byte("proof"), root)
	require.NoError(t, err)

	// The pool is drained; a third nullifier has nothing left to claim.
	err = svc.pools.Withdraw(ctx, pool.PoolID, []byte("n-3"), recipient.WalletID, []byte("proof"), root)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	got, err := svc.wallets.GetWallet(ctx, recipient.WalletID)
	require.NoError(t, err)
	require.Equal(t, int64(2_000), got.Balance)
}

func TestPoolCumulativeTotals(t *testing.T) {
	ctx := context.Background()
	svc := newServices(t, allowAll)

	pool, err := svc.pools.InitPool(ctx, 500)
	require.NoError(t, err)

	recipient, err := svc.wallets.CreateWallet(ctx, uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()))
	require.NoError(t, err)

	root := []byte("r")
	require.NoError(t, svc.pools.UpdateMerkleRoot(ctx, pool.PoolID, root))

	// Two full deposit/withdraw cycles. The balance returns to zero each
	// time but the lifetime totals keep climbing.
	for i, pair := range []struct{ commitment, nullifier string }{
		{"c-1", "n-1"},
		{"c-2", "n-2"},
	} {
		_, err = svc.pools.Deposit(ctx, pool.PoolID, 500, []byte(pair.commitment))
		require.NoError(t, err)

		err = svc.pools.Withdraw(ctx, pool.PoolID, []byte(pair.nullifier), recipient.WalletID, []byte("proof"), root)
		require.NoError(t, err)

		got, err := svc.pools.GetPool(ctx, pool.PoolID)
		require.NoError(t, err)
		require.Equal(t, int64(0), got.Balance)
		require.Equal(t, int64(500)*int64(i+1), got.TotalDeposits)
		require.Equal(t, int64(500)*int64(i+1), got.TotalWithdrawals)
	}
}

func TestAuthorizationBoundaries(t *testing.T) {
	ctx := context.Background()
	svc := newServices(t, allowAll)

	admin := uuid.Must(uuid.NewV7())
	outsider := uuid.Must(uuid.NewV7())

	_, err := svc.registry.RegisterOrganization(ctx, admin, "acme", nil, 5, 100_000)
	require.NoError(t, err)

	employee := uuid.Must(uuid.NewV7())
	wallet, err := svc.wallets.CreateWallet(ctx, employee, admin)
	require.NoError(t, err)

	_, err = svc.registry.AddEmployee(ctx, admin, admin, employee, wallet.WalletID, "engineer")
	require.NoError(t, err)

	_, err = svc.wallets.Deposit(ctx, wallet.WalletID, 1_000)
	require.NoError(t, err)

	t.Run("only the admin manages the organization", func(t *testing.T) {
		_, err := svc.registry.AddEmployee(ctx, outsider, admin, uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()), "intern")
		require.ErrorIs(t, err, ErrUnauthorized)

		_, err = svc.registry.UpdateEmployeeStatus(ctx, outsider, admin, employee, false)
		require.ErrorIs(t, err, ErrUnauthorized)

		_, err = svc.registry.RecordDeposit(ctx, outsider, admin, 1_000)
		require.ErrorIs(t, err, ErrUnauthorized)

		_, err = svc.registry.RecordWithdrawal(ctx, outsider, admin, 1_000)
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("only the owner moves wallet funds", func(t *testing.T) {
		_, err := svc.wallets.Withdraw(ctx, outsider, wallet.WalletID, 100)
		require.ErrorIs(t, err, ErrUnauthorized)

		other, err := svc.wallets.CreateWallet(ctx, uuid.Must(uuid.NewV7()), admin)
		require.NoError(t, err)

		err = svc.wallets.Transfer(ctx, outsider, wallet.WalletID, other.WalletID, 100)
		require.ErrorIs(t, err, ErrUnauthorized)

		// Nothing moved.
		got, err := svc.wallets.GetWallet(ctx, wallet.WalletID)
		require.NoError(t, err)
		require.Equal(t, int64(1_000), got.Balance)
	})
}

func TestWithdrawCompensation(t *testing.T) {
	ctx := context.Background()

	l := memory.NewLedger()
	pools := NewPools(l, brokenCredit{WalletStore: l}, allowAll, NewMemorySink())
	wallets := NewWallets(l, nil)

	pool, err := pools.InitPool(ctx, 1_000)
	require.NoError(t, err)
	_, err = pools.Deposit(ctx, pool.PoolID, 1_000, []byte("c-1"))
	require.NoError(t, err)

	root := []byte("r")
	require.NoError(t, pools.UpdateMerkleRoot(ctx, pool.PoolID, root))

	recipient, err := wallets.CreateWallet(ctx, uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()))
	require.NoError(t, err)

	nullifier := []byte("n-1")
	err = pools.Withdraw(ctx, pool.PoolID, nullifier, recipient.WalletID, []byte("proof"), root)
	require.Error(t, err)

	// The aborted withdrawal left no trace: the nullifier can be spent
	// again once the wallet store recovers.
	spent, err := pools.NullifierSpent(ctx, pool.PoolID, nullifier)
	require.NoError(t, err)
	require.False(t, spent)

	got, err := pools.GetPool(ctx, pool.PoolID)
	require.NoError(t, err)
	require.Equal(t, int64(1_000), got.Balance)
	require.Equal(t, int64(0), got.TotalWithdrawals)

	recovered := NewPools(l, l, allowAll, NewMemorySink())
	require.NoError(t, recovered.Withdraw(ctx, pool.PoolID, nullifier, recipient.WalletID, []byte("proof"), root))
}
