package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/orgledger/internal/models"
	"github.com/wolfeidau/orgledger/internal/store"
	"github.com/wolfeidau/orgledger/internal/store/memory"
)

// brokenCredit wraps a wallet store and fails every Credit call. Used to
// exercise the compensation path on payout failures.
type brokenCredit struct {
	store.WalletStore
}

func (b brokenCredit) Credit(_ context.Context, _ uuid.UUID, _ int64) (*models.Wallet, error) {
	return nil, errors.New("wallet store unavailable")
}

func TestCreateBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("escrows funding with zero recipients", func(t *testing.T) {
		l := memory.NewLedger()
		sink := NewMemorySink()
		payroll := NewPayroll(l, l, sink)

		batch, err := payroll.CreateBatch(ctx, uuid.Must(uuid.NewV7()), 10_000)
		require.NoError(t, err)
		require.Equal(t, int64(10_000), batch.Balance)
		require.Empty(t, batch.Recipients)

		count, err := payroll.PendingCount(ctx, batch.BatchID)
		require.NoError(t, err)
		require.Equal(t, 0, count)
	})

	t.Run("non-positive funding is rejected", func(t *testing.T) {
		l := memory.NewLedger()
		payroll := NewPayroll(l, l, nil)

		_, err := payroll.CreateBatch(ctx, uuid.Must(uuid.NewV7()), 0)
		require.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestAddToBatch(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, funding int64) (*Payroll, uuid.UUID) {
		t.Helper()
		l := memory.NewLedger()
		payroll := NewPayroll(l, l, NewMemorySink())
		batch, err := payroll.CreateBatch(ctx, uuid.Must(uuid.NewV7()), funding)
		require.NoError(t, err)
		return payroll, batch.BatchID
	}

	t.Run("duplicate add is a silent no-op keeping the original amount", func(t *testing.T) {
		payroll, batchID := setup(t, 1_000)
		employee := uuid.Must(uuid.NewV7())

		require.NoError(t, payroll.AddToBatch(ctx, batchID, employee, 300))
		require.NoError(t, payroll.AddToBatch(ctx, batchID, employee, 900))

		amount, pending, err := payroll.PendingAmount(ctx, batchID, employee)
		require.NoError(t, err)
		require.True(t, pending)
		require.Equal(t, int64(300), amount)

		count, err := payroll.PendingCount(ctx, batchID)
		require.NoError(t, err)
		require.Equal(t, 1, count)
	})

	t.Run("pending amounts cannot exceed escrow", func(t *testing.T) {
		payroll, batchID := setup(t, 1_000)

		require.NoError(t, payroll.AddToBatch(ctx, batchID, uuid.Must(uuid.NewV7()), 800))
		err := payroll.AddToBatch(ctx, batchID, uuid.Must(uuid.NewV7()), 300)
		require.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("non-positive amount is rejected", func(t *testing.T) {
		payroll, batchID := setup(t, 1_000)

		err := payroll.AddToBatch(ctx, batchID, uuid.Must(uuid.NewV7()), 0)
		require.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("unknown batch maps to not found", func(t *testing.T) {
		payroll, _ := setup(t, 1_000)

		err := payroll.AddToBatch(ctx, uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()), 100)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestExecuteSingle(t *testing.T) {
	ctx := context.Background()

	// seed creates a funded batch with one pending employee and that
	// employee's wallet.
	seed := func(t *testing.T) (*Payroll, *Wallets, uuid.UUID, uuid.UUID) {
		t.Helper()
		l := memory.NewLedger()
		sink := NewMemorySink()
		payroll := NewPayroll(l, l, sink)
		wallets := NewWallets(l, sink)

		employee := uuid.Must(uuid.NewV7())
		wallet, err := wallets.CreateWallet(ctx, employee, uuid.Must(uuid.NewV7()))
		require.NoError(t, err)

		batch, err := payroll.CreateBatch(ctx, uuid.Must(uuid.NewV7()), 1_000)
		require.NoError(t, err)
		require.NoError(t, payroll.AddToBatch(ctx, batch.BatchID, employee, 400))

		return payroll, wallets, batch.BatchID, wallet.WalletID
	}

	t.Run("pays the wallet owner and records a run", func(t *testing.T) {
		payroll, wallets, batchID, walletID := seed(t)
		executor := uuid.Must(uuid.NewV7())

		run, err := payroll.ExecuteSingle(ctx, executor, batchID, walletID)
		require.NoError(t, err)
		require.Equal(t, int64(1), run.RunID)
		require.Equal(t, int64(400), run.TotalAmount)
		require.Equal(t, 1, run.EmployeeCount)
		require.Equal(t, models.RunStatusCompleted, run.Status)

		wallet, err := wallets.GetWallet(ctx, walletID)
		require.NoError(t, err)
		require.Equal(t, int64(400), wallet.Balance)

		balance, err := payroll.BatchBalance(ctx, batchID)
		require.NoError(t, err)
		require.Equal(t, int64(600), balance)
	})

	t.Run("second execution for the same employee fails", func(t *testing.T) {
		payroll, _, batchID, walletID := seed(t)

		_, err := payroll.ExecuteSingle(ctx, uuid.Must(uuid.NewV7()), batchID, walletID)
		require.NoError(t, err)

		_, err = payroll.ExecuteSingle(ctx, uuid.Must(uuid.NewV7()), batchID, walletID)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("wallet owner not pending maps to not found", func(t *testing.T) {
		payroll, wallets, batchID, _ := seed(t)

		other, err := wallets.CreateWallet(ctx, uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()))
		require.NoError(t, err)

		_, err = payroll.ExecuteSingle(ctx, uuid.Must(uuid.NewV7()), batchID, other.WalletID)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("credit failure restores the pending entry", func(t *testing.T) {
		l := memory.NewLedger()
		broken := NewPayroll(l, brokenCredit{WalletStore: l}, NewMemorySink())

		employee := uuid.Must(uuid.NewV7())
		wallet, err := NewWallets(l, nil).CreateWallet(ctx, employee, uuid.Must(uuid.NewV7()))
		require.NoError(t, err)

		batch, err := broken.CreateBatch(ctx, uuid.Must(uuid.NewV7()), 1_000)
		require.NoError(t, err)
		require.NoError(t, broken.AddToBatch(ctx, batch.BatchID, employee, 400))

		_, err = broken.ExecuteSingle(ctx, uuid.Must(uuid.NewV7()), batch.BatchID, wallet.WalletID)
		require.Error(t, err)

		// The failed payout must leave the batch exactly as it was.
		amount, pending, err := broken.PendingAmount(ctx, batch.BatchID, employee)
		require.NoError(t, err)
		require.True(t, pending)
		require.Equal(t, int64(400), amount)

		balance, err := broken.BatchBalance(ctx, batch.BatchID)
		require.NoError(t, err)
		require.Equal(t, int64(1_000), balance)

		// And the wallet untouched.
		got, err := NewWallets(l, nil).GetWallet(ctx, wallet.WalletID)
		require.NoError(t, err)
		require.Equal(t, int64(0), got.Balance)
	})
}

func TestBatchExecute(t *testing.T) {
	ctx := context.Background()

	l := memory.NewLedger()
	sink := NewMemorySink()
	payroll := NewPayroll(l, l, sink)
	wallets := NewWallets(l, sink)

	employee := uuid.Must(uuid.NewV7())
	wallet, err := wallets.CreateWallet(ctx, employee, uuid.Must(uuid.NewV7()))
	require.NoError(t, err)

	batch, err := payroll.CreateBatch(ctx, uuid.Must(uuid.NewV7()), 1_000)
	require.NoError(t, err)
	require.NoError(t, payroll.AddToBatch(ctx, batch.BatchID, employee, 250))

	t.Run("consumes the entry and returns the amount", func(t *testing.T) {
		amount, err := payroll.BatchExecute(ctx, batch.BatchID, wallet.WalletID)
		require.NoError(t, err)
		require.Equal(t, int64(250), amount)

		// No wallet credit and no run history - that is the caller's job.
		got, err := wallets.GetWallet(ctx, wallet.WalletID)
		require.NoError(t, err)
		require.Equal(t, int64(0), got.Balance)

		runs, err := payroll.Runs(ctx, batch.OrgID)
		require.NoError(t, err)
		require.Empty(t, runs)
	})

	t.Run("second call fails as not pending", func(t *testing.T) {
		_, err := payroll.BatchExecute(ctx, batch.BatchID, wallet.WalletID)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCloseBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns residual and forfeits pending entries", func(t *testing.T) {
		l := memory.NewLedger()
		sink := NewMemorySink()
		payroll := NewPayroll(l, l, sink)

		batch, err := payroll.CreateBatch(ctx, uuid.Must(uuid.NewV7()), 1_000)
		require.NoError(t, err)
		require.NoError(t, payroll.AddToBatch(ctx, batch.BatchID, uuid.Must(uuid.NewV7()), 400))

		residual, err := payroll.CloseBatch(ctx, batch.BatchID)
		require.NoError(t, err)
		require.Equal(t, int64(1_000), residual)

		_, err = payroll.BatchBalance(ctx, batch.BatchID)
		require.ErrorIs(t, err, ErrNotFound)

		events := sink.Events()
		last := events[len(events)-1].(BatchClosed)
		require.Equal(t, int64(1_000), last.Residual)
		require.Equal(t, 1, last.Forfeited)
	})

	t.Run("double close maps to not found", func(t *testing.T) {
		l := memory.NewLedger()
		payroll := NewPayroll(l, l, nil)

		batch, err := payroll.CreateBatch(ctx, uuid.Must(uuid.NewV7()), 500)
		require.NoError(t, err)

		_, err = payroll.CloseBatch(ctx, batch.BatchID)
		require.NoError(t, err)

		_, err = payroll.CloseBatch(ctx, batch.BatchID)
		require.ErrorIs(t, err, ErrNotFound)
	})
}
