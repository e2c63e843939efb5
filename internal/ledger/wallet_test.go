package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/orgledger/internal/store/memory"
)

func TestWalletLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("create is never idempotent", func(t *testing.T) {
		wallets := NewWallets(memory.NewLedger(), NewMemorySink())
		owner := uuid.Must(uuid.NewV7())
		orgID := uuid.Must(uuid.NewV7())

		first, err := wallets.CreateWallet(ctx, owner, orgID)
		require.NoError(t, err)
		second, err := wallets.CreateWallet(ctx, owner, orgID)
		require.NoError(t, err)
		require.NotEqual(t, first.WalletID, second.WalletID)
	})

	t.Run("deposit then withdraw by owner", func(t *testing.T) {
		sink := NewMemorySink()
		wallets := NewWallets(memory.NewLedger(), sink)
		owner := uuid.Must(uuid.NewV7())

		wallet, err := wallets.CreateWallet(ctx, owner, uuid.Must(uuid.NewV7()))
		require.NoError(t, err)

		updated, err := wallets.Deposit(ctx, wallet.WalletID, 1_000)
		require.NoError(t, err)
		require.Equal(t, int64(1_000), updated.Balance)

		updated, err = wallets.Withdraw(ctx, owner, wallet.WalletID, 400)
		require.NoError(t, err)
		require.Equal(t, int64(600), updated.Balance)
		require.Equal(t, updated.Balance, updated.TotalDeposited-updated.TotalWithdrawn)

		names := []string{}
		for _, e := range sink.Events() {
			names = append(names, e.EventName())
		}
		require.Contains(t, names, "wallet_deposited")
		require.Contains(t, names, "wallet_withdrawn")
	})

	t.Run("withdraw by non-owner is rejected", func(t *testing.T) {
		wallets := NewWallets(memory.NewLedger(), nil)
		owner := uuid.Must(uuid.NewV7())

		wallet, err := wallets.CreateWallet(ctx, owner, uuid.Must(uuid.NewV7()))
		require.NoError(t, err)
		_, err = wallets.Deposit(ctx, wallet.WalletID, 100)
		require.NoError(t, err)

		_, err = wallets.Withdraw(ctx, uuid.Must(uuid.NewV7()), wallet.WalletID, 50)
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("overdraw is rejected", func(t *testing.T) {
		wallets := NewWallets(memory.NewLedger(), nil)
		owner := uuid.Must(uuid.NewV7())

		wallet, err := wallets.CreateWallet(ctx, owner, uuid.Must(uuid.NewV7()))
		require.NoError(t, err)
		_, err = wallets.Deposit(ctx, wallet.WalletID, 100)
		require.NoError(t, err)

		_, err = wallets.Withdraw(ctx, owner, wallet.WalletID, 101)
		require.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("non-positive amounts are rejected", func(t *testing.T) {
		wallets := NewWallets(memory.NewLedger(), nil)
		owner := uuid.Must(uuid.NewV7())
		wallet, err := wallets.CreateWallet(ctx, owner, uuid.Must(uuid.NewV7()))
		require.NoError(t, err)

		_, err = wallets.Deposit(ctx, wallet.WalletID, 0)
		require.ErrorIs(t, err, ErrInvalidAmount)
		_, err = wallets.Withdraw(ctx, owner, wallet.WalletID, -1)
		require.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("unknown wallet maps to not found", func(t *testing.T) {
		wallets := NewWallets(memory.NewLedger(), nil)

		_, err := wallets.Deposit(ctx, uuid.Must(uuid.NewV7()), 100)
		require.ErrorIs(t, err, ErrNotFound)
		_, err = wallets.GetWallet(ctx, uuid.Must(uuid.NewV7()))
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestWalletTransfer(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Wallets, uuid.UUID, uuid.UUID, uuid.UUID) {
		t.Helper()
		wallets := NewWallets(memory.NewLedger(), NewMemorySink())
		owner := uuid.Must(uuid.NewV7())
		orgID := uuid.Must(uuid.NewV7())

		src, err := wallets.CreateWallet(ctx, owner, orgID)
		require.NoError(t, err)
		dst, err := wallets.CreateWallet(ctx, uuid.Must(uuid.NewV7()), orgID)
		require.NoError(t, err)

		_, err = wallets.Deposit(ctx, src.WalletID, 1_000)
		require.NoError(t, err)

		return wallets, owner, src.WalletID, dst.WalletID
	}

	t.Run("owner transfers to another wallet", func(t *testing.T) {
		wallets, owner, srcID, dstID := setup(t)

		require.NoError(t, wallets.Transfer(ctx, owner, srcID, dstID, 300))

		src, err := wallets.GetWallet(ctx, srcID)
		require.NoError(t, err)
		dst, err := wallets.GetWallet(ctx, dstID)
		require.NoError(t, err)
		require.Equal(t, int64(700), src.Balance)
		require.Equal(t, int64(300), dst.Balance)
	})

	t.Run("only the source owner may transfer", func(t *testing.T) {
		wallets, _, srcID, dstID := setup(t)

		err := wallets.Transfer(ctx, uuid.Must(uuid.NewV7()), srcID, dstID, 300)
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("insufficient source funds abort both legs", func(t *testing.T) {
		wallets, owner, srcID, dstID := setup(t)

		err := wallets.Transfer(ctx, owner, srcID, dstID, 2_000)
		require.ErrorIs(t, err, ErrInsufficientFunds)

		src, err := wallets.GetWallet(ctx, srcID)
		require.NoError(t, err)
		dst, err := wallets.GetWallet(ctx, dstID)
		require.NoError(t, err)
		require.Equal(t, int64(1_000), src.Balance)
		require.Equal(t, int64(0), dst.Balance)
	})

	t.Run("missing destination aborts both legs", func(t *testing.T) {
		wallets, owner, srcID, _ := setup(t)

		err := wallets.Transfer(ctx, owner, srcID, uuid.Must(uuid.NewV7()), 300)
		require.ErrorIs(t, err, ErrNotFound)

		src, err := wallets.GetWallet(ctx, srcID)
		require.NoError(t, err)
		require.Equal(t, int64(1_000), src.Balance)
	})
}
