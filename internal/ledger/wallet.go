package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/orgledger/internal/models"
	"github.com/wolfeidau/orgledger/internal/store"
	"github.com/wolfeidau/orgledger/internal/telemetry"
)

// Wallets manages per-employee balances. Withdrawals and transfers are
// gated on the wallet owner; deposits are open since the funds only ever
// move toward the wallet.
type Wallets struct {
	wallets store.WalletStore
	sink    EventSink
}

// NewWallets creates a wallet service over the given wallet store.
func NewWallets(wallets store.WalletStore, sink EventSink) *Wallets {
	return &Wallets{
		wallets: wallets,
		sink:    sink,
	}
}

// CreateWallet creates a zero-balance wallet bound to its owner and
// organization. Repeated calls by the same owner create distinct wallets -
// idempotency is not part of this contract.
func (w *Wallets) CreateWallet(ctx context.Context, owner, orgID uuid.UUID) (*models.Wallet, error) {
	now := time.Now()
	wallet := &models.Wallet{
		WalletID:  uuid.Must(uuid.NewV7()),
		OwnerID:   owner,
		OrgID:     orgID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := w.wallets.CreateWallet(ctx, wallet); err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	publishEvent(ctx, w.sink, WalletCreated{
		WalletID: wallet.WalletID,
		OwnerID:  owner,
		OrgID:    orgID,
		At:       now,
	})

	return wallet, nil
}

// Deposit adds funds to a wallet.
func (w *Wallets) Deposit(ctx context.Context, walletID uuid.UUID, amount int64) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: deposit must be positive", ErrInvalidAmount)
	}

	wallet, err := w.wallets.Credit(ctx, walletID, amount)
	if err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			return nil, fmt.Errorf("%w: wallet %s", ErrNotFound, walletID)
		}
		return nil, fmt.Errorf("failed to deposit: %w", err)
	}

	telemetry.GetMetrics().WalletDeposits.Add(ctx, 1)

	publishEvent(ctx, w.sink, WalletDeposited{
		WalletID: walletID,
		Amount:   amount,
		Balance:  wallet.Balance,
		At:       time.Now(),
	})

	return wallet, nil
}

// Withdraw releases funds to the wallet owner. Only the owner may withdraw.
func (w *Wallets) Withdraw(ctx context.Context, caller, walletID uuid.UUID, amount int64) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: withdrawal must be positive", ErrInvalidAmount)
	}

	wallet, err := w.wallets.GetWallet(ctx, walletID)
	if err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			return nil, fmt.Errorf("%w: wallet %s", ErrNotFound, walletID)
		}
		return nil, err
	}

	if caller != wallet.OwnerID {
		return nil, ErrUnauthorized
	}

	wallet, err = w.wallets.Debit(ctx, walletID, amount)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			return nil, fmt.Errorf("%w: balance below %d", ErrInsufficientFunds, amount)
		}
		return nil, fmt.Errorf("failed to withdraw: %w", err)
	}

	telemetry.GetMetrics().WalletWithdrawals.Add(ctx, 1)

	publishEvent(ctx, w.sink, WalletWithdrawn{
		WalletID: walletID,
		OwnerID:  caller,
		Amount:   amount,
		Balance:  wallet.Balance,
		At:       time.Now(),
	})

	return wallet, nil
}

// Transfer moves funds between two wallets as one atomic transition -
// either both balances update or neither does. Only the source owner may
// transfer.
func (w *Wallets) Transfer(ctx context.Context, caller, fromID, toID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: transfer must be positive", ErrInvalidAmount)
	}

	from, err := w.wallets.GetWallet(ctx, fromID)
	if err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			return fmt.Errorf("%w: wallet %s", ErrNotFound, fromID)
		}
		return err
	}

	if caller != from.OwnerID {
		return ErrUnauthorized
	}

	if err := w.wallets.Transfer(ctx, fromID, toID, amount); err != nil {
		switch {
		case errors.Is(err, store.ErrWalletNotFound):
			return fmt.Errorf("%w: wallet", ErrNotFound)
		case errors.Is(err, store.ErrInsufficientFunds):
			return fmt.Errorf("%w: balance below %d", ErrInsufficientFunds, amount)
		}
		return fmt.Errorf("failed to transfer: %w", err)
	}

	telemetry.GetMetrics().WalletTransfers.Add(ctx, 1)

	publishEvent(ctx, w.sink, FundsTransferred{
		FromWalletID: fromID,
		ToWalletID:   toID,
		Amount:       amount,
		At:           time.Now(),
	})

	return nil
}

// GetWallet returns a wallet by ID.
func (w *Wallets) GetWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	wallet, err := w.wallets.GetWallet(ctx, walletID)
	if err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			return nil, fmt.Errorf("%w: wallet %s", ErrNotFound, walletID)
		}
		return nil, err
	}
	return wallet, nil
}

// WalletsByOrg returns every wallet bound to the given organization, in
// creation order.
func (w *Wallets) WalletsByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Wallet, error) {
	return w.wallets.ListWalletsByOrg(ctx, orgID)
}
