package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/orgledger/internal/models"
	"github.com/wolfeidau/orgledger/internal/store"
)

// CreateWallet stores a new wallet.
func (l *Ledger) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.wallets.put(wallet.WalletID, *wallet)

	return nil
}

// GetWallet retrieves a wallet by ID.
func (l *Ledger) GetWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	wallet, ok := l.wallets.get(walletID)
	if !ok {
		return nil, store.ErrWalletNotFound
	}

	clone := wallet
	return &clone, nil
}

// Credit increases the wallet balance and TotalDeposited.
func (l *Ledger) Credit(ctx context.Context, walletID uuid.UUID, amount int64) (*models.Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	wallet, ok := l.wallets.get(walletID)
	if !ok {
		return nil, store.ErrWalletNotFound
	}

	wallet.Balance += amount
	wallet.TotalDeposited += amount
	wallet.UpdatedAt = time.Now()
	l.wallets.put(walletID, wallet)

	clone := wallet
	return &clone, nil
}

// Debit decreases the wallet balance and increases TotalWithdrawn.
func (l *Ledger) Debit(ctx context.Context, walletID uuid.UUID, amount int64) (*models.Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	wallet, ok := l.wallets.get(walletID)
	if !ok {
		return nil, store.ErrWalletNotFound
	}

	if wallet.Balance < amount {
		return nil, store.ErrInsufficientFunds
	}

	wallet.Balance -= amount
	wallet.TotalWithdrawn += amount
	wallet.UpdatedAt = time.Now()
	l.wallets.put(walletID, wallet)

	clone := wallet
	return &clone, nil
}

// Transfer moves amount between two wallets under one lock acquisition, so
// both legs commit together or not at all.
func (l *Ledger) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	from, ok := l.wallets.get(fromID)
	if !ok {
		return store.ErrWalletNotFound
	}

	// Self-transfer moves nothing but still books both legs.
	if fromID == toID {
		if from.Balance < amount {
			return store.ErrInsufficientFunds
		}
		from.TotalDeposited += amount
		from.TotalWithdrawn += amount
		from.UpdatedAt = time.Now()
		l.wallets.put(fromID, from)
		return nil
	}

	to, ok := l.wallets.get(toID)
	if !ok {
		return store.ErrWalletNotFound
	}

	if from.Balance < amount {
		return store.ErrInsufficientFunds
	}

	now := time.Now()

	from.Balance -= amount
	from.TotalWithdrawn += amount
	from.UpdatedAt = now

	to.Balance += amount
	to.TotalDeposited += amount
	to.UpdatedAt = now

	l.wallets.put(fromID, from)
	l.wallets.put(toID, to)

	return nil
}

// ListWalletsByOrg returns all wallets bound to the given organization in
// creation order.
func (l *Ledger) ListWalletsByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Wallet, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []*models.Wallet
	l.wallets.each(func(_ uuid.UUID, wallet models.Wallet) {
		if wallet.OrgID == orgID {
			clone := wallet
			result = append(result, &clone)
		}
	})

	slices.SortFunc(result, func(a, b *models.Wallet) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return result, nil
}
