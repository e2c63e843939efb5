package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/orgledger/internal/models"
)

// Sentinel errors for wallet store operations
var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// WalletStore defines the interface for employee wallet storage.
// Balances never go negative: Debit and Transfer fail with
// ErrInsufficientFunds rather than overdraw, leaving state unchanged.
type WalletStore interface {
	// CreateWallet stores a new wallet. Wallet IDs are generated by the
	// caller, so repeated calls always create distinct wallets.
	CreateWallet(ctx context.Context, wallet *models.Wallet) error

	// GetWallet retrieves a wallet by ID.
	// Returns ErrWalletNotFound if it doesn't exist.
	GetWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error)

	// Credit increases the wallet balance and TotalDeposited by amount in
	// one transition, returning the updated wallet.
	Credit(ctx context.Context, walletID uuid.UUID, amount int64) (*models.Wallet, error)

	// Debit decreases the wallet balance and increases TotalWithdrawn by
	// amount in one transition, returning the updated wallet.
	// Returns ErrInsufficientFunds if balance < amount.
	Debit(ctx context.Context, walletID uuid.UUID, amount int64) (*models.Wallet, error)

	// Transfer moves amount from one wallet to another as a single atomic
	// transition - either both balances update or neither does.
	// Returns ErrInsufficientFunds if the source balance < amount.
	Transfer(ctx context.Context, fromID, toID uuid.UUID, amount int64) error

	// ListWalletsByOrg returns all wallets bound to the given organization.
	ListWalletsByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Wallet, error)
}
