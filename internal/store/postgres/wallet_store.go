package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgledger/internal/models"
	"github.com/wolfeidau/orgledger/internal/store"
)

// CreateWallet stores a new wallet.
func (l *Ledger) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	query := `
		INSERT INTO wallets (
			wallet_id, owner_id, org_id, balance, total_deposited, total_withdrawn,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := l.pool.Exec(ctx, query,
		wallet.WalletID,
		wallet.OwnerID,
		wallet.OrgID,
		wallet.Balance,
		wallet.TotalDeposited,
		wallet.TotalWithdrawn,
		wallet.CreatedAt,
		wallet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("wallet_id", wallet.WalletID.String()).
		Str("owner_id", wallet.OwnerID.String()).
		Msg("Created wallet")

	return nil
}

// GetWallet retrieves a wallet by ID.
func (l *Ledger) GetWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	query := `
		SELECT wallet_id, owner_id, org_id, balance, total_deposited, total_withdrawn,
			created_at, updated_at
		FROM wallets
		WHERE wallet_id = $1
	`

	var wallet models.Wallet
	err := l.pool.QueryRow(ctx, query, walletID).Scan(
		&wallet.WalletID,
		&wallet.OwnerID,
		&wallet.OrgID,
		&wallet.Balance,
		&wallet.TotalDeposited,
		&wallet.TotalWithdrawn,
		&wallet.CreatedAt,
		&wallet.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", mapPostgresError(err))
	}

	return &wallet, nil
}

// Credit increases the wallet balance and TotalDeposited in one update.
func (l *Ledger) Credit(ctx context.Context, walletID uuid.UUID, amount int64) (*models.Wallet, error) {
	query := `
		UPDATE wallets
		SET balance = balance + $2, total_deposited = total_deposited + $2, updated_at = now()
		WHERE wallet_id = $1
		RETURNING wallet_id, owner_id, org_id, balance, total_deposited, total_withdrawn,
			created_at, updated_at
	`

	var wallet models.Wallet
	err := l.pool.QueryRow(ctx, query, walletID, amount).Scan(
		&wallet.WalletID,
		&wallet.OwnerID,
		&wallet.OrgID,
		&wallet.Balance,
		&wallet.TotalDeposited,
		&wallet.TotalWithdrawn,
		&wallet.CreatedAt,
		&wallet.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to credit wallet: %w", mapPostgresError(err))
	}

	return &wallet, nil
}

// Debit decreases the wallet balance, failing rather than overdrawing.
func (l *Ledger) Debit(ctx context.Context, walletID uuid.UUID, amount int64) (*models.Wallet, error) {
	query := `
		UPDATE wallets
		SET balance = balance - $2, total_withdrawn = total_withdrawn + $2, updated_at = now()
		WHERE wallet_id = $1 AND balance >= $2
		RETURNING wallet_id, owner_id, org_id, balance, total_deposited, total_withdrawn,
			created_at, updated_at
	`

	var wallet models.Wallet
	err := l.pool.QueryRow(ctx, query, walletID, amount).Scan(
		&wallet.WalletID,
		&wallet.OwnerID,
		&wallet.OrgID,
		&wallet.Balance,
		&wallet.TotalDeposited,
		&wallet.TotalWithdrawn,
		&wallet.CreatedAt,
		&wallet.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing wallet from an overdraw.
			if _, gerr := l.GetWallet(ctx, walletID); gerr != nil {
				return nil, gerr
			}
			return nil, store.ErrInsufficientFunds
		}
		return nil, fmt.Errorf("failed to debit wallet: %w", mapPostgresError(err))
	}

	return &wallet, nil
}

// Transfer moves amount between two wallets in a single transaction.
func (l *Ledger) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount int64) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	tag, err := tx.Exec(ctx, `
		UPDATE wallets
		SET balance = balance - $2, total_withdrawn = total_withdrawn + $2, updated_at = now()
		WHERE wallet_id = $1 AND balance >= $2
	`, fromID, amount)
	if err != nil {
		return fmt.Errorf("failed to debit source wallet: %w", mapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		if _, gerr := l.GetWallet(ctx, fromID); gerr != nil {
			return gerr
		}
		return store.ErrInsufficientFunds
	}

	tag, err = tx.Exec(ctx, `
		UPDATE wallets
		SET balance = balance + $2, total_deposited = total_deposited + $2, updated_at = now()
		WHERE wallet_id = $1
	`, toID, amount)
	if err != nil {
		return fmt.Errorf("failed to credit destination wallet: %w", mapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrWalletNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

// ListWalletsByOrg returns all wallets bound to the given organization.
func (l *Ledger) ListWalletsByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Wallet, error) {
	query := `
		SELECT wallet_id, owner_id, org_id, balance, total_deposited, total_withdrawn,
			created_at, updated_at
		FROM wallets
		WHERE org_id = $1
		ORDER BY created_at
	`

	rows, err := l.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var wallets []*models.Wallet
	for rows.Next() {
		var wallet models.Wallet
		err := rows.Scan(
			&wallet.WalletID,
			&wallet.OwnerID,
			&wallet.OrgID,
			&wallet.Balance,
			&wallet.TotalDeposited,
			&wallet.TotalWithdrawn,
			&wallet.CreatedAt,
			&wallet.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, &wallet)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallets: %w", err)
	}

	return wallets, nil
}
