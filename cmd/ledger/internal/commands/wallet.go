package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfeidau/orgledger/internal/ledger"
)

// WalletCmd groups employee wallet operations.
type WalletCmd struct {
	Create   WalletCreateCmd   `cmd:"" help:"Create a wallet"`
	Deposit  WalletDepositCmd  `cmd:"" help:"Deposit funds into a wallet"`
	Withdraw WalletWithdrawCmd `cmd:"" help:"Withdraw funds from a wallet"`
	Transfer WalletTransferCmd `cmd:"" help:"Transfer funds between wallets"`
	Show     WalletShowCmd     `cmd:"" help:"Show a wallet"`
	List     WalletListCmd     `cmd:"" help:"List an organization's wallets"`
}

func walletService(ctx context.Context, globals *Globals, flags PostgresFlags) (*ledger.Wallets, func(), error) {
	log := setup(globals)

	db, err := openLedger(ctx, globals, flags)
	if err != nil {
		return nil, nil, err
	}

	sink, closeSink, err := openSink(globals, log)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		closeSink()
		db.Close()
	}

	return ledger.NewWallets(db, sink), cleanup, nil
}

type WalletCreateCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`

	Owner string `arg:"" help:"Owner identity (UUID)"`
	Org   string `arg:"" help:"Organization admin identity (UUID)"`
}

func (c *WalletCreateCmd) Run(ctx context.Context, globals *Globals) error {
	owner, err := uuid.Parse(c.Owner)
	if err != nil {
		return fmt.Errorf("invalid owner identity: %w", err)
	}
	orgID, err := uuid.Parse(c.Org)
	if err != nil {
		return fmt.Errorf("invalid organization identity: %w", err)
	}

	wallets, cleanup, err := walletService(ctx, globals, c.Postgres)
	if err != nil {
		return err
	}
	defer cleanup()

	wallet, err := wallets.CreateWallet(ctx, owner, orgID)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	fmt.Printf("Created wallet %s for owner %s\n", wallet.WalletID, wallet.OwnerID)

	return nil
}

type WalletDepositCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`

	Wallet string `arg:"" help:"Wallet ID (UUID)"`
	Amount int64  `arg:"" help:"Amount in minor units"`
}

func (c *WalletDepositCmd) Run(ctx context.Context, globals *Globals) error {
	walletID, err := uuid.Parse(c.Wallet)
	if err != nil {
		return fmt.Errorf("invalid wallet ID: %w", err)
	}

	wallets, cleanup, err := walletService(ctx, globals, c.Postgres)
	if err != nil {
		return err
	}
	defer cleanup()

	wallet, err := wallets.Deposit(ctx, walletID, c.Amount)
	if err != nil {
		return fmt.Errorf("failed to deposit: %w", err)
	}

	fmt.Printf("Deposited %d, new balance %d\n", c.Amount, wallet.Balance)

	return nil
}

type WalletWithdrawCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`

	Caller string `arg:"" help:"Caller identity (UUID)"`
	Wallet string `arg:"" help:"Wallet ID (UUID)"`
	Amount int64  `arg:"" help:"Amount in minor units"`
}

func (c *WalletWithdrawCmd) Run(ctx context.Context, globals *Globals) error {
	caller, err := uuid.Parse(c.Caller)
	if err != nil {
		return fmt.Errorf("invalid caller identity: %w", err)
	}
	walletID, err := uuid.Parse(c.Wallet)
	if err != nil {
		return fmt.Errorf("invalid wallet ID: %w", err)
	}

	wallets, cleanup, err := walletService(ctx, globals, c.Postgres)
	if err != nil {
		return err
	}
	defer cleanup()

	wallet, err := wallets.Withdraw(ctx, caller, walletID, c.Amount)
	if err != nil {
		return fmt.Errorf("failed to withdraw: %w", err)
	}

	fmt.Printf("Withdrew %d, new balance %d\n", c.Amount, wallet.Balance)

	return nil
}

type WalletTransferCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`

	Caller string `arg:"" help:"Caller identity (UUID)"`
	From   string `arg:"" help:"Source wallet ID (UUID)"`
	To     string `arg:"" help:"Destination wallet ID (UUID)"`
	Amount int64  `arg:"" help:"Amount in minor units"`
}

func (c *WalletTransferCmd) Run(ctx context.Context, globals *Globals) error {
	caller, err := uuid.Parse(c.Caller)
	if err != nil {
		return fmt.Errorf("invalid caller identity: %w", err)
	}
	fromID, err := uuid.Parse(c.From)
	if err != nil {
		return fmt.Errorf("invalid source wallet ID: %w", err)
	}
	toID, err := uuid.Parse(c.To)
	if err != nil {
		return fmt.Errorf("invalid destination wallet ID: %w", err)
	}

	wallets, cleanup, err := walletService(ctx, globals, c.Postgres)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := wallets.Transfer(ctx, caller, fromID, toID, c.Amount); err != nil {
		return fmt.Errorf("failed to transfer: %w", err)
	}

	fmt.Printf("Transferred %d from %s to %s\n", c.Amount, fromID, toID)

	return nil
}

type WalletShowCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`

	Wallet string `arg:"" help:"Wallet ID (UUID)"`
}

func (c *WalletShowCmd) Run(ctx context.Context, globals *Globals) error {
	walletID, err := uuid.Parse(c.Wallet)
	if err != nil {
		return fmt.Errorf("invalid wallet ID: %w", err)
	}

	wallets, cleanup, err := walletService(ctx, globals, c.Postgres)
	if err != nil {
		return err
	}
	defer cleanup()

	wallet, err := wallets.GetWallet(ctx, walletID)
	if err != nil {
		return fmt.Errorf("failed to get wallet: %w", err)
	}

	fmt.Printf("Wallet %s\n  owner: %s\n  org: %s\n  balance: %d\n  deposited: %d\n  withdrawn: %d\n",
		wallet.WalletID, wallet.OwnerID, wallet.OrgID,
		wallet.Balance, wallet.TotalDeposited, wallet.TotalWithdrawn)

	return nil
}

type WalletListCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`

	Org string `arg:"" help:"Organization admin identity (UUID)"`
}

func (c *WalletListCmd) Run(ctx context.Context, globals *Globals) error {
	orgID, err := uuid.Parse(c.Org)
	if err != nil {
		return fmt.Errorf("invalid organization identity: %w", err)
	}

	wallets, cleanup, err := walletService(ctx, globals, c.Postgres)
	if err != nil {
		return err
	}
	defer cleanup()

	list, err := wallets.WalletsByOrg(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to list wallets: %w", err)
	}

	for _, w := range list {
		fmt.Printf("%s owner=%s balance=%d\n", w.WalletID, w.OwnerID, w.Balance)
	}

	return nil
}
