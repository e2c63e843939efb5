package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/wolfeidau/orgledger/internal/ledger"
)

// PoolCmd groups privacy pool operations. Commitments, nullifiers, roots
// and proofs are passed base58-encoded.
type PoolCmd struct {
	Init       PoolInitCmd       `cmd:"" help:"Create a fixed-denomination pool"`
	Deposit    PoolDepositCmd    `cmd:"" help:"Deposit one denomination under a commitment"`
	UpdateRoot PoolUpdateRootCmd `cmd:"" help:"Set the pool's merkle root"`
	Withdraw   PoolWithdrawCmd   `cmd:"" help:"Withdraw one denomination to a wallet"`
	Show       PoolShowCmd       `cmd:"" help:"Show a pool"`
}

// cliVerifier stands in for the external proof service, which sits in
// front of this CLI and has already checked any proof that reaches it.
// It only rejects empty submissions.
var cliVerifier = ledger.VerifierFunc(func(_ context.Context, proof, _, _ []byte) (bool, error) {
	return len(proof) > 0, nil
})

func poolService(ctx context.Context, globals *Globals, flags PostgresFlags) (*ledger.Pools, func(), error) {
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

	return ledger.NewPools(db, db, cliVerifier, sink), cleanup, nil
}

type PoolInitCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`

	Denomination int64 `arg:"" help:"Fixed denomination in minor units"`
}

func (c *PoolInitCmd) Run(ctx context.Context, globals *Globals) error {
	pools, cleanup, err := poolService(ctx, globals, c.Postgres)
	if err != nil {
		return err
	}
	defer cleanup()

	pool, err := pools.InitPool(ctx, c.Denomination)
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}

	fmt.Printf("Created pool %s with denomination %d\n", pool.PoolID, pool.Denomination)

	return nil
}

type PoolDepositCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`

	Pool       string `arg:"" help:"Pool ID (UUID)"`
	Amount     int64  `arg:"" help:"Amount in minor units, must equal the denomination"`
	Commitment string `arg:"" help:"Commitment (base58)"`
}

func (c *PoolDepositCmd) Run(ctx context.Context, globals *Globals) error {
	poolID, err := uuid.Parse(c.Pool)
	if err != nil {
		return fmt.Errorf("invalid pool ID: %w", err)
	}
	commitment, err := base58.Decode(c.Commitment)
	if err != nil {
		return fmt.Errorf("invalid commitment: %w", err)
	}

	pools, cleanup, err := poolService(ctx, globals, c.Postgres)
	if err != nil {
		return err
	}
	defer cleanup()

	pool, err := pools.Deposit(ctx, poolID, c.Amount, commitment)
	if err != nil {
		return fmt.Errorf("failed to deposit: %w", err)
	}

	fmt.Printf("Deposited %d, pool balance %d\n", c.Amount, pool.Balance)

	return nil
}

type PoolUpdateRootCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`

	Pool string `arg:"" help:"Pool ID (UUID)"`
	Root string `arg:"" help:"New merkle root (base58)"`
}

func (c *PoolUpdateRootCmd) Run(ctx context.Context, globals *Globals) error {
	poolID, err := uuid.Parse(c.Pool)
	if err != nil {
		return fmt.Errorf("invalid pool ID: %w", err)
	}
	root, err := base58.Decode(c.Root)
	if err != nil {
		return fmt.Errorf("invalid root: %w", err)
	}

	pools, cleanup, err := poolService(ctx, globals, c.Postgres)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := pools.UpdateMerkleRoot(ctx, poolID, root); err != nil {
		return fmt.Errorf("failed to update root: %w", err)
	}

	fmt.Printf("Updated root for pool %s\n", poolID)

	return nil
}

type PoolWithdrawCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`

	Pool      string `arg:"" help:"Pool ID (UUID)"`
	Nullifier string `arg:"" help:"Nullifier (base58)"`
	Recipient string `arg:"" help:"Recipient wallet ID (UUID)"`
	Proof     string `arg:"" help:"Proof (base58)"`
	Root      string `arg:"" help:"Claimed merkle root (base58)"`
}

func (c *PoolWithdrawCmd) Run(ctx context.Context, globals *Globals) error {
	poolID, err := uuid.Parse(c.Pool)
	if err != nil {
		return fmt.Errorf("invalid pool ID: %w", err)
	}
	recipientID, err := uuid.Parse(c.Recipient)
	if err != nil {
		return fmt.Errorf("invalid recipient wallet ID: %w", err)
	}
	nullifier, err := base58.Decode(c.Nullifier)
	if err != nil {
		return fmt.Errorf("invalid nullifier: %w", err)
	}
	proof, err := base58.Decode(c.Proof)
	if err != nil {
		return fmt.Errorf("invalid proof: %w", err)
	}
	root, err := base58.Decode(c.Root)
	if err != nil {
		return fmt.Errorf("invalid root: %w", err)
	}

	pools, cleanup, err := poolService(ctx, globals, c.Postgres)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := pools.Withdraw(ctx, poolID, nullifier, recipientID, proof, root); err != nil {
		return fmt.Errorf("failed to withdraw: %w", err)
	}

	fmt.Printf("Withdrew one denomination to wallet %s\n", recipientID)

	return nil
}

type PoolShowCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`

	Pool string `arg:"" help:"Pool ID (UUID)"`
}

func (c *PoolShowCmd) Run(ctx context.Context, globals *Globals) error {
	poolID, err := uuid.Parse(c.Pool)
	if err != nil {
		return fmt.Errorf("invalid pool ID: %w", err)
	}

	pools, cleanup, err := poolService(ctx, globals, c.Postgres)
	if err != nil {
		return err
	}
	defer cleanup()

	pool, err := pools.GetPool(ctx, poolID)
	if err != nil {
		return fmt.Errorf("failed to get pool: %w", err)
	}

	fmt.Printf("Pool %s\n  denomination: %d\n  balance: %d\n  root: %s\n  deposits: %d\n  withdrawals: %d\n",
		pool.PoolID, pool.Denomination, pool.Balance,
		base58.Encode(pool.MerkleRoot), pool.TotalDeposits, pool.TotalWithdrawals)

	return nil
}
