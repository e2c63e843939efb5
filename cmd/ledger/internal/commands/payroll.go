package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfeidau/orgledger/internal/ledger"
)

// PayrollCmd groups payroll batch operations.
type PayrollCmd struct {
	Create  PayrollCreateCmd  `cmd:"" help:"Create a funded payroll batch"`
	Add     PayrollAddCmd     `cmd:"" help:"Add a recipient to a batch"`
	Execute PayrollExecuteCmd `cmd:"" help:"Pay out a pending recipient"`
	Close   PayrollCloseCmd   `cmd:"" help:"Close a batch and reclaim residual funds"`
	Runs    PayrollRunsCmd    `cmd:"" help:"List payroll run history"`
}

func payrollService(ctx context.Context, globals *Globals, flags PostgresFlags) (*ledger.Payroll, func(), error) {
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

	return ledger.NewPayroll(db, db, sink), cleanup, nil
}

type PayrollCreateCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`

	Org     string `arg:"" help:"Organization admin identity (UUID)"`
	Funding int64  `arg:"" help:"Escrowed funding in minor units"`
}

func (c *PayrollCreateCmd) Run(ctx context.Context, globals *Globals) error {
	orgID, err := uuid.Parse(c.Org)
	if err != nil {
		return fmt.Errorf("invalid organization identity: %w", err)
	}

	payroll, cleanup, err := payrollService(ctx, globals, c.Postgres)
	if err != nil {
		return err
	}
	defer cleanup()

	batch, err := payroll.CreateBatch(ctx, orgID, c.Funding)
	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}

	fmt.Printf("Created batch %s with %d escrowed\n", batch.BatchID, batch.Balance)

	return nil
}

type PayrollAddCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`

	Batch    string `arg:"" help:"Batch ID (UUID)"`
	Employee string `arg:"" help:"Employee identity (UUID)"`
	Amount   int64  `arg:"" help:"Payout amount in minor units"`
}

func (c *PayrollAddCmd) Run(ctx context.Context, globals *Globals) error {
	batchID, err := uuid.Parse(c.Batch)
	if err != nil {
		return fmt.Errorf("invalid batch ID: %w", err)
	}
	employee, err := uuid.Parse(c.Employee)
	if err != nil {
		return fmt.Errorf("invalid employee identity: %w", err)
	}

	payroll, cleanup, err := payrollService(ctx, globals, c.Postgres)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := payroll.AddToBatch(ctx, batchID, employee, c.Amount); err != nil {
		return fmt.Errorf("failed to add recipient: %w", err)
	}

	fmt.Printf("Added %s to batch %s for %d\n", employee, batchID, c.Amount)

	return nil
}

type PayrollExecuteCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`

	Executor string `arg:"" help:"Executor identity (UUID)"`
	Batch    string `arg:"" help:"Batch ID (UUID)"`
	Wallet   string `arg:"" help:"Recipient wallet ID (UUID)"`
}

func (c *PayrollExecuteCmd) Run(ctx context.Context, globals *Globals) error {
	executor, err := uuid.Parse(c.Executor)
	if err != nil {
		return fmt.Errorf("invalid executor identity: %w", err)
	}
	batchID, err := uuid.Parse(c.Batch)
	if err != nil {
		return fmt.Errorf("invalid batch ID: %w", err)
	}
	walletID, err := uuid.Parse(c.Wallet)
	if err != nil {
		return fmt.Errorf("invalid wallet ID: %w", err)
	}

	payroll, cleanup, err := payrollService(ctx, globals, c.Postgres)
	if err != nil {
		return err
	}
	defer cleanup()

	run, err := payroll.ExecuteSingle(ctx, executor, batchID, walletID)
	if err != nil {
		return fmt.Errorf("failed to execute payout: %w", err)
	}

	fmt.Printf("Run %d: paid %d to wallet %s\n", run.RunID, run.TotalAmount, walletID)

	return nil
}

type PayrollCloseCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`

	Batch string `arg:"" help:"Batch ID (UUID)"`
}

func (c *PayrollCloseCmd) Run(ctx context.Context, globals *Globals) error {
	batchID, err := uuid.Parse(c.Batch)
	if err != nil {
		return fmt.Errorf("invalid batch ID: %w", err)
	}

	payroll, cleanup, err := payrollService(ctx, globals, c.Postgres)
	if err != nil {
		return err
	}
	defer cleanup()

	residual, err := payroll.CloseBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	fmt.Printf("Closed batch %s, residual %d returned\n", batchID, residual)

	return nil
}

type PayrollRunsCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`

	Org string `arg:"" help:"Organization admin identity (UUID)"`
}

func (c *PayrollRunsCmd) Run(ctx context.Context, globals *Globals) error {
	orgID, err := uuid.Parse(c.Org)
	if err != nil {
		return fmt.Errorf("invalid organization identity: %w", err)
	}

	payroll, cleanup, err := payrollService(ctx, globals, c.Postgres)
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := payroll.Runs(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	for _, run := range runs {
		fmt.Printf("run %d: executor %s, total %d, employees %d, %s at %s\n",
			run.RunID, run.ExecutorID, run.TotalAmount, run.EmployeeCount,
			run.Status, run.ExecutedAt.Format("2006-01-02 15:04:05"))
	}

	return nil
}
