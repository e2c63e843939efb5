package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfeidau/orgledger/internal/ledger"
)

// OrgCmd groups organization registry operations.
type OrgCmd struct {
	Register    OrgRegisterCmd    `cmd:"" help:"Register a new organization"`
	AddEmployee OrgAddEmployeeCmd `cmd:"" help:"Add an employee to the roster"`
	Treasury    OrgTreasuryCmd    `cmd:"" help:"Record a treasury deposit or withdrawal"`
}

type OrgRegisterCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`

	Admin       string            `arg:"" help:"Admin identity (UUID)"`
	Name        string            `arg:"" help:"Organization name"`
	EmployeeCap int               `help:"Maximum roster size" default:"100"`
	SpendLimit  int64             `help:"Treasury spend limit in minor units" required:""`
	Metadata    map[string]string `help:"Additional metadata"`
}

func (c *OrgRegisterCmd) Run(ctx context.Context, globals *Globals) error {
	log := setup(globals)

	admin, err := uuid.Parse(c.Admin)
	if err != nil {
		return fmt.Errorf("invalid admin identity: %w", err)
	}

	db, err := openLedger(ctx, globals, c.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()

	sink, closeSink, err := openSink(globals, log)
	if err != nil {
		return err
	}
	defer closeSink()

	registry := ledger.NewRegistry(db, sink)

	org, err := registry.RegisterOrganization(ctx, admin, c.Name, c.Metadata, c.EmployeeCap, c.SpendLimit)
	if err != nil {
		return fmt.Errorf("failed to register organization: %w", err)
	}

	fmt.Printf("Registered organization %q for admin %s (cap %d, spend limit %d)\n",
		org.Name, org.AdminID, org.EmployeeCap, org.Treasury.SpendLimit)

	return nil
}

type OrgAddEmployeeCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`

	Admin    string `arg:"" help:"Admin identity (UUID)"`
	Employee string `arg:"" help:"Employee identity (UUID)"`
	Wallet   string `arg:"" help:"Wallet ID to associate (UUID)"`
	Role     string `help:"Employee role" default:""`
}

func (c *OrgAddEmployeeCmd) Run(ctx context.Context, globals *Globals) error {
	log := setup(globals)

	admin, err := uuid.Parse(c.Admin)
	if err != nil {
		return fmt.Errorf("invalid admin identity: %w", err)
	}
	employee, err := uuid.Parse(c.Employee)
	if err != nil {
		return fmt.Errorf("invalid employee identity: %w", err)
	}
	walletID, err := uuid.Parse(c.Wallet)
	if err != nil {
		return fmt.Errorf("invalid wallet ID: %w", err)
	}

	db, err := openLedger(ctx, globals, c.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()

	sink, closeSink, err := openSink(globals, log)
	if err != nil {
		return err
	}
	defer closeSink()

	registry := ledger.NewRegistry(db, sink)

	// The CLI runs on behalf of the admin, so caller and admin coincide.
	profile, err := registry.AddEmployee(ctx, admin, admin, employee, walletID, c.Role)
	if err != nil {
		return fmt.Errorf("failed to add employee: %w", err)
	}

	fmt.Printf("Added employee %s (wallet %s) to organization %s\n",
		profile.EmployeeID, profile.WalletID, admin)

	return nil
}

type OrgTreasuryCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`

	Admin     string `arg:"" help:"Admin identity (UUID)"`
	Direction string `arg:"" help:"deposit or withdraw" enum:"deposit,withdraw"`
	Amount    int64  `arg:"" help:"Amount in minor units"`
}

func (c *OrgTreasuryCmd) Run(ctx context.Context, globals *Globals) error {
	log := setup(globals)

	admin, err := uuid.Parse(c.Admin)
	if err != nil {
		return fmt.Errorf("invalid admin identity: %w", err)
	}

	db, err := openLedger(ctx, globals, c.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()

	sink, closeSink, err := openSink(globals, log)
	if err != nil {
		return err
	}
	defer closeSink()

	registry := ledger.NewRegistry(db, sink)

	switch c.Direction {
	case "deposit":
		t, err := registry.RecordDeposit(ctx, admin, admin, c.Amount)
		if err != nil {
			return fmt.Errorf("failed to record deposit: %w", err)
		}
		fmt.Printf("Treasury deposit recorded, available %d\n", t.Available())
	case "withdraw":
		t, err := registry.RecordWithdrawal(ctx, admin, admin, c.Amount)
		if err != nil {
			return fmt.Errorf("failed to record withdrawal: %w", err)
		}
		fmt.Printf("Treasury withdrawal recorded, available %d\n", t.Available())
	}

	return nil
}
