package commands

import (
	"context"
)

// MigrateCmd connects to the database and applies pending schema
// migrations.
type MigrateCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`
}

func (c *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	log := setup(globals)

	flags := c.Postgres
	flags.AutoMigrate = true

	db, err := openLedger(ctx, globals, flags)
	if err != nil {
		return err
	}
	defer db.Close()

	log.Info().Msg("Migrations applied")

	return nil
}
