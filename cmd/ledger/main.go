package main

import (
	"context"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgledger/cmd/ledger/internal/commands"
	"github.com/wolfeidau/orgledger/internal/telemetry"
)

var (
	version = "dev"
	cli     struct {
		Migrate commands.MigrateCmd `cmd:"" help:"Run database migrations"`
		Org     commands.OrgCmd     `cmd:"" help:"Organization registry operations"`
		Wallet  commands.WalletCmd  `cmd:"" help:"Employee wallet operations"`
		Pool    commands.PoolCmd    `cmd:"" help:"Privacy pool operations"`
		Payroll commands.PayrollCmd `cmd:"" help:"Payroll batch operations"`
		Config  string              `help:"Path to YAML config file." type:"path"`
		Debug   bool                `help:"Enable debug mode."`
		Tracing bool                `help:"Enable OpenTelemetry tracing and metrics."`
		Version kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	if cli.Tracing {
		shutdown, err := telemetry.InitTelemetry(ctx, "orgledger", version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version, ConfigPath: cli.Config})
	cmd.FatalIfErrorf(err)
}
