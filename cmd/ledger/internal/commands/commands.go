package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/orgledger/internal/journal"
	"github.com/wolfeidau/orgledger/internal/ledger"
	"github.com/wolfeidau/orgledger/internal/logger"
	"github.com/wolfeidau/orgledger/internal/store/postgres"
	"gopkg.in/yaml.v3"
)

type Globals struct {
	Debug      bool
	Version    string
	ConfigPath string
}

// FileConfig is the optional YAML configuration file. Flags take
// precedence over file values.
type FileConfig struct {
	Database struct {
		ConnString string `yaml:"connString"`
		MaxConns   int32  `yaml:"maxConns"`
		MinConns   int32  `yaml:"minConns"`
	} `yaml:"database"`
	Journal struct {
		Dir        string `yaml:"dir"`
		ArchiveDir string `yaml:"archiveDir"`
	} `yaml:"journal"`
}

func loadFileConfig(path string) (*FileConfig, error) {
	cfg := &FileConfig{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// PostgresFlags configures the database connection for commands that need
// one.
type PostgresFlags struct {
	ConnString  string `help:"PostgreSQL connection string" env:"ORGLEDGER_POSTGRES_CONN_STRING"`
	MaxConns    int32  `help:"maximum number of connections in pool" default:"20"`
	MinConns    int32  `help:"minimum number of connections in pool" default:"5"`
	AutoMigrate bool   `help:"run database migrations on startup" default:"false" env:"ORGLEDGER_POSTGRES_AUTO_MIGRATE"`
}

// openLedger connects to PostgreSQL, retrying transient connection
// failures with exponential backoff.
func openLedger(ctx context.Context, globals *Globals, flags PostgresFlags) (*postgres.Ledger, error) {
	fileCfg, err := loadFileConfig(globals.ConfigPath)
	if err != nil {
		return nil, err
	}

	cfg := &postgres.Config{
		ConnString:  flags.ConnString,
		MaxConns:    flags.MaxConns,
		MinConns:    flags.MinConns,
		AutoMigrate: flags.AutoMigrate,
	}
	if cfg.ConnString == "" {
		cfg.ConnString = fileCfg.Database.ConnString
	}
	if fileCfg.Database.MaxConns != 0 {
		cfg.MaxConns = fileCfg.Database.MaxConns
	}
	if fileCfg.Database.MinConns != 0 {
		cfg.MinConns = fileCfg.Database.MinConns
	}

	db, err := backoff.Retry(ctx, func() (*postgres.Ledger, error) {
		return postgres.NewLedger(ctx, cfg)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(5),
		backoff.WithMaxElapsedTime(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// openSink builds the event sink for mutating commands: structured log
// output plus the on-disk audit journal.
func openSink(globals *Globals, log zerolog.Logger) (ledger.EventSink, func(), error) {
	fileCfg, err := loadFileConfig(globals.ConfigPath)
	if err != nil {
		return nil, nil, err
	}

	jcfg := journal.DefaultConfig()
	if fileCfg.Journal.Dir != "" {
		jcfg.Dir = fileCfg.Journal.Dir
	}
	if fileCfg.Journal.ArchiveDir != "" {
		jcfg.ArchiveDir = fileCfg.Journal.ArchiveDir
	}

	jnl, err := journal.Open(jcfg, "ledger")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open journal: %w", err)
	}

	sink := ledger.MultiSink{ledger.NewLogSink(log), jnl}
	closer := func() {
		if err := jnl.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close journal")
		}
	}

	return sink, closer, nil
}

// setup initializes logging for a command.
func setup(globals *Globals) zerolog.Logger {
	return logger.Setup(globals.Debug)
}
