// Package cli implements npcchatter-admin, the operator tool for the gateway's database and
// identity configuration.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/npcchatter/backend/internal/config"
	"github.com/npcchatter/backend/internal/infrastructure/monitoring"
	"github.com/npcchatter/backend/internal/infrastructure/persistence/postgres"
	"github.com/npcchatter/backend/pkg/logger"
)

// NewRootCommand builds the npcchatter-admin command tree.
func NewRootCommand() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "npcchatter-admin",
		Short: "Administer the npcchatter realtime gateway",
		Long: `npcchatter-admin performs operator tasks against the gateway's configuration:
running schema migrations, managing campaign memberships and inspecting the identity
provider's signing keys. It reads the same config.yaml and environment as the server.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	env := &environment{verbose: &verbose}
	root.AddCommand(newMigrateCommand(env))
	root.AddCommand(newMembersCommand(env))
	root.AddCommand(newKeysCommand(env))
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// environment loads configuration and opens resources for a single command run.
type environment struct {
	verbose *bool
}

func (e *environment) logger() logger.Logger {
	level := "warn"
	if *e.verbose {
		level = "debug"
	}
	log, _, err := monitoring.NewZapLogger(&config.LogConfig{Level: level, Format: "console"})
	if err != nil {
		return logger.NewNoopLogger()
	}
	return log
}

func (e *environment) load() (*config.Config, logger.Logger, error) {
	log := e.logger()
	cfg, err := config.LoadConfig(log)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, log, nil
}

func (e *environment) openDB(ctx context.Context) (*postgres.DBConnection, logger.Logger, error) {
	cfg, log, err := e.load()
	if err != nil {
		return nil, nil, err
	}
	db, err := postgres.NewDBConnection(ctx, &cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}
	return db, log, nil
}
