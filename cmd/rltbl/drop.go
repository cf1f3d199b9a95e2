package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"rltbl.sh/rltbl/config"
)

func dropCommand() *cli.Command {
	return &cli.Command{
		Name:  "drop",
		Usage: "drop the database",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "delete the database file",
				Action: runDropDatabase,
			},
		},
	}
}

func runDropDatabase(ctx context.Context, cmd *cli.Command) error {
	ctx = subLogger(ctx, cmd)

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if v := cmd.Root().String("database"); v != "" {
		cfg.Core.Connection = v
	}

	if strings.Contains(cfg.Core.Connection, "://") {
		return fmt.Errorf("drop database only supports embedded databases, not %q", cfg.Core.Connection)
	}
	if err := os.Remove(cfg.Core.Connection); err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("No database found at %s\n", cfg.Core.Connection)
			return nil
		}
		return fmt.Errorf("failed to remove database: %w", err)
	}
	fmt.Printf("Dropped %s\n", cfg.Core.Connection)
	return nil
}
