package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"rltbl.sh/rltbl/app"
	"rltbl.sh/rltbl/config"
)

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "create a new database",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "overwrite an existing database file"},
		},
		Action: runInit,
	}
}

func runInit(ctx context.Context, cmd *cli.Command) error {
	ctx = subLogger(ctx, cmd)

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if v := cmd.Root().String("database"); v != "" {
		cfg.Core.Connection = v
	}

	if cmd.Bool("force") {
		if err := os.Remove(cfg.Core.Connection); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove existing database: %w", err)
		}
	}

	a, err := app.Make(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Initialized rltbl database at %s\n", cfg.Core.Connection)
	return nil
}
