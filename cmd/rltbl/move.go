package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func moveCommand() *cli.Command {
	return &cli.Command{
		Name:  "move",
		Usage: "reorder a row",
		Commands: []*cli.Command{
			{
				Name:      "row",
				Usage:     "move a row to immediately after another",
				ArgsUsage: "<table> <row> <after>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "description", Usage: "history description"},
				},
				Action: runMoveRow,
			},
		},
	}
}

func runMoveRow(ctx context.Context, cmd *cli.Command) error {
	ctx = subLogger(ctx, cmd)
	if err := requireArgs(cmd, 3, "rltbl move row <table> <row> <after>"); err != nil {
		return err
	}
	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	table := arg(cmd, 0)
	row, err := parseRowArg(cmd, 1)
	if err != nil {
		return err
	}
	after, err := parseRowArg(cmd, 2)
	if err != nil {
		return err
	}

	description := cmd.String("description")
	if description == "" {
		description = fmt.Sprintf("Move row %d in %q to after %d", row, table, after)
	}

	if _, err := a.Engine.Move(ctx, a.User(cmd.Root().String("user")), table, row, after, description); err != nil {
		return err
	}
	fmt.Printf("Moved row %d in %q to after %d\n", row, table, after)
	return nil
}
