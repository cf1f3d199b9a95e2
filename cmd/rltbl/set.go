package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"rltbl.sh/rltbl/cellval"
)

func setCommand() *cli.Command {
	return &cli.Command{
		Name:  "set",
		Usage: "set the value of a single cell",
		Commands: []*cli.Command{
			{
				Name:      "value",
				Usage:     "set a cell's value",
				ArgsUsage: "<table> <row> <column> <value>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "description", Usage: "history description"},
				},
				Action: runSetValue,
			},
		},
	}
}

func runSetValue(ctx context.Context, cmd *cli.Command) error {
	ctx = subLogger(ctx, cmd)
	if err := requireArgs(cmd, 4, "rltbl set value <table> <row> <column> <value>"); err != nil {
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
	column := arg(cmd, 2)
	value := arg(cmd, 3)

	description := cmd.String("description")
	if description == "" {
		description = fmt.Sprintf("Set %s of row %d in %q to %q", column, row, table, value)
	}

	fields := map[string]cellval.Value{column: cellval.TextValue(value)}
	if _, err := a.Engine.Update(ctx, a.User(cmd.Root().String("user")), table, row, fields, description); err != nil {
		return err
	}
	fmt.Printf("Set %s of row %d in %q\n", column, row, table)
	return nil
}
