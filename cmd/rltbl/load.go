package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"rltbl.sh/rltbl/tsv"
)

func loadCommand() *cli.Command {
	return &cli.Command{
		Name:  "load",
		Usage: "load a table from a delimited file",
		Commands: []*cli.Command{
			{
				Name:      "table",
				Usage:     "load <table-name> from <path>",
				ArgsUsage: "<table> <path>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "replace an existing table of the same name"},
					&cli.BoolFlag{Name: "validate", Usage: "record a message for every malformed cell"},
					&cli.StringFlag{Name: "delimiter", Usage: "field delimiter", Value: "\t"},
				},
				Action: runLoadTable,
			},
		},
	}
}

func runLoadTable(ctx context.Context, cmd *cli.Command) error {
	ctx = subLogger(ctx, cmd)
	if err := requireArgs(cmd, 2, "rltbl load table <table> <path>"); err != nil {
		return err
	}

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	table := arg(cmd, 0)
	path := arg(cmd, 1)
	delim := []rune(cmd.String("delimiter"))[0]

	n, err := tsv.Load(ctx, a.Catalog, a.Engine.Messages, a.User(""), table, path, delim, cmd.Bool("force"), cmd.Bool("validate"))
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d rows into %q from %s\n", n, table, path)
	return nil
}
