package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"rltbl.sh/rltbl/tsv"
)

func saveCommand() *cli.Command {
	return &cli.Command{
		Name:      "save",
		Usage:     "save every path-bearing table back to its delimited file",
		ArgsUsage: "[dir]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "delimiter", Usage: "field delimiter", Value: "\t"},
		},
		Action: runSave,
	}
}

func runSave(ctx context.Context, cmd *cli.Command) error {
	ctx = subLogger(ctx, cmd)
	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	dir := arg(cmd, 0)
	delim := []rune(cmd.String("delimiter"))[0]

	if err := tsv.Save(ctx, a.Catalog, dir, delim); err != nil {
		return err
	}
	fmt.Println("Saved all tables")
	return nil
}
