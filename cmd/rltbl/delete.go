package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/urfave/cli/v3"
)

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete",
		Usage: "delete a row or a message",
		Commands: []*cli.Command{
			{
				Name:      "row",
				Usage:     "delete a row from a table",
				ArgsUsage: "<table> <row>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "description", Usage: "history description"},
				},
				Action: runDeleteRow,
			},
			{
				Name:      "message",
				Usage:     "delete messages matching a filter",
				ArgsUsage: "<table> [row] [column]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "rule", Usage: "only delete messages whose rule matches this LIKE pattern"},
					&cli.StringFlag{Name: "user", Usage: "only delete messages added by this user"},
				},
				Action: runDeleteMessage,
			},
		},
	}
}

func runDeleteRow(ctx context.Context, cmd *cli.Command) error {
	ctx = subLogger(ctx, cmd)
	if err := requireArgs(cmd, 2, "rltbl delete row <table> <row>"); err != nil {
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
	description := cmd.String("description")
	if description == "" {
		description = fmt.Sprintf("Delete row %d from %q", row, table)
	}

	if _, err := a.Engine.Delete(ctx, a.User(cmd.Root().String("user")), table, row, description); err != nil {
		return err
	}
	fmt.Printf("Deleted row %d from %q\n", row, table)
	return nil
}

func runDeleteMessage(ctx context.Context, cmd *cli.Command) error {
	ctx = subLogger(ctx, cmd)
	if err := requireArgs(cmd, 1, "rltbl delete message <table> [row] [column]"); err != nil {
		return err
	}
	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	table := arg(cmd, 0)
	var row *int64
	if cmd.Args().Len() > 1 {
		r, err := parseRowArg(cmd, 1)
		if err != nil {
			return err
		}
		row = &r
	}
	column := arg(cmd, 2)
	rule := cmd.String("rule")
	user := cmd.String("user")

	var n int64
	err = a.DB.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		deleted, err := a.Engine.Messages.Delete(ctx, tx, table, row, column, rule, user)
		n = deleted
		return err
	})
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d message(s)\n", n)
	return nil
}
