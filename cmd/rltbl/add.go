package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"rltbl.sh/rltbl/cellval"
	"rltbl.sh/rltbl/errkind"
	"rltbl.sh/rltbl/message"
)

func addCommand() *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "add a row or a message",
		Commands: []*cli.Command{
			{
				Name:      "row",
				Usage:     "add a new row to a table",
				ArgsUsage: "<table>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "input", Usage: "row fields as a JSON object"},
					&cli.StringFlag{Name: "description", Usage: "history description"},
				},
				Action: runAddRow,
			},
			{
				Name:      "message",
				Usage:     "attach a diagnostic message to a cell",
				ArgsUsage: "<table> <row> <column>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "input", Usage: "message fields as a JSON object", Required: true},
				},
				Action: runAddMessage,
			},
		},
	}
}

func runAddRow(ctx context.Context, cmd *cli.Command) error {
	ctx = subLogger(ctx, cmd)
	if err := requireArgs(cmd, 1, "rltbl add row <table>"); err != nil {
		return err
	}
	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	table := arg(cmd, 0)
	fields := map[string]cellval.Value{}
	if input := cmd.String("input"); input != "" {
		fields, err = cellval.ParseRow([]byte(input))
		if err != nil {
			return err
		}
	}
	description := cmd.String("description")
	if description == "" {
		description = fmt.Sprintf("Add a row to %q", table)
	}

	res, err := a.Engine.Add(ctx, a.User(cmd.Root().String("user")), table, fields, nil, description)
	if err != nil {
		return err
	}
	fmt.Printf("Added row %d to %q\n", res.RowID, table)
	return nil
}

func runAddMessage(ctx context.Context, cmd *cli.Command) error {
	ctx = subLogger(ctx, cmd)
	if err := requireArgs(cmd, 3, "rltbl add message <table> <row> <column> --input JSON"); err != nil {
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

	var fields struct {
		Level string `json:"level"`
		Rule  string `json:"rule"`
		Text  string `json:"message"`
		Value string `json:"value"`
	}
	if err := decodeJSON(cmd.String("input"), &fields); err != nil {
		return err
	}
	if fields.Level == "" {
		fields.Level = string(message.Info)
	}

	user := a.User(cmd.Root().String("user"))
	err = a.DB.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return a.Engine.Messages.Add(ctx, tx, message.Message{
			AddedBy: user, Table: table, Row: row, Column: column,
			Value: fields.Value, Level: message.Level(fields.Level), Rule: fields.Rule, Text: fields.Text,
		})
	})
	if err != nil {
		return err
	}
	fmt.Printf("Added message to %s row %d column %s\n", table, row, column)
	return nil
}

func parseRowArg(cmd *cli.Command, i int) (int64, error) {
	row, err := strconv.ParseInt(arg(cmd, i), 10, 64)
	if err != nil {
		return 0, errkind.New(errkind.ProtocolError, "row must be an integer")
	}
	return row, nil
}
