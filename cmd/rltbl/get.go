package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"rltbl.sh/rltbl/errkind"
	"rltbl.sh/rltbl/selectx"
)

func getCommand() *cli.Command {
	return &cli.Command{
		Name:  "get",
		Usage: "read a table or a single cell",
		Commands: []*cli.Command{
			{
				Name:      "table",
				Usage:     "print a page of a table",
				ArgsUsage: "<table>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 100},
					&cli.IntFlag{Name: "offset", Value: 0},
				},
				Action: runGetTable,
			},
			{
				Name:      "value",
				Usage:     "print a single cell's value",
				ArgsUsage: "<table> <row> <column>",
				Action:    runGetValue,
			},
		},
	}
}

func runGetTable(ctx context.Context, cmd *cli.Command) error {
	ctx = subLogger(ctx, cmd)
	if err := requireArgs(cmd, 1, "rltbl get table <table>"); err != nil {
		return err
	}
	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	table := arg(cmd, 0)
	sel := selectx.Select{Table: table, Limit: int(cmd.Int("limit")), Offset: int(cmd.Int("offset"))}

	var res *selectx.Result
	err = a.DB.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		r, err := selectx.Run(ctx, tx, a.DB.Dialect, a.Catalog, a.Engine.Messages, sel)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return err
	}

	cols := res.Columns
	if len(cols) > 2 {
		cols = cols[2:]
	} else {
		cols = nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "_id\t"+strings.Join(cols, "\t"))
	for _, row := range res.Rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = fmt.Sprintf("%v", row.Cells[c])
		}
		fmt.Fprintf(w, "%d\t%s\n", row.ID, strings.Join(cells, "\t"))
	}
	return w.Flush()
}

func runGetValue(ctx context.Context, cmd *cli.Command) error {
	ctx = subLogger(ctx, cmd)
	if err := requireArgs(cmd, 3, "rltbl get value <table> <row> <column>"); err != nil {
		return err
	}
	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	table := arg(cmd, 0)
	row, err := strconv.ParseInt(arg(cmd, 1), 10, 64)
	if err != nil {
		return errkind.New(errkind.ProtocolError, "row must be an integer")
	}
	column := arg(cmd, 2)

	q := a.DB.Dialect
	query := fmt.Sprintf(`select %s from %s where %s = %s`,
		q.QuoteIdent(column), q.QuoteIdent(table), q.QuoteIdent("_id"), q.BindPlaceholder(1))
	var val sql.NullString
	if err := a.DB.QueryRowContext(ctx, query, row).Scan(&val); err != nil {
		if err == sql.ErrNoRows {
			return errkind.New(errkind.NotFound, fmt.Sprintf("row %d of %q", row, table))
		}
		return errkind.Wrap(errkind.Internal, "query cell value", err)
	}
	fmt.Println(val.String)
	return nil
}
