package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/urfave/cli/v3"

	"rltbl.sh/rltbl/changelog"
)

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:   "history",
		Usage:  "print the acting user's history, most recent first",
		Action: runHistory,
	}
}

func runHistory(ctx context.Context, cmd *cli.Command) error {
	ctx = subLogger(ctx, cmd)
	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	user := a.User(cmd.Root().String("user"))
	var lines []changelog.DisplayLine
	err = a.DB.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		h, err := a.Engine.Log.ForUser(ctx, tx, user)
		if err != nil {
			return err
		}
		lines = changelog.Render(h)
		return nil
	})
	if err != nil {
		return err
	}

	for _, l := range lines {
		fmt.Printf("%s %s\n", l.Marker, l.Text)
	}
	return nil
}
