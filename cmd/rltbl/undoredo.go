package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func undoCommand() *cli.Command {
	return &cli.Command{
		Name:   "undo",
		Usage:  "undo the acting user's most recent undoable action",
		Action: runUndo,
	}
}

func redoCommand() *cli.Command {
	return &cli.Command{
		Name:   "redo",
		Usage:  "redo the acting user's most recently undone action",
		Action: runRedo,
	}
}

func runUndo(ctx context.Context, cmd *cli.Command) error {
	ctx = subLogger(ctx, cmd)
	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Engine.Undo(ctx, a.User(cmd.Root().String("user")))
	if err != nil {
		return err
	}
	fmt.Printf("Undid history entry %d\n", res.HistoryID)
	return nil
}

func runRedo(ctx context.Context, cmd *cli.Command) error {
	ctx = subLogger(ctx, cmd)
	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Engine.Redo(ctx, a.User(cmd.Root().String("user")))
	if err != nil {
		return err
	}
	fmt.Printf("Redid history entry %d\n", res.HistoryID)
	return nil
}
