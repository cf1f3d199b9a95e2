// Command rltbl cleans and connects tabular data through a SQL-backed
// editing engine with per-user undo/redo history, reachable from the
// CLI built here and from `rltbl serve`'s HTTP surface.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"rltbl.sh/rltbl/errkind"
	"rltbl.sh/rltbl/rltlog"
)

func main() {
	cmd := &cli.Command{
		Name:  "rltbl",
		Usage: "clean and connect tabular data",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "database",
				Usage: "connection string or embedded database path",
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "acting user for history attribution",
			},
		},
		Commands: []*cli.Command{
			initCommand(),
			demoCommand(),
			dropCommand(),
			loadCommand(),
			saveCommand(),
			getCommand(),
			addCommand(),
			deleteCommand(),
			setCommand(),
			moveCommand(),
			undoCommand(),
			redoCommand(),
			historyCommand(),
			serveCommand(),
		},
	}

	logger := rltlog.New("rltbl")
	slog.SetDefault(logger)

	ctx := context.Background()
	ctx = rltlog.IntoContext(ctx, logger)

	if err := cmd.Run(ctx, os.Args); err != nil {
		logger.Error(err.Error())
		if errkind.Is(err, errkind.Usage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
