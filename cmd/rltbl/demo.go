package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"rltbl.sh/rltbl/demo"
)

func demoCommand() *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "populate the database with the sample penguin table",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "size", Usage: "number of rows to generate", Value: 10},
			&cli.BoolFlag{Name: "force", Usage: "replace an existing penguin table"},
		},
		Action: runDemo,
	}
}

func runDemo(ctx context.Context, cmd *cli.Command) error {
	ctx = subLogger(ctx, cmd)
	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	size := int(cmd.Int("size"))
	if err := demo.Generate(ctx, a.Catalog, a.Engine, size, cmd.Bool("force")); err != nil {
		return err
	}
	fmt.Printf("Generated %d penguin rows\n", size)
	return nil
}
