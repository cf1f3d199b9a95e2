package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"rltbl.sh/rltbl/app"
	"rltbl.sh/rltbl/config"
	"rltbl.sh/rltbl/errkind"
	"rltbl.sh/rltbl/rltlog"
)

// openApp loads RLTBL_* configuration, lets --database/--user override
// it, and opens the resulting app.App. Every subcommand closes it
// before returning (`serve` only once its listener stops).
func openApp(ctx context.Context, cmd *cli.Command) (*app.App, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if v := cmd.Root().String("database"); v != "" {
		cfg.Core.Connection = v
	}
	if v := cmd.Root().String("user"); v != "" {
		cfg.Core.User = v
	}
	return app.Make(ctx, cfg)
}

// subLogger returns ctx's logger with cmd's name appended to its
// prefix, matching the teacher's Run(ctx, cmd) boilerplate.
func subLogger(ctx context.Context, cmd *cli.Command) context.Context {
	logger := rltlog.SubLogger(rltlog.FromContext(ctx), cmd.Name)
	return rltlog.IntoContext(ctx, logger)
}

// arg returns the i'th positional argument or "" if absent.
func arg(cmd *cli.Command, i int) string {
	return cmd.Args().Get(i)
}

func requireArgs(cmd *cli.Command, n int, usage string) error {
	if cmd.Args().Len() < n {
		return errkind.New(errkind.Usage, "usage: "+usage)
	}
	return nil
}

// decodeJSON unmarshals raw into v, wrapped as a ProtocolError so CLI
// input mistakes render the same way a malformed HTTP body does.
func decodeJSON(raw string, v any) error {
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return errkind.Wrap(errkind.ProtocolError, "decode --input JSON", err)
	}
	return nil
}
