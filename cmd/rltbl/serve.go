package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"rltbl.sh/rltbl/rltlog"
	"rltbl.sh/rltbl/web"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the HTTP API and HTML views over the configured database",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Usage: "listen port", Value: 5590},
			&cli.IntFlag{Name: "timeout", Usage: "read/write timeout in seconds, 0 disables it"},
			&cli.StringFlag{Name: "cookie-secret", Usage: "session cookie signing key; a random one is generated if unset"},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	ctx = subLogger(ctx, cmd)
	logger := rltlog.FromContext(ctx)

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	secret := cmd.String("cookie-secret")
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return err
		}
	}

	srv := web.New(a.DB, a.Catalog, a.Engine, a.User(""), secret)

	addr := fmt.Sprintf(":%d", cmd.Int("port"))
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Router(),
	}
	if timeout := cmd.Int("timeout"); timeout > 0 {
		d := time.Duration(timeout) * time.Second
		httpServer.ReadTimeout = d
		httpServer.WriteTimeout = d
	}

	logger.Info("listening", "addr", addr)
	return httpServer.ListenAndServe()
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate cookie secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
