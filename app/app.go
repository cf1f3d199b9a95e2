// Package app aggregates the storage façade, catalog, action engine
// and optional git side effect behind one handle every rltbl
// subcommand shares, the way appview/state.State aggregates its own
// collaborators behind one Make constructor.
package app

import (
	"context"

	"rltbl.sh/rltbl/action"
	"rltbl.sh/rltbl/catalog"
	"rltbl.sh/rltbl/config"
	"rltbl.sh/rltbl/gitcommit"
	"rltbl.sh/rltbl/store"
)

// App is the aggregate every CLI subcommand and `serve` operate on.
type App struct {
	Config  *config.Config
	DB      *store.DB
	Catalog *catalog.Catalog
	Engine  *action.Engine
}

// Make opens the configured database, initializes its meta-tables, and
// wires the git-commit side effect when RLTBL_GIT_AUTHOR is set.
func Make(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := store.Open(cfg.Core.Connection)
	if err != nil {
		return nil, err
	}

	cat := catalog.New(db)
	if err := cat.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}

	var git action.GitNotifier
	if cfg.Git.Author != "" {
		name, email := splitAuthor(cfg.Git.Author)
		git = gitcommit.New(repoDir(cfg.Core.Connection), name, email)
	}

	eng := action.New(db, cat, git)

	return &App{Config: cfg, DB: db, Catalog: cat, Engine: eng}, nil
}

// Close releases the underlying database connection.
func (a *App) Close() error {
	return a.DB.Close()
}

// User resolves the acting user for a command invocation: an explicit
// --user flag value takes precedence over RLTBL_USER.
func (a *App) User(flagUser string) string {
	if flagUser != "" {
		return flagUser
	}
	return a.Config.Core.User
}
