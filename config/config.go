// Package config loads rltbl's process configuration from the environment,
// the way appview/config loads tangled's.
package config

import (
	"context"
	"fmt"
	"os/user"

	"github.com/sethvargo/go-envconfig"
)

// CoreConfig holds the connection and identity settings every subcommand
// needs. Both map directly to RLTBL_CONNECTION and RLTBL_USER.
type CoreConfig struct {
	// Connection is an embedded filename or a postgresql://... URL.
	Connection string `env:"CONNECTION, default=.relatable/relatable.db"`
	// User identifies the acting user for history attribution.
	User string `env:"USER"`
}

// GitConfig holds the optional git-commit side effect's settings.
type GitConfig struct {
	// Author, in "Name <email>" form. Empty disables the side effect.
	Author string `env:"GIT_AUTHOR"`
}

// ServerConfig holds settings specific to `rltbl serve`; these come from
// CLI flags rather than the environment, so it carries no env tags.
type ServerConfig struct {
	Port    int
	Timeout int // seconds, 0 = no timeout
}

// Config aggregates every RLTBL_* setting.
type Config struct {
	Core   CoreConfig `env:",prefix=RLTBL_"`
	Git    GitConfig  `env:",prefix=RLTBL_"`
	Server ServerConfig
}

// Load reads RLTBL_* environment variables into a Config. RLTBL_USER
// defaults to the OS login name when unset, per spec.
func Load(ctx context.Context) (*Config, error) {
	var c Config
	if err := envconfig.Process(ctx, &c); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if c.Core.User == "" {
		if u, err := user.Current(); err == nil {
			c.Core.User = u.Username
		} else {
			c.Core.User = "anonymous"
		}
	}

	return &c, nil
}
