package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/ferrovia/mailsync/internal/imapx"
	"github.com/ferrovia/mailsync/pkg/models"
)

// Config application configuration
type Config struct {
	// Database
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/mailsync.db"`

	// IMAP
	IMAPDialTimeout time.Duration `env:"IMAP_DIAL_TIMEOUT" envDefault:"30s"`

	// Account to reconcile
	Handle            string `env:"MAILSYNC_HANDLE,required"`
	Password          string `env:"MAILSYNC_PASSWORD,required"`
	Host              string `env:"MAILSYNC_HOST"` // empty: resolve from the handle
	Port              int    `env:"MAILSYNC_PORT" envDefault:"993"`
	Secure            bool   `env:"MAILSYNC_SECURE" envDefault:"true"`
	WorkspaceID       string `env:"MAILSYNC_WORKSPACE_ID,required"`
	WorkspaceMemberID string `env:"MAILSYNC_MEMBER_ID,required"`
	Visibility        string `env:"MAILSYNC_VISIBILITY"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	switch v := models.ChannelVisibility(cfg.Visibility); v {
	case "", models.VisibilityShareEverything, models.VisibilitySubject, models.VisibilityMetadata:
	default:
		return nil, fmt.Errorf("unknown MAILSYNC_VISIBILITY %q", cfg.Visibility)
	}

	return cfg, nil
}

// Credentials builds the IMAP credentials for the configured account,
// resolving the server from the handle when no host is set
func (c *Config) Credentials() (imapx.Credentials, error) {
	host, port := c.Host, c.Port
	if host == "" {
		var err error
		host, port, err = imapx.ResolveServer(c.Handle)
		if err != nil {
			return imapx.Credentials{}, fmt.Errorf("failed to resolve IMAP server: %w", err)
		}
	}

	return imapx.Credentials{
		Host:     host,
		Port:     port,
		Secure:   c.Secure,
		User:     c.Handle,
		Password: c.Password,
	}, nil
}
