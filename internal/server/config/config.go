// Package config handles configuration for the ReembolsAí server: built-in
// defaults, an optional JSON file, environment variables and command-line
// flags, applied in that order.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/reembolsai/internal/common"
)

const minSecretKeyLength = 16

// Config holds runtime settings for the server.
//
// Storage: DatabaseDSN selects PostgreSQL; when empty the JSON document at
// DataFile is used. RedisAddr selects the shared rate limiter; when empty
// limits are process-local. S3Bucket enables archiving of generated PDFs.
type Config struct {
	HTTPAddr string
	LogLevel string

	DataFile    string
	DatabaseDSN string

	SecretKey     string
	CredentialTTL time.Duration
	BcryptCost    int
	SecureCookies bool
	AdminEmails   []string

	AppURL    string
	StaticDir string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailFrom    string
	SMTPTimeout  time.Duration

	ResendCooldown time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	S3RootUser     string
	S3RootPassword string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
}

// LoadDefaults populates Config with development defaults. SecretKey is left
// empty on purpose: Validate refuses to start without one.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":3000"
	c.LogLevel = "info"
	c.DataFile = "data/database.json"
	c.CredentialTTL = 7 * 24 * time.Hour
	c.BcryptCost = 12
	c.AppURL = "http://localhost:3000"
	c.SMTPPort = 587
	c.SMTPTimeout = 10 * time.Second
	c.ResendCooldown = 60 * time.Second
	c.S3Region = "us-east-1"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, os.Args[1:])
	parseEnv(cfg, os.LookupEnv)
	parseFlags(cfg, os.Args[1:])
	return cfg
}

// Validate reports configuration that must stop the process at startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SecretKey) == "" {
		return common.ErrMissingSecretKey
	}
	if len(c.SecretKey) < minSecretKeyLength {
		return fmt.Errorf("%w: need at least %d bytes", common.ErrWeakSecretKey, minSecretKeyLength)
	}
	if c.CredentialTTL <= 0 {
		return fmt.Errorf("credential ttl must be positive, got %s", c.CredentialTTL)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost out of range: %d", c.BcryptCost)
	}
	if c.DatabaseDSN == "" && c.DataFile == "" {
		return fmt.Errorf("either a database DSN or a data file is required")
	}
	return nil
}

// MailConfigured reports whether every SMTP setting registration depends on
// is present.
func (c *Config) MailConfigured() bool {
	return c.SMTPHost != "" && c.SMTPPort != 0 && c.SMTPUser != "" &&
		c.SMTPPassword != "" && c.EmailFrom != "" && c.AppURL != ""
}

// IsAdminEmail reports whether email is listed in AdminEmails.
func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, a := range c.AdminEmails {
		if strings.ToLower(strings.TrimSpace(a)) == email {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
