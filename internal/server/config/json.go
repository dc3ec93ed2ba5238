package config

import (
	"encoding/json"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/dmitrijs2005/reembolsai/internal/flagx"
	"github.com/dmitrijs2005/reembolsai/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "60s" and integer nanoseconds are accepted.
// Comments and trailing commas are allowed.
type JsonConfig struct {
	HTTPAddr       string         `json:"http_addr"`
	LogLevel       string         `json:"log_level"`
	DataFile       string         `json:"data_file"`
	DatabaseDSN    string         `json:"database_dsn"`
	SecretKey      string         `json:"secret_key"`
	CredentialTTL  timex.Duration `json:"credential_ttl"`
	BcryptCost     int            `json:"bcrypt_cost"`
	SecureCookies  *bool          `json:"secure_cookies"`
	AdminEmails    []string       `json:"admin_emails"`
	AppURL         string         `json:"app_url"`
	StaticDir      string         `json:"static_dir"`
	SMTPHost       string         `json:"smtp_host"`
	SMTPPort       int            `json:"smtp_port"`
	SMTPUser       string         `json:"smtp_user"`
	SMTPPassword   string         `json:"smtp_password"`
	EmailFrom      string         `json:"email_from"`
	SMTPTimeout    timex.Duration `json:"smtp_timeout"`
	ResendCooldown timex.Duration `json:"resend_cooldown"`
	RedisAddr      string         `json:"redis_addr"`
	RedisPassword  string         `json:"redis_password"`
	RedisDB        int            `json:"redis_db"`
	S3RootUser     string         `json:"s3_root_user"`
	S3RootPassword string         `json:"s3_root_password"`
	S3Bucket       string         `json:"s3_bucket"`
	S3Region       string         `json:"s3_region"`
	S3BaseEndpoint string         `json:"s3_base_endpoint"`
}

// parseJson overlays values from the file named by -c/--config. Only keys
// present in the file replace what is already in config. An unreadable or
// malformed file panics: the process must not start half-configured.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigFile(args)
	if path == "" {
		return
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(jsonc.ToJSON(raw), c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.DataFile, c.DataFile)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.CredentialTTL.Duration != 0 {
		config.CredentialTTL = c.CredentialTTL.Duration
	}
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.SecureCookies != nil {
		config.SecureCookies = *c.SecureCookies
	}
	if len(c.AdminEmails) > 0 {
		config.AdminEmails = c.AdminEmails
	}
	setString(&config.AppURL, c.AppURL)
	setString(&config.StaticDir, c.StaticDir)
	setString(&config.SMTPHost, c.SMTPHost)
	if c.SMTPPort != 0 {
		config.SMTPPort = c.SMTPPort
	}
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.EmailFrom, c.EmailFrom)
	if c.SMTPTimeout.Duration != 0 {
		config.SMTPTimeout = c.SMTPTimeout.Duration
	}
	if c.ResendCooldown.Duration != 0 {
		config.ResendCooldown = c.ResendCooldown.Duration
	}
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	if c.RedisDB != 0 {
		config.RedisDB = c.RedisDB
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
