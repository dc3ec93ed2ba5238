package config

import (
	"strconv"
	"time"
)

// parseEnv overlays environment variables. Each setting accepts the
// REEMBOLSAI_ prefixed name; the SMTP, JWT and APP_URL settings also accept
// their unprefixed names. Unparsable numbers and durations are ignored.
func parseEnv(config *Config, lookup func(string) (string, bool)) {
	get := func(names ...string) (string, bool) {
		for _, n := range names {
			if v, ok := lookup(n); ok && v != "" {
				return v, true
			}
		}
		return "", false
	}
	str := func(dst *string, names ...string) {
		if v, ok := get(names...); ok {
			*dst = v
		}
	}
	num := func(dst *int, names ...string) {
		if v, ok := get(names...); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	dur := func(dst *time.Duration, names ...string) {
		if v, ok := get(names...); ok {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	str(&config.HTTPAddr, "REEMBOLSAI_HTTP_ADDR")
	str(&config.LogLevel, "REEMBOLSAI_LOG_LEVEL")
	str(&config.DataFile, "REEMBOLSAI_DATA_FILE")
	str(&config.DatabaseDSN, "REEMBOLSAI_DATABASE_DSN", "DATABASE_URL")
	str(&config.SecretKey, "REEMBOLSAI_SECRET_KEY", "JWT_SECRET")
	dur(&config.CredentialTTL, "REEMBOLSAI_CREDENTIAL_TTL")
	num(&config.BcryptCost, "REEMBOLSAI_BCRYPT_COST")
	if v, ok := get("REEMBOLSAI_SECURE_COOKIES"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			config.SecureCookies = b
		}
	}
	if v, ok := get("REEMBOLSAI_ADMIN_EMAILS"); ok {
		config.AdminEmails = splitList(v)
	}
	str(&config.AppURL, "REEMBOLSAI_APP_URL", "APP_URL", "NEXT_PUBLIC_APP_URL")
	str(&config.StaticDir, "REEMBOLSAI_STATIC_DIR")
	str(&config.SMTPHost, "REEMBOLSAI_SMTP_HOST", "SMTP_HOST")
	num(&config.SMTPPort, "REEMBOLSAI_SMTP_PORT", "SMTP_PORT")
	str(&config.SMTPUser, "REEMBOLSAI_SMTP_USER", "SMTP_USER")
	str(&config.SMTPPassword, "REEMBOLSAI_SMTP_PASSWORD", "SMTP_PASS")
	str(&config.EmailFrom, "REEMBOLSAI_EMAIL_FROM", "EMAIL_FROM")
	dur(&config.SMTPTimeout, "REEMBOLSAI_SMTP_TIMEOUT")
	dur(&config.ResendCooldown, "REEMBOLSAI_RESEND_COOLDOWN")
	str(&config.RedisAddr, "REEMBOLSAI_REDIS_ADDR")
	str(&config.RedisPassword, "REEMBOLSAI_REDIS_PASSWORD")
	num(&config.RedisDB, "REEMBOLSAI_REDIS_DB")
	str(&config.S3RootUser, "REEMBOLSAI_S3_ROOT_USER")
	str(&config.S3RootPassword, "REEMBOLSAI_S3_ROOT_PASSWORD")
	str(&config.S3Bucket, "REEMBOLSAI_S3_BUCKET")
	str(&config.S3Region, "REEMBOLSAI_S3_REGION")
	str(&config.S3BaseEndpoint, "REEMBOLSAI_S3_BASE_ENDPOINT")
}
