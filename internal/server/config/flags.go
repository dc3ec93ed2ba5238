package config

import (
	"github.com/spf13/pflag"

	"github.com/dmitrijs2005/reembolsai/internal/flagx"
)

// parseFlags populates Config from command-line flags. Only flags defined
// here are considered; everything else on the command line is ignored.
//
//	-a, --addr             HTTP bind address (":3000")
//	-f, --data-file        JSON document store path
//	-d, --database-dsn     PostgreSQL DSN; selects the SQL backend
//	-s, --secret-key       credential HMAC secret
//	-t, --credential-ttl   credential lifetime ("168h")
//	    --bcrypt-cost      bcrypt work factor
//	    --secure-cookies   mark the auth cookie Secure
//	    --admin-emails     comma separated admin e-mails
//	    --app-url          public base URL used in e-mail links
//	    --static-dir       directory with the web pages
//	    --smtp-*           SMTP transport settings
//	    --resend-cooldown  verification resend window
//	    --redis-*          shared rate limiter
//	    --s3-*             PDF archive bucket
//	    --log-level        debug, info, warn or error
//
// Parse errors panic, like the JSON loader.
func parseFlags(config *Config, args []string) {
	fs := newFlagSet(config)
	if err := fs.Parse(flagx.FilterArgs(args, fs)); err != nil {
		panic(err)
	}
}

// Positional returns the command-line arguments that are neither server
// flags nor their values. The operator CLI reads its command from them.
func Positional(args []string) []string {
	fs := newFlagSet(&Config{})
	fs.StringP("config", "c", "", "path to JSON config file")
	return flagx.Positional(args, fs)
}

func newFlagSet(config *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("server", pflag.ContinueOnError)

	fs.StringVarP(&config.HTTPAddr, "addr", "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	fs.StringVarP(&config.DataFile, "data-file", "f", config.DataFile, "JSON document store path")
	fs.StringVarP(&config.DatabaseDSN, "database-dsn", "d", config.DatabaseDSN, "database DSN")
	fs.StringVarP(&config.SecretKey, "secret-key", "s", config.SecretKey, "secret key")
	fs.DurationVarP(&config.CredentialTTL, "credential-ttl", "t", config.CredentialTTL, "credential validity")
	fs.IntVar(&config.BcryptCost, "bcrypt-cost", config.BcryptCost, "bcrypt cost")
	fs.BoolVar(&config.SecureCookies, "secure-cookies", config.SecureCookies, "secure auth cookie")
	fs.StringSliceVar(&config.AdminEmails, "admin-emails", config.AdminEmails, "admin e-mails")
	fs.StringVar(&config.AppURL, "app-url", config.AppURL, "public app URL")
	fs.StringVar(&config.StaticDir, "static-dir", config.StaticDir, "static pages directory")
	fs.StringVar(&config.SMTPHost, "smtp-host", config.SMTPHost, "SMTP host")
	fs.IntVar(&config.SMTPPort, "smtp-port", config.SMTPPort, "SMTP port")
	fs.StringVar(&config.SMTPUser, "smtp-user", config.SMTPUser, "SMTP user")
	fs.StringVar(&config.SMTPPassword, "smtp-password", config.SMTPPassword, "SMTP password")
	fs.StringVar(&config.EmailFrom, "email-from", config.EmailFrom, "sender address")
	fs.DurationVar(&config.SMTPTimeout, "smtp-timeout", config.SMTPTimeout, "SMTP connection timeout")
	fs.DurationVar(&config.ResendCooldown, "resend-cooldown", config.ResendCooldown, "verification resend cooldown")
	fs.StringVar(&config.RedisAddr, "redis-addr", config.RedisAddr, "Redis address")
	fs.StringVar(&config.RedisPassword, "redis-password", config.RedisPassword, "Redis password")
	fs.IntVar(&config.RedisDB, "redis-db", config.RedisDB, "Redis database")
	fs.StringVar(&config.S3RootUser, "s3-user", config.S3RootUser, "S3 user")
	fs.StringVar(&config.S3RootPassword, "s3-password", config.S3RootPassword, "S3 password")
	fs.StringVar(&config.S3Bucket, "s3-bucket", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "s3-region", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "s3-endpoint", config.S3BaseEndpoint, "S3 base endpoint")

	return fs
}
