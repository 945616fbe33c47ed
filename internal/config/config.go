package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP server
	Port           string
	AllowedOrigins []string
	CookieSecure   bool

	// Database
	DBPath string

	// Logging
	LogLevel  string
	LogFormat string

	// Auth
	JWTSecret           string
	IssuerKey           string
	InviteRequiresAdmin bool
	SupabaseURL         string
	SupabaseKey         string

	// Reporting
	Timezone string

	// AMQP
	AMQPURL      string
	AMQPExchange string

	// Backup
	Backup BackupConfig
}

type BackupConfig struct {
	Dir        string
	Passphrase string
	Interval   time.Duration
	Retention  int

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3Prefix    string
	S3AccessKey string
	S3SecretKey string
}

// Enabled reports whether scheduled backups should run.
func (b BackupConfig) Enabled() bool {
	return b.Passphrase != "" && b.Interval > 0
}

// S3Enabled reports whether snapshots are also uploaded.
func (b BackupConfig) S3Enabled() bool {
	return b.S3Bucket != ""
}

// Load reads the environment, first merging a .env file from the working
// directory when one exists. Values already set in the environment win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("WADAKE_PORT", "8080"),
		AllowedOrigins: getEnvList("WADAKE_ALLOWED_ORIGINS"),
		CookieSecure:   getEnvBool("WADAKE_COOKIE_SECURE", false),

		DBPath: getEnv("WADAKE_DB_PATH", "wadake.db"),

		LogLevel:  getEnv("WADAKE_LOG_LEVEL", "info"),
		LogFormat: getEnv("WADAKE_LOG_FORMAT", "text"),

		JWTSecret:           os.Getenv("JWT_SECRET"),
		IssuerKey:           os.Getenv("WADAKE_ISSUER_KEY"),
		InviteRequiresAdmin: getEnvBool("WADAKE_INVITE_REQUIRES_ADMIN", false),
		SupabaseURL:         os.Getenv("SUPABASE_URL"),
		SupabaseKey:         os.Getenv("SUPABASE_KEY"),

		Timezone: getEnv("WADAKE_TIMEZONE", "Local"),

		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "wadake"),

		Backup: BackupConfig{
			Dir:         getEnv("WADAKE_BACKUP_DIR", "backups"),
			Passphrase:  os.Getenv("WADAKE_BACKUP_PASSPHRASE"),
			Interval:    getEnvDuration("WADAKE_BACKUP_INTERVAL", 0),
			Retention:   getEnvInt("WADAKE_BACKUP_RETENTION", 7),
			S3Endpoint:  os.Getenv("WADAKE_BACKUP_S3_ENDPOINT"),
			S3Region:    getEnv("WADAKE_BACKUP_S3_REGION", "auto"),
			S3Bucket:    os.Getenv("WADAKE_BACKUP_S3_BUCKET"),
			S3Prefix:    getEnv("WADAKE_BACKUP_S3_PREFIX", "wadake/"),
			S3AccessKey: os.Getenv("WADAKE_BACKUP_S3_ACCESS_KEY"),
			S3SecretKey: os.Getenv("WADAKE_BACKUP_S3_SECRET_KEY"),
		},
	}
}

// Location resolves Timezone for period framing.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Validate reports every configuration problem at once. A missing JWT
// secret is not an error here: protected routes fail closed with a server
// configuration error instead.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DBPath == "" {
		problems = append(problems, "database path cannot be empty")
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if _, err := c.Location(); err != nil {
		problems = append(problems, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	for _, origin := range c.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			problems = append(problems, fmt.Sprintf("invalid allowed origin '%s'", origin))
		}
	}

	if (c.SupabaseURL == "") != (c.SupabaseKey == "") {
		problems = append(problems, "SUPABASE_URL and SUPABASE_KEY must be set together")
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	b := c.Backup
	if b.Interval < 0 {
		problems = append(problems, fmt.Sprintf("invalid backup interval %v", b.Interval))
	}
	if b.Interval > 0 && b.Passphrase == "" {
		problems = append(problems, "WADAKE_BACKUP_PASSPHRASE is required when WADAKE_BACKUP_INTERVAL is set")
	}
	if b.Enabled() && b.Retention < 1 {
		problems = append(problems, fmt.Sprintf("invalid backup retention %d: must be at least 1", b.Retention))
	}
	if b.S3Enabled() && (b.S3AccessKey == "" || b.S3SecretKey == "") {
		problems = append(problems, "S3 access key and secret key are required when a backup bucket is set")
	}

	if len(problems) > 0 {
		return errors.New("configuration validation failed:\n- " + strings.Join(problems, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
