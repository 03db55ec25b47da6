package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// HTTP Server
	Port           string
	RateLimitRPM   int
	TrustedProxies []string // extra CIDRs allowed to set X-Forwarded-For

	// Backend selection
	DataBackend string

	// SQLite
	SQLiteDBPath string

	// MySQL
	MySQLHost     string
	MySQLPort     int
	MySQLUser     string
	MySQLPassword string
	MySQLDatabase string

	// Auth
	JWTSecret string

	// Cache
	RedisURL string
	CacheTTL time.Duration

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Gemini
	GeminiAPIKey string
	GeminiModel  string

	// Google Sheets import
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Mail
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string

	// Scheduler
	AlertInterval       time.Duration
	AlertThreshold      int
	ReportCheckInterval time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// source resolves a key from the environment first, then from the optional
// YAML file named by CONFIG_FILE.
type source struct {
	file map[string]string
}

// Load reads configuration from the environment. When CONFIG_FILE points at
// a YAML file of KEY: value pairs those values act as defaults that the
// environment overrides.
func Load() (*Config, error) {
	src := source{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		file, err := readFile(path)
		if err != nil {
			return nil, err
		}
		src.file = file
	}

	cfg := &Config{
		Port:           src.getEnv("PORT", "8081"),
		RateLimitRPM:   src.getEnvInt("RATE_LIMIT_RPM", 60),
		TrustedProxies: splitList(src.getEnv("TRUSTED_PROXIES", "")),

		DataBackend:  src.getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: src.getEnv("SQLITE_DB_PATH", "./data/finledger.db"),

		MySQLHost:     src.getEnv("MYSQL_HOST", "localhost"),
		MySQLPort:     src.getEnvInt("MYSQL_PORT", 3306),
		MySQLUser:     src.getEnv("MYSQL_USER", "root"),
		MySQLPassword: src.getEnv("MYSQL_PASSWORD", ""),
		MySQLDatabase: src.getEnv("MYSQL_DATABASE", "finledger"),

		JWTSecret: src.getEnv("JWT_SECRET", ""),

		RedisURL: src.getEnv("REDIS_URL", ""),
		CacheTTL: src.getEnvDuration("CACHE_TTL", 5*time.Minute),

		AMQPURL:      src.getEnv("RABBITMQ_URL", ""),
		AMQPExchange: src.getEnv("RABBITMQ_EXCHANGE", "finledger"),
		AMQPQueue:    src.getEnv("RABBITMQ_QUEUE", "email_jobs"),

		GeminiAPIKey: src.getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  src.getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		GoogleServiceAccountJSON: src.getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: src.getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		SMTPHost:     src.getEnv("SMTP_HOST", ""),
		SMTPPort:     src.getEnvInt("SMTP_PORT", 587),
		SMTPUser:     src.getEnv("SMTP_USER", ""),
		SMTPPassword: src.getEnv("SMTP_PASSWORD", ""),
		MailFrom:     src.getEnv("MAIL_FROM", "Finledger <noreply@finledger.local>"),

		AlertInterval:       src.getEnvDuration("ALERT_INTERVAL", 6*time.Hour),
		AlertThreshold:      src.getEnvInt("ALERT_THRESHOLD", 80),
		ReportCheckInterval: src.getEnvDuration("REPORT_CHECK_INTERVAL", 24*time.Hour),

		LogLevel:  src.getEnv("LOG_LEVEL", "info"),
		LogFormat: src.getEnv("LOG_FORMAT", "text"),
	}

	return cfg, nil
}

func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return values, nil
}

// MailEnabled reports whether an SMTP relay is configured.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{"memory", "mysql", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.DataBackend == "mysql" {
		if c.MySQLHost == "" {
			errors = append(errors, "MySQL host is required when using mysql backend")
		}
		if c.MySQLDatabase == "" {
			errors = append(errors, "MySQL database name is required when using mysql backend")
		}
		if c.MySQLPort < 1 || c.MySQLPort > 65535 {
			errors = append(errors, fmt.Sprintf("invalid MySQL port %d: must be between 1 and 65535", c.MySQLPort))
		}
	}

	if c.JWTSecret == "" {
		errors = append(errors, "JWT_SECRET is required")
	}

	if c.RedisURL != "" {
		if parsedURL, err := url.Parse(c.RedisURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Redis URL '%s': %v", c.RedisURL, err))
		} else if parsedURL.Scheme != "redis" && parsedURL.Scheme != "rediss" {
			errors = append(errors, fmt.Sprintf("invalid Redis URL scheme '%s': must be 'redis' or 'rediss'", parsedURL.Scheme))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	if c.RateLimitRPM < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitRPM))
	}

	if c.AlertInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid alert interval %v: must be at least 1 minute", c.AlertInterval))
	}
	if c.ReportCheckInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid report check interval %v: must be at least 1 minute", c.ReportCheckInterval))
	}
	if c.AlertThreshold < 1 || c.AlertThreshold > 100 {
		errors = append(errors, fmt.Sprintf("invalid alert threshold %d: must be between 1 and 100", c.AlertThreshold))
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
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

func (s source) lookup(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return s.file[key]
}

func (s source) getEnv(key, defaultValue string) string {
	if value := s.lookup(key); value != "" {
		return value
	}
	return defaultValue
}

func (s source) getEnvInt(key string, defaultValue int) int {
	if value := s.lookup(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func (s source) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := s.lookup(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
