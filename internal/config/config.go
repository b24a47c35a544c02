package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Records  RecordsConfig
	Console  ConsoleConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string // CIDR ranges whose X-Forwarded-For is believed
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
	LoginDelay        time.Duration // minimum duration of a failed login
	LoginDelayJitter  time.Duration
}

// RecordsConfig locates the record service for its clients
type RecordsConfig struct {
	BaseURL string
	Timeout time.Duration
}

// ConsoleConfig controls the page registry of the console server
type ConsoleConfig struct {
	PageTTL         time.Duration
	ReapInterval    time.Duration
	MaxPages        int
	NoticeQueueSize int
}

// EmailConfig controls the password-changed security e-mail
type EmailConfig struct {
	Enabled     bool
	AWSRegion   string
	FromAddress string
	AppName     string
}

// LoadRecordService loads the configuration of the record service. A
// database password and a JWT secret are required.
func LoadRecordService() (*Config, error) {
	cfg := load("8080")

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if err := validateJWTSecret(cfg.Auth.JWTSecret, cfg.Server.Env); err != nil {
		return nil, err
	}
	if cfg.Email.Enabled && cfg.Email.FromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when EMAIL_ENABLED is set")
	}

	return cfg, nil
}

// LoadConsole loads the configuration of the console server. A JWT secret
// and the record service base URL are required.
func LoadConsole() (*Config, error) {
	cfg := load("8081")

	if err := validateJWTSecret(cfg.Auth.JWTSecret, cfg.Server.Env); err != nil {
		return nil, err
	}
	if err := validateBaseURL(cfg.Records.BaseURL); err != nil {
		return nil, err
	}
	if cfg.Console.PageTTL <= 0 || cfg.Console.ReapInterval <= 0 {
		return nil, fmt.Errorf("CONSOLE_PAGE_TTL and CONSOLE_REAP_INTERVAL must be positive")
	}

	return cfg, nil
}

// LoadClient loads only what a record service client needs (CLI lookups)
func LoadClient() (*Config, error) {
	cfg := load("")
	if err := validateBaseURL(cfg.Records.BaseURL); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(defaultPort string) *Config {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	return &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "jardim"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", defaultPort),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 1*time.Hour),
			LoginDelay:        getEnvAsDuration("LOGIN_FAILURE_DELAY", 250*time.Millisecond),
			LoginDelayJitter:  getEnvAsDuration("LOGIN_FAILURE_JITTER", 100*time.Millisecond),
		},
		Records: RecordsConfig{
			BaseURL: strings.TrimRight(getEnv("RECORDS_BASE_URL", ""), "/"),
			Timeout: getEnvAsDuration("RECORDS_TIMEOUT", 10*time.Second),
		},
		Console: ConsoleConfig{
			PageTTL:         getEnvAsDuration("CONSOLE_PAGE_TTL", 30*time.Minute),
			ReapInterval:    getEnvAsDuration("CONSOLE_REAP_INTERVAL", 1*time.Minute),
			MaxPages:        getEnvAsInt("CONSOLE_MAX_PAGES", 1000),
			NoticeQueueSize: getEnvAsInt("CONSOLE_NOTICE_QUEUE_SIZE", 32),
		},
		Email: EmailConfig{
			Enabled:     getEnvAsBool("EMAIL_ENABLED", false),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
			AppName:     getEnv("APP_NAME", "Jardim"),
		},
	}
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	if secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("RECORDS_BASE_URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("RECORDS_BASE_URL must be an absolute http(s) URL")
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

// splitList splits a comma-separated value, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if origins := splitList(getEnv("ALLOWED_ORIGINS", "")); len(origins) > 0 {
		return origins
	}
	if env == "production" {
		return []string{}
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}
