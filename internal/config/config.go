package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	Debug          bool
	AllowedOrigins []string
	FrontendDir    string
	// Database
	DBDriver   string
	DBURL      string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBPath     string
	DBMigrate  bool
	// Intent classifier (OpenAI-compatible, DeepSeek by default)
	DeepSeekAPIKey      string
	DeepSeekBaseURL     string
	DeepSeekModel       string
	IntentPromptsFile   string
	ClassifierTimeout   time.Duration
	ClassifierThreshold int
	ClassifierCooldown  time.Duration
	// Sessions
	SessionTTL      time.Duration
	SessionCapacity int
}

func Load() (Config, error) {
	_ = godotenv.Load()
	cfg := Config{
		Port:                getEnvDefault("PORT", getEnvDefault("FLASK_PORT", "5000")),
		Debug:               getEnvBoolDefault("DEBUG", true),
		AllowedOrigins:      getEnvListDefault("ALLOWED_ORIGIN", []string{"*"}),
		FrontendDir:         getEnvDefault("FRONTEND_DIR", "./frontend"),
		DBDriver:            strings.ToLower(getEnvDefault("DB_DRIVER", "postgres")),
		DBURL:               os.Getenv("DB_URL"),
		DBHost:              getEnvDefault("DB_HOST", "localhost"),
		DBPort:              getEnvDefault("DB_PORT", "5432"),
		DBName:              getEnvDefault("DB_NAME", "product_db"),
		DBUser:              getEnvDefault("DB_USER", "postgres"),
		DBPassword:          os.Getenv("DB_PASSWORD"),
		DBPath:              getEnvDefault("DB_PATH", "./data/imobot.db"),
		DBMigrate:           getEnvBoolDefault("DB_MIGRATE", true),
		DeepSeekAPIKey:      os.Getenv("DEEPSEEK_API_KEY"),
		DeepSeekBaseURL:     getEnvDefault("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
		DeepSeekModel:       getEnvDefault("DEEPSEEK_MODEL", "deepseek-chat"),
		IntentPromptsFile:   os.Getenv("INTENT_PROMPTS_FILE"),
		ClassifierThreshold: getEnvIntDefault("CLASSIFIER_FAILURE_THRESHOLD", 3),
		ClassifierTimeout:   getEnvDurationDefault("CLASSIFIER_TIMEOUT", 10*time.Second),
		ClassifierCooldown:  getEnvDurationDefault("CLASSIFIER_COOLDOWN", 30*time.Second),
		SessionTTL:          getEnvDurationDefault("SESSION_TTL", 30*time.Minute),
		SessionCapacity:     getEnvIntDefault("SESSION_CAPACITY", 10000),
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if cfg.DeepSeekAPIKey == "" {
		slog.Warn("DEEPSEEK_API_KEY is not set; using the local intent fallback only")
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Port) == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not supported (postgres, sqlite)", c.DBDriver))
	}
	if c.SessionCapacity <= 0 {
		errs = append(errs, errors.New("SESSION_CAPACITY must be positive"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.ClassifierTimeout <= 0 {
		errs = append(errs, errors.New("CLASSIFIER_TIMEOUT must be positive"))
	}
	if c.ClassifierThreshold <= 0 {
		errs = append(errs, errors.New("CLASSIFIER_FAILURE_THRESHOLD must be positive"))
	}
	return errors.Join(errs...)
}

// DataSource is the connection string for the configured driver: DB_URL or
// one built from the DB_* parts for postgres, DB_PATH for sqlite.
func (c Config) DataSource() string {
	if c.DBDriver == "sqlite" {
		return c.DBPath
	}
	if c.DBURL != "" {
		return c.DBURL
	}
	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   net.JoinHostPort(c.DBHost, c.DBPort),
		Path:   "/" + c.DBName,
	}
	return u.String()
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return ":" + c.Port
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvListDefault(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			s := strings.TrimSpace(p)
			if s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}

func getEnvBoolDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getEnvIntDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
		slog.Warn("ignoring invalid integer setting", "key", key, "value", v)
	}
	return def
}

func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
		slog.Warn("ignoring invalid duration setting", "key", key, "value", v)
	}
	return def
}
