package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the application configuration, read once at startup and passed
// explicitly to every component.
type Config struct {
	Port      string
	LogLevel  string
	LogPretty bool

	DB    DBConfig
	Redis RedisConfig

	JWTSecret string
	AdminKey  string

	MarketIndex      string
	MaxMatrixSymbols int
	MatrixWorkers    int

	AlphaVantageKey string
	AlphaVantageURL string
}

// DBConfig selects and configures the relational store.
type DBConfig struct {
	Driver       string // postgres or sqlite
	Host         string
	User         string
	Password     string
	Name         string
	Port         string
	SSLMode      string
	Path         string // sqlite file
	MaxOpenConns int
	Timeout      time.Duration // bound on each store round trip
}

// RedisConfig configures the optional Redis cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DSN returns the driver-specific connection string.
func (c DBConfig) DSN() string {
	if c.Driver == "sqlite" {
		return c.Path
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}

// Load reads configuration from the environment, after loading a .env file
// if one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	timeout, err := getDuration("STORE_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 20)
	if err != nil {
		return nil, err
	}
	redisDB, err := getInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	maxSymbols, err := getInt("MAX_MATRIX_SYMBOLS", 25)
	if err != nil {
		return nil, err
	}
	workers, err := getInt("MATRIX_WORKERS", 4)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnv("LOG_PRETTY", "true") == "true",
		DB: DBConfig{
			Driver:       getEnv("DB_DRIVER", "postgres"),
			Host:         getEnv("DB_HOST", "localhost"),
			User:         os.Getenv("DB_USER"),
			Password:     os.Getenv("DB_PASSWORD"),
			Name:         os.Getenv("DB_NAME"),
			Port:         getEnv("DB_PORT", "5432"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			Path:         getEnv("DB_PATH", "stocks.db"),
			MaxOpenConns: maxOpen,
			Timeout:      timeout,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		JWTSecret:        os.Getenv("JWT_SECRET"),
		AdminKey:         os.Getenv("ADMIN_KEY"),
		MarketIndex:      getEnv("MARKET_INDEX", "SPY"),
		MaxMatrixSymbols: maxSymbols,
		MatrixWorkers:    workers,
		AlphaVantageKey:  os.Getenv("ALPHA_VANTAGE_API_KEY"),
		AlphaVantageURL:  getEnv("ALPHA_VANTAGE_URL", "https://www.alphavantage.co/query"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.DB.Timeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	if c.MaxMatrixSymbols < 1 {
		return fmt.Errorf("MAX_MATRIX_SYMBOLS must be at least 1")
	}
	if c.MatrixWorkers < 1 {
		return fmt.Errorf("MATRIX_WORKERS must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
