package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

var DefaultShops = []string{"Mobile House 1(shed)", "Mobile House 2(3way)"}

type Config struct {
	Port                  string
	AllowedOrigin         string
	DataBackend           string
	DatabaseURL           string
	SQLitePath            string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	DashboardCacheTTL     time.Duration
	WarmInterval          time.Duration
	AMQPURL               string
	AMQPExchange          string
	AMQPQueue             string
	AuthSecret            string
	AccessTokenTTLMinutes int
	AdminUsername         string
	AdminPassword         string
	Shops                 []string
	LogLevel              string
	LogFormat             string
	Timezone              string
}

func Load() Config {
	databaseURL := os.Getenv("DATABASE_URL")
	backend := BackendMemory
	if databaseURL != "" {
		backend = BackendPostgres
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DataBackend:           strings.ToLower(getEnv("DATA_BACKEND", backend)),
		DatabaseURL:           databaseURL,
		SQLitePath:            getEnv("SQLITE_DB_PATH", "data/sales.db"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getEnvInt("REDIS_DB", 0),
		DashboardCacheTTL:     getEnvDuration("DASHBOARD_CACHE_TTL", 5*time.Minute),
		WarmInterval:          getEnvDuration("WARM_INTERVAL", 10*time.Minute),
		AMQPURL:               os.Getenv("AMQP_URL"),
		AMQPExchange:          getEnv("AMQP_EXCHANGE", "mobilehouse"),
		AMQPQueue:             getEnv("AMQP_QUEUE", "sales.recorded"),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: getEnvInt("ACCESS_TOKEN_TTL_MINUTES", 480),
		AdminUsername:         strings.ToLower(getEnv("ADMIN_USERNAME", "admin")),
		AdminPassword:         os.Getenv("ADMIN_PASSWORD"),
		Shops:                 parseList(os.Getenv("SHOPS"), DefaultShops),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             os.Getenv("LOG_FORMAT"),
		Timezone:              getEnv("TIMEZONE", "Asia/Kolkata"),
	}
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}

	return cfg
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var problems []string

	switch c.DataBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required when DATA_BACKEND=postgres")
		}
	case BackendSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			problems = append(problems, "SQLITE_DB_PATH is required when DATA_BACKEND=sqlite")
		}
	default:
		problems = append(problems, fmt.Sprintf("DATA_BACKEND must be one of memory, postgres, sqlite (got %q)", c.DataBackend))
	}

	if len(c.AuthSecret) < 32 {
		problems = append(problems, "AUTH_SECRET must be set and at least 32 characters")
	}
	if c.AdminPassword != "" && len(c.AdminPassword) < 8 {
		problems = append(problems, "ADMIN_PASSWORD must be at least 8 characters")
	}
	if len(c.Shops) == 0 {
		problems = append(problems, "SHOPS must list at least one shop")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("TIMEZONE %q is not a known location", c.Timezone))
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		problems = append(problems, "AMQP_EXCHANGE and AMQP_QUEUE are required when AMQP_URL is set")
	}
	if c.DashboardCacheTTL < 0 {
		problems = append(problems, "DASHBOARD_CACHE_TTL must not be negative")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Location resolves Timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getEnvInt(key string, fallback int) int {
	val, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return val
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	// bare numbers are seconds
	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

func parseList(raw string, fallback []string) []string {
	items := make([]string, 0, 4)
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" && !slices.Contains(items, item) {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return slices.Clone(fallback)
	}
	return items
}
