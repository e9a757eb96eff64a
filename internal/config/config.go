package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MigrationsPath  string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type RedisConfig struct {
	Addr string
}

type ShopierConfig struct {
	APIKey       string
	APISecret    string
	WebsiteIndex string
	PaymentURL   string
	CallbackURL  string
}

type Config struct {
	App struct {
		Port string
	}
	Postgres PostgresConfig
	Redis    RedisConfig
	Shopier  ShopierConfig
}

// Load reads configuration from the environment, optionally seeded from
// a .env file. Database and gateway credentials are required.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := &Config{}
	cfg.App.Port = getenv("APP_PORT", "8080")

	for _, required := range []string{"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME"} {
		if os.Getenv(required) == "" {
			return nil, fmt.Errorf("%s is required", required)
		}
	}

	cfg.Postgres.Host = os.Getenv("DB_HOST")
	cfg.Postgres.Port = os.Getenv("DB_PORT")
	cfg.Postgres.User = os.Getenv("DB_USER")
	cfg.Postgres.Password = os.Getenv("DB_PASSWORD")
	cfg.Postgres.DBName = os.Getenv("DB_NAME")
	cfg.Postgres.SSLMode = getenv("DB_SSLMODE", "disable")
	cfg.Postgres.MigrationsPath = getenv("DB_MIGRATIONS_PATH", "migrations")
	cfg.Postgres.MaxConns = int32(getenvInt("DB_MAX_CONNS", 10))
	cfg.Postgres.MinConns = int32(getenvInt("DB_MIN_CONNS", 2))
	cfg.Postgres.MaxConnLifetime = time.Duration(getenvInt("DB_MAX_CONN_LIFETIME_MINUTES", 30)) * time.Minute

	cfg.Redis.Addr = os.Getenv("REDIS_ADDR")

	cfg.Shopier.APIKey = os.Getenv("SHOPIER_API_KEY")
	cfg.Shopier.APISecret = os.Getenv("SHOPIER_API_SECRET")
	if cfg.Shopier.APIKey == "" || cfg.Shopier.APISecret == "" {
		return nil, fmt.Errorf("SHOPIER_API_KEY and SHOPIER_API_SECRET are required")
	}
	cfg.Shopier.WebsiteIndex = getenv("SHOPIER_WEBSITE_INDEX", "1")
	cfg.Shopier.PaymentURL = getenv("SHOPIER_PAYMENT_URL", "https://www.shopier.com/ShowProduct/api_pay4.php")
	cfg.Shopier.CallbackURL = getenv("SHOPIER_CALLBACK_URL", "")

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
