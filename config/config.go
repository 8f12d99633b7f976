package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the server configuration, read from the environment.
type Config struct {
	Addr          string
	DatabaseURL   string
	LogLevel      string
	AllowedOrigin string
	SeedJWTSecret string
}

// Load reads .env when present, then the process environment. DATABASE_URL
// wins over the split user/password/host/port/dbname variables; with neither
// set, DatabaseURL is empty and rooms are kept in memory.
func Load() (Config, bool) {
	loadedEnv := godotenv.Load() == nil

	cfg := Config{
		Addr:          env("ADDR", ":8080"),
		DatabaseURL:   env("DATABASE_URL", ""),
		LogLevel:      env("LOG_LEVEL", "info"),
		AllowedOrigin: env("ALLOWED_ORIGIN", "*"),
		SeedJWTSecret: env("SEED_JWT_SECRET", ""),
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = splitDSN()
	}
	return cfg, loadedEnv
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitDSN() string {
	host := env("host", "")
	if host == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=require",
		env("user", ""), env("password", ""), host, env("port", "5432"), env("dbname", ""))
}
