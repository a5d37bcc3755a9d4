package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr               string
	DatabaseDSN        string
	RedisAddr          string
	JWTSecret          []byte
	JWTRefreshSecret   []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	MinPasswordEntropy float64
	RateLimitRPS       int
}

// Load reads an optional .env file and then the process environment.
func Load(addr string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(addr, os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults.
func FromEnv(addr string, getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Addr:        addr,
		DatabaseDSN: getenv("DB_DSN"),
		RedisAddr:   getenv("REDIS_ADDR"),
		JWTSecret:   []byte(getenv("JWT_SECRET")),
	}
	if cfg.DatabaseDSN == "" {
		return nil, errors.New("DB_DSN is not set")
	}
	if len(cfg.JWTSecret) == 0 {
		return nil, errors.New("JWT_SECRET is not set")
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}

	cfg.JWTRefreshSecret = []byte(getenv("JWT_REFRESH_SECRET"))
	if len(cfg.JWTRefreshSecret) == 0 {
		cfg.JWTRefreshSecret = append([]byte(string(cfg.JWTSecret)), "-refresh"...)
	}

	var err error
	if cfg.AccessTokenTTL, err = duration(getenv, "ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = duration(getenv, "REFRESH_TOKEN_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}

	cfg.MinPasswordEntropy = 50
	if v := getenv("MIN_PASSWORD_ENTROPY"); v != "" {
		if cfg.MinPasswordEntropy, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("MIN_PASSWORD_ENTROPY: %w", err)
		}
	}

	cfg.RateLimitRPS = 20
	if v := getenv("RATE_LIMIT_RPS"); v != "" {
		if cfg.RateLimitRPS, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
		if cfg.RateLimitRPS <= 0 {
			return nil, errors.New("RATE_LIMIT_RPS must be positive")
		}
	}
	return cfg, nil
}

func duration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
