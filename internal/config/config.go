package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Build environments.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Token store backends.
const (
	TokenStoreMemory = "memory"
	TokenStoreFile   = "file"
	TokenStoreRedis  = "redis"
)

var baseURLs = map[string]string{
	EnvDevelopment: "http://localhost:8090",
	EnvStaging:     "https://staging-api.storefront.local",
	EnvProduction:  "https://api.storefront.local",
}

type Config struct {
	Env             string        `yaml:"env"`
	APIBaseURL      string        `yaml:"api_base_url"`
	HTTPPort        string        `yaml:"http_port"`
	RedisAddr       string        `yaml:"redis_addr"`
	JWTSecret       string        `yaml:"jwt_secret"`
	TokenStore      string        `yaml:"token_store"`
	TokenFile       string        `yaml:"token_file"`
	AuthExpiredCode string        `yaml:"auth_expired_code"`
	GeocoderURL     string        `yaml:"geocoder_url"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	LogLevel        slog.Level    `yaml:"log_level"`
	RateLimit       int           `yaml:"rate_limit"`
}

func NewConfig() *Config {
	env := getEnv("APP_ENV", EnvDevelopment)
	return &Config{
		Env:             env,
		APIBaseURL:      getEnv("API_BASE_URL", BaseURLFor(env)),
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret"),
		TokenStore:      getEnv("TOKEN_STORE", TokenStoreFile),
		TokenFile:       getEnv("TOKEN_FILE", defaultTokenFile()),
		AuthExpiredCode: getEnv("AUTH_EXPIRED_CODE", "TOKEN_EXPIRED"),
		GeocoderURL:     getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 10*time.Second),
		LogLevel:        getLevel("LOG_LEVEL", slog.LevelInfo),
		RateLimit:       getInt("RATE_LIMIT", 10),
	}
}

// BaseURLFor returns the backend base URL for a build environment.
// Unknown environments fall back to development.
func BaseURLFor(env string) string {
	if u, ok := baseURLs[env]; ok {
		return u
	}
	return baseURLs[EnvDevelopment]
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Env, validation.Required, validation.In(EnvDevelopment, EnvStaging, EnvProduction)),
		validation.Field(&c.APIBaseURL, validation.Required, validation.By(httpURL)),
		validation.Field(&c.HTTPPort, validation.Required, validation.By(port)),
		validation.Field(&c.TokenStore, validation.Required, validation.In(TokenStoreMemory, TokenStoreFile, TokenStoreRedis)),
		validation.Field(&c.TokenFile, validation.When(c.TokenStore == TokenStoreFile, validation.Required)),
		validation.Field(&c.RedisAddr, validation.When(c.TokenStore == TokenStoreRedis, validation.Required)),
		validation.Field(&c.AuthExpiredCode, validation.Required),
		validation.Field(&c.RequestTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.RateLimit, validation.Min(0)),
	)
}

// Address returns the gateway listen address.
func (c *Config) Address() string {
	return fmt.Sprintf(":%s", c.HTTPPort)
}

func httpURL(v any) error {
	s, _ := v.(string)
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return fmt.Errorf("must be an http(s) URL")
	}
	return nil
}

func port(v any) error {
	s, _ := v.(string)
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("must be a port number")
	}
	return nil
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".storefront-session.json"
	}
	return dir + "/storefront/session.json"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return n
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return d
	}
	return fallback
}

func getLevel(key string, fallback slog.Level) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(getEnv(key, ""))); err == nil {
		return lvl
	}
	return fallback
}
