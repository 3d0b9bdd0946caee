package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Host        string `mapstructure:"HOST"`
	Port        int    `mapstructure:"PORT"`
	Environment string `mapstructure:"ENVIRONMENT"`
	Version     string `mapstructure:"VERSION"`
	APIPrefix   string `mapstructure:"API_PREFIX"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	CORSOrigins string `mapstructure:"CORS_ORIGINS"` // comma separated

	DBType string `mapstructure:"DB_TYPE"` // sqlite, postgres, mysql
	DSN    string `mapstructure:"DSN"`

	KVBackend     string `mapstructure:"KV_BACKEND"` // redis, memory
	RedisHost     string `mapstructure:"REDIS_HOST"`
	RedisPort     int    `mapstructure:"REDIS_PORT"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	JWTSecretKey                string `mapstructure:"JWT_SECRET_KEY"`
	JWTAlgorithm                string `mapstructure:"JWT_ALGORITHM"`
	JWTAccessTokenExpireMinutes int    `mapstructure:"JWT_ACCESS_TOKEN_EXPIRE_MINUTES"`
	// Reserved; no refresh flow reads it yet.
	JWTRefreshTokenExpireDays int `mapstructure:"JWT_REFRESH_TOKEN_EXPIRE_DAYS"`

	PasswordHasher string        `mapstructure:"PASSWORD_HASHER"` // bcrypt, argon2id
	BcryptCost     int           `mapstructure:"BCRYPT_COST"`
	ResetTokenTTL  time.Duration `mapstructure:"RESET_TOKEN_TTL"`
	BlacklistTTL   time.Duration `mapstructure:"BLACKLIST_TTL"`

	SMTPHost      string `mapstructure:"SMTP_HOST"` // empty logs emails instead of sending
	SMTPPort      int    `mapstructure:"SMTP_PORT"`
	SMTPUsername  string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword  string `mapstructure:"SMTP_PASSWORD"`
	SMTPFromEmail string `mapstructure:"SMTP_FROM_EMAIL"`
	SMTPFromName  string `mapstructure:"SMTP_FROM_NAME"`
	ResetLinkBase string `mapstructure:"RESET_LINK_BASE"`

	LoginRateLimit  int           `mapstructure:"LOGIN_RATE_LIMIT"` // attempts per window; 0 disables
	RateLimitWindow time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`

	MetricsEnabled    bool    `mapstructure:"METRICS_ENABLED"`
	OTLPEndpoint      string  `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"` // empty disables trace export
	TraceSamplingRate float64 `mapstructure:"TRACE_SAMPLING_RATE"`
}

var defaults = map[string]any{
	"HOST":        "localhost",
	"PORT":        8000,
	"ENVIRONMENT": "development",
	"VERSION":     "0.1.0",
	"API_PREFIX":  "/api",
	"LOG_LEVEL":   "info",

	"CORS_ORIGINS": "http://localhost:3000,http://localhost:8080",

	"DB_TYPE": "sqlite",
	"DSN":     "warden.db",

	"KV_BACKEND":     "redis",
	"REDIS_HOST":     "localhost",
	"REDIS_PORT":     6379,
	"REDIS_PASSWORD": "",
	"REDIS_DB":       0,

	"JWT_SECRET_KEY":                  "",
	"JWT_ALGORITHM":                   "HS256",
	"JWT_ACCESS_TOKEN_EXPIRE_MINUTES": 30,
	"JWT_REFRESH_TOKEN_EXPIRE_DAYS":   7,

	"PASSWORD_HASHER": "bcrypt",
	"BCRYPT_COST":     12,
	"RESET_TOKEN_TTL": "1h",
	"BLACKLIST_TTL":   "1h",

	"SMTP_HOST":       "",
	"SMTP_PORT":       587,
	"SMTP_USERNAME":   "",
	"SMTP_PASSWORD":   "",
	"SMTP_FROM_EMAIL": "noreply@example.com",
	"SMTP_FROM_NAME":  "Warden",
	"RESET_LINK_BASE": "http://localhost:3000/reset-password",

	"LOGIN_RATE_LIMIT":  10,
	"RATE_LIMIT_WINDOW": "1m",

	"METRICS_ENABLED":             true,
	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
	"TRACE_SAMPLING_RATE":         1.0,
}

// LoadConfig reads the configuration from the environment, falling back to
// a .env file in the working directory and then to defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isNotExist(err) {
			return nil, fmt.Errorf("config: read .env: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every setting the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecretKey == "" {
		errs = append(errs, errors.New("JWT_SECRET_KEY must be set"))
	}
	switch c.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("JWT_ALGORITHM %q is not supported", c.JWTAlgorithm))
	}
	if c.JWTAccessTokenExpireMinutes <= 0 {
		errs = append(errs, errors.New("JWT_ACCESS_TOKEN_EXPIRE_MINUTES must be positive"))
	}
	switch strings.ToLower(c.PasswordHasher) {
	case "bcrypt":
		if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
			errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
		}
	case "argon2id", "argon2":
	default:
		errs = append(errs, fmt.Errorf("PASSWORD_HASHER %q is not supported", c.PasswordHasher))
	}
	switch c.KVBackend {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("KV_BACKEND %q is not supported", c.KVBackend))
	}
	if c.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("RESET_TOKEN_TTL must be positive"))
	}
	if c.BlacklistTTL <= 0 {
		errs = append(errs, errors.New("BLACKLIST_TTL must be positive"))
	}
	if c.LoginRateLimit < 0 {
		errs = append(errs, errors.New("LOGIN_RATE_LIMIT must not be negative"))
	}
	if c.LoginRateLimit > 0 && c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive when LOGIN_RATE_LIMIT is set"))
	}
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		errs = append(errs, errors.New("TRACE_SAMPLING_RATE must be between 0 and 1"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Port))
	}
	return errors.Join(errs...)
}

// CORSOriginsList splits CORS_ORIGINS, dropping blanks.
func (c *Config) CORSOriginsList() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (c *Config) RedisAddr() string {
	return net.JoinHostPort(c.RedisHost, strconv.Itoa(c.RedisPort))
}

func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) AccessTokenLifetime() time.Duration {
	return time.Duration(c.JWTAccessTokenExpireMinutes) * time.Minute
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
