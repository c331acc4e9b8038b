package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Certificates CertificatesConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CertificatesConfig governs numbering, rendering and artifact storage.
type CertificatesConfig struct {
	NumberPrefix      string
	StorageDir        string
	VerifyBaseURL     string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	TemplateCacheTTL  time.Duration
	VerifyCacheTTL    time.Duration
	RenderAsync       bool
	RenderConcurrency int
	RenderRetries     int
	RenderRetryDelay  time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Certificates = CertificatesConfig{
		NumberPrefix:      v.GetString("CERT_NUMBER_PREFIX"),
		StorageDir:        v.GetString("CERT_STORAGE_DIR"),
		VerifyBaseURL:     v.GetString("CERT_VERIFY_BASE_URL"),
		SignedURLSecret:   v.GetString("CERT_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("CERT_SIGNED_URL_TTL"), 24*time.Hour),
		TemplateCacheTTL:  parseDuration(v.GetString("CERT_TEMPLATE_CACHE_TTL"), 10*time.Minute),
		VerifyCacheTTL:    parseDuration(v.GetString("CERT_VERIFY_CACHE_TTL"), time.Hour),
		RenderAsync:       v.GetBool("CERT_RENDER_ASYNC"),
		RenderConcurrency: v.GetInt("CERT_RENDER_CONCURRENCY"),
		RenderRetries:     v.GetInt("CERT_RENDER_RETRIES"),
		RenderRetryDelay:  parseDuration(v.GetString("CERT_RENDER_RETRY_DELAY"), 5*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "gradcert")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CERT_NUMBER_PREFIX", "PFX")
	v.SetDefault("CERT_STORAGE_DIR", "./certificates")
	v.SetDefault("CERT_VERIFY_BASE_URL", "http://localhost:8080/verify/certificates")
	v.SetDefault("CERT_SIGNED_URL_SECRET", "dev_certificates_secret")
	v.SetDefault("CERT_SIGNED_URL_TTL", "24h")
	v.SetDefault("CERT_TEMPLATE_CACHE_TTL", "10m")
	v.SetDefault("CERT_VERIFY_CACHE_TTL", "1h")
	v.SetDefault("CERT_RENDER_ASYNC", false)
	v.SetDefault("CERT_RENDER_CONCURRENCY", 2)
	v.SetDefault("CERT_RENDER_RETRIES", 3)
	v.SetDefault("CERT_RENDER_RETRY_DELAY", "5s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
