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

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Attendance AttendanceConfig
	Reports    ReportsConfig
	Import     ImportConfig
	Mail       MailConfig
	Cache      CacheConfig
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
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	Issuer            string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AttendanceConfig holds the offsets used by the marking window evaluator.
type AttendanceConfig struct {
	MarkWindow   time.Duration
	EditWindow   time.Duration
	ExtensionTTL time.Duration
	Timezone     string
}

// ReportsConfig configures report exports and their storage.
type ReportsConfig struct {
	StorageDir         string
	SignedURLSecret    string
	SignedURLTTL       time.Duration
	CleanupInterval    time.Duration
	DefaulterThreshold float64
}

// ImportConfig bounds bulk uploads.
type ImportConfig struct {
	MaxUploadBytes int64
	PasswordLength int
}

// MailConfig describes the SMTP relay used for credential delivery.
type MailConfig struct {
	Enabled     bool
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	FromName    string
	LoginURL    string
	Workers     int
	MaxRetries  int
	RetryDelay  time.Duration
	InsecureTLS bool
}

// CacheConfig toggles Redis caching of report summaries.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
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
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Attendance = AttendanceConfig{
		MarkWindow:   parseDuration(v.GetString("ATTENDANCE_MARK_WINDOW"), 10*time.Minute),
		EditWindow:   parseDuration(v.GetString("ATTENDANCE_EDIT_WINDOW"), 20*time.Minute),
		ExtensionTTL: parseDuration(v.GetString("ATTENDANCE_EXTENSION_TTL"), 24*time.Hour),
		Timezone:     v.GetString("ATTENDANCE_TIMEZONE"),
	}

	threshold := v.GetFloat64("REPORTS_DEFAULTER_THRESHOLD")
	if threshold <= 0 || threshold > 100 {
		threshold = 75
	}
	cfg.Reports = ReportsConfig{
		StorageDir:         v.GetString("REPORTS_STORAGE_DIR"),
		SignedURLSecret:    v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:       parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:    parseDuration(v.GetString("REPORTS_CLEANUP_INTERVAL"), time.Hour),
		DefaulterThreshold: threshold,
	}

	maxUpload := v.GetInt64("IMPORT_MAX_UPLOAD_BYTES")
	if maxUpload <= 0 {
		maxUpload = 5 * 1024 * 1024
	}
	cfg.Import = ImportConfig{
		MaxUploadBytes: maxUpload,
		PasswordLength: v.GetInt("IMPORT_PASSWORD_LENGTH"),
	}

	cfg.Mail = MailConfig{
		Enabled:     v.GetBool("MAIL_ENABLED"),
		Host:        v.GetString("SMTP_HOST"),
		Port:        v.GetInt("SMTP_PORT"),
		Username:    v.GetString("SMTP_USERNAME"),
		Password:    v.GetString("SMTP_PASSWORD"),
		From:        v.GetString("MAIL_FROM"),
		FromName:    v.GetString("MAIL_FROM_NAME"),
		LoginURL:    v.GetString("MAIL_LOGIN_URL"),
		Workers:     v.GetInt("MAIL_WORKERS"),
		MaxRetries:  v.GetInt("MAIL_MAX_RETRIES"),
		RetryDelay:  parseDuration(v.GetString("MAIL_RETRY_DELAY"), 5*time.Second),
		InsecureTLS: v.GetBool("SMTP_INSECURE_TLS"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_REPORT_CACHE"),
		TTL:     parseDuration(v.GetString("REPORT_CACHE_TTL"), 5*time.Minute),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "campus_attendance")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "campus-attendance")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ATTENDANCE_MARK_WINDOW", "10m")
	v.SetDefault("ATTENDANCE_EDIT_WINDOW", "20m")
	v.SetDefault("ATTENDANCE_EXTENSION_TTL", "24h")
	v.SetDefault("ATTENDANCE_TIMEZONE", "Local")

	v.SetDefault("REPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("REPORTS_SIGNED_URL_SECRET", "dev_reports_secret")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("REPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("REPORTS_DEFAULTER_THRESHOLD", 75)

	v.SetDefault("IMPORT_MAX_UPLOAD_BYTES", 5*1024*1024)
	v.SetDefault("IMPORT_PASSWORD_LENGTH", 10)

	v.SetDefault("MAIL_ENABLED", false)
	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("MAIL_FROM", "no-reply@campus.local")
	v.SetDefault("MAIL_FROM_NAME", "Attendance Office")
	v.SetDefault("MAIL_LOGIN_URL", "http://localhost:3000/login")
	v.SetDefault("MAIL_WORKERS", 2)
	v.SetDefault("MAIL_MAX_RETRIES", 3)
	v.SetDefault("MAIL_RETRY_DELAY", "5s")
	v.SetDefault("SMTP_INSECURE_TLS", false)

	v.SetDefault("ENABLE_REPORT_CACHE", false)
	v.SetDefault("REPORT_CACHE_TTL", "5m")
}

// isMissingFile reports whether viper failed because the explicit .env path is absent.
func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
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
