package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Lakshmikallagunta/Shams/internal/shared/validator"
	"github.com/joho/godotenv"
)

type AuditLogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Format  string `mapstructure:"format"`
}

type DatabaseRetryConfig struct {
	Enabled         *bool          `mapstructure:"enabled"`
	MaxRetries      *int           `mapstructure:"max_retries"`
	InitialInterval *time.Duration `mapstructure:"initial_interval"`
	MaxInterval     *time.Duration `mapstructure:"max_interval"`
	Multiplier      *float64       `mapstructure:"multiplier"`
	Randomization   *float64       `mapstructure:"randomization"`
	FatalErrorTypes []string       `mapstructure:"fatal_error_types"`
}

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	CORS           CORSConfig           `mapstructure:"cors"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Metrics        MetricsConfig        `mapstructure:"metrics"`
	Redis          RedisConfig          `mapstructure:"redis"`
	AuditLog       AuditLogConfig       `mapstructure:"audit_log"`
	AutoAttendance AutoAttendanceConfig `mapstructure:"auto_attendance"`
}

type RedisConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	MaxRetries      int           `mapstructure:"max_retries"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	StatusTTL       time.Duration `mapstructure:"status_ttl"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	Env             string        `mapstructure:"env"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	UseHTTPS        bool          `mapstructure:"use_https"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
}

// DatabaseConfig covers both supported stores. Driver selects which block is used.
type DatabaseConfig struct {
	Driver          string              `mapstructure:"driver"`
	Host            string              `mapstructure:"host"`
	Port            string              `mapstructure:"port"`
	User            string              `mapstructure:"user"`
	Password        string              `mapstructure:"password"`
	Name            string              `mapstructure:"name"`
	MongoURI        string              `mapstructure:"mongo_uri"`
	MaxOpenConns    int                 `mapstructure:"max_open_conns"`
	MaxIdleConns    int                 `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration       `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration       `mapstructure:"conn_max_idle_time"`
	ConnectTimeout  time.Duration       `mapstructure:"connect_timeout"`
	SocketTimeout   time.Duration       `mapstructure:"socket_timeout"`
	SlowQueryTime   time.Duration       `mapstructure:"slow_query_time"`
	Retry           DatabaseRetryConfig `mapstructure:"retry"`
	CircuitBreaker  CBConfig            `mapstructure:"circuit_breaker"`
}

type CBConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxFailures      uint32        `mapstructure:"max_failures"`
	FailureThreshold float64       `mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// AutoAttendanceConfig drives the daily leave-attendance job.
// Schedule accepts "HH:MM" or a five-field cron expression.
type AutoAttendanceConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Schedule        string        `mapstructure:"schedule" validate:"required"`
	StartupDelay    time.Duration `mapstructure:"startup_delay" validate:"gte=0"`
	Timezone        string        `mapstructure:"timezone" validate:"required"`
	OverwritePolicy string        `mapstructure:"overwrite_policy" validate:"required,oneof=preserve_manual overwrite"`
}

const (
	DriverMySQL = "mysql"
	DriverMongo = "mongo"
)

var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"https://shams-2.onrender.com",
	"https://shams.vercel.app",
	"https://*.vercel.app",
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	mongoURI := getEnv("ATLAS_URI", "")
	if mongoURI == "" {
		mongoURI = getEnv("MONGO_URI", "")
	}

	allowedOrigins := getEnvAsSlice("CORS_ALLOWED_ORIGINS", defaultAllowedOrigins)
	if clientURL := strings.TrimSpace(os.Getenv("CLIENT_URL")); clientURL != "" {
		allowedOrigins = append(allowedOrigins, clientURL)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", getEnv("SERVER_PORT", "5000")),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Env:             getEnv("NODE_ENV", getEnv("ENV", "development")),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			UseHTTPS:        getEnvAsBool("SERVER_USE_HTTPS", false),
			TrustedProxies:  getEnvAsSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("STORE_DRIVER", DriverMySQL),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "3306"),
			User:            getEnv("DB_USER", "shams"),
			Password:        getEnv("DB_PASSWORD", "shamspassword"),
			Name:            getEnv("DB_NAME", "shams"),
			MongoURI:        mongoURI,
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			ConnectTimeout:  getEnvAsDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
			SocketTimeout:   getEnvAsDuration("DB_SOCKET_TIMEOUT", 45*time.Second),
			SlowQueryTime:   getEnvAsDuration("DB_SLOW_QUERY_TIME", 500*time.Millisecond),
			Retry: DatabaseRetryConfig{
				Enabled:         getEnvAsBoolPtr("DB_RETRY_ENABLED", true),
				MaxRetries:      getEnvAsIntPtr("DB_RETRY_MAX_RETRIES", 3),
				InitialInterval: getEnvAsDurationPtr("DB_RETRY_INITIAL_INTERVAL", 100*time.Millisecond),
				MaxInterval:     getEnvAsDurationPtr("DB_RETRY_MAX_INTERVAL", 2*time.Second),
				Multiplier:      getEnvAsFloatPtr("DB_RETRY_MULTIPLIER", 2.0),
				Randomization:   getEnvAsFloatPtr("DB_RETRY_RANDOMIZATION", 0.2),
				FatalErrorTypes: getEnvAsSlice("DB_RETRY_FATAL_ERROR_TYPES", []string{"constraint_violation", "duplicate_key", "foreign_key_violation"}),
			},
			CircuitBreaker: CBConfig{
				Enabled:          getEnvAsBool("DB_CIRCUIT_BREAKER_ENABLED", true),
				MaxFailures:      uint32(getEnvAsInt("DB_MAX_FAILURES", 5)),
				FailureThreshold: getEnvAsFloat("DB_FAILURE_THRESHOLD", 0.5),
				ResetTimeout:     getEnvAsDuration("DB_RESET_TIMEOUT", 30*time.Second),
			},
		},
		CORS: CORSConfig{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Logging: LoggingConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("ENABLE_METRICS", true),
		},
		AuditLog: AuditLogConfig{
			Enabled: getEnvAsBool("AUDIT_LOG_ENABLED", true),
			Path:    getEnv("AUDIT_LOG_PATH", ""),
			Format:  getEnv("AUDIT_LOG_FORMAT", "json"),
		},
		Redis: RedisConfig{
			Enabled:         getEnvAsBool("ENABLE_REDIS", false),
			Host:            getEnv("REDIS_HOST", "localhost"),
			Port:            getEnv("REDIS_PORT", "6379"),
			Password:        getEnv("REDIS_PASSWORD", ""),
			DB:              getEnvAsInt("REDIS_DB", 0),
			MaxRetries:      getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:        getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns:    getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("REDIS_CONN_MAX_LIFETIME", 30*time.Minute),
			StatusTTL:       getEnvAsDuration("REDIS_STATUS_TTL", 7*24*time.Hour),
		},
		AutoAttendance: AutoAttendanceConfig{
			Enabled:         getEnvAsBool("AUTO_ATTENDANCE_ENABLED", true),
			Schedule:        getEnv("AUTO_ATTENDANCE_SCHEDULE", "00:01"),
			StartupDelay:    getEnvAsDuration("AUTO_ATTENDANCE_STARTUP_DELAY", 5*time.Second),
			Timezone:        getEnv("AUTO_ATTENDANCE_TIMEZONE", "Local"),
			OverwritePolicy: getEnv("AUTO_ATTENDANCE_OVERWRITE_POLICY", "preserve_manual"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	// Common validation for all environments
	if err := c.validateDependencies(); err != nil {
		return err
	}

	if err := c.validateAutoAttendance(); err != nil {
		return err
	}

	// Environment-specific validation
	switch c.Server.Env {
	case "production":
		if err := c.validateProduction(); err != nil {
			return err
		}
	case "staging":
		if err := c.validateStaging(); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validateDependencies() error {
	switch c.Database.Driver {
	case DriverMySQL, DriverMongo:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q (got %q)", DriverMySQL, DriverMongo, c.Database.Driver)
	}

	if c.Database.CircuitBreaker.Enabled {
		if c.Database.CircuitBreaker.MaxFailures < 1 {
			return fmt.Errorf("DB_MAX_FAILURES must be at least 1 when circuit breaker is enabled")
		}
		if c.Database.CircuitBreaker.FailureThreshold <= 0 ||
			c.Database.CircuitBreaker.FailureThreshold > 1.0 {
			return fmt.Errorf("DB_FAILURE_THRESHOLD must be between 0 and 1.0")
		}
		if c.Database.CircuitBreaker.ResetTimeout <= 0 {
			return fmt.Errorf("DB_RESET_TIMEOUT must be greater than 0")
		}
	}

	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("redis host required when redis is enabled")
	}

	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS cannot exceed DB_MAX_OPEN_CONNS")
	}

	if c.Database.SlowQueryTime <= 0 {
		return fmt.Errorf("DB_SLOW_QUERY_TIME must be greater than 0")
	}

	if c.Database.ConnectTimeout <= 0 {
		return fmt.Errorf("DB_CONNECT_TIMEOUT must be greater than 0")
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}

	if len(c.CORS.AllowedOrigins) == 0 {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS must contain at least one origin pattern")
	}

	return nil
}

func (c *Config) validateAutoAttendance() error {
	if err := validator.New().Validate(c.AutoAttendance); err != nil {
		msgs := validator.TranslateValidationErrors(err)
		if len(msgs) == 0 {
			return fmt.Errorf("invalid auto-attendance configuration: %w", err)
		}
		return fmt.Errorf("invalid auto-attendance configuration: %s: %s", msgs[0].Field, msgs[0].Message)
	}
	if _, err := time.LoadLocation(c.AutoAttendance.Timezone); err != nil {
		return fmt.Errorf("AUTO_ATTENDANCE_TIMEZONE %q is not a valid time zone: %w", c.AutoAttendance.Timezone, err)
	}
	return nil
}

func (c *Config) validateProduction() error {
	if c.Database.Driver == DriverMySQL {
		// Validate password strength
		weakPasswords := []string{"password", "shamspassword", "admin", "root", "test", ""}
		dbPass := strings.ToLower(c.Database.Password)
		for _, weak := range weakPasswords {
			if dbPass == weak {
				return fmt.Errorf("FATAL SECURITY: Weak or default database password detected in production (current: %s). Use a strong password with at least 16 characters, including uppercase, lowercase, numbers, and special characters", weak)
			}
		}
		if len(c.Database.Password) < 16 {
			return fmt.Errorf("FATAL SECURITY: Database password must be at least 16 characters in production (current length: %d)", len(c.Database.Password))
		}
		if !hasPasswordComplexity(c.Database.Password) {
			return fmt.Errorf("FATAL SECURITY: Database password must contain uppercase, lowercase, numbers, and special characters in production")
		}
	}

	for _, origin := range c.CORS.AllowedOrigins {
		if origin == "*" {
			return fmt.Errorf("FATAL SECURITY: CORS_ALLOWED_ORIGINS must not allow every origin in production")
		}
	}

	// Validate HTTPS is enabled in production
	if !c.Server.UseHTTPS {
		return fmt.Errorf("FATAL SECURITY: HTTPS must be enabled in production (SERVER_USE_HTTPS=true). HTTP connections expose sensitive data including authentication tokens")
	}

	// Production logging should be JSON format
	if c.Logging.Encoding != "json" {
		return fmt.Errorf("FATAL SECURITY: Production logging should use JSON format for better log aggregation and analysis")
	}

	return nil
}

func (c *Config) validateStaging() error {
	if c.Logging.Encoding != "json" {
		return fmt.Errorf("WARNING: Staging logging should use JSON format to match production logging configuration")
	}
	return nil
}

func hasPasswordComplexity(password string) bool {
	hasUpper := regexp.MustCompile(`[A-Z]`).MatchString(password)
	hasLower := regexp.MustCompile(`[a-z]`).MatchString(password)
	hasNumber := regexp.MustCompile(`[0-9]`).MatchString(password)
	hasSpecial := regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]`).MatchString(password)
	return hasUpper && hasLower && hasNumber && hasSpecial
}

func getEnvAsFloatPtr(key string, defaultValue float64) *float64 {
	value := os.Getenv(key)
	if value == "" {
		return &defaultValue
	}
	if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
		return &floatValue
	}
	return &defaultValue
}

func getEnvAsBoolPtr(key string, defaultValue bool) *bool {
	value := os.Getenv(key)
	if value == "" {
		return &defaultValue
	}
	if boolValue, err := strconv.ParseBool(value); err == nil {
		return &boolValue
	}
	return &defaultValue
}

func getEnvAsIntPtr(key string, defaultValue int) *int {
	value := os.Getenv(key)
	if value == "" {
		return &defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return &intValue
	}
	return &defaultValue
}

func getEnvAsDurationPtr(key string, defaultValue time.Duration) *time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return &defaultValue
	}
	if durationValue, err := time.ParseDuration(value); err == nil {
		return &durationValue
	}
	return &defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return append([]string(nil), defaultValue...)
	}

	parts := strings.Split(valueStr, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmedPart := strings.TrimSpace(part)
		if trimmedPart != "" {
			result = append(result, trimmedPart)
		}
	}
	return result
}
