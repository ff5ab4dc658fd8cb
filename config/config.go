// Package config loads the service configuration from an optional YAML
// file, an optional .env file and the process environment, in increasing
// order of precedence.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	usersvc "github.com/LeeSeungPhill/user-api-svc"
	"github.com/LeeSeungPhill/user-api-svc/internal"
	"github.com/LeeSeungPhill/user-api-svc/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"

	generatedSecretSize = 64
)

// Environment variable names.
const (
	keySecret            = "SECRET_KEY"
	keyAlgorithm         = "ALGORITHM"
	keyAccessMinutes     = "ACCESS_TOKEN_EXPIRE_MINUTES"
	keyRefreshDays       = "REFRESH_TOKEN_EXPIRE_DAYS"
	keyIssuer            = "TOKEN_ISSUER"
	keyLockoutThreshold  = "LOCKOUT_THRESHOLD"
	keyLockoutMinutes    = "LOCKOUT_MINUTES"
	keyPasswordAlgorithm = "PASSWORD_ALGORITHM"
	keyBcryptCost        = "BCRYPT_COST"
	keyUpgradeOnLogin    = "PASSWORD_UPGRADE_ON_LOGIN"
	keyFingerprint       = "ENFORCE_FINGERPRINT_BINDING"
	keyRecheckRefresh    = "RECHECK_LOCKOUT_ON_REFRESH"
	keyMetricsEnabled    = "METRICS_ENABLED"
	keyLatencyHistograms = "METRICS_LATENCY_HISTOGRAMS"
	keyHTTPAddr          = "HTTP_ADDR"
	keyCORSOrigins       = "CORS_ALLOWED_ORIGINS"
	keyShutdownTimeout   = "SHUTDOWN_TIMEOUT"
	keyLogLevel          = "LOG_LEVEL"
	keyLogFormat         = "LOG_FORMAT"
	keyLogOutput         = "LOG_OUTPUT"
	keyStoreDriver       = "STORE_DRIVER"
	keySQLitePath        = "SQLITE_PATH"
	keyRedisAddr         = "REDIS_ADDR"
	keyRedisPassword     = "REDIS_PASSWORD"
	keyRedisDB           = "REDIS_DB"
	keyRedisPrefix       = "REDIS_PREFIX"
	keyOTLPEndpoint      = "OTLP_METRICS_ENDPOINT"
	keyOTLPInsecure      = "OTLP_METRICS_INSECURE"
	keyOTLPInterval      = "OTLP_METRICS_INTERVAL"
)

var knownKeys = []string{
	keySecret, keyAlgorithm, keyAccessMinutes, keyRefreshDays, keyIssuer,
	keyLockoutThreshold, keyLockoutMinutes, keyPasswordAlgorithm, keyBcryptCost,
	keyUpgradeOnLogin, keyFingerprint, keyRecheckRefresh, keyMetricsEnabled,
	keyLatencyHistograms, keyHTTPAddr, keyCORSOrigins, keyShutdownTimeout,
	keyLogLevel, keyLogFormat, keyLogOutput, keyStoreDriver, keySQLitePath,
	keyRedisAddr, keyRedisPassword, keyRedisDB, keyRedisPrefix,
	keyOTLPEndpoint, keyOTLPInsecure, keyOTLPInterval,
}

// ServiceConfig is the full process configuration.
type ServiceConfig struct {
	Engine usersvc.Config
	HTTP   HTTPConfig
	Log    logging.Config
	Store  StoreConfig
	OTLP   OTLPConfig

	// SecretGenerated is set when SECRET_KEY was absent and a random
	// process-local secret was generated. Tokens do not survive a restart.
	SecretGenerated bool
}

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	Addr               string
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration
}

// StoreConfig selects and configures the account store backend.
type StoreConfig struct {
	Driver     string
	SQLitePath string
	Redis      RedisConfig
}

// RedisConfig configures the Redis store backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// OTLPConfig configures the OTLP/HTTP metrics push. An empty Endpoint
// disables it.
type OTLPConfig struct {
	Endpoint string
	Insecure bool
	Interval time.Duration
}

// LoaderConfig holds optional file overrides.
type LoaderConfig struct {
	ConfigFile string
	EnvFile    string
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithConfigFile sets a YAML config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets a .env file path. Missing files are ignored.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// Load resolves the configuration and validates it.
func Load(opts ...LoaderOption) (*ServiceConfig, error) {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}

	v := viper.New()
	setDefaults(v)

	if lc.ConfigFile != "" {
		v.SetConfigFile(lc.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", lc.ConfigFile, err)
		}
	}

	v.AutomaticEnv()

	if lc.EnvFile != "" && fileExists(lc.EnvFile) {
		values, err := godotenv.Read(lc.EnvFile)
		if err != nil {
			return nil, fmt.Errorf("read env file %s: %w", lc.EnvFile, err)
		}
		for key, value := range values {
			if _, set := os.LookupEnv(key); set {
				continue
			}
			v.Set(key, value)
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := usersvc.DefaultConfig()

	v.SetDefault(keyAlgorithm, def.JWT.SigningMethod)
	v.SetDefault(keyAccessMinutes, int(def.JWT.AccessTTL/time.Minute))
	v.SetDefault(keyRefreshDays, int(def.JWT.RefreshTTL/(24*time.Hour)))
	v.SetDefault(keyLockoutThreshold, def.Lockout.Threshold)
	v.SetDefault(keyLockoutMinutes, int(def.Lockout.Window/time.Minute))
	v.SetDefault(keyPasswordAlgorithm, def.Password.Algorithm)
	v.SetDefault(keyBcryptCost, def.Password.BcryptCost)
	v.SetDefault(keyUpgradeOnLogin, def.Password.UpgradeOnLogin)
	v.SetDefault(keyFingerprint, def.Policy.EnforceFingerprintBinding)
	v.SetDefault(keyRecheckRefresh, def.Policy.RecheckLockoutOnRefresh)
	v.SetDefault(keyMetricsEnabled, def.Metrics.Enabled)
	v.SetDefault(keyLatencyHistograms, def.Metrics.EnableLatencyHistograms)

	v.SetDefault(keyHTTPAddr, ":8000")
	v.SetDefault(keyShutdownTimeout, "10s")
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogFormat, logging.FormatJSON)
	v.SetDefault(keyLogOutput, "stdout")
	v.SetDefault(keyStoreDriver, StoreSQLite)
	v.SetDefault(keySQLitePath, "user-api-svc.db")
	v.SetDefault(keyRedisAddr, "localhost:6379")
	v.SetDefault(keyRedisDB, 0)
	v.SetDefault(keyRedisPrefix, "usersvc")
	v.SetDefault(keyOTLPInterval, "15s")

	// Keys without defaults still need registering for AutomaticEnv lookups
	// through GetString.
	for _, key := range knownKeys {
		_ = v.BindEnv(key)
	}
}

func fromViper(v *viper.Viper) (*ServiceConfig, error) {
	cfg := &ServiceConfig{Engine: usersvc.DefaultConfig()}

	secret := strings.TrimSpace(v.GetString(keySecret))
	if secret == "" {
		raw, err := internal.NewSecret(generatedSecretSize)
		if err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
		secret = base64.RawURLEncoding.EncodeToString(raw)
		cfg.SecretGenerated = true
	}

	shutdown, err := time.ParseDuration(v.GetString(keyShutdownTimeout))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", keyShutdownTimeout, err)
	}

	otlpInterval, err := time.ParseDuration(v.GetString(keyOTLPInterval))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", keyOTLPInterval, err)
	}

	eng := &cfg.Engine
	eng.JWT.Secret = []byte(secret)
	eng.JWT.SigningMethod = strings.ToUpper(v.GetString(keyAlgorithm))
	eng.JWT.AccessTTL = time.Duration(v.GetInt(keyAccessMinutes)) * time.Minute
	eng.JWT.RefreshTTL = time.Duration(v.GetInt(keyRefreshDays)) * 24 * time.Hour
	eng.JWT.Issuer = v.GetString(keyIssuer)

	eng.Lockout.Threshold = v.GetInt(keyLockoutThreshold)
	eng.Lockout.Window = time.Duration(v.GetInt(keyLockoutMinutes)) * time.Minute
	eng.Lockout.Enabled = eng.Lockout.Threshold > 0

	eng.Password.Algorithm = strings.ToLower(v.GetString(keyPasswordAlgorithm))
	eng.Password.BcryptCost = v.GetInt(keyBcryptCost)
	eng.Password.UpgradeOnLogin = v.GetBool(keyUpgradeOnLogin)

	eng.Policy.EnforceFingerprintBinding = v.GetBool(keyFingerprint)
	eng.Policy.RecheckLockoutOnRefresh = v.GetBool(keyRecheckRefresh)

	eng.Metrics.Enabled = v.GetBool(keyMetricsEnabled)
	eng.Metrics.EnableLatencyHistograms = v.GetBool(keyLatencyHistograms)

	cfg.HTTP = HTTPConfig{
		Addr:               v.GetString(keyHTTPAddr),
		CORSAllowedOrigins: splitList(v.GetString(keyCORSOrigins)),
		ShutdownTimeout:    shutdown,
	}
	cfg.Log = logging.Config{
		Level:  v.GetString(keyLogLevel),
		Format: v.GetString(keyLogFormat),
		Output: v.GetString(keyLogOutput),
	}
	cfg.Store = StoreConfig{
		Driver:     strings.ToLower(v.GetString(keyStoreDriver)),
		SQLitePath: v.GetString(keySQLitePath),
		Redis: RedisConfig{
			Addr:     v.GetString(keyRedisAddr),
			Password: v.GetString(keyRedisPassword),
			DB:       v.GetInt(keyRedisDB),
			Prefix:   v.GetString(keyRedisPrefix),
		},
	}
	cfg.OTLP = OTLPConfig{
		Endpoint: v.GetString(keyOTLPEndpoint),
		Insecure: v.GetBool(keyOTLPInsecure),
		Interval: otlpInterval,
	}

	return cfg, nil
}

// Validate reports the first configuration problem found.
func (c *ServiceConfig) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return errors.New("HTTP_ADDR is required")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be > 0")
	}

	switch c.Store.Driver {
	case StoreSQLite:
		if strings.TrimSpace(c.Store.SQLitePath) == "" {
			return errors.New("SQLITE_PATH is required for the sqlite store")
		}
	case StoreRedis:
		if strings.TrimSpace(c.Store.Redis.Addr) == "" {
			return errors.New("REDIS_ADDR is required for the redis store")
		}
		if c.Store.Redis.DB < 0 {
			return errors.New("REDIS_DB must be >= 0")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	return nil
}

// EngineConfig returns a copy of the engine configuration.
func (c *ServiceConfig) EngineConfig() usersvc.Config {
	out := c.Engine
	out.JWT.Secret = append([]byte(nil), c.Engine.JWT.Secret...)
	return out
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
