package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(keySecret, testSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SecretGenerated {
		t.Fatal("expected configured secret to be used")
	}
	if string(cfg.Engine.JWT.Secret) != testSecret {
		t.Fatalf("unexpected secret %q", cfg.Engine.JWT.Secret)
	}
	if cfg.Engine.JWT.SigningMethod != "HS256" {
		t.Fatalf("expected HS256, got %s", cfg.Engine.JWT.SigningMethod)
	}
	if cfg.Engine.JWT.AccessTTL != 15*time.Minute || cfg.Engine.JWT.RefreshTTL != 14*24*time.Hour {
		t.Fatalf("unexpected ttls %v %v", cfg.Engine.JWT.AccessTTL, cfg.Engine.JWT.RefreshTTL)
	}
	if !cfg.Engine.Lockout.Enabled || cfg.Engine.Lockout.Threshold != 5 || cfg.Engine.Lockout.Window != 15*time.Minute {
		t.Fatalf("unexpected lockout %+v", cfg.Engine.Lockout)
	}
	if cfg.HTTP.Addr != ":8000" || cfg.HTTP.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected http config %+v", cfg.HTTP)
	}
	if cfg.Store.Driver != StoreSQLite || cfg.Store.SQLitePath == "" {
		t.Fatalf("unexpected store config %+v", cfg.Store)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log config %+v", cfg.Log)
	}
}

func TestLoadGeneratesSecret(t *testing.T) {
	t.Setenv(keySecret, "")

	first, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !first.SecretGenerated {
		t.Fatal("expected generated secret flag")
	}
	if len(first.Engine.JWT.Secret) < 64 {
		t.Fatalf("expected at least 64 bytes of secret, got %d", len(first.Engine.JWT.Secret))
	}
	if strings.ContainsAny(string(first.Engine.JWT.Secret), "+/=") {
		t.Fatal("expected URL-safe secret")
	}

	second, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(first.Engine.JWT.Secret) == string(second.Engine.JWT.Secret) {
		t.Fatal("expected a fresh secret per load")
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv(keySecret, testSecret)
	t.Setenv(keyAlgorithm, "hs512")
	t.Setenv(keyAccessMinutes, "5")
	t.Setenv(keyRefreshDays, "2")
	t.Setenv(keyLockoutThreshold, "3")
	t.Setenv(keyLockoutMinutes, "1")
	t.Setenv(keyFingerprint, "false")
	t.Setenv(keyCORSOrigins, "https://a.example, https://b.example,")
	t.Setenv(keyStoreDriver, "Redis")
	t.Setenv(keyRedisAddr, "cache:6380")
	t.Setenv(keyRedisDB, "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.JWT.SigningMethod != "HS512" {
		t.Fatalf("expected HS512, got %s", cfg.Engine.JWT.SigningMethod)
	}
	if cfg.Engine.JWT.AccessTTL != 5*time.Minute || cfg.Engine.JWT.RefreshTTL != 48*time.Hour {
		t.Fatalf("unexpected ttls %v %v", cfg.Engine.JWT.AccessTTL, cfg.Engine.JWT.RefreshTTL)
	}
	if cfg.Engine.Lockout.Threshold != 3 || cfg.Engine.Lockout.Window != time.Minute {
		t.Fatalf("unexpected lockout %+v", cfg.Engine.Lockout)
	}
	if cfg.Engine.Policy.EnforceFingerprintBinding {
		t.Fatal("expected fingerprint binding disabled")
	}
	if len(cfg.HTTP.CORSAllowedOrigins) != 2 || cfg.HTTP.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.HTTP.CORSAllowedOrigins)
	}
	if cfg.Store.Driver != StoreRedis || cfg.Store.Redis.Addr != "cache:6380" || cfg.Store.Redis.DB != 2 {
		t.Fatalf("unexpected store config %+v", cfg.Store)
	}
}

func TestLoadOTLPMetrics(t *testing.T) {
	t.Setenv(keySecret, testSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.OTLP.Endpoint != "" || cfg.OTLP.Interval != 15*time.Second {
		t.Fatalf("unexpected otlp defaults %+v", cfg.OTLP)
	}

	t.Setenv(keyOTLPEndpoint, "collector:4318")
	t.Setenv(keyOTLPInsecure, "true")
	t.Setenv(keyOTLPInterval, "30s")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.OTLP.Endpoint != "collector:4318" || !cfg.OTLP.Insecure || cfg.OTLP.Interval != 30*time.Second {
		t.Fatalf("unexpected otlp config %+v", cfg.OTLP)
	}
}

func TestLoadZeroThresholdDisablesLockout(t *testing.T) {
	t.Setenv(keySecret, testSecret)
	t.Setenv(keyLockoutThreshold, "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.Lockout.Enabled {
		t.Fatal("expected lockout disabled")
	}
}

func TestLoadEnvFile(t *testing.T) {
	t.Setenv(keySecret, testSecret)
	t.Setenv(keyHTTPAddr, ":9999")
	envFile := writeFile(t, ".env", "HTTP_ADDR=:7000\nLOG_LEVEL=debug\nSTORE_DRIVER=memory\n")

	cfg, err := Load(WithEnvFile(envFile))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTP.Addr != ":9999" {
		t.Fatalf("expected real environment to win, got %s", cfg.HTTP.Addr)
	}
	if cfg.Log.Level != "debug" || cfg.Store.Driver != StoreMemory {
		t.Fatalf("expected env file values, got %+v %+v", cfg.Log, cfg.Store)
	}
	if _, set := os.LookupEnv(keyLogLevel); set {
		t.Fatal("expected env file to leave the process environment untouched")
	}
}

func TestLoadMissingEnvFileIgnored(t *testing.T) {
	t.Setenv(keySecret, testSecret)

	if _, err := Load(WithEnvFile(filepath.Join(t.TempDir(), "absent.env"))); err != nil {
		t.Fatalf("expected missing env file to be ignored, got %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv(keySecret, testSecret)
	yml := writeFile(t, "config.yml", "access_token_expire_minutes: 30\nsqlite_path: /tmp/accounts.db\n")
	envFile := writeFile(t, ".env", "ACCESS_TOKEN_EXPIRE_MINUTES=20\n")

	cfg, err := Load(WithConfigFile(yml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.JWT.AccessTTL != 30*time.Minute || cfg.Store.SQLitePath != "/tmp/accounts.db" {
		t.Fatalf("expected YAML values, got %v %s", cfg.Engine.JWT.AccessTTL, cfg.Store.SQLitePath)
	}

	cfg, err = Load(WithConfigFile(yml), WithEnvFile(envFile))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.JWT.AccessTTL != 20*time.Minute {
		t.Fatalf("expected env file to override YAML, got %v", cfg.Engine.JWT.AccessTTL)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"short secret", map[string]string{keySecret: "short"}},
		{"bad algorithm", map[string]string{keyAlgorithm: "RS256"}},
		{"refresh not longer than access", map[string]string{keyAccessMinutes: "2880", keyRefreshDays: "1"}},
		{"bad driver", map[string]string{keyStoreDriver: "postgres"}},
		{"bad log level", map[string]string{keyLogLevel: "chatty"}},
		{"bad shutdown", map[string]string{keyShutdownTimeout: "soon"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(keySecret, testSecret)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestEngineConfigCopiesSecret(t *testing.T) {
	t.Setenv(keySecret, testSecret)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	eng := cfg.EngineConfig()
	eng.JWT.Secret[0] = 'X'
	if cfg.Engine.JWT.Secret[0] == 'X' {
		t.Fatal("expected EngineConfig to copy the secret")
	}
}
