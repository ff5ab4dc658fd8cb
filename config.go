package usersvc

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LeeSeungPhill/user-api-svc/jwt"
	"github.com/LeeSeungPhill/user-api-svc/password"
)

// Config is the engine configuration. It is fixed at Build time and treated
// as immutable afterwards.
type Config struct {
	JWT      JWTConfig
	Lockout  LockoutConfig
	Password PasswordConfig
	Policy   PolicyConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the token codec. Secret is process-wide and shared
// by access and refresh tokens.
type JWTConfig struct {
	Secret        []byte
	SigningMethod string // "HS256" (default), "HS384", "HS512"
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls failed-attempt lockout. The Threshold-th
// consecutive failure opens a lock window of length Window.
type LockoutConfig struct {
	Enabled   bool
	Threshold int
	Window    time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the hashing scheme and the password length policy
// applied on registration and password change.
type PasswordConfig struct {
	Algorithm         string // "bcrypt" (default) or "argon2id"
	BcryptCost        int
	Argon2Memory      uint32
	Argon2Time        uint32
	Argon2Parallelism uint8
	Argon2SaltLength  uint32
	Argon2KeyLength   uint32
	MinLength         int
	MaxLength         int
	UpgradeOnLogin    bool
}

/*
====================================
POLICY CONFIG
====================================
*/

// PolicyConfig holds the token policy switches.
type PolicyConfig struct {
	// EnforceFingerprintBinding binds every issued access token to the
	// account, so a newer login revokes older access tokens.
	EnforceFingerprintBinding bool
	// RecheckLockoutOnRefresh rejects refresh for accounts that are
	// currently locked.
	RecheckLockoutOnRefresh bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig toggles in-process counters and the resolve latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. JWT.Secret is left empty
// and must be supplied before Build.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: "HS256",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    14 * 24 * time.Hour,
		},
		Lockout: LockoutConfig{
			Enabled:   true,
			Threshold: 5,
			Window:    15 * time.Minute,
		},
		Password: PasswordConfig{
			Algorithm:         string(password.AlgorithmBcrypt),
			BcryptCost:        12,
			Argon2Memory:      65536,
			Argon2Time:        3,
			Argon2Parallelism: 2,
			Argon2SaltLength:  16,
			Argon2KeyLength:   32,
			MinLength:         8,
			MaxLength:         72,
			UpgradeOnLogin:    false,
		},
		Policy: PolicyConfig{
			EnforceFingerprintBinding: true,
			RecheckLockoutOnRefresh:   true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if len(cfg.JWT.Secret) > 0 {
		out.JWT.Secret = make([]byte, len(cfg.JWT.Secret))
		copy(out.JWT.Secret, cfg.JWT.Secret)
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT Secret must be at least 32 bytes")
	}
	switch strings.ToUpper(c.JWT.SigningMethod) {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported JWT signing method %q", c.JWT.SigningMethod)
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be greater than AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Lockout
	if c.Lockout.Enabled {
		if c.Lockout.Threshold < 1 {
			return errors.New("Lockout Threshold must be >= 1 when lockout is enabled")
		}
		if c.Lockout.Window <= 0 {
			return errors.New("Lockout Window must be > 0 when lockout is enabled")
		}
	}

	// Password
	switch password.Algorithm(c.Password.Algorithm) {
	case password.AlgorithmBcrypt, password.AlgorithmArgon2id:
	default:
		return fmt.Errorf("unsupported password algorithm %q", c.Password.Algorithm)
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}
	if password.Algorithm(c.Password.Algorithm) == password.AlgorithmBcrypt && c.Password.MaxLength > 72 {
		return errors.New("Password MaxLength must be <= 72 with bcrypt")
	}
	if _, err := password.NewBcrypt(c.Password.BcryptCost); err != nil {
		return fmt.Errorf("Password: %w", err)
	}
	if err := c.hasherConfig().Argon2.Validate(); err != nil {
		return fmt.Errorf("Password: %w", err)
	}

	return nil
}

func (c *Config) codecConfig() jwt.Config {
	return jwt.Config{
		Secret:        c.JWT.Secret,
		SigningMethod: jwt.SigningMethod(strings.ToUpper(c.JWT.SigningMethod)),
		Issuer:        c.JWT.Issuer,
		Leeway:        c.JWT.Leeway,
	}
}

func (c *Config) hasherConfig() password.Config {
	return password.Config{
		Algorithm:  password.Algorithm(c.Password.Algorithm),
		BcryptCost: c.Password.BcryptCost,
		Argon2: password.Argon2Config{
			Memory:      c.Password.Argon2Memory,
			Time:        c.Password.Argon2Time,
			Parallelism: c.Password.Argon2Parallelism,
			SaltLength:  c.Password.Argon2SaltLength,
			KeyLength:   c.Password.Argon2KeyLength,
		},
	}
}
