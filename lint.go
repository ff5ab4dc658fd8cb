package usersvc

import (
	"fmt"
	"time"

	"github.com/LeeSeungPhill/user-api-svc/password"
)

// LintSeverity ranks a LintWarning.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
)

func (s LintSeverity) String() string {
	if s == LintWarn {
		return "warn"
	}
	return "info"
}

// LintWarning is a configuration choice that is valid but weakens the
// security posture.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintWarnings is the result of Config.Lint.
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Code
	}
	return out
}

const (
	lintLeewayMax     = 30 * time.Second
	lintAccessTTLMax  = time.Hour
	lintRefreshTTLMax = 30 * 24 * time.Hour
	lintBcryptCostMin = 10
)

// Lint reports valid but risky settings. It does not validate; call
// Validate for that.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code string, sev LintSeverity, format string, args ...any) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	if c.JWT.Leeway > lintLeewayMax {
		add("leeway_large", LintInfo, "JWT leeway %s exceeds %s", c.JWT.Leeway, lintLeewayMax)
	}
	if c.JWT.AccessTTL > lintAccessTTLMax {
		add("access_ttl_long", LintWarn, "access TTL %s exceeds %s", c.JWT.AccessTTL, lintAccessTTLMax)
	}
	if c.JWT.RefreshTTL > lintRefreshTTLMax {
		add("refresh_ttl_long", LintInfo, "refresh TTL %s exceeds %s", c.JWT.RefreshTTL, lintRefreshTTLMax)
	}
	if !c.Lockout.Enabled {
		add("lockout_disabled", LintWarn, "failed-attempt lockout is disabled")
	}
	if !c.Policy.EnforceFingerprintBinding {
		add("fingerprint_binding_disabled", LintWarn, "access tokens are not bound; logout and newer logins do not revoke them")
	}
	if !c.Policy.RecheckLockoutOnRefresh {
		add("refresh_recheck_disabled", LintInfo, "locked accounts can still refresh tokens")
	}
	if password.Algorithm(c.Password.Algorithm) == password.AlgorithmBcrypt && c.Password.BcryptCost < lintBcryptCostMin {
		add("bcrypt_cost_low", LintWarn, "bcrypt cost %d is below %d", c.Password.BcryptCost, lintBcryptCostMin)
	}
	if c.Password.MinLength < 8 {
		add("password_min_short", LintWarn, "minimum password length %d is below 8", c.Password.MinLength)
	}

	return ws
}
