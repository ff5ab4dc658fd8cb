package usersvc

import (
	"strings"

	"github.com/LeeSeungPhill/user-api-svc/internal/security"
)

// SecurityReport summarizes the security posture of a built engine.
type SecurityReport = security.Report

// PasswordConfigReport is the hashing part of SecurityReport.
type PasswordConfigReport = security.PasswordReport

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return security.BuildReport(security.ReportInput{
		SigningAlgorithm: strings.ToUpper(e.config.JWT.SigningMethod),
		AccessTTL:        e.config.JWT.AccessTTL,
		RefreshTTL:       e.config.JWT.RefreshTTL,
		Leeway:           e.config.JWT.Leeway,
		Password: security.PasswordReport{
			Algorithm:   e.config.Password.Algorithm,
			BcryptCost:  e.config.Password.BcryptCost,
			Memory:      e.config.Password.Argon2Memory,
			Time:        e.config.Password.Argon2Time,
			Parallelism: e.config.Password.Argon2Parallelism,
			MinLength:   e.config.Password.MinLength,
			MaxLength:   e.config.Password.MaxLength,
		},
		LockoutEnabled:            e.config.Lockout.Enabled,
		LockoutThreshold:          e.config.Lockout.Threshold,
		LockoutWindow:             e.config.Lockout.Window,
		FingerprintBindingEnabled: e.config.Policy.EnforceFingerprintBinding,
		RefreshLockoutRecheck:     e.config.Policy.RecheckLockoutOnRefresh,
		HashUpgradeOnLogin:        e.config.Password.UpgradeOnLogin,
	})
}
