package security

import "time"

type PasswordReport struct {
	Algorithm   string
	BcryptCost  int
	Memory      uint32
	Time        uint32
	Parallelism uint8
	MinLength   int
	MaxLength   int
}

type Report struct {
	SigningAlgorithm          string
	AccessTTL                 time.Duration
	RefreshTTL                time.Duration
	Leeway                    time.Duration
	Password                  PasswordReport
	LockoutActive             bool
	LockoutThreshold          int
	LockoutWindow             time.Duration
	FingerprintBindingEnabled bool
	LogoutEffective           bool
	RefreshLockoutRecheck     bool
	HashUpgradeOnLogin        bool
}

type ReportInput struct {
	SigningAlgorithm          string
	AccessTTL                 time.Duration
	RefreshTTL                time.Duration
	Leeway                    time.Duration
	Password                  PasswordReport
	LockoutEnabled            bool
	LockoutThreshold          int
	LockoutWindow             time.Duration
	FingerprintBindingEnabled bool
	RefreshLockoutRecheck     bool
	HashUpgradeOnLogin        bool
}

func BuildReport(input ReportInput) Report {
	lockout := input.LockoutEnabled &&
		input.LockoutThreshold > 0 &&
		input.LockoutWindow > 0

	report := Report{
		SigningAlgorithm:          input.SigningAlgorithm,
		AccessTTL:                 input.AccessTTL,
		RefreshTTL:                input.RefreshTTL,
		Leeway:                    input.Leeway,
		Password:                  input.Password,
		LockoutActive:             lockout,
		FingerprintBindingEnabled: input.FingerprintBindingEnabled,
		// Logout revokes by rebinding the fingerprint.
		LogoutEffective:       input.FingerprintBindingEnabled,
		RefreshLockoutRecheck: input.RefreshLockoutRecheck,
		HashUpgradeOnLogin:    input.HashUpgradeOnLogin,
	}
	if lockout {
		report.LockoutThreshold = input.LockoutThreshold
		report.LockoutWindow = input.LockoutWindow
	}
	if input.Password.Algorithm != "argon2id" {
		report.Password.Memory = 0
		report.Password.Time = 0
		report.Password.Parallelism = 0
	} else {
		report.Password.BcryptCost = 0
	}
	return report
}
