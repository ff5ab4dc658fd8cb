package usersvc

import (
	"context"
	"time"
)

// Reason is the internal reason code recorded for every login attempt.
// Codes are written to the Ledger verbatim, whatever the boundary shows.
type Reason string

const (
	ReasonAccountNotFound Reason = "account_not_found"
	ReasonAccountLocked   Reason = "account_locked"
	ReasonInvalidPassword Reason = "invalid_password"
	ReasonLoginSuccess    Reason = "login_success"
)

// Account is the durable record kept per account number.
type Account struct {
	AcctNo int64

	NickName  string
	TelNo     string
	AppKey    string
	AppSecret string
	BotToken1 string
	BotToken2 string

	// CredentialHash is the encoded password hash. Empty means no password
	// is set and the account cannot authenticate.
	CredentialHash string

	// FailedAttempts only grows through IncrementFailedAttempts and only
	// returns to zero through ResetFailedAttempts.
	FailedAttempts int

	// LockedUntil, when non-nil and in the future, puts the account in the
	// Locked state regardless of FailedAttempts.
	LockedUntil *time.Time

	// AccessTokenFingerprint is the fingerprint of the last issued access
	// token. Empty means no revocation check is enforced.
	AccessTokenFingerprint string

	CreatedAt     time.Time
	LastChangedAt time.Time
}

// LockedAt reports whether the account is in the Locked state at now.
func (a Account) LockedAt(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// CreateAccountInput carries the fields stored at registration.
// CredentialHash is already hashed by the engine.
type CreateAccountInput struct {
	AcctNo         int64
	NickName       string
	TelNo          string
	AppKey         string
	AppSecret      string
	BotToken1      string
	BotToken2      string
	CredentialHash string
	CreatedAt      time.Time
}

// RegisterRequest is the caller-facing registration payload.
type RegisterRequest struct {
	AcctNo    int64
	NickName  string
	TelNo     string
	Password  string
	AppKey    string
	AppSecret string
	BotToken1 string
	BotToken2 string
}

// ProfileChange is the caller-facing partial profile change. Nil fields are
// left untouched; a non-nil NewPassword is hashed before it is stored.
type ProfileChange struct {
	NickName    *string
	TelNo       *string
	AppKey      *string
	AppSecret   *string
	BotToken1   *string
	BotToken2   *string
	NewPassword *string
}

// ProfileUpdate is the partial update handed to the AccountStore.
// CredentialHash is already hashed.
type ProfileUpdate struct {
	NickName       *string
	TelNo          *string
	AppKey         *string
	AppSecret      *string
	BotToken1      *string
	BotToken2      *string
	CredentialHash *string
	ChangedAt      time.Time
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// LoginAttempt is an immutable ledger entry. AcctNo is nil when the
// presented account number did not resolve to an account.
type LoginAttempt struct {
	AcctNo  *int64    `json:"acct_no"`
	Origin  string    `json:"origin,omitempty"`
	At      time.Time `json:"at"`
	Success bool      `json:"success"`
	Reason  Reason    `json:"reason"`
}

// AccountStore is the durable, per-account source of truth. Implementations
// must give read-your-writes consistency per account number.
//
// GetAccount, IncrementFailedAttempts, ResetFailedAttempts, LockUntil,
// SetAccessTokenFingerprint and UpdateProfile return ErrAccountNotFound for
// unknown accounts; CreateAccount returns ErrAccountExists for taken ones.
type AccountStore interface {
	GetAccount(ctx context.Context, acctNo int64) (Account, error)
	CreateAccount(ctx context.Context, input CreateAccountInput) (Account, error)
	// IncrementFailedAttempts returns the post-increment counter.
	IncrementFailedAttempts(ctx context.Context, acctNo int64) (int, error)
	// ResetFailedAttempts zeroes the counter and clears LockedUntil.
	ResetFailedAttempts(ctx context.Context, acctNo int64) error
	LockUntil(ctx context.Context, acctNo int64, until time.Time) error
	// SetAccessTokenFingerprint binds fingerprint to the account; "" clears it.
	SetAccessTokenFingerprint(ctx context.Context, acctNo int64, fingerprint string) error
	UpdateProfile(ctx context.Context, acctNo int64, update ProfileUpdate) (Account, error)
}

// FailureOutcome is the result of recording one invalid-password attempt.
type FailureOutcome struct {
	FailedAttempts int
	// LockedUntil is set when this attempt reached the threshold.
	LockedUntil *time.Time
}

// FailureRecorder is implemented by stores that apply the
// increment-then-check-then-lock sequence as a single operation on one
// account record. threshold < 1 never locks. Without it the engine falls
// back to IncrementFailedAttempts followed by LockUntil.
type FailureRecorder interface {
	RecordFailedAttempt(ctx context.Context, acctNo int64, threshold int, lockUntil time.Time) (FailureOutcome, error)
}

// Ledger is the append-only login attempt audit log.
type Ledger interface {
	Append(ctx context.Context, attempt LoginAttempt) error
}
