package usersvc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/LeeSeungPhill/user-api-svc/internal"
	"github.com/LeeSeungPhill/user-api-svc/jwt"
	"github.com/LeeSeungPhill/user-api-svc/password"
	"github.com/rs/zerolog"
)

const tokenTypeBearer = "bearer"

// Engine authenticates accounts, issues token pairs and resolves bearer
// tokens back to accounts. It keeps no per-account state between calls; the
// AccountStore is the single source of truth.
//
// Concurrent logins against the same account race on the failure counter
// and lock timestamp. Unless the store implements FailureRecorder, a lost
// update can cross the threshold one or two calls late, or briefly undo a
// reset. This is accepted.
type Engine struct {
	config  Config
	store   AccountStore
	ledger  Ledger
	hasher  password.Hasher
	codec   *jwt.Manager
	metrics *Metrics
	log     zerolog.Logger
	now     func() time.Time
}

// Close releases engine resources. The store and ledger are owned by the
// caller and are not closed.
func (e *Engine) Close() {}

// MetricsSnapshot returns the current engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return emptySnapshot()
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observeSince(id MetricID, start time.Time) {
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(id, time.Since(start))
	}
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.ledger != nil && e.hasher != nil && e.codec != nil && e.now != nil
}

// AttemptLogin checks password for acctNo and, on success, returns a fresh
// access and refresh token pair. Every outcome is appended to the Ledger
// with its precise reason.
//
// Failures are ErrAccountNotFound, ErrAccountLocked and
// ErrInvalidCredentials. The attempt that reaches the lockout threshold
// still returns ErrInvalidCredentials; the lock applies from the next
// attempt. While locked the password is not verified at all.
func (e *Engine) AttemptLogin(ctx context.Context, acctNo int64, pass, clientOrigin string) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}

	start := time.Now()
	pair, err := e.attemptLogin(ctx, acctNo, pass, clientOrigin, e.now())
	e.observeSince(MetricLoginLatency, start)
	return pair, err
}

func (e *Engine) attemptLogin(ctx context.Context, acctNo int64, pass, clientOrigin string, now time.Time) (TokenPair, error) {
	acct, err := e.store.GetAccount(ctx, acctNo)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricLoginUnknownAccount)
			if err := e.recordAttempt(ctx, nil, clientOrigin, now, ReasonAccountNotFound); err != nil {
				return TokenPair{}, err
			}
			return TokenPair{}, ErrAccountNotFound
		}
		return TokenPair{}, e.infra("get account", err)
	}

	if acct.LockedAt(now) {
		e.metricInc(MetricLoginLocked)
		if err := e.recordAttempt(ctx, &acctNo, clientOrigin, now, ReasonAccountLocked); err != nil {
			return TokenPair{}, err
		}
		return TokenPair{}, ErrAccountLocked
	}

	if !e.verifyPassword(acct, pass) {
		outcome, err := e.recordFailure(ctx, acctNo, now)
		if err != nil {
			return TokenPair{}, err
		}
		e.metricInc(MetricLoginFailure)
		if outcome.LockedUntil != nil {
			e.metricInc(MetricLockoutTriggered)
			e.log.Warn().
				Int64("acct_no", acctNo).
				Int("failed_attempts", outcome.FailedAttempts).
				Time("locked_until", *outcome.LockedUntil).
				Msg("account locked after repeated failures")
		}
		if err := e.recordAttempt(ctx, &acctNo, clientOrigin, now, ReasonInvalidPassword); err != nil {
			return TokenPair{}, err
		}
		return TokenPair{}, ErrInvalidCredentials
	}

	if err := e.store.ResetFailedAttempts(ctx, acctNo); err != nil {
		return TokenPair{}, e.infra("reset failed attempts", err)
	}
	if err := e.recordAttempt(ctx, &acctNo, clientOrigin, now, ReasonLoginSuccess); err != nil {
		return TokenPair{}, err
	}

	pair, err := e.issuePair(ctx, acctNo, now)
	if err != nil {
		return TokenPair{}, err
	}

	e.upgradeHash(ctx, acct, pass, now)
	e.metricInc(MetricLoginSuccess)

	return pair, nil
}

// Refresh exchanges a refresh token for a new token pair. The presented
// refresh token stays valid until it expires.
//
// With RecheckLockoutOnRefresh the account must exist and must not be
// locked; a locked account yields ErrAccountForbidden.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}
	now := e.now()

	acctNo, err := e.verifySubject(refreshToken, jwt.PurposeRefresh, now)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return TokenPair{}, err
	}

	if e.config.Policy.RecheckLockoutOnRefresh {
		acct, err := e.store.GetAccount(ctx, acctNo)
		if err != nil {
			e.metricInc(MetricRefreshFailure)
			if errors.Is(err, ErrAccountNotFound) {
				return TokenPair{}, fmt.Errorf("%w: unknown subject", ErrTokenInvalid)
			}
			return TokenPair{}, e.infra("get account", err)
		}
		if acct.LockedAt(now) {
			e.metricInc(MetricRefreshForbidden)
			return TokenPair{}, ErrAccountForbidden
		}
	}

	pair, err := e.issuePair(ctx, acctNo, now)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return TokenPair{}, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.log.Debug().Int64("acct_no", acctNo).Msg("token pair refreshed")

	return pair, nil
}

// ResolveCurrentAccount verifies an access token and returns its account.
// A token that no longer matches the account's bound fingerprint yields
// ErrTokenRevoked; a locked account yields ErrAccountForbidden.
func (e *Engine) ResolveCurrentAccount(ctx context.Context, accessToken string) (Account, error) {
	if !e.ready() {
		return Account{}, ErrEngineNotReady
	}

	start := time.Now()
	acct, err := e.resolve(ctx, accessToken, e.now())
	e.observeSince(MetricResolveLatency, start)
	if err != nil {
		e.metricInc(MetricResolveFailure)
		return Account{}, err
	}

	e.metricInc(MetricResolveSuccess)
	return acct, nil
}

func (e *Engine) resolve(ctx context.Context, accessToken string, now time.Time) (Account, error) {
	acctNo, err := e.verifySubject(accessToken, jwt.PurposeAccess, now)
	if err != nil {
		return Account{}, err
	}

	acct, err := e.store.GetAccount(ctx, acctNo)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, fmt.Errorf("%w: unknown subject", ErrTokenInvalid)
		}
		return Account{}, e.infra("get account", err)
	}

	if e.config.Policy.EnforceFingerprintBinding && acct.AccessTokenFingerprint != "" &&
		!internal.FingerprintMatches(acct.AccessTokenFingerprint, accessToken) {
		e.metricInc(MetricTokenRevoked)
		return Account{}, ErrTokenRevoked
	}
	if acct.LockedAt(now) {
		return Account{}, ErrAccountForbidden
	}

	return acct, nil
}

func (e *Engine) verifySubject(token string, purpose jwt.Purpose, now time.Time) (int64, error) {
	claims, err := e.codec.VerifyPurpose(token, purpose, now)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	acctNo, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || acctNo <= 0 {
		return 0, fmt.Errorf("%w: malformed subject", ErrTokenInvalid)
	}
	return acctNo, nil
}

func (e *Engine) verifyPassword(acct Account, pass string) bool {
	if acct.CredentialHash == "" {
		return false
	}
	ok, err := e.hasher.Verify(pass, acct.CredentialHash)
	if err != nil {
		e.log.Error().Err(err).Int64("acct_no", acct.AcctNo).Msg("stored credential hash is unusable")
		return false
	}
	return ok
}

// recordFailure applies increment-then-check-then-lock for one invalid
// password attempt.
func (e *Engine) recordFailure(ctx context.Context, acctNo int64, now time.Time) (FailureOutcome, error) {
	threshold := 0
	if e.config.Lockout.Enabled {
		threshold = e.config.Lockout.Threshold
	}
	until := now.Add(e.config.Lockout.Window)

	if fr, ok := e.store.(FailureRecorder); ok {
		outcome, err := fr.RecordFailedAttempt(ctx, acctNo, threshold, until)
		if err != nil {
			return FailureOutcome{}, e.infra("record failed attempt", err)
		}
		return outcome, nil
	}

	count, err := e.store.IncrementFailedAttempts(ctx, acctNo)
	if err != nil {
		return FailureOutcome{}, e.infra("increment failed attempts", err)
	}
	outcome := FailureOutcome{FailedAttempts: count}
	if threshold > 0 && count >= threshold {
		if err := e.store.LockUntil(ctx, acctNo, until); err != nil {
			return FailureOutcome{}, e.infra("lock account", err)
		}
		outcome.LockedUntil = &until
	}
	return outcome, nil
}

// issuePair signs a fresh access and refresh token for acctNo and, with
// fingerprint binding on, binds the new access token to the account.
func (e *Engine) issuePair(ctx context.Context, acctNo int64, now time.Time) (TokenPair, error) {
	subject := strconv.FormatInt(acctNo, 10)

	access, accessExp, err := e.codec.Issue(subject, jwt.PurposeAccess, e.config.JWT.AccessTTL, now)
	if err != nil {
		return TokenPair{}, e.infra("issue access token", err)
	}
	refresh, refreshExp, err := e.codec.Issue(subject, jwt.PurposeRefresh, e.config.JWT.RefreshTTL, now)
	if err != nil {
		return TokenPair{}, e.infra("issue refresh token", err)
	}

	if e.config.Policy.EnforceFingerprintBinding {
		if err := e.store.SetAccessTokenFingerprint(ctx, acctNo, internal.Fingerprint(access)); err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return TokenPair{}, fmt.Errorf("%w: unknown subject", ErrTokenInvalid)
			}
			return TokenPair{}, e.infra("bind access token", err)
		}
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        tokenTypeBearer,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// upgradeHash rewrites a stored hash produced with outdated parameters.
// It runs after a successful login and never fails the login.
func (e *Engine) upgradeHash(ctx context.Context, acct Account, pass string, now time.Time) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.hasher.NeedsUpgrade(acct.CredentialHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.hasher.Hash(pass)
	if err != nil {
		e.log.Error().Err(err).Int64("acct_no", acct.AcctNo).Msg("password rehash failed")
		return
	}
	if _, err := e.store.UpdateProfile(ctx, acct.AcctNo, ProfileUpdate{CredentialHash: &hash, ChangedAt: now}); err != nil {
		e.metricInc(MetricStoreFailure)
		e.log.Error().Err(err).Int64("acct_no", acct.AcctNo).Msg("password rehash update failed")
		return
	}
	e.metricInc(MetricPasswordRehashed)
}

func (e *Engine) infra(op string, err error) error {
	e.metricInc(MetricStoreFailure)
	e.log.Error().Err(err).Str("op", op).Msg("account store failure")
	return fmt.Errorf("%w: %s: %w", ErrInfrastructure, op, err)
}
