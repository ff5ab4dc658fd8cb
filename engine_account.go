package usersvc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/LeeSeungPhill/user-api-svc/internal"
)

// Register creates an account with a hashed password. The account starts
// Active with no failed attempts and no bound access token.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (Account, error) {
	if !e.ready() {
		return Account{}, ErrEngineNotReady
	}
	if req.AcctNo <= 0 {
		return Account{}, ErrInvalidAccountNumber
	}

	nick := strings.TrimSpace(req.NickName)
	tel := strings.TrimSpace(req.TelNo)
	if nick == "" || tel == "" {
		return Account{}, fmt.Errorf("%w: nick name and phone number are required", ErrInvalidProfile)
	}
	if err := e.checkPasswordPolicy(req.Password); err != nil {
		return Account{}, err
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return Account{}, fmt.Errorf("%w: hash password: %w", ErrInfrastructure, err)
	}

	acct, err := e.store.CreateAccount(ctx, CreateAccountInput{
		AcctNo:         req.AcctNo,
		NickName:       nick,
		TelNo:          tel,
		AppKey:         req.AppKey,
		AppSecret:      req.AppSecret,
		BotToken1:      req.BotToken1,
		BotToken2:      req.BotToken2,
		CredentialHash: hash,
		CreatedAt:      e.now(),
	})
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricAccountCreationDuplicate)
			return Account{}, ErrAccountExists
		}
		return Account{}, e.infra("create account", err)
	}

	e.metricInc(MetricAccountCreationSuccess)
	e.log.Info().Int64("acct_no", acct.AcctNo).Msg("account registered")

	return acct, nil
}

// UpdateProfile applies a partial profile change. A non-nil NewPassword is
// checked against the password policy and stored hashed.
func (e *Engine) UpdateProfile(ctx context.Context, acctNo int64, change ProfileChange) (Account, error) {
	if !e.ready() {
		return Account{}, ErrEngineNotReady
	}
	if acctNo <= 0 {
		return Account{}, ErrInvalidAccountNumber
	}

	update := ProfileUpdate{
		AppKey:    change.AppKey,
		AppSecret: change.AppSecret,
		BotToken1: change.BotToken1,
		BotToken2: change.BotToken2,
		ChangedAt: e.now(),
	}
	if change.NickName != nil {
		nick := strings.TrimSpace(*change.NickName)
		if nick == "" {
			return Account{}, fmt.Errorf("%w: nick name cannot be empty", ErrInvalidProfile)
		}
		update.NickName = &nick
	}
	if change.TelNo != nil {
		tel := strings.TrimSpace(*change.TelNo)
		if tel == "" {
			return Account{}, fmt.Errorf("%w: phone number cannot be empty", ErrInvalidProfile)
		}
		update.TelNo = &tel
	}
	if change.NewPassword != nil {
		if err := e.checkPasswordPolicy(*change.NewPassword); err != nil {
			return Account{}, err
		}
		hash, err := e.hasher.Hash(*change.NewPassword)
		if err != nil {
			return Account{}, fmt.Errorf("%w: hash password: %w", ErrInfrastructure, err)
		}
		update.CredentialHash = &hash
	}

	acct, err := e.store.UpdateProfile(ctx, acctNo, update)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, e.infra("update profile", err)
	}

	e.metricInc(MetricProfileUpdated)
	if update.CredentialHash != nil {
		e.metricInc(MetricPasswordChanged)
	}
	e.log.Info().
		Int64("acct_no", acctNo).
		Bool("password_changed", update.CredentialHash != nil).
		Msg("profile updated")

	return acct, nil
}

// UnlockAccount clears the failure counter and any lock window.
func (e *Engine) UnlockAccount(ctx context.Context, acctNo int64) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.store.ResetFailedAttempts(ctx, acctNo); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return e.infra("unlock account", err)
	}

	e.metricInc(MetricAccountUnlocked)
	e.log.Warn().Int64("acct_no", acctNo).Msg("account unlocked")
	return nil
}

// Logout revokes every outstanding access token of the account that owns
// accessToken by binding a fingerprint no token can match. Refresh tokens
// are not affected. Without fingerprint binding there is nothing to revoke
// and Logout only validates the token.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	acct, err := e.ResolveCurrentAccount(ctx, accessToken)
	if err != nil {
		return err
	}
	if !e.config.Policy.EnforceFingerprintBinding {
		e.log.Warn().Int64("acct_no", acct.AcctNo).Msg("logout without fingerprint binding revokes nothing")
		return nil
	}

	if err := e.store.SetAccessTokenFingerprint(ctx, acct.AcctNo, internal.NewRevocationMarker()); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return fmt.Errorf("%w: unknown subject", ErrTokenInvalid)
		}
		return e.infra("revoke access token", err)
	}

	e.metricInc(MetricLogout)
	e.log.Info().Int64("acct_no", acct.AcctNo).Msg("logged out")
	return nil
}

func (e *Engine) checkPasswordPolicy(pass string) error {
	n := len(pass)
	if n < e.config.Password.MinLength {
		return fmt.Errorf("%w: password must be at least %d bytes", ErrPasswordPolicy, e.config.Password.MinLength)
	}
	if n > e.config.Password.MaxLength {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrPasswordPolicy, e.config.Password.MaxLength)
	}
	return nil
}
