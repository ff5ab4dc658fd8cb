// Package memory provides an in-process AccountStore and Ledger. It is meant
// for tests and single-instance development runs; state is lost on exit.
package memory

import (
	"context"
	"sync"
	"time"

	usersvc "github.com/LeeSeungPhill/user-api-svc"
)

// Store keeps accounts and login attempts in maps guarded by one mutex.
type Store struct {
	mu       sync.RWMutex
	accounts map[int64]*usersvc.Account
	attempts []usersvc.LoginAttempt
}

func New() *Store {
	return &Store{accounts: make(map[int64]*usersvc.Account)}
}

func (s *Store) GetAccount(_ context.Context, acctNo int64) (usersvc.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[acctNo]
	if !ok {
		return usersvc.Account{}, usersvc.ErrAccountNotFound
	}
	return copyAccount(a), nil
}

func (s *Store) CreateAccount(_ context.Context, in usersvc.CreateAccountInput) (usersvc.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[in.AcctNo]; ok {
		return usersvc.Account{}, usersvc.ErrAccountExists
	}

	created := in.CreatedAt.UTC()
	a := &usersvc.Account{
		AcctNo:         in.AcctNo,
		NickName:       in.NickName,
		TelNo:          in.TelNo,
		AppKey:         in.AppKey,
		AppSecret:      in.AppSecret,
		BotToken1:      in.BotToken1,
		BotToken2:      in.BotToken2,
		CredentialHash: in.CredentialHash,
		CreatedAt:      created,
		LastChangedAt:  created,
	}
	s.accounts[in.AcctNo] = a
	return copyAccount(a), nil
}

func (s *Store) IncrementFailedAttempts(_ context.Context, acctNo int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[acctNo]
	if !ok {
		return 0, usersvc.ErrAccountNotFound
	}
	a.FailedAttempts++
	return a.FailedAttempts, nil
}

// RecordFailedAttempt increments and locks under one critical section, so
// the memory store never loses a failure under concurrency.
func (s *Store) RecordFailedAttempt(_ context.Context, acctNo int64, threshold int, lockUntil time.Time) (usersvc.FailureOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[acctNo]
	if !ok {
		return usersvc.FailureOutcome{}, usersvc.ErrAccountNotFound
	}
	a.FailedAttempts++
	out := usersvc.FailureOutcome{FailedAttempts: a.FailedAttempts}
	if threshold > 0 && a.FailedAttempts >= threshold {
		until := lockUntil.UTC()
		a.LockedUntil = &until
		locked := until
		out.LockedUntil = &locked
	}
	return out, nil
}

func (s *Store) ResetFailedAttempts(_ context.Context, acctNo int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[acctNo]
	if !ok {
		return usersvc.ErrAccountNotFound
	}
	a.FailedAttempts = 0
	a.LockedUntil = nil
	return nil
}

func (s *Store) LockUntil(_ context.Context, acctNo int64, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[acctNo]
	if !ok {
		return usersvc.ErrAccountNotFound
	}
	u := until.UTC()
	a.LockedUntil = &u
	return nil
}

func (s *Store) SetAccessTokenFingerprint(_ context.Context, acctNo int64, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[acctNo]
	if !ok {
		return usersvc.ErrAccountNotFound
	}
	a.AccessTokenFingerprint = fingerprint
	return nil
}

func (s *Store) UpdateProfile(_ context.Context, acctNo int64, u usersvc.ProfileUpdate) (usersvc.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[acctNo]
	if !ok {
		return usersvc.Account{}, usersvc.ErrAccountNotFound
	}
	setIf(&a.NickName, u.NickName)
	setIf(&a.TelNo, u.TelNo)
	setIf(&a.AppKey, u.AppKey)
	setIf(&a.AppSecret, u.AppSecret)
	setIf(&a.BotToken1, u.BotToken1)
	setIf(&a.BotToken2, u.BotToken2)
	setIf(&a.CredentialHash, u.CredentialHash)
	a.LastChangedAt = u.ChangedAt.UTC()
	return copyAccount(a), nil
}

// Append records attempt in memory.
func (s *Store) Append(_ context.Context, attempt usersvc.LoginAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if attempt.AcctNo != nil {
		n := *attempt.AcctNo
		attempt.AcctNo = &n
	}
	s.attempts = append(s.attempts, attempt)
	return nil
}

// Attempts returns a copy of all recorded attempts in append order.
func (s *Store) Attempts() []usersvc.LoginAttempt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]usersvc.LoginAttempt, len(s.attempts))
	copy(out, s.attempts)
	return out
}

func setIf(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func copyAccount(a *usersvc.Account) usersvc.Account {
	out := *a
	if a.LockedUntil != nil {
		u := *a.LockedUntil
		out.LockedUntil = &u
	}
	return out
}
