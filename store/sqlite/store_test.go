package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	usersvc "github.com/LeeSeungPhill/user-api-svc"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func seed(t *testing.T, s *Store, acctNo int64) usersvc.Account {
	t.Helper()
	a, err := s.CreateAccount(context.Background(), usersvc.CreateAccountInput{
		AcctNo:         acctNo,
		NickName:       "nick",
		TelNo:          "010-1234-5678",
		AppKey:         "app-key",
		CredentialHash: "$2a$04$hash",
		CreatedAt:      time.UnixMilli(1_700_000_000_123),
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return a
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenIsIdempotentAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	seed(t, first, 1001)
	if err := first.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer second.Close()

	if _, err := second.GetAccount(context.Background(), 1001); err != nil {
		t.Fatalf("expected account to survive reopen, got %v", err)
	}
}

func TestCreateAndGetAccount(t *testing.T) {
	s := openTestStore(t)
	a := seed(t, s, 1001)

	got, err := s.GetAccount(context.Background(), 1001)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.NickName != a.NickName || got.AppKey != "app-key" || got.CredentialHash != "$2a$04$hash" {
		t.Fatalf("unexpected account: %+v", got)
	}
	if got.FailedAttempts != 0 || got.LockedUntil != nil || got.AccessTokenFingerprint != "" {
		t.Fatalf("expected fresh lockout state, got %+v", got)
	}
	if got.CreatedAt.UnixMilli() != 1_700_000_000_123 || !got.LastChangedAt.Equal(got.CreatedAt) {
		t.Fatalf("unexpected timestamps: %v %v", got.CreatedAt, got.LastChangedAt)
	}

	if _, err := s.CreateAccount(context.Background(), usersvc.CreateAccountInput{AcctNo: 1001, CreatedAt: time.Now()}); !errors.Is(err, usersvc.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if _, err := s.GetAccount(context.Background(), 2002); !errors.Is(err, usersvc.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestWritesNeverCreateMissingAccounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.IncrementFailedAttempts(ctx, 42); !errors.Is(err, usersvc.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound from increment, got %v", err)
	}
	if _, err := s.RecordFailedAttempt(ctx, 42, 5, time.Now()); !errors.Is(err, usersvc.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound from record, got %v", err)
	}
	if err := s.ResetFailedAttempts(ctx, 42); !errors.Is(err, usersvc.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound from reset, got %v", err)
	}
	if err := s.LockUntil(ctx, 42, time.Now()); !errors.Is(err, usersvc.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound from lock, got %v", err)
	}
	if err := s.SetAccessTokenFingerprint(ctx, 42, "fp"); !errors.Is(err, usersvc.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound from fingerprint, got %v", err)
	}
	if _, err := s.UpdateProfile(ctx, 42, usersvc.ProfileUpdate{ChangedAt: time.Now()}); !errors.Is(err, usersvc.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound from update, got %v", err)
	}
}

func TestRecordFailedAttemptLocksAtThreshold(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, 1001)
	ctx := context.Background()
	lockUntil := time.Unix(1_700_000_900, 0)

	for i := 1; i <= 2; i++ {
		out, err := s.RecordFailedAttempt(ctx, 1001, 3, lockUntil)
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if out.FailedAttempts != i || out.LockedUntil != nil {
			t.Fatalf("attempt %d: unexpected outcome %+v", i, out)
		}
	}

	out, err := s.RecordFailedAttempt(ctx, 1001, 3, lockUntil)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if out.FailedAttempts != 3 || out.LockedUntil == nil || !out.LockedUntil.Equal(lockUntil) {
		t.Fatalf("expected lock at threshold, got %+v", out)
	}

	a, _ := s.GetAccount(ctx, 1001)
	if a.FailedAttempts != 3 || a.LockedUntil == nil || !a.LockedUntil.Equal(lockUntil) {
		t.Fatalf("expected stored lock, got %+v", a)
	}

	if err := s.ResetFailedAttempts(ctx, 1001); err != nil {
		t.Fatalf("reset: %v", err)
	}
	a, _ = s.GetAccount(ctx, 1001)
	if a.FailedAttempts != 0 || a.LockedUntil != nil {
		t.Fatalf("expected cleared lockout state, got %+v", a)
	}
}

func TestRecordFailedAttemptZeroThresholdNeverLocks(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, 1001)

	for i := 0; i < 10; i++ {
		out, err := s.RecordFailedAttempt(context.Background(), 1001, 0, time.Now())
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		if out.LockedUntil != nil {
			t.Fatalf("expected no lock, got %+v", out)
		}
	}
	a, _ := s.GetAccount(context.Background(), 1001)
	if a.FailedAttempts != 10 || a.LockedUntil != nil {
		t.Fatalf("unexpected state %+v", a)
	}
}

func TestIncrementAndLockUntil(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, 1001)
	ctx := context.Background()

	n, err := s.IncrementFailedAttempts(ctx, 1001)
	if err != nil || n != 1 {
		t.Fatalf("expected 1, got %d (%v)", n, err)
	}
	until := time.UnixMilli(1_700_000_500_250)
	if err := s.LockUntil(ctx, 1001, until); err != nil {
		t.Fatalf("lock: %v", err)
	}
	a, _ := s.GetAccount(ctx, 1001)
	if a.LockedUntil == nil || !a.LockedUntil.Equal(until) {
		t.Fatalf("expected locked until %v, got %v", until, a.LockedUntil)
	}
}

func TestConcurrentFailuresAreNotLost(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, 1001)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.RecordFailedAttempt(context.Background(), 1001, 0, time.Now()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("record: %v", err)
	}

	a, _ := s.GetAccount(context.Background(), 1001)
	if a.FailedAttempts != workers {
		t.Fatalf("expected %d failures, got %d", workers, a.FailedAttempts)
	}
}

func TestUpdateProfileIsPartial(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, 1001)

	nick := "renamed"
	hash := "$2a$04$other"
	changed := time.UnixMilli(1_700_000_100_000)
	a, err := s.UpdateProfile(context.Background(), 1001, usersvc.ProfileUpdate{
		NickName:       &nick,
		CredentialHash: &hash,
		ChangedAt:      changed,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if a.NickName != "renamed" || a.CredentialHash != hash {
		t.Fatalf("expected updated fields, got %+v", a)
	}
	if a.TelNo != "010-1234-5678" || a.AppKey != "app-key" {
		t.Fatalf("expected untouched fields preserved, got %+v", a)
	}
	if !a.LastChangedAt.Equal(changed) {
		t.Fatalf("expected last change %v, got %v", changed, a.LastChangedAt)
	}

	empty := ""
	a, err = s.UpdateProfile(context.Background(), 1001, usersvc.ProfileUpdate{AppKey: &empty, ChangedAt: changed})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if a.AppKey != "" {
		t.Fatalf("expected explicit empty value to be written, got %q", a.AppKey)
	}
}

func TestFingerprintBinding(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, 1001)
	ctx := context.Background()

	if err := s.SetAccessTokenFingerprint(ctx, 1001, "abc"); err != nil {
		t.Fatalf("set: %v", err)
	}
	a, _ := s.GetAccount(ctx, 1001)
	if a.AccessTokenFingerprint != "abc" {
		t.Fatalf("expected fingerprint abc, got %q", a.AccessTokenFingerprint)
	}
	if err := s.SetAccessTokenFingerprint(ctx, 1001, ""); err != nil {
		t.Fatalf("clear: %v", err)
	}
	a, _ = s.GetAccount(ctx, 1001)
	if a.AccessTokenFingerprint != "" {
		t.Fatalf("expected cleared fingerprint, got %q", a.AccessTokenFingerprint)
	}
}

func TestLedgerAppendAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	acct := int64(1001)
	at := time.UnixMilli(1_700_000_000_000)

	entries := []usersvc.LoginAttempt{
		{AcctNo: nil, Origin: "10.0.0.1", At: at, Reason: usersvc.ReasonAccountNotFound},
		{AcctNo: &acct, Origin: "10.0.0.2", At: at.Add(time.Second), Reason: usersvc.ReasonInvalidPassword},
		{AcctNo: &acct, Origin: "10.0.0.2", At: at.Add(2 * time.Second), Success: true, Reason: usersvc.ReasonLoginSuccess},
	}
	for _, e := range entries {
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := s.Attempts(ctx, nil, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(all))
	}
	if all[0].AcctNo != nil || all[0].Reason != usersvc.ReasonAccountNotFound {
		t.Fatalf("expected unknown-account entry first, got %+v", all[0])
	}
	if !all[2].Success || all[2].Reason != usersvc.ReasonLoginSuccess || !all[2].At.Equal(at.Add(2*time.Second)) {
		t.Fatalf("unexpected last entry %+v", all[2])
	}

	mine, err := s.Attempts(ctx, &acct, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 || mine[0].Reason != usersvc.ReasonLoginSuccess {
		t.Fatalf("expected most recent attempt for account, got %+v", mine)
	}
}

func TestCanceledContext(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.GetAccount(ctx, 1001); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := s.Append(ctx, usersvc.LoginAttempt{At: time.Now()}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNilStoreClose(t *testing.T) {
	var s *Store
	if err := s.Close(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
