// Package sqlite provides a SQLite-backed AccountStore and Ledger built on
// the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	usersvc "github.com/LeeSeungPhill/user-api-svc"
	"github.com/LeeSeungPhill/user-api-svc/store/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store provides account and login attempt storage backed by SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite store at the provided path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// One writer connection keeps RETURNING updates serialized.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite store: %w", err)
	}

	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks database reachability.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.sqlDB.PingContext(ctx)
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return errors.New("storage is not configured")
	}
	return nil
}

const accountColumns = `acct_no, nick_name, tel_no, app_key, app_secret, bot_token1, bot_token2,
    credential_hash, failed_attempts, locked_until, access_token_fp, created_at, last_chg_at`

// GetAccount fetches one account by number.
func (s *Store) GetAccount(ctx context.Context, acctNo int64) (usersvc.Account, error) {
	if err := s.check(ctx); err != nil {
		return usersvc.Account{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE acct_no = ?`, acctNo)
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return usersvc.Account{}, usersvc.ErrAccountNotFound
	}
	if err != nil {
		return usersvc.Account{}, fmt.Errorf("get account: %w", err)
	}
	return acct, nil
}

// CreateAccount inserts a new account row.
func (s *Store) CreateAccount(ctx context.Context, in usersvc.CreateAccountInput) (usersvc.Account, error) {
	if err := s.check(ctx); err != nil {
		return usersvc.Account{}, err
	}

	created := toMillis(in.CreatedAt)
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO accounts (
    acct_no, nick_name, tel_no, app_key, app_secret, bot_token1, bot_token2,
    credential_hash, failed_attempts, locked_until, access_token_fp, created_at, last_chg_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, '', ?, ?)`,
		in.AcctNo, in.NickName, in.TelNo, in.AppKey, in.AppSecret, in.BotToken1, in.BotToken2,
		in.CredentialHash, created, created,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return usersvc.Account{}, usersvc.ErrAccountExists
		}
		return usersvc.Account{}, fmt.Errorf("create account: %w", err)
	}

	return usersvc.Account{
		AcctNo:         in.AcctNo,
		NickName:       in.NickName,
		TelNo:          in.TelNo,
		AppKey:         in.AppKey,
		AppSecret:      in.AppSecret,
		BotToken1:      in.BotToken1,
		BotToken2:      in.BotToken2,
		CredentialHash: in.CredentialHash,
		CreatedAt:      fromMillis(created),
		LastChangedAt:  fromMillis(created),
	}, nil
}

// IncrementFailedAttempts bumps the counter and returns the new value.
func (s *Store) IncrementFailedAttempts(ctx context.Context, acctNo int64) (int, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}

	var count int
	err := s.sqlDB.QueryRowContext(ctx,
		`UPDATE accounts SET failed_attempts = failed_attempts + 1 WHERE acct_no = ? RETURNING failed_attempts`,
		acctNo,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, usersvc.ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment failed attempts: %w", err)
	}
	return count, nil
}

// RecordFailedAttempt increments the counter and sets the lock in one
// UPDATE statement. SET expressions see the pre-update row.
func (s *Store) RecordFailedAttempt(ctx context.Context, acctNo int64, threshold int, lockUntil time.Time) (usersvc.FailureOutcome, error) {
	if err := s.check(ctx); err != nil {
		return usersvc.FailureOutcome{}, err
	}

	var count int
	err := s.sqlDB.QueryRowContext(ctx, `
UPDATE accounts SET
    failed_attempts = failed_attempts + 1,
    locked_until = CASE WHEN ? > 0 AND failed_attempts + 1 >= ? THEN ? ELSE locked_until END
WHERE acct_no = ?
RETURNING failed_attempts`,
		threshold, threshold, toMillis(lockUntil), acctNo,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return usersvc.FailureOutcome{}, usersvc.ErrAccountNotFound
	}
	if err != nil {
		return usersvc.FailureOutcome{}, fmt.Errorf("record failed attempt: %w", err)
	}

	out := usersvc.FailureOutcome{FailedAttempts: count}
	if threshold > 0 && count >= threshold {
		until := fromMillis(toMillis(lockUntil))
		out.LockedUntil = &until
	}
	return out, nil
}

// ResetFailedAttempts zeroes the counter and clears the lock.
func (s *Store) ResetFailedAttempts(ctx context.Context, acctNo int64) error {
	return s.execAccount(ctx, "reset failed attempts",
		`UPDATE accounts SET failed_attempts = 0, locked_until = NULL WHERE acct_no = ?`, acctNo)
}

// LockUntil sets the lock expiry.
func (s *Store) LockUntil(ctx context.Context, acctNo int64, until time.Time) error {
	return s.execAccount(ctx, "lock account",
		`UPDATE accounts SET locked_until = ? WHERE acct_no = ?`, toMillis(until), acctNo)
}

// SetAccessTokenFingerprint binds the access token fingerprint.
func (s *Store) SetAccessTokenFingerprint(ctx context.Context, acctNo int64, fingerprint string) error {
	return s.execAccount(ctx, "set access token fingerprint",
		`UPDATE accounts SET access_token_fp = ? WHERE acct_no = ?`, fingerprint, acctNo)
}

// UpdateProfile applies the non-nil fields of u and returns the stored row.
func (s *Store) UpdateProfile(ctx context.Context, acctNo int64, u usersvc.ProfileUpdate) (usersvc.Account, error) {
	if err := s.check(ctx); err != nil {
		return usersvc.Account{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
UPDATE accounts SET
    nick_name = COALESCE(?, nick_name),
    tel_no = COALESCE(?, tel_no),
    app_key = COALESCE(?, app_key),
    app_secret = COALESCE(?, app_secret),
    bot_token1 = COALESCE(?, bot_token1),
    bot_token2 = COALESCE(?, bot_token2),
    credential_hash = COALESCE(?, credential_hash),
    last_chg_at = ?
WHERE acct_no = ?
RETURNING `+accountColumns,
		nullString(u.NickName), nullString(u.TelNo), nullString(u.AppKey), nullString(u.AppSecret),
		nullString(u.BotToken1), nullString(u.BotToken2), nullString(u.CredentialHash),
		toMillis(u.ChangedAt), acctNo,
	)
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return usersvc.Account{}, usersvc.ErrAccountNotFound
	}
	if err != nil {
		return usersvc.Account{}, fmt.Errorf("update profile: %w", err)
	}
	return acct, nil
}

func (s *Store) execAccount(ctx context.Context, op, query string, args ...any) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	res, err := s.sqlDB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return usersvc.ErrAccountNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (usersvc.Account, error) {
	var (
		acct        usersvc.Account
		lockedUntil sql.NullInt64
		createdAt   int64
		lastChgAt   int64
	)
	if err := row.Scan(
		&acct.AcctNo, &acct.NickName, &acct.TelNo, &acct.AppKey, &acct.AppSecret,
		&acct.BotToken1, &acct.BotToken2, &acct.CredentialHash, &acct.FailedAttempts,
		&lockedUntil, &acct.AccessTokenFingerprint, &createdAt, &lastChgAt,
	); err != nil {
		return usersvc.Account{}, err
	}
	if lockedUntil.Valid {
		until := fromMillis(lockedUntil.Int64)
		acct.LockedUntil = &until
	}
	acct.CreatedAt = fromMillis(createdAt)
	acct.LastChangedAt = fromMillis(lastChgAt)
	return acct, nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		if code == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE {
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
