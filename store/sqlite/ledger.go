package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	usersvc "github.com/LeeSeungPhill/user-api-svc"
)

// Append inserts one login attempt row.
func (s *Store) Append(ctx context.Context, attempt usersvc.LoginAttempt) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	var acctNo sql.NullInt64
	if attempt.AcctNo != nil {
		acctNo = sql.NullInt64{Int64: *attempt.AcctNo, Valid: true}
	}
	success := 0
	if attempt.Success {
		success = 1
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO login_attempts (acct_no, origin, attempted_at, success, reason) VALUES (?, ?, ?, ?, ?)`,
		acctNo, attempt.Origin, toMillis(attempt.At), success, string(attempt.Reason),
	)
	if err != nil {
		return fmt.Errorf("append login attempt: %w", err)
	}
	return nil
}

// Attempts returns up to limit most recent attempts, oldest first. A nil
// acctNo returns attempts for every account.
func (s *Store) Attempts(ctx context.Context, acctNo *int64, limit int) ([]usersvc.LoginAttempt, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT acct_no, origin, attempted_at, success, reason FROM (
    SELECT id, acct_no, origin, attempted_at, success, reason FROM login_attempts`
	args := []any{}
	if acctNo != nil {
		query += ` WHERE acct_no = ?`
		args = append(args, *acctNo)
	}
	query += ` ORDER BY id DESC LIMIT ?) ORDER BY id ASC`
	args = append(args, limit)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list login attempts: %w", err)
	}
	defer rows.Close()

	var out []usersvc.LoginAttempt
	for rows.Next() {
		var (
			rowAcct sql.NullInt64
			attempt usersvc.LoginAttempt
			at      int64
			success int
			reason  string
		)
		if err := rows.Scan(&rowAcct, &attempt.Origin, &at, &success, &reason); err != nil {
			return nil, fmt.Errorf("scan login attempt: %w", err)
		}
		if rowAcct.Valid {
			n := rowAcct.Int64
			attempt.AcctNo = &n
		}
		attempt.At = fromMillis(at)
		attempt.Success = success == 1
		attempt.Reason = usersvc.Reason(reason)
		out = append(out, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate login attempts: %w", err)
	}
	return out, nil
}
