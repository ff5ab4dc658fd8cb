package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	usersvc "github.com/LeeSeungPhill/user-api-svc"
	"github.com/redis/go-redis/v9"
)

// Append adds attempt to the login attempt stream. An unknown account is
// stored with an empty acct_no field.
func (s *Store) Append(ctx context.Context, attempt usersvc.LoginAttempt) error {
	acct := ""
	if attempt.AcctNo != nil {
		acct = strconv.FormatInt(*attempt.AcctNo, 10)
	}

	args := &redis.XAddArgs{
		Stream: s.ledgerKey(),
		Values: []interface{}{
			"acct_no", acct,
			"origin", attempt.Origin,
			"at", attempt.At.UnixMilli(),
			"success", strconv.FormatBool(attempt.Success),
			"reason", string(attempt.Reason),
		},
	}
	if s.ledgerMaxLen > 0 {
		args.MaxLen = s.ledgerMaxLen
		args.Approx = true
	}

	if err := s.redis.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns up to count of the most recent attempts, oldest first.
func (s *Store) Attempts(ctx context.Context, count int64) ([]usersvc.LoginAttempt, error) {
	msgs, err := s.redis.XRevRangeN(ctx, s.ledgerKey(), "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]usersvc.LoginAttempt, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		out = append(out, decodeAttempt(msgs[i].Values))
	}
	return out, nil
}

func decodeAttempt(v map[string]interface{}) usersvc.LoginAttempt {
	str := func(k string) string {
		s, _ := v[k].(string)
		return s
	}

	a := usersvc.LoginAttempt{
		Origin:  str("origin"),
		Success: str("success") == "true",
		Reason:  usersvc.Reason(str("reason")),
	}
	if n, err := strconv.ParseInt(str("acct_no"), 10, 64); err == nil {
		a.AcctNo = &n
	}
	if ms, err := strconv.ParseInt(str("at"), 10, 64); err == nil {
		a.At = time.UnixMilli(ms).UTC()
	}
	return a
}
