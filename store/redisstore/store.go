package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	usersvc "github.com/LeeSeungPhill/user-api-svc"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis command failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	fieldAcctNo         = "acct_no"
	fieldNickName       = "nick_name"
	fieldTelNo          = "tel_no"
	fieldAppKey         = "app_key"
	fieldAppSecret      = "app_secret"
	fieldBotToken1      = "bot_token1"
	fieldBotToken2      = "bot_token2"
	fieldCredentialHash = "credential_hash"
	fieldFailedAttempts = "failed_attempts"
	fieldLockedUntil    = "locked_until"
	fieldFingerprint    = "access_fp"
	fieldCreatedAt      = "created_at"
	fieldLastChangedAt  = "last_chg_at"
)

const createAccountScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV))
return 1
`

var createAccountLua = redis.NewScript(createAccountScript)

// setFieldsScript writes field/value pairs only to an existing account.
const setFieldsScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV))
return 1
`

var setFieldsLua = redis.NewScript(setFieldsScript)

const incrementScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
return redis.call("HINCRBY", KEYS[1], "failed_attempts", 1)
`

var incrementLua = redis.NewScript(incrementScript)

const recordFailureScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return {-1, 0}
end
local count = redis.call("HINCRBY", KEYS[1], "failed_attempts", 1)
local threshold = tonumber(ARGV[1])
if threshold > 0 and count >= threshold then
  redis.call("HSET", KEYS[1], "locked_until", ARGV[2])
  return {count, 1}
end
return {count, 0}
`

var recordFailureLua = redis.NewScript(recordFailureScript)

const resetScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "failed_attempts", 0)
redis.call("HDEL", KEYS[1], "locked_until")
return 1
`

var resetLua = redis.NewScript(resetScript)

// Store is a Redis-backed AccountStore and Ledger. Each account is one
// hash; login attempts are appended to one stream. All per-account writes
// are Lua scripts, so each call is atomic on its record.
type Store struct {
	redis        redis.UniversalClient
	prefix       string
	ledgerMaxLen int64
}

// Option customizes a Store.
type Option func(*Store)

// WithLedgerMaxLen caps the attempt stream at roughly n entries.
func WithLedgerMaxLen(n int64) Option {
	return func(s *Store) { s.ledgerMaxLen = n }
}

// New returns a Store using prefix as the key namespace.
func New(client redis.UniversalClient, prefix string, opts ...Option) *Store {
	if prefix == "" {
		prefix = "usersvc"
	}
	s := &Store{redis: client, prefix: prefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) accountKey(acctNo int64) string {
	return s.prefix + ":acct:" + strconv.FormatInt(acctNo, 10)
}

func (s *Store) ledgerKey() string {
	return s.prefix + ":login_attempts"
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, acctNo int64) (usersvc.Account, error) {
	fields, err := s.redis.HGetAll(ctx, s.accountKey(acctNo)).Result()
	if err != nil {
		return usersvc.Account{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return usersvc.Account{}, usersvc.ErrAccountNotFound
	}
	return decodeAccount(fields)
}

func (s *Store) CreateAccount(ctx context.Context, in usersvc.CreateAccountInput) (usersvc.Account, error) {
	created := strconv.FormatInt(in.CreatedAt.UnixMilli(), 10)
	args := []interface{}{
		fieldAcctNo, strconv.FormatInt(in.AcctNo, 10),
		fieldNickName, in.NickName,
		fieldTelNo, in.TelNo,
		fieldAppKey, in.AppKey,
		fieldAppSecret, in.AppSecret,
		fieldBotToken1, in.BotToken1,
		fieldBotToken2, in.BotToken2,
		fieldCredentialHash, in.CredentialHash,
		fieldFailedAttempts, 0,
		fieldFingerprint, "",
		fieldCreatedAt, created,
		fieldLastChangedAt, created,
	}

	ok, err := createAccountLua.Run(ctx, s.redis, []string{s.accountKey(in.AcctNo)}, args...).Int64()
	if err != nil {
		return usersvc.Account{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ok == 0 {
		return usersvc.Account{}, usersvc.ErrAccountExists
	}
	return s.GetAccount(ctx, in.AcctNo)
}

func (s *Store) IncrementFailedAttempts(ctx context.Context, acctNo int64) (int, error) {
	n, err := incrementLua.Run(ctx, s.redis, []string{s.accountKey(acctNo)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if n < 0 {
		return 0, usersvc.ErrAccountNotFound
	}
	return int(n), nil
}

func (s *Store) RecordFailedAttempt(ctx context.Context, acctNo int64, threshold int, lockUntil time.Time) (usersvc.FailureOutcome, error) {
	res, err := recordFailureLua.Run(ctx, s.redis,
		[]string{s.accountKey(acctNo)},
		threshold, lockUntil.UnixMilli(),
	).Int64Slice()
	if err != nil {
		return usersvc.FailureOutcome{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) != 2 {
		return usersvc.FailureOutcome{}, fmt.Errorf("%w: unexpected script reply", ErrRedisUnavailable)
	}
	if res[0] < 0 {
		return usersvc.FailureOutcome{}, usersvc.ErrAccountNotFound
	}

	out := usersvc.FailureOutcome{FailedAttempts: int(res[0])}
	if res[1] == 1 {
		until := time.UnixMilli(lockUntil.UnixMilli()).UTC()
		out.LockedUntil = &until
	}
	return out, nil
}

func (s *Store) ResetFailedAttempts(ctx context.Context, acctNo int64) error {
	ok, err := resetLua.Run(ctx, s.redis, []string{s.accountKey(acctNo)}).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ok == 0 {
		return usersvc.ErrAccountNotFound
	}
	return nil
}

func (s *Store) LockUntil(ctx context.Context, acctNo int64, until time.Time) error {
	return s.setFields(ctx, acctNo, fieldLockedUntil, until.UnixMilli())
}

func (s *Store) SetAccessTokenFingerprint(ctx context.Context, acctNo int64, fingerprint string) error {
	return s.setFields(ctx, acctNo, fieldFingerprint, fingerprint)
}

func (s *Store) UpdateProfile(ctx context.Context, acctNo int64, u usersvc.ProfileUpdate) (usersvc.Account, error) {
	args := make([]interface{}, 0, 16)
	add := func(field string, v *string) {
		if v != nil {
			args = append(args, field, *v)
		}
	}
	add(fieldNickName, u.NickName)
	add(fieldTelNo, u.TelNo)
	add(fieldAppKey, u.AppKey)
	add(fieldAppSecret, u.AppSecret)
	add(fieldBotToken1, u.BotToken1)
	add(fieldBotToken2, u.BotToken2)
	add(fieldCredentialHash, u.CredentialHash)
	args = append(args, fieldLastChangedAt, u.ChangedAt.UnixMilli())

	if err := s.setFields(ctx, acctNo, args...); err != nil {
		return usersvc.Account{}, err
	}
	return s.GetAccount(ctx, acctNo)
}

func (s *Store) setFields(ctx context.Context, acctNo int64, pairs ...interface{}) error {
	ok, err := setFieldsLua.Run(ctx, s.redis, []string{s.accountKey(acctNo)}, pairs...).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ok == 0 {
		return usersvc.ErrAccountNotFound
	}
	return nil
}

func decodeAccount(f map[string]string) (usersvc.Account, error) {
	acctNo, err := strconv.ParseInt(f[fieldAcctNo], 10, 64)
	if err != nil {
		return usersvc.Account{}, fmt.Errorf("corrupt account record: acct_no: %w", err)
	}
	failed, err := strconv.Atoi(f[fieldFailedAttempts])
	if err != nil {
		return usersvc.Account{}, fmt.Errorf("corrupt account record %d: failed_attempts: %w", acctNo, err)
	}

	a := usersvc.Account{
		AcctNo:                 acctNo,
		NickName:               f[fieldNickName],
		TelNo:                  f[fieldTelNo],
		AppKey:                 f[fieldAppKey],
		AppSecret:              f[fieldAppSecret],
		BotToken1:              f[fieldBotToken1],
		BotToken2:              f[fieldBotToken2],
		CredentialHash:         f[fieldCredentialHash],
		FailedAttempts:         failed,
		AccessTokenFingerprint: f[fieldFingerprint],
		CreatedAt:              millis(f[fieldCreatedAt]),
		LastChangedAt:          millis(f[fieldLastChangedAt]),
	}
	if v, ok := f[fieldLockedUntil]; ok && v != "" {
		until := millis(v)
		a.LockedUntil = &until
	}
	return a, nil
}

func millis(v string) time.Time {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
