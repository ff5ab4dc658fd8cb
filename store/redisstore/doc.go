// Package redisstore implements the account store and login attempt ledger
// on Redis.
//
// # Layout
//
//	<prefix>:acct:<acct_no>     hash, one per account
//	<prefix>:login_attempts     stream, one entry per login attempt
//
// Timestamps are stored as Unix milliseconds. A missing locked_until field
// means the account is not locked.
//
// # Atomicity
//
// Existence checks and writes to one account run inside a single Lua script,
// so a write never recreates a missing account and RecordFailedAttempt
// increments and locks in one step.
package redisstore
