// Package usersvc is the account-credential authority behind the user API:
// it authenticates account holders by account number and password, issues
// access and refresh bearer tokens, and locks accounts after repeated
// failed passwords.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// usersvc is the public surface. It exposes [Engine], [Builder], [Config], the
// [AccountStore] and [Ledger] collaborator interfaces and their value types.
// Durable implementations live under store/. HTTP concerns live under
// httpapi/ and middleware/; the engine never sees requests or status codes.
//
// # Error model
//
// Every Engine operation returns one of the sentinel errors in errors.go,
// possibly wrapped. [Classify] groups them into auth failures, token failures,
// forbidden, conflicts, invalid input and infrastructure. Store and ledger
// failures always wrap [ErrInfrastructure] and are never retried.
//
// # Clock
//
// Each operation reads the clock once and uses that instant for every expiry
// and lockout comparison it makes.
package usersvc
