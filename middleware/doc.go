// Package middleware exposes net/http adapters that gate handlers on a valid
// access token.
//
// # Guards
//
//   - [Guard] rejects requests without a resolvable bearer token.
//   - [Optional] resolves a token when one is present and passes anonymous
//     requests through.
//
// Each guard reads the Authorization header, calls ResolveCurrentAccount and
// stores the resolved account in the request context, where
// [AccountFromContext] finds it.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does not parse
// tokens or read the account store itself.
package middleware
