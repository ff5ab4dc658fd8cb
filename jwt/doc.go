// Package jwt issues and verifies the service's HMAC-signed session tokens.
//
// Every token carries a subject (the account number), an expiry, a unique
// jti and a purpose claim serialized as "type" with value "access" or
// "refresh". Verification pins the configured algorithm, so tokens signed
// with any other algorithm, including "none", are rejected.
//
// Issue and Verify take the current time explicitly; the Manager never reads
// the wall clock.
package jwt
