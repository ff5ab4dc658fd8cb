// Package internal holds helpers private to the service: access token
// fingerprints, revocation markers and random secret generation.
package internal
