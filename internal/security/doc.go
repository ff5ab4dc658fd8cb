// Package security derives the engine security posture report from its
// configuration. The root package re-exports Report as SecurityReport.
package security
