package internaldefs

import (
	"strconv"
	"strings"

	usersvc "github.com/LeeSeungPhill/user-api-svc"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   usersvc.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   usersvc.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: usersvc.MetricLoginSuccess, Name: "usersvc_login_success_total", Help: "Successful login attempts."},
	{ID: usersvc.MetricLoginFailure, Name: "usersvc_login_failure_total", Help: "Login attempts rejected for an invalid password."},
	{ID: usersvc.MetricLoginUnknownAccount, Name: "usersvc_login_unknown_account_total", Help: "Login attempts for unknown account numbers."},
	{ID: usersvc.MetricLoginLocked, Name: "usersvc_login_locked_total", Help: "Login attempts rejected while the account was locked."},
	{ID: usersvc.MetricLockoutTriggered, Name: "usersvc_lockout_triggered_total", Help: "Failures that reached the lockout threshold."},
	{ID: usersvc.MetricRefreshSuccess, Name: "usersvc_refresh_success_total", Help: "Successful refresh operations."},
	{ID: usersvc.MetricRefreshFailure, Name: "usersvc_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: usersvc.MetricRefreshForbidden, Name: "usersvc_refresh_forbidden_total", Help: "Refresh operations rejected for locked accounts."},
	{ID: usersvc.MetricResolveSuccess, Name: "usersvc_resolve_success_total", Help: "Access tokens resolved to an account."},
	{ID: usersvc.MetricResolveFailure, Name: "usersvc_resolve_failure_total", Help: "Access tokens that failed to resolve."},
	{ID: usersvc.MetricTokenRevoked, Name: "usersvc_token_revoked_total", Help: "Access tokens rejected by fingerprint mismatch."},
	{ID: usersvc.MetricAccountCreationSuccess, Name: "usersvc_account_creation_success_total", Help: "Successful registrations."},
	{ID: usersvc.MetricAccountCreationDuplicate, Name: "usersvc_account_creation_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: usersvc.MetricProfileUpdated, Name: "usersvc_profile_updated_total", Help: "Profile updates."},
	{ID: usersvc.MetricPasswordChanged, Name: "usersvc_password_changed_total", Help: "Password changes through profile update."},
	{ID: usersvc.MetricPasswordRehashed, Name: "usersvc_password_rehashed_total", Help: "Stored hashes upgraded on login."},
	{ID: usersvc.MetricLogout, Name: "usersvc_logout_total", Help: "Logout operations."},
	{ID: usersvc.MetricAccountUnlocked, Name: "usersvc_account_unlocked_total", Help: "Explicit account unlocks."},
	{ID: usersvc.MetricLedgerAppendFailure, Name: "usersvc_ledger_append_failure_total", Help: "Login attempts that could not be written to the ledger."},
	{ID: usersvc.MetricStoreFailure, Name: "usersvc_store_failure_total", Help: "Account store failures."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: usersvc.MetricLoginLatency, Name: "usersvc_login_latency_seconds", Help: "AttemptLogin latency, password verification included."},
	{ID: usersvc.MetricResolveLatency, Name: "usersvc_resolve_latency_seconds", Help: "ResolveCurrentAccount latency."},
}

// HistogramBounds are the bucket upper bounds in seconds, as Prometheus
// "le" label values. The last entry is "+Inf".
var HistogramBounds = boundLabels()

// HistogramBoundSuffix are HistogramBounds in instrument-name form, so
// "0.005" becomes "0_005".
var HistogramBoundSuffix = boundSuffixes(HistogramBounds)

func boundLabels() []string {
	out := make([]string, 0, usersvc.LatencyBucketCount)
	for _, bound := range usersvc.LatencyBuckets {
		out = append(out, strconv.FormatFloat(bound.Seconds(), 'g', -1, 64))
	}
	return append(out, "+Inf")
}

func boundSuffixes(labels []string) []string {
	out := make([]string, len(labels))
	for i, label := range labels {
		if label == "+Inf" {
			out[i] = "inf"
			continue
		}
		out[i] = strings.ReplaceAll(label, ".", "_")
	}
	return out
}

// Cumulative turns per-bucket counts into running totals of length
// LatencyBucketCount. Missing buckets count as zero and extra ones are
// ignored.
func Cumulative(raw []uint64) []uint64 {
	out := make([]uint64, usersvc.LatencyBucketCount)
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
