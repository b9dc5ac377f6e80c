package internaldefs

import (
	"strconv"
	"strings"

	goToken "github.com/MrEthical07/goToken"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported for dispatcher drops. It is read
// from the engine rather than the metric snapshot.
const AuditDroppedName = "gotoken_audit_dropped_total"

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: goToken.MetricObtainPair, Name: "gotoken_obtain_pair_total", Help: "Issued access and refresh pairs."},
	{ID: goToken.MetricObtainSliding, Name: "gotoken_obtain_sliding_total", Help: "Issued sliding tokens."},
	{ID: goToken.MetricRefreshSuccess, Name: "gotoken_refresh_success_total", Help: "Successful refresh operations."},
	{ID: goToken.MetricRefreshFailure, Name: "gotoken_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: goToken.MetricRefreshRotated, Name: "gotoken_refresh_rotated_total", Help: "Refresh operations that issued a rotated refresh token."},
	{ID: goToken.MetricSlidingRenewSuccess, Name: "gotoken_sliding_renew_success_total", Help: "Successful sliding token renewals."},
	{ID: goToken.MetricSlidingRenewFailure, Name: "gotoken_sliding_renew_failure_total", Help: "Refused sliding token renewals."},
	{ID: goToken.MetricVerifySuccess, Name: "gotoken_verify_success_total", Help: "Tokens accepted by verify."},
	{ID: goToken.MetricVerifyFailure, Name: "gotoken_verify_failure_total", Help: "Tokens rejected by verify."},
	{ID: goToken.MetricValidateSuccess, Name: "gotoken_validate_success_total", Help: "Tokens accepted by the authentication pipeline."},
	{ID: goToken.MetricValidateFailure, Name: "gotoken_validate_failure_total", Help: "Tokens rejected by the authentication pipeline."},
	{ID: goToken.MetricTokenExpired, Name: "gotoken_token_expired_total", Help: "Variant checks that failed on an expired claim."},
	{ID: goToken.MetricTokenRevokedRejected, Name: "gotoken_token_revoked_rejected_total", Help: "Variant checks that failed on a blacklisted token."},
	{ID: goToken.MetricRevoke, Name: "gotoken_revoke_total", Help: "Revocations that blacklisted a token."},
	{ID: goToken.MetricRevokeNoop, Name: "gotoken_revoke_noop_total", Help: "Revocations of an already blacklisted token."},
	{ID: goToken.MetricRevokeAll, Name: "gotoken_revoke_all_total", Help: "Revoke-all-for-user operations."},
	{ID: goToken.MetricFlushExpired, Name: "gotoken_flush_expired_total", Help: "Ledger rows removed by flush-expired."},
	{ID: goToken.MetricIdentityFailure, Name: "gotoken_identity_failure_total", Help: "Valid tokens whose user could not be resolved."},
	{ID: goToken.MetricIntegrityViolation, Name: "gotoken_integrity_violation_total", Help: "Ledger uniqueness violations."},
	{ID: goToken.MetricLedgerUnavailable, Name: "gotoken_ledger_unavailable_total", Help: "Operations failed by an unreachable ledger."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goToken.MetricValidateLatency, Name: "gotoken_validate_latency_seconds", Help: "Authentication pipeline latency."},
}

// HistogramBounds are the bucket upper bounds in seconds, ending in +Inf.
// HistogramBoundSuffix spells the same bounds for use inside metric names.
var HistogramBounds, HistogramBoundSuffix = bucketLabels()

func bucketLabels() (bounds, suffixes []string) {
	for _, d := range goToken.LatencyBuckets() {
		s := strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
		bounds = append(bounds, s)
		suffixes = append(suffixes, strings.ReplaceAll(s, ".", "_"))
	}
	return append(bounds, "+Inf"), append(suffixes, "inf")
}

// CumulativeBuckets turns per-bucket counts into running totals, one per
// entry of HistogramBounds. Missing buckets count as zero.
func CumulativeBuckets(raw []uint64) []uint64 {
	out := make([]uint64, len(HistogramBounds))
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
