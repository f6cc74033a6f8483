package internaldefs

import (
	"github.com/MrEthical07/twofactor"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   twofactor.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   twofactor.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: twofactor.MetricSetupStarted, Name: "twofactor_setup_started_total", Help: "Provisioned pending secrets."},
	{ID: twofactor.MetricSetupCompleted, Name: "twofactor_setup_completed_total", Help: "Completed 2FA enrollments."},
	{ID: twofactor.MetricSetupFailed, Name: "twofactor_setup_failed_total", Help: "Enrollment confirmations that did not complete."},
	{ID: twofactor.MetricTOTPSuccess, Name: "twofactor_totp_success_total", Help: "Accepted TOTP codes."},
	{ID: twofactor.MetricTOTPFailure, Name: "twofactor_totp_failure_total", Help: "Rejected TOTP codes."},
	{ID: twofactor.MetricTOTPReplay, Name: "twofactor_totp_replay_total", Help: "TOTP codes rejected as replays."},
	{ID: twofactor.MetricLockoutTriggered, Name: "twofactor_lockout_triggered_total", Help: "Failures that locked a user."},
	{ID: twofactor.MetricLockedRejected, Name: "twofactor_locked_rejected_total", Help: "Attempts refused while locked."},
	{ID: twofactor.MetricBackupCodeUsed, Name: "twofactor_backup_code_used_total", Help: "Consumed backup codes."},
	{ID: twofactor.MetricBackupCodeFailed, Name: "twofactor_backup_code_failed_total", Help: "Rejected backup codes."},
	{ID: twofactor.MetricBackupCodesRegenerated, Name: "twofactor_backup_codes_regenerated_total", Help: "Replaced backup code sets."},
	{ID: twofactor.MetricDisabled, Name: "twofactor_disabled_total", Help: "Disable operations."},
	{ID: twofactor.MetricGateAllowed, Name: "twofactor_gate_allowed_total", Help: "Gate checks that let the request through."},
	{ID: twofactor.MetricGateRejected, Name: "twofactor_gate_rejected_total", Help: "Gate checks that required verification."},
	{ID: twofactor.MetricSessionRevoked, Name: "twofactor_session_revoked_total", Help: "Revoked session verifications."},
	{ID: twofactor.MetricStoreError, Name: "twofactor_store_error_total", Help: "Profile or verification store failures."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: twofactor.MetricGateLatency, Name: "twofactor_gate_latency_seconds", Help: "RequireVerified latency histogram."},
}

// HistogramBounds are the bucket upper bounds in seconds, as rendered in the
// le label.
var HistogramBounds = []string{
	"0.001",
	"0.002",
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds in a form usable inside metric
// names.
var HistogramBoundSuffix = []string{
	"0_001",
	"0_002",
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing
// buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
