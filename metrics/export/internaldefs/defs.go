package internaldefs

import (
	"github.com/MrEthical07/authdb"
)

// CounterDef binds a counter id to its exported name.
type CounterDef struct {
	ID   authdb.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram id to its exported name.
type HistogramDef struct {
	ID   authdb.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter, in output order.
var CounterDefs = []CounterDef{
	{ID: authdb.MetricUserCreated, Name: "authdb_user_created_total", Help: "Created users."},
	{ID: authdb.MetricUserUpdated, Name: "authdb_user_updated_total", Help: "Updated users."},
	{ID: authdb.MetricUserRemoved, Name: "authdb_user_removed_total", Help: "Removed users."},
	{ID: authdb.MetricUsernameTaken, Name: "authdb_username_taken_total", Help: "User creations rejected because the name was taken."},
	{ID: authdb.MetricPasswordCheckSuccess, Name: "authdb_password_check_success_total", Help: "Password checks that matched."},
	{ID: authdb.MetricPasswordCheckFailure, Name: "authdb_password_check_failure_total", Help: "Password checks that did not match."},
	{ID: authdb.MetricEmailAdded, Name: "authdb_email_added_total", Help: "Email addresses claimed."},
	{ID: authdb.MetricEmailTaken, Name: "authdb_email_taken_total", Help: "Email claims rejected because another user owns the address."},
	{ID: authdb.MetricEmailVerified, Name: "authdb_email_verified_total", Help: "Email addresses verified."},
	{ID: authdb.MetricEmailRemoved, Name: "authdb_email_removed_total", Help: "Email addresses removed."},
	{ID: authdb.MetricRoleCreated, Name: "authdb_role_created_total", Help: "Created roles."},
	{ID: authdb.MetricRoleUpdated, Name: "authdb_role_updated_total", Help: "Updated roles."},
	{ID: authdb.MetricPermissionGranted, Name: "authdb_permission_granted_total", Help: "Permission checks that granted access."},
	{ID: authdb.MetricPermissionDenied, Name: "authdb_permission_denied_total", Help: "Permission checks that denied access."},
	{ID: authdb.MetricSessionCreated, Name: "authdb_session_created_total", Help: "Created sessions."},
	{ID: authdb.MetricSessionValidated, Name: "authdb_session_validated_total", Help: "Session validations that admitted a request."},
	{ID: authdb.MetricSessionRejected, Name: "authdb_session_rejected_total", Help: "Session validations that rejected a request."},
	{ID: authdb.MetricSessionDestroyed, Name: "authdb_session_destroyed_total", Help: "Sessions destroyed one by one."},
	{ID: authdb.MetricSessionsReset, Name: "authdb_sessions_reset_total", Help: "Sessions deleted by per-user resets."},
	{ID: authdb.MetricLicenseExpired, Name: "authdb_license_expired_total", Help: "Validations rejected by an expired license."},
	{ID: authdb.MetricLockConflict, Name: "authdb_lock_conflict_total", Help: "Optimistic commits rejected because a watched key changed."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: authdb.MetricValidateLatency, Name: "authdb_session_validate_latency_seconds", Help: "Session validate latency histogram."},
	{ID: authdb.MetricPermissionLatency, Name: "authdb_permission_check_latency_seconds", Help: "Permission check latency histogram."},
}

// HistogramBounds are the upper bounds of the core buckets, in seconds. The
// last one is always "+Inf".
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into the cumulative form both
// exporters publish.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
