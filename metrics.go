package authdb

import (
	"time"

	internalmetrics "github.com/MrEthical07/authdb/internal/metrics"
)

// MetricID identifies one counter or histogram in a [MetricsSnapshot].
type MetricID = internalmetrics.MetricID

const (
	MetricUserCreated          = internalmetrics.MetricUserCreated
	MetricUserUpdated          = internalmetrics.MetricUserUpdated
	MetricUserRemoved          = internalmetrics.MetricUserRemoved
	MetricUsernameTaken        = internalmetrics.MetricUsernameTaken
	MetricPasswordCheckSuccess = internalmetrics.MetricPasswordCheckSuccess
	MetricPasswordCheckFailure = internalmetrics.MetricPasswordCheckFailure
	MetricEmailAdded           = internalmetrics.MetricEmailAdded
	MetricEmailTaken           = internalmetrics.MetricEmailTaken
	MetricEmailVerified        = internalmetrics.MetricEmailVerified
	MetricEmailRemoved         = internalmetrics.MetricEmailRemoved
	MetricRoleCreated          = internalmetrics.MetricRoleCreated
	MetricRoleUpdated          = internalmetrics.MetricRoleUpdated
	MetricPermissionGranted    = internalmetrics.MetricPermissionGranted
	MetricPermissionDenied     = internalmetrics.MetricPermissionDenied
	MetricSessionCreated       = internalmetrics.MetricSessionCreated
	MetricSessionValidated     = internalmetrics.MetricSessionValidated
	MetricSessionRejected      = internalmetrics.MetricSessionRejected
	MetricSessionDestroyed     = internalmetrics.MetricSessionDestroyed
	MetricSessionsReset        = internalmetrics.MetricSessionsReset
	MetricLicenseExpired       = internalmetrics.MetricLicenseExpired
	MetricLockConflict         = internalmetrics.MetricLockConflict
	MetricValidateLatency      = internalmetrics.MetricValidateLatency
	MetricPermissionLatency    = internalmetrics.MetricPermissionLatency
)

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] configured by cfg. When Enabled is false, all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}

// MetricsSnapshot returns the current counters. Disabled metrics yield empty
// maps.
func (db *DB) MetricsSnapshot() MetricsSnapshot {
	if db == nil || db.core == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return db.core.metrics.Snapshot()
}

func (c *core) observeSince(id MetricID, start time.Time) {
	if !c.metrics.LatencyEnabled() {
		return
	}
	c.metrics.Observe(id, time.Since(start))
}
