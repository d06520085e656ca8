package authdb

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	internalaudit "github.com/MrEthical07/authdb/internal/audit"
)

// AuditEvent is one audit record delivered to an [AuditSink].
type AuditEvent = internalaudit.Event

// AuditSink consumes audit events. Emit is called from the dispatcher
// goroutine, never from the caller of a DB operation.
type AuditSink = internalaudit.Sink

// NoOpSink discards events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers events on a channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

const (
	AuditUserCreated      = internalaudit.UserCreated
	AuditUserUpdated      = internalaudit.UserUpdated
	AuditUserRemoved      = internalaudit.UserRemoved
	AuditEmailAdded       = internalaudit.EmailAdded
	AuditEmailUpdated     = internalaudit.EmailUpdated
	AuditEmailVerified    = internalaudit.EmailVerified
	AuditEmailRemoved     = internalaudit.EmailRemoved
	AuditRoleCreated      = internalaudit.RoleCreated
	AuditRoleUpdated      = internalaudit.RoleUpdated
	AuditSessionCreated   = internalaudit.SessionCreated
	AuditSessionDestroyed = internalaudit.SessionDestroyed
	AuditSessionsReset    = internalaudit.SessionsReset
	AuditLicenseExpired   = internalaudit.LicenseExpired
)

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, log logrus.FieldLogger) *internalaudit.Dispatcher {
	return internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
		OnDrop: func(e AuditEvent) {
			log.WithFields(logrus.Fields{
				"op":         "audit",
				"event_type": e.EventType,
				"username":   e.Username,
			}).Warn("audit event dropped")
		},
	}, sink)
}

// auditEvent describes one event; emit fills in id and timestamp. A non-empty
// code marks a failure.
type auditEvent struct {
	eventType string
	username  string
	subject   string
	sessionID string
	code      string
	metadata  map[string]string
}

func (c *core) emit(ctx context.Context, e auditEvent) {
	if c.audit == nil {
		return
	}
	event := internalaudit.NewEvent(e.eventType, c.now())
	event.Username = e.username
	event.Subject = e.subject
	event.SessionID = e.sessionID
	event.Success = e.code == ""
	event.Code = e.code
	event.Metadata = e.metadata
	c.audit.Emit(ctx, event)
}

// AuditDropped returns how many audit events were discarded under
// backpressure.
func (db *DB) AuditDropped() uint64 {
	if db == nil || db.core == nil {
		return 0
	}
	return db.core.audit.Dropped()
}
