package session

import "time"

// Session is one live session record.
type Session struct {
	ID      string
	Subject string

	Data map[string]string

	CreatedAt      time.Time
	LastActivityAt time.Time
	Requests       int64
	TTL            time.Duration
}

const (
	fieldCreatedAt      = "createdAt"
	fieldLastActivityAt = "lastActivityAt"
	fieldRequests       = "requests"
	fieldTTL            = "ttl"
	dataFieldPrefix     = "data."
)
