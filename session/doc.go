// Package session provides Redis-backed, TTL-bound session records keyed by
// (subject, session id).
//
// # Storage layout
//
// Each session is one Redis hash at <prefix><subject>:<id> holding the caller
// payload under data.<name> fields plus createdAt, lastActivityAt, requests and
// ttl. Expiry is delegated to the store: a session key exists only while its
// TTL has not elapsed, and every committed [Store.QueueTouch] pushes the
// deadline forward.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model. It
// does NOT check licenses or update user records itself. The authdb facade
// reads through [Store.Lookup] inside its own WATCH and queues the user writes
// next to [Store.QueueTouch] in the same MULTI.
//
// # What this package must NOT do
//
//   - Import authdb or permission (no upward imports).
//   - Perform application-level authorization decisions.
package session
