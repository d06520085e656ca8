// Package audit delivers authdb mutation events to a pluggable sink.
//
// # Components
//
//   - [Sink] is the consumer interface (channel, JSON writer, no-op).
//   - [Dispatcher] is a buffered async relay with drop-if-full or block-if-full
//     semantics.
//   - [Event] is the audit record: id, timestamp, type, username, session
//     subject and id, outcome code and metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which
// events to emit; the registries in package authdb do.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import authdb or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
