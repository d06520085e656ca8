// Package stores holds the Redis key layout and the hash-field codecs of the
// authdb records: users, email index entries and roles.
//
// # Serialization
//
// Every record is one Redis hash of string fields. Timestamps are unix
// milliseconds. List-valued fields (a user's emails and roles) are stored
// comma-joined in a single field; [JoinList] and [SplitList] are the only
// producers and consumers of that format, and list members must never contain
// a comma. Open-ended attributes live under a per-record field prefix
// (profile., attr.) so they cannot collide with fixed fields.
//
// # What this package must NOT do
//
//   - Import authdb or any sibling internal package other than txn.
//   - Decide business rules; it only reads and encodes records.
package stores
