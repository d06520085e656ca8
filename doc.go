// Package authdb is an identity data layer on Redis: user accounts, a
// secondary email index, roles with ACLs, and TTL-bound sessions.
//
// A [DB] is built with [New] and exposes four registries: Users, Email, Roles
// and Sessions. All of them are safe for concurrent use.
//
// # Consistency
//
// Redis only offers single-key atomicity, so every mutation that spans keys
// (a user and its email index entries, a role and its ACL set) runs as one
// optimistic transaction: WATCH the keys, read, compute, then MULTI/EXEC. If a
// watched key changes in between, EXEC is rejected, nothing is written, and the
// operation returns [ErrLockConflict]. authdb never retries; callers re-invoke
// the whole operation if they want to.
//
// # Architecture boundaries
//
// authdb is the public surface. Key layout and record codecs live in
// internal/stores, the transaction combinator in internal/txn, and session
// persistence in package session. The Redis client is injected through
// [Builder.WithRedis]; authdb holds no global connection state.
//
// # What this package must NOT do
//
//   - Return password hashes or salts from any read operation.
//   - Change a user's email list outside the Email registry.
//   - Retry a rejected optimistic commit.
package authdb
