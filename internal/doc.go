// Package internal contains helpers private to authdb, currently the random
// session id generator.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - metrics: lock-free counters and latency histograms
//   - stores: Redis key layout and record codecs
//   - txn: the optimistic WATCH/MULTI/EXEC combinator
//
// # What this package must NOT do
//
//   - Export types that appear in the public authdb API.
//   - Be imported by any package outside the authdb module.
package internal
