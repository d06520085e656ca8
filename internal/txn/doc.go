// Package txn implements the optimistic read-modify-write protocol every
// authdb mutation goes through.
//
// A call WATCHes the keys it depends on, reads their current state through the
// watching connection, computes the writes, and commits them in a single
// MULTI/EXEC. If any watched key changed in between, Redis rejects the EXEC and
// the call returns [ErrConflict] with the store left exactly as it was.
// Conflicts are never retried here; retry policy belongs to the caller.
package txn
