// Package permission provides the ACL codec used by authdb roles: conversion
// between structured access rules and flat "resource:METHOD" tokens, and
// permission resolution against those tokens.
//
// # Token format
//
// Each (resource, method) grant is one set member:
//
//	<lower-cased resource>:<UPPER-CASED METHOD>
//
// The method "*" grants every method on the resource. Storing discrete tokens
// keeps a permission check at one or two set-membership tests regardless of
// how large the ACL is.
//
// # Architecture boundaries
//
// Encode, Decode and Allows are pure. [Check] performs lookups only through
// the [MemberFunc] it is given.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network directly.
//   - Import authdb or session.
package permission
