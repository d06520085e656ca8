// Package password implements the salted password hashing contract used by
// authdb user records.
//
// # Contract
//
// A [Hasher] maps (plaintext, salt) to a fixed-length base64 digest. It must be
// deterministic for identical inputs and deliberately slow to compute. The salt
// is generated by [NewSalt] and stored next to the digest; verification
// re-derives the digest and compares it in constant time with [Equal].
//
// Two implementations are provided: [PBKDF2] (default, configurable digest)
// and [Argon2] (argon2id).
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive digests.
//   - Import any other authdb package.
//   - Log plaintext passwords at runtime.
package password
