// Package password implements the credential hasher: one-way, salted bcrypt hashing
// and verification.
//
// # Output format
//
// Hashes are standard modular-crypt bcrypt strings:
//
//	$2a$<cost>$<22 char salt><31 char hash>
//
// [Bcrypt.NeedsUpgrade] reports hashes produced with a lower cost than configured so
// callers can re-hash after the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length, character
// classes) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Compare hashes as raw strings.
//   - Log plaintext passwords.
package password
