// Package stores is the relational Account and Session store: teams, users, invites,
// password resets, email verifications, sessions and audit rows, persisted with gorm.
//
// # Design
//
// Every state transition that can race is a conditional write whose RowsAffected
// decides the winner (compare-and-delete for session rotation, status/usedAt guards
// for invites, resets and verifications). Multi-row changes run inside [Store.WithTx].
// Uniqueness (user email, session refresh token, opaque tokens) is enforced by unique
// indexes and surfaced as [ErrDuplicate].
//
// # Architecture boundaries
//
// This package owns persistence only. It does not hash passwords, sign or generate
// tokens, or decide which error code a caller sees.
//
// # What this package must NOT do
//
//   - Import teamauth or any sibling internal package.
//   - Compare expiry against the wall clock. Callers pass "now" explicitly.
package stores
