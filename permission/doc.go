// Package permission maps CRM permissions to bits and composes team roles from them.
//
// # Model
//
// A [Registry] assigns each permission name a stable bit in a 64-bit [Mask]. A
// [RoleTable] holds one mask per role. Both are immutable after construction, so
// concurrent lookups need no locking.
//
// [Defaults] returns the registry and roles every team uses: owner, admin, member and
// viewer.
//
// # What this package must NOT do
//
//   - Access the database, Redis, or the network.
//   - Import teamauth or any sibling package.
package permission
