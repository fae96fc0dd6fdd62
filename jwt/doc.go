// Package jwt implements the token signer: HS256 access tokens carrying
// userId/teamId/role and refresh tokens carrying only a session id, each class signed
// with its own secret.
//
// # What this package must NOT do
//
//   - Read secrets from the environment or any package-level state. Keys are injected
//     through [Config] once at startup.
//   - Decide whether a refresh token is still usable. That is the session row's job.
package jwt
