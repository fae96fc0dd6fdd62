// Package httpapi serves the auth engine over HTTP under /api/v1.
//
// Successful responses are {"data": ...}; failures are {"error":{"code","message"}}
// with 400 for validation and state errors, 401 for credential errors, 403 for missing
// permissions, 429 when throttled and 500 otherwise. Login, register, acceptInvite and
// refresh set httpOnly access_token and refresh_token cookies; logout and refresh
// failures clear them.
package httpapi
