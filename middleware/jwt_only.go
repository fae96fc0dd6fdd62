package middleware

import (
	"net/http"

	"github.com/dossier-crm/teamauth"
)

// RequireJWTOnly validates with [teamauth.ModeJWTOnly] for the wrapped handler, trusting
// the token's claims without a database read.
func RequireJWTOnly(engine *teamauth.Engine, opts ...Option) func(http.Handler) http.Handler {
	return Guard(engine, teamauth.ModeJWTOnly, opts...)
}
