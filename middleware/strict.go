package middleware

import (
	"net/http"

	"github.com/dossier-crm/teamauth"
)

// RequireStrict re-reads the user on every request and rejects tokens whose role or
// team no longer match.
func RequireStrict(engine *teamauth.Engine, opts ...Option) func(http.Handler) http.Handler {
	return Guard(engine, teamauth.ModeStrict, opts...)
}
