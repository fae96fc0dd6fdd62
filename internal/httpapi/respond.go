package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dossier-crm/teamauth"
	"github.com/dossier-crm/teamauth/middleware"
)

const refreshTokenCookie = "refresh_token"

var errBadBody = teamauth.NewError(teamauth.CodeValidation, "Invalid request body")

type dataBody struct {
	Data any `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, dataBody{Data: v})
}

// writeError renders engine errors with their code and hides everything else behind
// INTERNAL_ERROR.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if _, ok := teamauth.AsError(err); !ok {
		s.logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	middleware.WriteError(w, r, err)
}

// decode reads a JSON body into v. Unknown fields are rejected.
func decode(r *http.Request, w http.ResponseWriter, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errBadBody
	}
	return nil
}

func (s *Server) setAuthCookies(w http.ResponseWriter, tokens teamauth.Tokens) {
	http.SetCookie(w, s.cookie(middleware.AccessTokenCookie, tokens.AccessToken, s.engine.AccessTTL()))
	http.SetCookie(w, s.cookie(refreshTokenCookie, tokens.RefreshToken, s.engine.RefreshTTL()))
}

func (s *Server) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, refreshTokenCookie} {
		c := s.cookie(name, "", 0)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

func (s *Server) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   s.opts.CookieDomain,
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.opts.Production,
		SameSite: http.SameSiteLaxMode,
	}
}

// refreshTokenFrom prefers the refresh_token cookie over a refreshToken body field.
func refreshTokenFrom(r *http.Request, w http.ResponseWriter) string {
	if c, err := r.Cookie(refreshTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if r.ContentLength == 0 {
		return ""
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decode(r, w, &body); err != nil {
		return ""
	}
	return body.RefreshToken
}

func authResult(r *http.Request) *teamauth.AuthResult {
	res, _ := middleware.AuthResultFromContext(r.Context())
	return res
}
