package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/dossier-crm/teamauth"
)

// AccessTokenCookie is the cookie the guards read before falling back to the
// Authorization header.
const AccessTokenCookie = "access_token"

type authResultContextKey struct{}

// AuthResultFromContext returns the validated caller stored by a guard.
func AuthResultFromContext(ctx context.Context) (*teamauth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*teamauth.AuthResult)
	return res, ok
}

// ErrorHandler writes the response for a rejected request.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type options struct {
	onError ErrorHandler
}

// Option customises a guard.
type Option func(*options)

// WithErrorHandler replaces the default JSON error writer.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *options) {
		if h != nil {
			o.onError = h
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{onError: WriteError}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Guard validates the caller's access token with routeMode and stores the result in
// the request context. Requests without a valid token are rejected with 401.
func Guard(engine *teamauth.Engine, routeMode teamauth.RouteMode, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				o.onError(w, r, teamauth.ErrUnauthorized)
				return
			}

			token, ok := AccessToken(r)
			if !ok {
				o.onError(w, r, teamauth.ErrUnauthorized)
				return
			}

			res, err := engine.ValidateAccess(r.Context(), token, routeMode)
			if err != nil {
				o.onError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission rejects callers whose role lacks perm with 403. It must run behind
// a guard.
func RequirePermission(engine *teamauth.Engine, perm string, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok {
				o.onError(w, r, teamauth.ErrUnauthorized)
				return
			}
			if !engine.HasPermission(res, perm) {
				o.onError(w, r, teamauth.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientContext copies the caller's IP and User-Agent into the request context so the
// engine can throttle and audit by them. Put it behind a real-IP middleware when the
// service sits behind a proxy.
func ClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := teamauth.WithClientIP(r.Context(), clientIP(r.RemoteAddr))
		ctx = teamauth.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// AccessToken extracts the access token from the access_token cookie or, failing
// that, a Bearer Authorization header.
func AccessToken(r *http.Request) (string, bool) {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusFor maps an engine error to its HTTP status.
func StatusFor(err error) int {
	authErr, ok := teamauth.AsError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch authErr.Kind() {
	case teamauth.KindCredential:
		return http.StatusUnauthorized
	case teamauth.KindForbidden:
		return http.StatusForbidden
	case teamauth.KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}

// WriteError writes err as {"error":{"code","message"}}. Errors that are not engine
// errors are reported as INTERNAL_ERROR without their message.
func WriteError(w http.ResponseWriter, _ *http.Request, err error) {
	body := errorBody{Error: errorDetail{Code: "INTERNAL_ERROR", Message: "Internal server error"}}
	var authErr *teamauth.Error
	if errors.As(err, &authErr) {
		body.Error = errorDetail{Code: string(authErr.Code()), Message: authErr.Message()}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusFor(err))
	_ = json.NewEncoder(w).Encode(body)
}
