package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dossier-crm/teamauth"
	"github.com/dossier-crm/teamauth/permission"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newGuardEngine(t *testing.T) *teamauth.Engine {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), teamauth.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := teamauth.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := teamauth.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("guard-access-secret-0123456789abcdef")
	cfg.JWT.RefreshSecret = []byte("guard-refresh-secret-0123456789abcde")
	cfg.Password.Cost = bcrypt.MinCost
	cfg.Audit.Enabled = false

	engine, err := teamauth.New().WithConfig(cfg).WithDatabase(db).Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func registerOwner(t *testing.T, engine *teamauth.Engine) *teamauth.AuthResponse {
	t.Helper()
	res, err := engine.Register(context.Background(), teamauth.RegisterRequest{
		Email: "owner@x.com", Password: "Passw0rd", Name: "Ann", TeamName: "Acme",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return res
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	res, ok := AuthResultFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_, _ = w.Write([]byte(res.UserID))
})

func TestGuardAcceptsCookieAndBearer(t *testing.T) {
	engine := newGuardEngine(t)
	reg := registerOwner(t, engine)
	h := Guard(engine, teamauth.ModeInherit)(okHandler)

	cookieReq := httptest.NewRequest(http.MethodGet, "/", nil)
	cookieReq.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: reg.Tokens.AccessToken})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, cookieReq)
	if rec.Code != http.StatusOK || rec.Body.String() != reg.User.ID {
		t.Fatalf("cookie auth: status %d body %q", rec.Code, rec.Body.String())
	}

	bearerReq := httptest.NewRequest(http.MethodGet, "/", nil)
	bearerReq.Header.Set("Authorization", "bearer "+reg.Tokens.AccessToken)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, bearerReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("bearer auth: status %d", rec.Code)
	}
}

func TestGuardRejectsMissingAndInvalidTokens(t *testing.T) {
	engine := newGuardEngine(t)
	reg := registerOwner(t, engine)
	h := RequireJWTOnly(engine)(okHandler)

	cases := map[string]func(*http.Request){
		"missing":       func(*http.Request) {},
		"empty bearer":  func(r *http.Request) { r.Header.Set("Authorization", "Bearer ") },
		"basic scheme":  func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") },
		"garbage":       func(r *http.Request) { r.Header.Set("Authorization", "Bearer not-a-jwt") },
		"refresh token": func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+reg.Tokens.RefreshToken) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			mutate(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			if got := decodeError(t, rec); got.Code != string(teamauth.CodeUnauthorized) {
				t.Fatalf("expected UNAUTHORIZED, got %+v", got)
			}
		})
	}
}

func TestRequireStrictChecksUserNotSession(t *testing.T) {
	engine := newGuardEngine(t)
	reg := registerOwner(t, engine)

	// Strict mode checks the user, not the session, so logout alone keeps the token valid.
	if err := engine.Logout(context.Background(), reg.Tokens.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+reg.Tokens.AccessToken)
	rec := httptest.NewRecorder()
	RequireStrict(engine)(okHandler).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected strict validation to pass for a live user, got %d", rec.Code)
	}
}

func TestRequirePermission(t *testing.T) {
	engine := newGuardEngine(t)
	owner := registerOwner(t, engine)

	invite, err := engine.CreateInvite(context.Background(), teamauth.CreateInviteRequest{
		InviterID: owner.User.ID, Email: "viewer@x.com", Role: teamauth.RoleViewer,
	})
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	viewer, err := engine.AcceptInvite(context.Background(), teamauth.AcceptInviteRequest{
		Token: invite.Token, Password: "Passw0rd", Name: "Vic",
	})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	h := Guard(engine, teamauth.ModeInherit)(RequirePermission(engine, permission.DealsWrite)(okHandler))

	for _, tc := range []struct {
		name   string
		token  string
		status int
	}{
		{"owner", owner.Tokens.AccessToken, http.StatusOK},
		{"viewer", viewer.Tokens.AccessToken, http.StatusForbidden},
	} {
		req := httptest.NewRequest(http.MethodPost, "/deals", nil)
		req.Header.Set("Authorization", "Bearer "+tc.token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, rec.Code)
		}
	}
}

func TestRequirePermissionWithoutGuard(t *testing.T) {
	engine := newGuardEngine(t)
	rec := httptest.NewRecorder()
	RequirePermission(engine, permission.DealsRead)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestWithErrorHandler(t *testing.T) {
	var seen error
	h := Guard(nil, teamauth.ModeInherit, WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
		seen = err
		w.WriteHeader(http.StatusTeapot)
	}))(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot || seen != teamauth.ErrUnauthorized {
		t.Fatalf("expected custom handler, got %d %v", rec.Code, seen)
	}
}

func TestClientContextStripsPort(t *testing.T) {
	if got := clientIP("198.51.100.7:5123"); got != "198.51.100.7" {
		t.Fatalf("expected host, got %q", got)
	}
	if got := clientIP("[2001:db8::1]:443"); got != "2001:db8::1" {
		t.Fatalf("expected v6 host, got %q", got)
	}
	if got := clientIP("unix"); got != "unix" {
		t.Fatalf("expected passthrough, got %q", got)
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		teamauth.ErrInvalidCredentials:  http.StatusUnauthorized,
		teamauth.ErrRefreshTokenExpired: http.StatusUnauthorized,
		teamauth.ErrForbidden:           http.StatusForbidden,
		teamauth.ErrRateLimited:         http.StatusTooManyRequests,
		teamauth.ErrEmailExists:         http.StatusBadRequest,
		teamauth.ErrInvalidInvite:       http.StatusBadRequest,
		context.Canceled:                http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := StatusFor(err); got != want {
			t.Fatalf("%v: expected %d, got %d", err, want, got)
		}
	}
}
