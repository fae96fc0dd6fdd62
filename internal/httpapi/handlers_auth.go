package httpapi

import (
	"net/http"

	"github.com/dossier-crm/teamauth"
)

type registerBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	TeamName string `json:"teamName"`
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type acceptInviteBody struct {
	Token    string `json:"token"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type profileBody struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// userData is the body of every login-like response. Tokens only travel in the
// HttpOnly cookies.
type userData struct {
	User teamauth.UserView `json:"user"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if err := decode(r, w, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.engine.Register(r.Context(), teamauth.RegisterRequest{
		Email:    body.Email,
		Password: body.Password,
		Name:     body.Name,
		TeamName: body.TeamName,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.setAuthCookies(w, res.Tokens)
	writeData(w, http.StatusCreated, userData{User: res.User})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := decode(r, w, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.engine.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.setAuthCookies(w, res.Tokens)
	writeData(w, http.StatusOK, userData{User: res.User})
}

func (s *Server) acceptInvite(w http.ResponseWriter, r *http.Request) {
	var body acceptInviteBody
	if err := decode(r, w, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.engine.AcceptInvite(r.Context(), teamauth.AcceptInviteRequest{
		Token:    body.Token,
		Password: body.Password,
		Name:     body.Name,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.setAuthCookies(w, res.Tokens)
	writeData(w, http.StatusCreated, userData{User: res.User})
}

// logout always succeeds and always clears the cookies.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	token := refreshTokenFrom(r, w)
	if err := s.engine.Logout(r.Context(), token); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.clearAuthCookies(w)
	writeData(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	token := refreshTokenFrom(r, w)
	if token == "" {
		s.clearAuthCookies(w)
		s.writeError(w, r, teamauth.ErrNoRefreshToken)
		return
	}

	tokens, err := s.engine.Refresh(r.Context(), token)
	if err != nil {
		if authErr, ok := teamauth.AsError(err); ok && authErr.Kind() == teamauth.KindCredential {
			s.clearAuthCookies(w)
		}
		s.writeError(w, r, err)
		return
	}
	s.setAuthCookies(w, *tokens)
	writeData(w, http.StatusOK, map[string]string{"message": "Tokens refreshed"})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.Me(r.Context(), authResult(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"user":        view,
		"permissions": authResult(r).Permissions,
	})
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var body profileBody
	if err := decode(r, w, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.engine.UpdateProfile(r.Context(), teamauth.UpdateProfileRequest{
		UserID: authResult(r).UserID,
		Name:   body.Name,
		Email:  body.Email,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, userData{User: *view})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.engine.ListSessions(r.Context(), authResult(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sessions)
}

func (s *Server) logoutAll(w http.ResponseWriter, r *http.Request) {
	removed, err := s.engine.LogoutAll(r.Context(), authResult(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.clearAuthCookies(w)
	writeData(w, http.StatusOK, map[string]int64{"removed": removed})
}
