package httpapi

import (
	"net/http"

	"github.com/dossier-crm/teamauth"
)

type emailBody struct {
	Email string `json:"email"`
}

type resetPasswordBody struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type changePasswordBody struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type tokenBody struct {
	Token string `json:"token"`
}

type createInviteBody struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// tokenData hides raw tokens in production, where they only travel by notification.
func (s *Server) tokenData(message, token string) map[string]string {
	out := map[string]string{"message": message}
	if !s.opts.Production {
		out["token"] = token
	}
	return out
}

func (s *Server) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var body emailBody
	if err := decode(r, w, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.engine.RequestPasswordReset(r.Context(), body.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, s.tokenData("If the account exists, a reset email has been sent", res.Token))
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var body resetPasswordBody
	if err := decode(r, w, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.engine.ResetPassword(r.Context(), body.Token, body.Password); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.clearAuthCookies(w)
	writeData(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var body changePasswordBody
	if err := decode(r, w, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.engine.ChangePassword(r.Context(), authResult(r).UserID, body.CurrentPassword, body.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var body tokenBody
	if err := decode(r, w, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.engine.VerifyEmail(r.Context(), body.Token); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) createEmailVerification(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.CreateEmailVerification(r.Context(), authResult(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, s.tokenData("Verification email sent", res.Token))
}

func (s *Server) resendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.ResendVerificationEmail(r.Context(), authResult(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, s.tokenData("Verification email sent", res.Token))
}

func (s *Server) createInvite(w http.ResponseWriter, r *http.Request) {
	var body createInviteBody
	if err := decode(r, w, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.engine.CreateInvite(r.Context(), teamauth.CreateInviteRequest{
		InviterID: authResult(r).UserID,
		Email:     body.Email,
		Role:      body.Role,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := map[string]any{"invite": res.Invite}
	if !s.opts.Production {
		out["token"] = res.Token
	}
	writeData(w, http.StatusCreated, out)
}

func (s *Server) listInvites(w http.ResponseWriter, r *http.Request) {
	invites, err := s.engine.ListInvites(r.Context(), authResult(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, invites)
}
