package teamauth

import (
	"context"
	"time"

	"github.com/dossier-crm/teamauth/permission"
)

// Team roles. Every team has exactly one owner: the user who registered it.
const (
	RoleOwner  = permission.RoleOwner
	RoleAdmin  = permission.RoleAdmin
	RoleMember = permission.RoleMember
	RoleViewer = permission.RoleViewer
)

// UserView is the public projection of a user returned by register, login and
// acceptInvite.
type UserView struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	TeamID   string `json:"teamId"`
	TeamName string `json:"teamName"`
}

// Tokens is an access/refresh pair bound to one session.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse is returned by every operation that logs a user in.
type AuthResponse struct {
	User   UserView `json:"user"`
	Tokens Tokens   `json:"tokens"`
}

// TokenResponse carries a raw opaque token back to the transport, which decides whether
// to surface it or only deliver it out of band.
type TokenResponse struct {
	Token string `json:"token"`
}

// AuthResult is returned by [Engine.ValidateAccess].
type AuthResult struct {
	UserID string
	TeamID string
	Role   string
	Mask   permission.Mask

	Permissions []string
}

// SessionInfo describes one live session of a user. The refresh token is never exposed.
type SessionInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RegisterRequest is the input to [Engine.Register].
type RegisterRequest struct {
	Email    string `validate:"required,max=254,email"`
	Password string `validate:"required,password"`
	Name     string `validate:"required,max=100"`
	TeamName string `validate:"required,max=100"`
}

// AcceptInviteRequest is the input to [Engine.AcceptInvite].
type AcceptInviteRequest struct {
	Token    string
	Password string `validate:"required,password"`
	Name     string `validate:"required,max=100"`
}

// CreateInviteRequest is the input to [Engine.CreateInvite]. InviterID must be an
// authenticated user holding the team.invite permission.
type CreateInviteRequest struct {
	InviterID string
	Email     string `validate:"required,max=254,email"`
	Role      string
}

// UpdateProfileRequest is the input to [Engine.UpdateProfile]. Empty fields are left
// unchanged; at least one must be set.
type UpdateProfileRequest struct {
	UserID string
	Name   string `validate:"omitempty,max=100"`
	Email  string `validate:"omitempty,max=254,email"`
}

// InviteView is the public projection of an invite.
type InviteView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	TeamID    string    `json:"teamId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateInviteResult carries the new invite and its raw token.
type CreateInviteResult struct {
	Invite InviteView `json:"invite"`
	Token  string     `json:"token"`
}

/*
====================================
NOTIFICATIONS
====================================
*/

// NotificationKind names the message a Notifier is asked to deliver.
type NotificationKind string

const (
	NotifyPasswordReset     NotificationKind = "password_reset"
	NotifyEmailVerification NotificationKind = "email_verification"
	NotifyInvite            NotificationKind = "invite"
)

// Notification is handed to a Notifier after the state change it describes has
// committed.
type Notification struct {
	Kind      NotificationKind  `json:"kind"`
	Email     string            `json:"email"`
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
	TeamName  string            `json:"teamName,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Notifier delivers invite, reset and verification messages. Delivery is best effort:
// a returned error is logged and never undoes engine state.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notification) error { return nil }
