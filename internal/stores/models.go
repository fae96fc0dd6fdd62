package stores

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InviteStatus is the invite state machine: pending -> accepted | expired.
type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteExpired  InviteStatus = "expired"
)

// Team is the tenant boundary. It owns users and invites.
type Team struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	Users   []User   `gorm:"constraint:OnDelete:CASCADE"`
	Invites []Invite `gorm:"constraint:OnDelete:CASCADE"`
}

// User is a team member. Email is stored lowercased and is globally unique.
type User struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email         string    `gorm:"type:text;uniqueIndex;not null"`
	PasswordHash  string    `gorm:"type:text;not null"`
	Name          string    `gorm:"type:text;not null"`
	Role          string    `gorm:"type:text;not null"`
	TeamID        uuid.UUID `gorm:"type:uuid;not null;index"`
	EmailVerified bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`

	Team               *Team               `gorm:"foreignKey:TeamID;references:ID"`
	Sessions           []Session           `gorm:"constraint:OnDelete:CASCADE"`
	EmailVerifications []EmailVerification `gorm:"constraint:OnDelete:CASCADE"`
}

// Session is one logged-in device. RefreshToken holds the only refresh token that may
// rotate it.
type Session struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index"`
	RefreshToken string    `gorm:"type:text;uniqueIndex;not null"`
	ExpiresAt    time.Time `gorm:"not null;index"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`

	User *User `gorm:"foreignKey:UserID;references:ID"`
}

// Invite grants an email a role on a team once. Rows are never deleted so that their
// final status remains visible.
type Invite struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey"`
	TeamID      uuid.UUID    `gorm:"type:uuid;not null;index"`
	Email       string       `gorm:"type:text;not null;index"`
	Role        string       `gorm:"type:text;not null"`
	Token       string       `gorm:"type:text;uniqueIndex;not null"`
	Status      InviteStatus `gorm:"type:text;not null"`
	InvitedByID *uuid.UUID   `gorm:"type:uuid"`
	ExpiresAt   time.Time    `gorm:"not null"`
	CreatedAt   time.Time    `gorm:"autoCreateTime"`

	Team *Team `gorm:"foreignKey:TeamID;references:ID"`
}

// PasswordReset is a single-use reset token addressed to an email.
type PasswordReset struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email     string    `gorm:"type:text;not null;index"`
	Token     string    `gorm:"type:text;uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	UsedAt    *time.Time
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// EmailVerification is a single-use verification token addressed to a user.
type EmailVerification struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Token      string    `gorm:"type:text;uniqueIndex;not null"`
	ExpiresAt  time.Time `gorm:"not null"`
	VerifiedAt *time.Time
	CreatedAt  time.Time `gorm:"autoCreateTime"`

	User *User `gorm:"foreignKey:UserID;references:ID"`
}

// AuditLog is one persisted audit event.
type AuditLog struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	TeamID    *uuid.UUID     `gorm:"type:uuid;index"`
	UserID    *uuid.UUID     `gorm:"type:uuid;index"`
	Action    string         `gorm:"type:text;not null;index"`
	Success   bool           `gorm:"not null"`
	ErrorCode string         `gorm:"type:text"`
	IP        string         `gorm:"type:text"`
	Metadata  datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null;index"`
}

// Primary keys are assigned client-side so the schema does not depend on a
// database-specific uuid default.

func (t *Team) BeforeCreate(*gorm.DB) error              { t.ID = ensureID(t.ID); return nil }
func (u *User) BeforeCreate(*gorm.DB) error              { u.ID = ensureID(u.ID); return nil }
func (s *Session) BeforeCreate(*gorm.DB) error           { s.ID = ensureID(s.ID); return nil }
func (i *Invite) BeforeCreate(*gorm.DB) error            { i.ID = ensureID(i.ID); return nil }
func (r *PasswordReset) BeforeCreate(*gorm.DB) error     { r.ID = ensureID(r.ID); return nil }
func (v *EmailVerification) BeforeCreate(*gorm.DB) error { v.ID = ensureID(v.ID); return nil }
func (a *AuditLog) BeforeCreate(*gorm.DB) error          { a.ID = ensureID(a.ID); return nil }

func ensureID(id uuid.UUID) uuid.UUID {
	if id == uuid.Nil {
		return uuid.New()
	}
	return id
}

// AllModels lists every table in dependency order for migrations.
func AllModels() []any {
	return []any{
		&Team{},
		&User{},
		&Session{},
		&Invite{},
		&PasswordReset{},
		&EmailVerification{},
		&AuditLog{},
	}
}
