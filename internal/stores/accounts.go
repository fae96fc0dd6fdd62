package stores

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

func (s *Store) CreateTeam(ctx context.Context, team *Team) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(team).Error)
}

// CreateUser inserts user. A colliding email yields ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, user *User) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(user).Error)
}

// UserByEmail loads a user and its team. email must already be normalized.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).
		Preload("Team").
		Where("email = ?", email).
		Take(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// UserByID loads a user and its team.
func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).
		Preload("Team").
		Where("id = ?", id).
		Take(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error {
	res := s.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", userID).
		Update("password_hash", hash)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ProfileChanges lists the user columns an update touches. Empty strings are left alone.
type ProfileChanges struct {
	Name  string
	Email string
	// ClearVerified resets email_verified, used when the email changes.
	ClearVerified bool
}

// UpdateUserProfile applies c to the user. A colliding email yields ErrDuplicate.
func (s *Store) UpdateUserProfile(ctx context.Context, userID uuid.UUID, c ProfileChanges) error {
	updates := map[string]any{}
	if c.Name != "" {
		updates["name"] = c.Name
	}
	if c.Email != "" {
		updates["email"] = c.Email
	}
	if c.ClearVerified {
		updates["email_verified"] = false
	}
	if len(updates) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", userID).
		Updates(updates)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkEmailVerified(ctx context.Context, userID uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", userID).
		Update("email_verified", true)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
