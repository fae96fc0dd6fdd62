package stores

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

// CreateSession inserts session. The caller supplies a unique RefreshToken value.
func (s *Store) CreateSession(ctx context.Context, session *Session) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(session).Error)
}

// SetSessionRefreshToken replaces the refresh token held by a session.
func (s *Store) SetSessionRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	res := s.db.WithContext(ctx).
		Model(&Session{}).
		Where("id = ?", id).
		Update("refresh_token", token)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SessionByID loads a session with its user and the user's team.
func (s *Store) SessionByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	var session Session
	err := s.db.WithContext(ctx).
		Preload("User.Team").
		Where("id = ?", id).
		Take(&session).Error
	if err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

// DeleteSessionByRefreshToken removes whichever session holds token, if any.
func (s *Store) DeleteSessionByRefreshToken(ctx context.Context, token string) (int64, error) {
	res := s.db.WithContext(ctx).Where("refresh_token = ?", token).Delete(&Session{})
	return res.RowsAffected, translate(res.Error)
}

// DeleteSessionIfToken deletes session id only while it still holds token. It reports
// whether this call removed the row, which makes it the arbiter between concurrent
// rotations of the same refresh token.
func (s *Store) DeleteSessionIfToken(ctx context.Context, id uuid.UUID, token string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("id = ? AND refresh_token = ?", id, token).
		Delete(&Session{})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) DeleteSession(ctx context.Context, id uuid.UUID) error {
	return translate(s.db.WithContext(ctx).Where("id = ?", id).Delete(&Session{}).Error)
}

// DeleteUserSessions removes every session of a user and returns how many were removed.
func (s *Store) DeleteUserSessions(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&Session{})
	return res.RowsAffected, translate(res.Error)
}

// ListUserSessions returns the user's sessions that expire after now, newest first.
func (s *Store) ListUserSessions(ctx context.Context, userID uuid.UUID, now time.Time) ([]Session, error) {
	var sessions []Session
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, now).
		Order("created_at DESC").
		Find(&sessions).Error
	return sessions, translate(err)
}

// DeleteExpiredSessions purges sessions whose expiry is at or before now.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&Session{})
	return res.RowsAffected, translate(res.Error)
}
