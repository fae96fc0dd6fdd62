package stores

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

func (s *Store) CreateEmailVerification(ctx context.Context, verification *EmailVerification) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(verification).Error)
}

// EmailVerificationByToken loads a verification with its user.
func (s *Store) EmailVerificationByToken(ctx context.Context, token string) (*EmailVerification, error) {
	var verification EmailVerification
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("token = ?", token).
		Take(&verification).Error
	if err != nil {
		return nil, translate(err)
	}
	return &verification, nil
}

// InvalidateEmailVerifications stamps verifiedAt on every open verification of a user,
// retiring them in favour of a newer one.
func (s *Store) InvalidateEmailVerifications(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&EmailVerification{}).
		Where("user_id = ? AND verified_at IS NULL", userID).
		Update("verified_at", at)
	return res.RowsAffected, translate(res.Error)
}

// ConsumeEmailVerification marks verification id verified. It reports false when it was
// already consumed or retired.
func (s *Store) ConsumeEmailVerification(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&EmailVerification{}).
		Where("id = ? AND verified_at IS NULL", id).
		Update("verified_at", at)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}
