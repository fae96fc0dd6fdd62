package stores

import (
	"context"
	"time"

	"github.com/google/uuid"
)

func (s *Store) CreatePasswordReset(ctx context.Context, reset *PasswordReset) error {
	return translate(s.db.WithContext(ctx).Create(reset).Error)
}

func (s *Store) PasswordResetByToken(ctx context.Context, token string) (*PasswordReset, error) {
	var reset PasswordReset
	if err := s.db.WithContext(ctx).Where("token = ?", token).Take(&reset).Error; err != nil {
		return nil, translate(err)
	}
	return &reset, nil
}

// InvalidatePasswordResets marks every unused reset for email as used at the given time.
func (s *Store) InvalidatePasswordResets(ctx context.Context, email string, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&PasswordReset{}).
		Where("email = ? AND used_at IS NULL", email).
		Update("used_at", at)
	return res.RowsAffected, translate(res.Error)
}

// ConsumePasswordReset marks reset id used. It reports false when the reset was already
// used, so only one concurrent redemption can win.
func (s *Store) ConsumePasswordReset(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&PasswordReset{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", at)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}
