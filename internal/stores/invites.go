package stores

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

func (s *Store) CreateInvite(ctx context.Context, invite *Invite) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(invite).Error)
}

// InviteByToken loads an invite and its team.
func (s *Store) InviteByToken(ctx context.Context, token string) (*Invite, error) {
	var invite Invite
	err := s.db.WithContext(ctx).
		Preload("Team").
		Where("token = ?", token).
		Take(&invite).Error
	if err != nil {
		return nil, translate(err)
	}
	return &invite, nil
}

// TransitionInvite moves an invite from one status to another. It reports false when
// the invite was no longer in the from status.
func (s *Store) TransitionInvite(ctx context.Context, id uuid.UUID, from, to InviteStatus) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&Invite{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// PendingInvites lists the team's invites still awaiting acceptance, newest first.
func (s *Store) PendingInvites(ctx context.Context, teamID uuid.UUID) ([]Invite, error) {
	var invites []Invite
	err := s.db.WithContext(ctx).
		Where("team_id = ? AND status = ?", teamID, InvitePending).
		Order("created_at DESC").
		Find(&invites).Error
	return invites, translate(err)
}
