package teamauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dossier-crm/teamauth/internal/stores"
)

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	DatabaseAvailable bool
	DatabaseLatency   time.Duration
}

// Me returns the public view of an authenticated user.
func (e *Engine) Me(ctx context.Context, userID string) (*UserView, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := userView(user)
	return &view, nil
}

// UpdateProfile changes the name and/or email of an authenticated user and returns the
// updated view.
//
// Emails are lowercased and must stay unique across all teams; a collision fails with
// [ErrEmailExists], decided by the unique index as in Register. A changed email is no
// longer verified, and open verification tokens for the old address are retired in the
// same transaction.
func (e *Engine) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (_ *UserView, err error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "UpdateProfile")
	defer func() { finishSpan(span, err) }()

	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := checkInput(req); err != nil {
		return nil, err
	}
	if req.Email == "" && req.Name == "" {
		return nil, validationError("Name or email is required")
	}

	user, err := e.loadUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	rec := auditRecord{userID: user.ID.String(), teamID: user.TeamID.String(), metadata: map[string]string{}}

	var changes stores.ProfileChanges
	if req.Name != "" && req.Name != user.Name {
		changes.Name = req.Name
		rec.metadata["name_changed"] = "true"
	}
	if req.Email != "" && req.Email != user.Email {
		changes.Email = req.Email
		changes.ClearVerified = true
		rec.metadata["old_email"] = user.Email
		rec.metadata["email"] = req.Email
	}
	if changes == (stores.ProfileChanges{}) {
		view := userView(user)
		return &view, nil
	}

	err = e.store.WithTx(ctx, func(tx *stores.Store) error {
		if err := tx.UpdateUserProfile(ctx, user.ID, changes); err != nil {
			return err
		}
		if changes.Email != "" {
			if _, err := tx.InvalidateEmailVerifications(ctx, user.ID, e.now()); err != nil {
				return fmt.Errorf("retire verifications: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrDuplicate):
			rec.err = ErrEmailExists
			e.emitAudit(ctx, auditProfileUpdate, false, rec)
			return nil, ErrEmailExists
		case errors.Is(err, stores.ErrNotFound):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	e.emitAudit(ctx, auditProfileUpdate, true, rec)

	return e.Me(ctx, user.ID.String())
}

// ListSessions lists the user's unexpired sessions, newest first.
func (e *Engine) ListSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	sessions, err := e.store.ListUserSessions(ctx, user.ID, e.now())
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionInfo{
			ID:        s.ID.String(),
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
		})
	}
	return out, nil
}

// ActiveSessionCount returns how many unexpired sessions the user holds.
func (e *Engine) ActiveSessionCount(ctx context.Context, userID string) (int, error) {
	sessions, err := e.ListSessions(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(sessions), nil
}

// LogoutAll deletes every session of the user and returns how many were removed.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (_ int64, err error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "LogoutAll")
	defer func() { finishSpan(span, err) }()

	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	removed, err := e.store.DeleteUserSessions(ctx, user.ID)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}

	e.metricInc(MetricLogoutAll)
	if removed > 0 {
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditUserLogoutAll, true, auditRecord{
		userID:   user.ID.String(),
		teamID:   user.TeamID.String(),
		metadata: map[string]string{"removed": fmt.Sprint(removed)},
	})
	return removed, nil
}

// PurgeExpiredSessions deletes sessions whose expiry has passed. Refresh already rejects
// them; purging only reclaims rows.
func (e *Engine) PurgeExpiredSessions(ctx context.Context) (_ int64, err error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "PurgeExpiredSessions")
	defer func() { finishSpan(span, err) }()

	purged, err := e.store.DeleteExpiredSessions(ctx, e.now())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	if purged > 0 {
		e.metricInc(MetricSessionPurged)
	}
	e.logger.Info().Int64("purged", purged).Msg("expired sessions purged")
	return purged, nil
}

// Health pings the database and reports its latency.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if !e.ready() {
		return HealthStatus{}
	}
	start := time.Now()
	if err := e.store.Ping(ctx); err != nil {
		return HealthStatus{}
	}
	return HealthStatus{DatabaseAvailable: true, DatabaseLatency: time.Since(start)}
}
