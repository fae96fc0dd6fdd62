package teamauth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dossier-crm/teamauth/internal/stores"
	"github.com/dossier-crm/teamauth/permission"
	"github.com/google/uuid"
)

// Register creates a team with req.Email as its owner and logs the owner in.
//
// Team, user and first session are written in one transaction. An email that is already
// registered, in any letter case, fails with [ErrEmailExists]; the check is the unique
// index on users.email, so two concurrent registrations cannot both succeed.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (_ *AuthResponse, err error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Register")
	defer func() { finishSpan(span, err) }()

	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	req.TeamName = strings.TrimSpace(req.TeamName)
	if err := checkInput(req); err != nil {
		return nil, err
	}
	email := req.Email

	if err := e.accountLimiter.CheckRequest(ctx, email, clientIPFromContext(ctx)); err != nil {
		return nil, e.limiterError(ctx, "account_creation", err, auditRecord{metadata: map[string]string{"email": email}})
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	team := &stores.Team{Name: req.TeamName}
	user := &stores.User{
		Email:        email,
		PasswordHash: hash,
		Name:         req.Name,
		Role:         RoleOwner,
	}

	var (
		issued    Tokens
		sessionID uuid.UUID
	)
	err = e.store.WithTx(ctx, func(tx *stores.Store) error {
		if err := tx.CreateTeam(ctx, team); err != nil {
			return fmt.Errorf("create team: %w", err)
		}
		user.TeamID = team.ID
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		var serr error
		issued, sessionID, serr = e.createSession(ctx, tx, user)
		return serr
	})
	if err != nil {
		if errors.Is(err, stores.ErrDuplicate) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditUserRegister, false, auditRecord{
				err:      ErrEmailExists,
				metadata: map[string]string{"email": email},
			})
			return nil, ErrEmailExists
		}
		return nil, err
	}
	user.Team = team

	e.metricInc(MetricRegisterSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditUserRegister, true, auditRecord{
		userID:    user.ID.String(),
		teamID:    team.ID.String(),
		sessionID: sessionID.String(),
		metadata:  map[string]string{"team_name": team.Name},
	})

	return &AuthResponse{User: userView(user), Tokens: issued}, nil
}

/*
====================================
INVITES
====================================
*/

// CreateInvite issues a single-use invite to join the inviter's team.
//
// The inviter needs the team.invite permission. Owners cannot be invited; every team
// keeps the single owner that registered it. The raw token is returned and also handed
// to the notifier.
func (e *Engine) CreateInvite(ctx context.Context, req CreateInviteRequest) (_ *CreateInviteResult, err error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "CreateInvite")
	defer func() { finishSpan(span, err) }()

	inviter, err := e.loadUser(ctx, req.InviterID)
	if err != nil {
		return nil, err
	}
	rec := auditRecord{userID: inviter.ID.String(), teamID: inviter.TeamID.String()}

	if !e.roles.Has(inviter.Role, permission.TeamInvite) {
		rec.err = ErrForbidden
		e.emitAudit(ctx, auditMemberInvite, false, rec)
		return nil, ErrForbidden
	}

	req.Email = normalizeEmail(req.Email)
	if err := checkInput(req); err != nil {
		return nil, err
	}
	email := req.Email
	if !slices.Contains(permission.InvitableRoles(), req.Role) {
		return nil, ErrInvalidRole
	}

	token, err := e.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("generate invite token: %w", err)
	}
	invite := &stores.Invite{
		TeamID:      inviter.TeamID,
		Email:       email,
		Role:        req.Role,
		Token:       token,
		Status:      stores.InvitePending,
		InvitedByID: &inviter.ID,
		ExpiresAt:   e.tokens.InviteExpiry(),
	}
	if err := e.store.CreateInvite(ctx, invite); err != nil {
		return nil, fmt.Errorf("create invite: %w", err)
	}

	e.metricInc(MetricInviteCreated)
	rec.metadata = map[string]string{"invite_id": invite.ID.String(), "email": email, "role": req.Role}
	e.emitAudit(ctx, auditMemberInvite, true, rec)

	n := Notification{
		Kind:      NotifyInvite,
		Email:     email,
		Token:     token,
		ExpiresAt: invite.ExpiresAt,
		Metadata:  map[string]string{"role": req.Role},
	}
	if inviter.Team != nil {
		n.TeamName = inviter.Team.Name
	}
	e.notify(ctx, n)

	return &CreateInviteResult{Invite: inviteView(invite), Token: token}, nil
}

// ListInvites returns the pending invites of the requester's team, newest first.
func (e *Engine) ListInvites(ctx context.Context, requesterID string) (_ []InviteView, err error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "ListInvites")
	defer func() { finishSpan(span, err) }()

	requester, err := e.loadUser(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if !e.roles.Has(requester.Role, permission.TeamInvite) {
		return nil, ErrForbidden
	}

	invites, err := e.store.PendingInvites(ctx, requester.TeamID)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	views := make([]InviteView, 0, len(invites))
	for i := range invites {
		views = append(views, inviteView(&invites[i]))
	}
	return views, nil
}

// AcceptInvite creates the invited user with the invite's role and team, marks the
// invite accepted and logs the new user in.
//
// An invite is consumed at most once. Invites found past their expiry are moved to the
// expired state.
func (e *Engine) AcceptInvite(ctx context.Context, req AcceptInviteRequest) (_ *AuthResponse, err error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "AcceptInvite")
	defer func() { finishSpan(span, err) }()

	if req.Token == "" {
		return nil, ErrInvalidInvite
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := checkInput(req); err != nil {
		return nil, err
	}

	invite, err := e.store.InviteByToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			e.metricInc(MetricInviteRejected)
			return nil, ErrInvalidInvite
		}
		return nil, fmt.Errorf("load invite: %w", err)
	}
	rec := auditRecord{
		teamID:   invite.TeamID.String(),
		metadata: map[string]string{"invite_id": invite.ID.String(), "email": invite.Email},
	}

	if invite.Status != stores.InvitePending {
		return nil, e.inviteRejected(ctx, ErrInviteUsed, rec)
	}
	if !e.now().Before(invite.ExpiresAt) {
		if _, terr := e.store.TransitionInvite(ctx, invite.ID, stores.InvitePending, stores.InviteExpired); terr != nil {
			return nil, fmt.Errorf("expire invite: %w", terr)
		}
		return nil, e.inviteRejected(ctx, ErrInviteExpired, rec)
	}

	if err := e.accountLimiter.CheckRequest(ctx, normalizeEmail(invite.Email), clientIPFromContext(ctx)); err != nil {
		return nil, e.limiterError(ctx, "account_creation", err, rec)
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &stores.User{
		Email:        normalizeEmail(invite.Email),
		PasswordHash: hash,
		Name:         req.Name,
		Role:         invite.Role,
		TeamID:       invite.TeamID,
	}

	var (
		issued    Tokens
		sessionID uuid.UUID
	)
	err = e.store.WithTx(ctx, func(tx *stores.Store) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		won, terr := tx.TransitionInvite(ctx, invite.ID, stores.InvitePending, stores.InviteAccepted)
		if terr != nil {
			return fmt.Errorf("accept invite: %w", terr)
		}
		if !won {
			return ErrInviteUsed
		}
		var serr error
		issued, sessionID, serr = e.createSession(ctx, tx, user)
		return serr
	})
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrDuplicate):
			return nil, e.inviteRejected(ctx, ErrEmailExists, rec)
		case errors.Is(err, ErrInviteUsed):
			return nil, e.inviteRejected(ctx, ErrInviteUsed, rec)
		}
		return nil, err
	}
	user.Team = invite.Team

	e.metricInc(MetricInviteAccepted)
	e.metricInc(MetricSessionCreated)
	rec.userID = user.ID.String()
	rec.sessionID = sessionID.String()
	e.emitAudit(ctx, auditInviteAccepted, true, rec)

	return &AuthResponse{User: userView(user), Tokens: issued}, nil
}

func (e *Engine) inviteRejected(ctx context.Context, cause *Error, rec auditRecord) error {
	e.metricInc(MetricInviteRejected)
	rec.err = cause
	e.emitAudit(ctx, auditInviteAccepted, false, rec)
	return cause
}

// loadUser resolves an authenticated user id. Malformed and unknown ids are both
// [ErrUserNotFound].
func (e *Engine) loadUser(ctx context.Context, userID string) (*stores.User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	user, err := e.store.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func inviteView(invite *stores.Invite) InviteView {
	return InviteView{
		ID:        invite.ID.String(),
		Email:     invite.Email,
		Role:      invite.Role,
		Status:    string(invite.Status),
		TeamID:    invite.TeamID.String(),
		ExpiresAt: invite.ExpiresAt,
		CreatedAt: invite.CreatedAt,
	}
}
