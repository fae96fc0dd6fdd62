package notify

import (
	"context"

	"github.com/dossier-crm/teamauth"
	"github.com/rs/zerolog"
)

// Log writes each notification to a zerolog logger. Tokens are logged only when
// includeToken is set, which is meant for local development without a mail worker.
type Log struct {
	logger       zerolog.Logger
	includeToken bool
}

func NewLog(logger zerolog.Logger, includeToken bool) *Log {
	return &Log{logger: logger, includeToken: includeToken}
}

func (l *Log) Notify(_ context.Context, n teamauth.Notification) error {
	ev := l.logger.Info().
		Str("kind", string(n.Kind)).
		Str("email", n.Email).
		Time("expires_at", n.ExpiresAt)
	if n.TeamName != "" {
		ev = ev.Str("team", n.TeamName)
	}
	if l.includeToken {
		ev = ev.Str("token", n.Token)
	}
	ev.Msg("notification")
	return nil
}
