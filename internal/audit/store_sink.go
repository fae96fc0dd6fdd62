package audit

import (
	"context"
	"encoding/json"
	"maps"
	"time"

	"github.com/dossier-crm/teamauth/internal/stores"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const storeSinkTimeout = 5 * time.Second

// StoreSink persists events as audit_logs rows. A failed write is logged and the
// events are dropped.
type StoreSink struct {
	store  *stores.Store
	logger zerolog.Logger
}

var _ BatchSink = (*StoreSink)(nil)

func NewStoreSink(store *stores.Store, logger zerolog.Logger) *StoreSink {
	return &StoreSink{store: store, logger: logger}
}

func (s *StoreSink) Emit(ctx context.Context, event Event) {
	s.EmitBatch(ctx, []Event{event})
}

func (s *StoreSink) EmitBatch(ctx context.Context, events []Event) {
	if s == nil || s.store == nil || len(events) == 0 {
		return
	}

	rows := make([]*stores.AuditLog, 0, len(events))
	for _, event := range events {
		rows = append(rows, toRow(event))
	}

	ctx, cancel := context.WithTimeout(ctx, storeSinkTimeout)
	defer cancel()
	if err := s.store.CreateAuditLogs(ctx, rows); err != nil {
		s.logger.Warn().Err(err).Int("events", len(events)).Str("first_action", events[0].Action).Msg("audit log write failed")
	}
}

// toRow folds the fields audit_logs has no column for into the metadata JSON.
func toRow(event Event) *stores.AuditLog {
	row := &stores.AuditLog{
		TeamID:    parseOptionalID(event.TeamID),
		UserID:    parseOptionalID(event.UserID),
		Action:    event.Action,
		Success:   event.Success,
		ErrorCode: event.Error,
		IP:        event.IP,
		CreatedAt: event.Timestamp,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	metadata := maps.Clone(event.Metadata)
	if metadata == nil {
		metadata = make(map[string]string, 2)
	}
	if event.SessionID != "" {
		metadata["session_id"] = event.SessionID
	}
	if event.UserAgent != "" {
		metadata["user_agent"] = event.UserAgent
	}
	if raw, err := json.Marshal(metadata); err == nil {
		row.Metadata = raw
	}
	return row
}

func parseOptionalID(raw string) *uuid.UUID {
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}
