package teamauth

import (
	internalaudit "github.com/dossier-crm/teamauth/internal/audit"
	"github.com/dossier-crm/teamauth/internal/stores"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// AuditEvent is one structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives events from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel sink for in-process consumers and tests.
type ChannelSink = internalaudit.ChannelSink

// LogSink writes each event as a structured zerolog line.
type LogSink = internalaudit.LogSink

// MultiSink fans events out to several sinks.
type MultiSink = internalaudit.MultiSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return internalaudit.NewLogSink(logger)
}

// NewDatabaseSink persists events as audit_logs rows. The dispatcher hands it events in
// batches, each written with one multi-row insert. Write failures are logged and dropped.
func NewDatabaseSink(db *gorm.DB, logger zerolog.Logger) AuditSink {
	return internalaudit.NewStoreSink(stores.New(db), logger)
}
