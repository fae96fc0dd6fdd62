package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Event is one audit record. Error holds an engine error code, never a message.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	UserID    string            `json:"user_id,omitempty"`
	TeamID    string            `json:"team_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives events one at a time. Emit must not panic and keeps its failures to
// itself.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// BatchSink is implemented by sinks that can write several events at once. The
// dispatcher prefers it when available.
type BatchSink interface {
	Sink
	EmitBatch(ctx context.Context, events []Event)
}

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink hands events to an in-process consumer over a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{events: make(chan Event, max(buffer, 1))}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// LogSink writes each event as one structured log line.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Emit(_ context.Context, event Event) {
	if s == nil {
		return
	}
	entry := s.logger.Info()
	if !event.Success {
		entry = s.logger.Warn()
	}
	entry = entry.
		Time("at", event.Timestamp).
		Str("action", event.Action).
		Bool("success", event.Success)
	for key, value := range map[string]string{
		"user_id":    event.UserID,
		"team_id":    event.TeamID,
		"session_id": event.SessionID,
		"ip":         event.IP,
		"user_agent": event.UserAgent,
		"error_code": event.Error,
	} {
		if value != "" {
			entry = entry.Str(key, value)
		}
	}
	if len(event.Metadata) > 0 {
		dict := zerolog.Dict()
		for k, v := range event.Metadata {
			dict = dict.Str(k, v)
		}
		entry = entry.Dict("metadata", dict)
	}
	entry.Msg("audit")
}

// MultiSink fans each event out to every non-nil sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event Event) {
	for _, sink := range m {
		if sink != nil {
			sink.Emit(ctx, event)
		}
	}
}
