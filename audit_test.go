package teamauth

import (
	"context"
	"testing"
	"time"

	"github.com/dossier-crm/teamauth/internal/stores"
)

func collectEvents(t *testing.T, sink *ChannelSink, n int) []AuditEvent {
	t.Helper()

	events := make([]AuditEvent, 0, n)
	timeout := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("timed out after %d of %d audit events", len(events), n)
		}
	}
	return events
}

func TestAuditEventsCarryRequestContext(t *testing.T) {
	sink := NewChannelSink(64)
	env := newTestEngine(t, engineOptions{
		auditSink: sink,
		config:    func(c *Config) { c.Audit.Enabled = true },
	})

	ctx := WithUserAgent(WithClientIP(context.Background(), "192.0.2.10"), "curl/8.0")
	reg, err := env.engine.Register(ctx, RegisterRequest{Email: "a@x.com", Password: testPassword, Name: "Ann", TeamName: "Acme"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := env.engine.Login(ctx, "a@x.com", "Wrong0ne"); err == nil {
		t.Fatal("expected login failure")
	}

	events := collectEvents(t, sink, 2)

	registered := events[0]
	if registered.Action != auditUserRegister || !registered.Success {
		t.Fatalf("unexpected register event: %+v", registered)
	}
	if registered.UserID != reg.User.ID || registered.TeamID != reg.User.TeamID || registered.SessionID == "" {
		t.Fatalf("register event missing identifiers: %+v", registered)
	}
	if registered.IP != "192.0.2.10" || registered.UserAgent != "curl/8.0" {
		t.Fatalf("register event missing request context: %+v", registered)
	}
	if !registered.Timestamp.Equal(env.clock.Now()) {
		t.Fatalf("expected engine clock timestamp, got %v", registered.Timestamp)
	}

	failed := events[1]
	if failed.Action != auditUserLoginFailed || failed.Success || failed.Error != string(CodeInvalidCredentials) {
		t.Fatalf("unexpected login failure event: %+v", failed)
	}
	if failed.Metadata["reason"] != "bad_password" {
		t.Fatalf("expected bad_password reason, got %+v", failed.Metadata)
	}
}

func TestAuditDefaultSinkPersistsRows(t *testing.T) {
	env := newTestEngine(t, engineOptions{config: func(c *Config) { c.Audit.Enabled = true }})
	reg := env.register(t, "a@x.com")

	// Close drains the dispatcher.
	env.engine.Close()

	var rows []stores.AuditLog
	if err := env.store.DB().Find(&rows).Error; err != nil {
		t.Fatalf("load audit logs: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(rows))
	}
	if rows[0].Action != auditUserRegister || rows[0].UserID == nil || rows[0].UserID.String() != reg.User.ID {
		t.Fatalf("unexpected audit row: %+v", rows[0])
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	env := newTestEngine(t, engineOptions{})
	env.register(t, "a@x.com")
	env.engine.Close()

	var n int64
	env.store.DB().Model(&stores.AuditLog{}).Count(&n)
	if n != 0 {
		t.Fatalf("expected no audit rows, got %d", n)
	}
	if env.engine.AuditDropped() != 0 {
		t.Fatal("expected no dropped events")
	}
}

func TestAuditErrorCodeReducesInfrastructureErrors(t *testing.T) {
	if got := auditErrorCode(nil); got != "" {
		t.Fatalf("expected empty code, got %q", got)
	}
	if got := auditErrorCode(ErrInviteUsed); got != string(CodeInviteUsed) {
		t.Fatalf("expected INVITE_USED, got %q", got)
	}
	if got := auditErrorCode(context.DeadlineExceeded); got != "internal_error" {
		t.Fatalf("expected internal_error, got %q", got)
	}
}
