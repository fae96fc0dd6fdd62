package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dossier-crm/teamauth"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

type published struct {
	subject string
	data    []byte
}

type fakeJetStream struct {
	published []published
	streams   []*nats.StreamConfig
	exists    bool
	err       error
}

func (f *fakeJetStream) Publish(subj string, data []byte, _ ...nats.PubOpt) (*nats.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.published = append(f.published, published{subject: subj, data: data})
	return &nats.PubAck{Stream: DefaultStream, Sequence: uint64(len(f.published))}, nil
}

func (f *fakeJetStream) StreamInfo(string, ...nats.JSOpt) (*nats.StreamInfo, error) {
	if f.exists {
		return &nats.StreamInfo{}, nil
	}
	return nil, nats.ErrStreamNotFound
}

func (f *fakeJetStream) AddStream(cfg *nats.StreamConfig, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	f.streams = append(f.streams, cfg)
	f.exists = true
	return &nats.StreamInfo{Config: *cfg}, nil
}

func TestPublisherNotifyUsesKindSubject(t *testing.T) {
	js := &fakeJetStream{}
	p := &Publisher{js: js, prefix: subjectPrefix("crm.auth.")}

	n := teamauth.Notification{
		Kind:      teamauth.NotifyInvite,
		Email:     "new@x.com",
		Token:     "tok",
		ExpiresAt: time.Date(2026, 5, 8, 0, 0, 0, 0, time.UTC),
		TeamName:  "Acme",
	}
	if err := p.Notify(context.Background(), n); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(js.published) != 1 || js.published[0].subject != "crm.auth.invite" {
		t.Fatalf("unexpected publishes: %+v", js.published)
	}
	var got teamauth.Notification
	if err := json.Unmarshal(js.published[0].data, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.Email != n.Email || got.Token != n.Token || got.TeamName != "Acme" || !got.ExpiresAt.Equal(n.ExpiresAt) {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestPublisherNotifyWrapsPublishError(t *testing.T) {
	js := &fakeJetStream{err: nats.ErrNoResponders}
	p := &Publisher{js: js, prefix: DefaultSubjectPrefix}

	err := p.Notify(context.Background(), teamauth.Notification{Kind: teamauth.NotifyPasswordReset})
	if !errors.Is(err, nats.ErrNoResponders) {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
}

func TestPublisherEnsureStream(t *testing.T) {
	js := &fakeJetStream{}
	p := &Publisher{js: js, prefix: DefaultSubjectPrefix}

	for range 2 {
		if err := p.EnsureStream(context.Background(), 24*time.Hour); err != nil {
			t.Fatalf("ensure stream: %v", err)
		}
	}
	if len(js.streams) != 1 {
		t.Fatalf("expected stream created once, got %d", len(js.streams))
	}
	if got := js.streams[0].Subjects; len(got) != 1 || got[0] != "auth.notify.>" {
		t.Fatalf("unexpected subjects: %v", got)
	}
}

func TestNilPublisher(t *testing.T) {
	var p *Publisher
	if err := p.Notify(context.Background(), teamauth.Notification{}); err == nil {
		t.Fatal("expected error from nil publisher")
	}
	p.Close()
}

func TestLogNotifierHidesTokenByDefault(t *testing.T) {
	var buf bytes.Buffer
	n := teamauth.Notification{Kind: teamauth.NotifyEmailVerification, Email: "a@x.com", Token: "secret-token"}

	if err := NewLog(zerolog.New(&buf), false).Notify(context.Background(), n); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if strings.Contains(buf.String(), "secret-token") {
		t.Fatalf("token leaked into log: %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"kind":"email_verification"`) {
		t.Fatalf("expected kind in log: %s", buf.String())
	}

	buf.Reset()
	_ = NewLog(zerolog.New(&buf), true).Notify(context.Background(), n)
	if !strings.Contains(buf.String(), "secret-token") {
		t.Fatalf("expected token in development log: %s", buf.String())
	}
}
