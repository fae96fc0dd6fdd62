package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dossier-crm/teamauth"
	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is the subject root notifications are published under. The full
// subject is <prefix>.<kind>, e.g. auth.notify.password_reset.
const DefaultSubjectPrefix = "auth.notify"

// DefaultStream is the JetStream stream [Publisher.EnsureStream] creates.
const DefaultStream = "AUTH_NOTIFICATIONS"

var errNilPublisher = errors.New("nil publisher")

// jetStream is the subset of nats.JetStreamContext the publisher uses.
type jetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// Publisher is a teamauth.Notifier that hands notifications to a mail worker over NATS
// JetStream.
type Publisher struct {
	conn   *nats.Conn
	js     jetStream
	prefix string
}

var _ teamauth.Notifier = (*Publisher)(nil)

// Connect dials url and returns a Publisher using prefix, or DefaultSubjectPrefix when
// prefix is empty.
func Connect(url, prefix string, opts ...nats.Option) (*Publisher, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	return &Publisher{conn: nc, js: js, prefix: subjectPrefix(prefix)}, nil
}

func subjectPrefix(prefix string) string {
	prefix = strings.Trim(prefix, ". ")
	if prefix == "" {
		return DefaultSubjectPrefix
	}
	return prefix
}

// Subject returns the subject a notification of kind is published on.
func (p *Publisher) Subject(kind teamauth.NotificationKind) string {
	return p.prefix + "." + string(kind)
}

// EnsureStream creates the notification stream when it does not exist yet. Messages
// are kept for maxAge.
func (p *Publisher) EnsureStream(ctx context.Context, maxAge time.Duration) error {
	if p == nil || p.js == nil {
		return errNilPublisher
	}
	if _, err := p.js.StreamInfo(DefaultStream, nats.Context(ctx)); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info: %w", err)
	}

	_, err := p.js.AddStream(&nats.StreamConfig{
		Name:       DefaultStream,
		Subjects:   []string{p.prefix + ".>"},
		Storage:    nats.FileStorage,
		Retention:  nats.WorkQueuePolicy,
		MaxAge:     maxAge,
		Duplicates: 2 * time.Minute,
	}, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("add stream: %w", err)
	}
	return nil
}

// Notify publishes n as JSON. The message id is derived from the token, so JetStream
// drops a retried publish of the same notification.
func (p *Publisher) Notify(ctx context.Context, n teamauth.Notification) error {
	if p == nil || p.js == nil {
		return errNilPublisher
	}

	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	sum := sha256.Sum256([]byte(n.Token))
	_, err = p.js.Publish(p.Subject(n.Kind), data, nats.Context(ctx), nats.MsgId(hex.EncodeToString(sum[:16])))
	if err != nil {
		return fmt.Errorf("publish %s: %w", n.Kind, err)
	}
	return nil
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
