package notify

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rotisserie/eris"
)

// DefaultSubject prefixes run status subjects.
const DefaultSubject = "panelsim.runs"

// Publisher is the part of *nats.Conn used for notifications.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// NATS publishes notifications to "<subject>.<status>".
type NATS struct {
	pub     Publisher
	subject string
	conn    *nats.Conn
}

// ConnectNATS dials url and returns a notifier publishing under subject.
func ConnectNATS(url, subject string) (*NATS, error) {
	conn, err := nats.Connect(url,
		nats.Name("panelsim"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "connect nats %s", url)
	}
	n := NewNATS(conn, subject)
	n.conn = conn
	return n, nil
}

// NewNATS wraps an existing publisher.
func NewNATS(pub Publisher, subject string) *NATS {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATS{pub: pub, subject: subject}
}

// Subject returns the subject a notification for status is published on.
func (n *NATS) Subject(status string) string {
	return n.subject + "." + status
}

// Notify publishes the JSON-encoded notification.
func (n *NATS) Notify(ctx context.Context, note Notification) error {
	data, err := json.Marshal(note)
	if err != nil {
		return eris.Wrap(err, "marshal notification")
	}
	subject := n.Subject(string(note.Status))
	if err := n.pub.Publish(subject, data); err != nil {
		return eris.Wrapf(err, "publish %s", subject)
	}
	return nil
}

// Close drains the connection opened by ConnectNATS.
func (n *NATS) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}
