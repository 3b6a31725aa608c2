// Package bus publishes committed plant events to NATS.
package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"plantcore/pkg/domain"
)

// SubjectPrefix is prepended to the event type to form the subject.
const SubjectPrefix = "plantcore.events."

// Conn is the subset of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subj string, data []byte) error
	Drain() error
	Close()
}

// Publisher sends events as JSON messages.
type Publisher struct {
	conn Conn
}

// NewPublisher connects to url.
func NewPublisher(url string, opts ...nats.Option) (*Publisher, error) {
	conn, err := nats.Connect(url, append([]nats.Option{nats.Name("plantcore")}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{conn: conn}, nil
}

// NewPublisherWithConn wraps an existing connection.
func NewPublisherWithConn(conn Conn) *Publisher {
	return &Publisher{conn: conn}
}

// Subject returns the subject an event of type t is published on.
func Subject(t domain.EventType) string {
	return SubjectPrefix + string(t)
}

// Publish implements the service's event publisher.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(Subject(event.Type), data)
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
		p.conn.Close()
	}
}
