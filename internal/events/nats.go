package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mcoot/blazers/internal/model"
)

// DefaultSubjectPrefix prefixes every lobby event subject
const DefaultSubjectPrefix = "blazers.lobby"

// natsConn is the subset of *nats.Conn the publisher uses
type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publishes lobby events as JSON to <prefix>.<event type>
type NATSPublisher struct {
	conn   natsConn
	prefix string
}

var _ Publisher = (*NATSPublisher)(nil)

// NewNATSPublisher connects to the NATS server at url
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("blazers"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return newNATSPublisher(conn, DefaultSubjectPrefix), nil
}

func newNATSPublisher(conn natsConn, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Subject returns the subject an event of type t is published on
func (p *NATSPublisher) Subject(t model.EventType) string {
	return p.prefix + "." + string(t)
}

// Publish encodes the event and hands it to the NATS client. The client
// buffers outbound messages so this does not wait on the network.
func (p *NATSPublisher) Publish(_ context.Context, event model.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(event.Type), data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close flushes pending events and closes the connection
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
