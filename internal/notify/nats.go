package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// subjectPrefix namespaces every published notification subject.
const subjectPrefix = "notify"

// NATSPublisher publishes notifications to a NATS subject per recipient
// (notify.user.<uid>) or room (notify.room.<chatId>). Downstream consumers
// decide what to do with them; the relay only publishes.
type NATSPublisher struct {
	nc *nats.Conn
}

// ConnectNATS dials the notification bus with unlimited reconnects, so a bus
// outage degrades to dropped notifications instead of a dead relay.
func ConnectNATS(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("relay-notifier"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return &NATSPublisher{nc: nc}, nil
}

// NewNATSPublisher wraps an existing connection; tests use it with an
// in-process server.
func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: nc}
}

// Send publishes one notification. Publishing is async on the NATS client
// side; an error here means the payload could not even be queued.
func (p *NATSPublisher) Send(_ context.Context, n Notification) error {
	data, err := marshalNotification(n)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(p.subject(n), data); err != nil {
		return fmt.Errorf("publishing notification: %w", err)
	}
	return nil
}

func (p *NATSPublisher) subject(n Notification) string {
	if n.RecipientUID != "" {
		return subjectPrefix + ".user." + n.RecipientUID
	}
	return subjectPrefix + ".room." + n.ChatID
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	p.nc.Close()
}
