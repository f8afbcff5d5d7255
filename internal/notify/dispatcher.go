// Package notify pushes message notifications to external services so
// offline or backgrounded devices hear about chat activity. Dispatch is
// best-effort: the relay fires and forgets, and every failure here ends in a
// log line, never in the delivery path.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Notification describes one message event. Exactly one of RecipientUID
// (private message) or ChatID (group message) is set. Sender and Message are
// the raw JSON already flowing through the relay.
type Notification struct {
	RecipientUID string          `json:"recipientUid,omitempty"`
	ChatID       string          `json:"chatId,omitempty"`
	Sender       json.RawMessage `json:"sender"`
	Message      json.RawMessage `json:"message"`
	SentAt       time.Time       `json:"sentAt"`
}

// Dispatcher delivers one notification to one external service.
type Dispatcher interface {
	Send(ctx context.Context, n Notification) error
}

// Multi fans a notification out to several services. Every service is
// attempted; failures are joined so the caller can log them together.
type Multi []Dispatcher

// Send dispatches to each wrapped service in turn.
func (m Multi) Send(ctx context.Context, n Notification) error {
	var errs []error
	for _, d := range m {
		if err := d.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
