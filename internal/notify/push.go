package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PushGateway posts notifications to the device-push relay over HTTPS. The
// gateway resolves device tokens; this side only forwards the event.
type PushGateway struct {
	url    string
	client *http.Client
}

// NewPushGateway builds a gateway client with a bounded request timeout.
func NewPushGateway(url string, timeout time.Duration) *PushGateway {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PushGateway{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Send posts one notification and treats any non-2xx response as a failure.
func (g *PushGateway) Send(ctx context.Context, n Notification) error {
	data, err := marshalNotification(n)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting push notification: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("push gateway returned %s", resp.Status)
	}
	return nil
}

func marshalNotification(n Notification) ([]byte, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encoding notification: %w", err)
	}
	return data, nil
}
