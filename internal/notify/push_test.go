package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPushGatewayPostsNotification(t *testing.T) {
	req := require.New(t)

	var received Notification
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal(http.MethodPost, r.Method)
		req.Equal("application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		req.NoError(err)
		req.NoError(json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	gw := NewPushGateway(ts.URL, time.Second)
	err := gw.Send(context.Background(), sampleNotification())
	req.NoError(err)
	req.Equal("2", received.RecipientUID)
	req.JSONEq(`"hello"`, string(received.Message))
}

func TestPushGatewayRejectsErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer ts.Close()

	gw := NewPushGateway(ts.URL, time.Second)
	err := gw.Send(context.Background(), sampleNotification())
	require.ErrorContains(t, err, "502")
}

func TestPushGatewayHonorsContextCancellation(t *testing.T) {
	blocked := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-blocked
	}))
	defer ts.Close()
	defer close(blocked)

	gw := NewPushGateway(ts.URL, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := gw.Send(ctx, sampleNotification())
	require.Error(t, err)
}

func TestPushGatewayUnreachableHost(t *testing.T) {
	gw := NewPushGateway("http://127.0.0.1:1", 200*time.Millisecond)
	err := gw.Send(context.Background(), sampleNotification())
	require.Error(t, err)
}
