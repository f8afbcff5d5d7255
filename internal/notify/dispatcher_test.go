package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubDispatcher struct {
	err   error
	calls int
}

func (s *stubDispatcher) Send(_ context.Context, _ Notification) error {
	s.calls++
	return s.err
}

func sampleNotification() Notification {
	return Notification{
		RecipientUID: "2",
		Sender:       json.RawMessage(`{"uid":"1","displayName":"Ann"}`),
		Message:      json.RawMessage(`"hello"`),
		SentAt:       time.Now().UTC(),
	}
}

func TestMultiSendsToEveryService(t *testing.T) {
	req := require.New(t)
	a := &stubDispatcher{}
	b := &stubDispatcher{}

	err := Multi{a, b}.Send(context.Background(), sampleNotification())
	req.NoError(err)
	req.Equal(1, a.calls)
	req.Equal(1, b.calls)
}

func TestMultiAttemptsAllDespiteFailures(t *testing.T) {
	req := require.New(t)
	failing := &stubDispatcher{err: errors.New("gateway down")}
	ok := &stubDispatcher{}

	err := Multi{failing, ok}.Send(context.Background(), sampleNotification())
	req.Error(err)
	req.ErrorContains(err, "gateway down")
	req.Equal(1, ok.calls)
}

func TestMultiEmptyIsNoop(t *testing.T) {
	require.NoError(t, Multi{}.Send(context.Background(), sampleNotification()))
}

func TestNATSSubjectPerRecipient(t *testing.T) {
	p := &NATSPublisher{}

	require.Equal(t, "notify.user.2", p.subject(Notification{RecipientUID: "2"}))
	require.Equal(t, "notify.room.r1", p.subject(Notification{ChatID: "r1"}))
}
