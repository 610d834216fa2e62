package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/haleybot/haley/pkg/domain"
	"github.com/haleybot/haley/pkg/notify"
)

type flakyTransport struct {
	fail  bool
	sends int
}

func (f *flakyTransport) Send(ctx context.Context, msg domain.Message) error {
	f.sends++
	if f.fail {
		return errors.New("boom")
	}
	return nil
}

func (f *flakyTransport) InviteLink(ctx context.Context, chatID int64) (string, error) {
	if f.fail {
		return "", errors.New("boom")
	}
	return "https://chat.example/join", nil
}

func TestSendSwallowsFailures(t *testing.T) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_notify_failures"})
	tr := &flakyTransport{fail: true}
	relay := notify.NewRelay(tr, notify.WithFailureCounter(counter))

	// Must not panic or propagate anything.
	relay.Send(context.Background(), domain.Reply(1, "hi"))
	assert.Equal(t, 1, tr.sends)
	assert.Equal(t, 1.0, testutil.ToFloat64(counter))
}

func TestSendAllKeepsGoing(t *testing.T) {
	tr := &flakyTransport{fail: true}
	relay := notify.NewRelay(tr)

	relay.SendAll(context.Background(), []domain.Message{
		domain.Reply(1, "a"),
		domain.Reply(2, "b"),
	})
	assert.Equal(t, 2, tr.sends)
}

func TestInviteLinkFallsBackToEmpty(t *testing.T) {
	relay := notify.NewRelay(&flakyTransport{fail: true})
	assert.Equal(t, "", relay.InviteLink(context.Background(), -5))

	relay = notify.NewRelay(&flakyTransport{})
	assert.Equal(t, "https://chat.example/join", relay.InviteLink(context.Background(), -5))
}
