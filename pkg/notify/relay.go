// Package notify delivers post-commit notifications (acceptance, rejection,
// reopened slots) as a best effort. A failed send is logged and counted,
// never propagated: the data change it announces has already committed.
package notify

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/haleybot/haley/internal/logging"
	"github.com/haleybot/haley/pkg/domain"
	"github.com/haleybot/haley/pkg/ports"
)

// Relay sends messages through the transport without ever failing the
// caller.
type Relay struct {
	transport ports.Transport
	logger    *slog.Logger
	failures  prometheus.Counter
}

// Option configures the Relay.
type Option func(*Relay)

// WithLogger sets the logger used for failed sends.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

// WithFailureCounter counts failed sends.
func WithFailureCounter(c prometheus.Counter) Option {
	return func(r *Relay) { r.failures = c }
}

// NewRelay creates a relay over the given transport.
func NewRelay(transport ports.Transport, opts ...Option) *Relay {
	r := &Relay{
		transport: transport,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Send delivers one message. Errors are swallowed after logging.
func (r *Relay) Send(ctx context.Context, msg domain.Message) {
	if err := r.transport.Send(ctx, msg); err != nil {
		if r.failures != nil {
			r.failures.Inc()
		}
		r.logger.Warn("notification send failed",
			"chat_id", msg.ChatID,
			"err", err,
		)
	}
}

// SendAll delivers each message independently; one failure does not stop
// the rest.
func (r *Relay) SendAll(ctx context.Context, msgs []domain.Message) {
	for _, msg := range msgs {
		r.Send(ctx, msg)
	}
}

// InviteLink fetches a join link for a group chat, returning "" when the
// transport cannot provide one.
func (r *Relay) InviteLink(ctx context.Context, chatID int64) string {
	link, err := r.transport.InviteLink(ctx, chatID)
	if err != nil {
		r.logger.Warn("invite link unavailable", "chat_id", chatID, "err", err)
		return ""
	}
	return link
}
