package ports

import (
	"context"

	"github.com/haleybot/haley/pkg/domain"
)

// Transport delivers outbound messages to the chat platform. The engine
// never blocks a data commit on it; notification sends go through the
// best-effort relay in pkg/notify.
type Transport interface {
	// Send delivers one message (text, photo, optional keyboard).
	Send(ctx context.Context, msg domain.Message) error

	// InviteLink returns a join link for a group chat, used in acceptance
	// notifications.
	InviteLink(ctx context.Context, chatID int64) (string, error)
}
