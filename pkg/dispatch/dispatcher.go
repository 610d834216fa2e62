// Package dispatch routes inbound events: commands first, then the live
// session for the (actor, chat) pair, then menu choices that start
// workflows or answer queries, and finally a default response. Nothing an
// actor sends can crash the loop; a panicking handler is logged and
// answered with a retry message.
package dispatch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/haleybot/haley/internal/logging"
	"github.com/haleybot/haley/internal/metrics"
	"github.com/haleybot/haley/pkg/domain"
	"github.com/haleybot/haley/pkg/ports"
	"github.com/haleybot/haley/pkg/session"
	"github.com/haleybot/haley/pkg/workflow"
)

// Dispatcher owns the routing table. One instance serves every chat.
type Dispatcher struct {
	sessions *session.Manager
	store    ports.EntityStore
	roles    ports.RoleResolver

	adminID int64
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithAdmin names the actor allowed to change roles.
func WithAdmin(id int64) Option {
	return func(d *Dispatcher) { d.adminID = id }
}

// WithMetrics attaches the event counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New creates a dispatcher over the session manager, entity store, and
// role resolver.
func New(sessions *session.Manager, store ports.EntityStore, roles ports.RoleResolver, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sessions: sessions,
		store:    store,
		roles:    roles,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleEvent routes one inbound event and returns the replies for the
// originating chat. Side-channel notifications (acceptance, reopened
// slots) go out through the relay inside the workflow handlers, not here.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev domain.Event) (msgs []domain.Message) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panicked", "actor_id", ev.ActorID, "chat_id", ev.ChatID, "panic", r)
			d.countEvent(ev, "panic")
			msgs = []domain.Message{domain.Reply(ev.ChatID, "Something went wrong on our side. Please try that again in a moment.")}
		}
	}()

	if ev.Kind() == domain.InputCommand {
		msgs = d.handleCommand(ctx, ev)
		d.countEvent(ev, "command")
		return msgs
	}

	out, handled, err := d.sessions.Advance(ctx, ev)
	if err != nil {
		d.logger.Error("session advance failed", "actor_id", ev.ActorID, "chat_id", ev.ChatID, "err", err)
		d.countEvent(ev, "error")
		return append(out.Messages, domain.Reply(ev.ChatID, "Something went wrong on our side. Please try that again in a moment."))
	}
	if handled {
		d.countEvent(ev, outcomeLabel(out.Kind))
		return out.Messages
	}

	if ev.Kind() == domain.InputChoice {
		msgs = d.handleChoice(ctx, ev)
		d.countEvent(ev, "menu")
		return msgs
	}

	// Free text or a photo with no session behind it. Groups stay quiet;
	// a direct message gets pointed at the menu.
	if ev.ChatKind == domain.ChatPrivate {
		d.countEvent(ev, "default")
		return []domain.Message{defaultResponse(ev.ChatID)}
	}
	d.countEvent(ev, "ignored")
	return nil
}

// handleChoice maps a menu button to a workflow entry or a direct query.
func (d *Dispatcher) handleChoice(ctx context.Context, ev domain.Event) []domain.Message {
	switch ev.Choice {
	case workflow.ChoiceHome:
		return []domain.Message{d.mainMenu(ctx, ev)}
	case workflow.ChoiceAbout:
		return []domain.Message{aboutResponse(ev.ChatID)}
	case workflow.ChoiceProfile:
		return d.profile(ctx, ev)
	case workflow.ChoiceViewApps:
		return d.viewApplicants(ctx, ev)
	case workflow.ChoiceListingID:
		return d.viewListingID(ctx, ev)

	case workflow.ChoiceRegister:
		return d.begin(ctx, ev, workflow.FlowRegister)
	case workflow.ChoiceList:
		return d.begin(ctx, ev, workflow.FlowListListings)
	case workflow.ChoiceSignup:
		return d.begin(ctx, ev, workflow.FlowApply)
	case workflow.ChoiceMySignups:
		return d.begin(ctx, ev, workflow.FlowWithdraw)
	case workflow.ChoiceAddListing:
		return d.begin(ctx, ev, workflow.FlowAddListing)
	case workflow.ChoiceAccept, workflow.ChoiceReject:
		return d.begin(ctx, ev, workflow.FlowTriage)
	case workflow.ChoiceCompleteRun:
		return d.begin(ctx, ev, workflow.FlowComplete)
	}
	if ev.ChatKind == domain.ChatPrivate {
		return []domain.Message{defaultResponse(ev.ChatID)}
	}
	return nil
}

// begin starts a workflow for the event's (actor, chat) pair.
func (d *Dispatcher) begin(ctx context.Context, ev domain.Event, flowID string) []domain.Message {
	out, err := d.sessions.Begin(ctx, ev, flowID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionActive) {
			return []domain.Message{domain.Reply(ev.ChatID, "Please finish what you're doing first, or use /cancel to stop it.")}
		}
		d.logger.Error("workflow start failed", "workflow", flowID, "actor_id", ev.ActorID, "err", err)
		return []domain.Message{domain.Reply(ev.ChatID, "Something went wrong on our side. Please try that again in a moment.")}
	}
	if out.Err != nil {
		d.logger.Error("workflow entry failed", "workflow", flowID, "actor_id", ev.ActorID, "err", out.Err)
	}
	return out.Messages
}

func (d *Dispatcher) countEvent(ev domain.Event, outcome string) {
	if d.metrics != nil {
		d.metrics.EventsHandled.WithLabelValues(string(ev.Kind()), outcome).Inc()
	}
}

func outcomeLabel(k workflow.ResultKind) string {
	switch k {
	case workflow.Continue:
		return "continue"
	case workflow.Rejected:
		return "rejected"
	case workflow.Completed:
		return "completed"
	case workflow.Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}
