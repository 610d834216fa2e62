package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/haleybot/haley/pkg/domain"
	"github.com/haleybot/haley/pkg/workflow"
)

// handleCommand routes slash commands. /cancel always wins so an actor is
// never stuck inside a broken flow.
func (d *Dispatcher) handleCommand(ctx context.Context, ev domain.Event) []domain.Message {
	switch ev.Command {
	case "cancel":
		return d.cmdCancel(ctx, ev)
	case "start":
		return d.cmdStart(ctx, ev)
	case "managers":
		return d.cmdManagers(ctx, ev)
	case "setrole":
		return d.cmdSetRole(ctx, ev)
	case "seephoto":
		return d.cmdSeePhoto(ctx, ev)
	}
	if ev.ChatKind == domain.ChatPrivate {
		return []domain.Message{defaultResponse(ev.ChatID)}
	}
	return nil
}

func (d *Dispatcher) cmdCancel(ctx context.Context, ev domain.Event) []domain.Message {
	existed, err := d.sessions.Cancel(ctx, ev.ActorID, ev.ChatID)
	if err != nil {
		d.logger.Error("cancel failed", "actor_id", ev.ActorID, "chat_id", ev.ChatID, "err", err)
		return []domain.Message{domain.Reply(ev.ChatID, "Something went wrong on our side. Please try that again in a moment.")}
	}
	if !existed {
		return []domain.Message{domain.Reply(ev.ChatID, "There is nothing to cancel.")}
	}
	return []domain.Message{domain.ReplyWithButtons(ev.ChatID,
		"Cancelled. Nothing was saved.",
		domain.Button{Label: "Go to main page", Choice: workflow.ChoiceHome},
	)}
}

// cmdStart is the first-contact greeting. Membership in the sponsoring
// group is checked once here; non-members are turned away.
func (d *Dispatcher) cmdStart(ctx context.Context, ev domain.Event) []domain.Message {
	if ev.ChatKind != domain.ChatPrivate {
		return nil
	}
	member, err := d.roles.IsMember(ctx, ev.ActorID)
	if err != nil {
		d.logger.Error("membership check failed", "actor_id", ev.ActorID, "err", err)
		return []domain.Message{domain.Reply(ev.ChatID, "Something went wrong on our side. Please try that again in a moment.")}
	}
	if !member {
		return []domain.Message{domain.Reply(ev.ChatID,
			"Sorry, this bot is only for members of the association. Please join the association group first.")}
	}
	return []domain.Message{d.mainMenu(ctx, ev)}
}

// cmdManagers opens the manager menu.
func (d *Dispatcher) cmdManagers(ctx context.Context, ev domain.Event) []domain.Message {
	ok, err := d.roles.IsManager(ctx, ev.ActorID)
	if err != nil {
		d.logger.Error("manager check failed", "actor_id", ev.ActorID, "err", err)
		return []domain.Message{domain.Reply(ev.ChatID, "Something went wrong on our side. Please try that again in a moment.")}
	}
	if !ok {
		return []domain.Message{domain.Reply(ev.ChatID, "Only managers can use this.")}
	}
	return []domain.Message{managerMenu(ev.ChatID)}
}

// cmdSetRole promotes or demotes an actor: /setrole <actor_id> <role>.
// Admin only, direct message only.
func (d *Dispatcher) cmdSetRole(ctx context.Context, ev domain.Event) []domain.Message {
	if ev.ChatKind != domain.ChatPrivate || d.adminID == 0 || ev.ActorID != d.adminID {
		return nil
	}
	if len(ev.Args) != 2 {
		return []domain.Message{domain.Reply(ev.ChatID, "Usage: /setrole <actor_id> <standard|manager>")}
	}
	id, err := strconv.ParseInt(ev.Args[0], 10, 64)
	if err != nil {
		return []domain.Message{domain.Reply(ev.ChatID, "Usage: /setrole <actor_id> <standard|manager>")}
	}
	role := domain.Role(ev.Args[1])
	if role != domain.RoleStandard && role != domain.RoleManager {
		return []domain.Message{domain.Reply(ev.ChatID, "Usage: /setrole <actor_id> <standard|manager>")}
	}
	if err := d.store.SetActorRole(ctx, id, role); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []domain.Message{domain.Reply(ev.ChatID, fmt.Sprintf("No registered actor with id %d.", id))}
		}
		d.logger.Error("set role failed", "target", id, "err", err)
		return []domain.Message{domain.Reply(ev.ChatID, "Something went wrong on our side. Please try that again in a moment.")}
	}
	d.logger.Info("role changed", "target", id, "role", role, "by", ev.ActorID)
	return []domain.Message{domain.Reply(ev.ChatID, fmt.Sprintf("Actor %d is now a %s.", id, role))}
}

// cmdSeePhoto shows a registered actor's photo: /seephoto <actor_id>.
// Manager only, direct message only.
func (d *Dispatcher) cmdSeePhoto(ctx context.Context, ev domain.Event) []domain.Message {
	if ev.ChatKind != domain.ChatPrivate {
		return nil
	}
	ok, err := d.roles.IsManager(ctx, ev.ActorID)
	if err != nil {
		d.logger.Error("manager check failed", "actor_id", ev.ActorID, "err", err)
		return []domain.Message{domain.Reply(ev.ChatID, "Something went wrong on our side. Please try that again in a moment.")}
	}
	if !ok {
		return []domain.Message{domain.Reply(ev.ChatID, "Only managers can use this.")}
	}
	if len(ev.Args) != 1 {
		return []domain.Message{domain.Reply(ev.ChatID, "Usage: /seephoto <actor_id>")}
	}
	id, err := strconv.ParseInt(ev.Args[0], 10, 64)
	if err != nil {
		return []domain.Message{domain.Reply(ev.ChatID, "Usage: /seephoto <actor_id>")}
	}
	actor, err := d.store.Actor(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []domain.Message{domain.Reply(ev.ChatID, fmt.Sprintf("No registered actor with id %d.", id))}
		}
		d.logger.Error("actor lookup failed", "target", id, "err", err)
		return []domain.Message{domain.Reply(ev.ChatID, "Something went wrong on our side. Please try that again in a moment.")}
	}
	if len(actor.Photo) == 0 {
		return []domain.Message{domain.Reply(ev.ChatID, fmt.Sprintf("%s has no photo on file.", actor.FullName()))}
	}
	return []domain.Message{
		domain.Reply(ev.ChatID, fmt.Sprintf("Photo of %s:", actor.FullName())),
		domain.PhotoMessage(ev.ChatID, actor.Photo),
	}
}
