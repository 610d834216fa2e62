package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/haleybot/haley/pkg/domain"
	"github.com/haleybot/haley/pkg/workflow"
)

// profile renders the actor's own record: details, photo, and the training
// hours accumulated from settled programmes.
func (d *Dispatcher) profile(ctx context.Context, ev domain.Event) []domain.Message {
	if ev.ChatKind != domain.ChatPrivate {
		return nil
	}
	actor, err := d.store.Actor(ctx, ev.ActorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []domain.Message{domain.ReplyWithButtons(ev.ChatID,
				"You're not registered yet.",
				domain.Button{Label: "Register", Choice: workflow.ChoiceRegister},
			)}
		}
		d.logger.Error("actor lookup failed", "actor_id", ev.ActorID, "err", err)
		return []domain.Message{domain.Reply(ev.ChatID, "Something went wrong on our side. Please try that again in a moment.")}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", actor.FullName())
	fmt.Fprintf(&b, "Date of birth: %s\n", actor.DateOfBirth.Format("02 Jan 06"))
	fmt.Fprintf(&b, "NRIC: %s\n", actor.NRIC)
	fmt.Fprintf(&b, "IRS expiry: %s\n", actor.IRSExpiry.Format("02 Jan 06"))
	fmt.Fprintf(&b, "Mobile: %s\n", actor.Mobile)
	fmt.Fprintf(&b, "Postal code: %s\n", actor.Postal)
	fmt.Fprintf(&b, "Training hours: %s", strconv.FormatFloat(actor.CreditHours, 'f', -1, 64))

	msgs := []domain.Message{}
	if len(actor.Photo) > 0 {
		msgs = append(msgs, domain.PhotoMessage(ev.ChatID, actor.Photo))
	}
	return append(msgs, domain.ReplyWithButtons(ev.ChatID, b.String(),
		domain.Button{Label: "Go to main page", Choice: workflow.ChoiceHome},
	))
}

// viewApplicants lists a listing's pending applicants in its group chat.
func (d *Dispatcher) viewApplicants(ctx context.Context, ev domain.Event) []domain.Message {
	listing, msgs := d.chatListing(ctx, ev)
	if listing == nil {
		return msgs
	}
	apps, err := d.store.ApplicationsByListing(ctx, listing.ID, domain.AppPending)
	if err != nil {
		d.logger.Error("applicant lookup failed", "listing_id", listing.ID, "err", err)
		return []domain.Message{domain.Reply(ev.ChatID, "Something went wrong on our side. Please try that again in a moment.")}
	}
	if len(apps) == 0 {
		return []domain.Message{domain.Reply(ev.ChatID,
			fmt.Sprintf("No pending applicants for programme %d.", listing.ID))}
	}
	lines := make([]string, len(apps))
	for i, a := range apps {
		lines[i] = fmt.Sprintf("%d | %s | %s | applied %s",
			a.ID, a.FullName(), a.Mobile, a.AppliedAt.Format("02 Jan 06"))
	}
	return []domain.Message{domain.ReplyWithButtons(ev.ChatID,
		fmt.Sprintf("Pending applicants for programme %d:\n\n%s", listing.ID, strings.Join(lines, "\n")),
		domain.Button{Label: "Accept applicants", Choice: workflow.ChoiceAccept},
		domain.Button{Label: "Reject applicants", Choice: workflow.ChoiceReject},
	)}
}

// viewListingID answers "which programme is this chat running?".
func (d *Dispatcher) viewListingID(ctx context.Context, ev domain.Event) []domain.Message {
	listing, msgs := d.chatListing(ctx, ev)
	if listing == nil {
		return msgs
	}
	return []domain.Message{domain.Reply(ev.ChatID, fmt.Sprintf(
		"This chat runs programme %d (%s) on %s. %d slot(s) left.",
		listing.ID, listing.Title, listing.Date.Format("02 Jan 06"), listing.SlotsLeft))}
}

// chatListing resolves the group chat's listing for manager queries,
// returning the error replies when it cannot.
func (d *Dispatcher) chatListing(ctx context.Context, ev domain.Event) (*domain.Listing, []domain.Message) {
	if ev.ChatKind != domain.ChatGroup {
		return nil, []domain.Message{domain.Reply(ev.ChatID, "This only works in a programme's group chat.")}
	}
	ok, err := d.roles.IsManager(ctx, ev.ActorID)
	if err != nil {
		d.logger.Error("manager check failed", "actor_id", ev.ActorID, "err", err)
		return nil, []domain.Message{domain.Reply(ev.ChatID, "Something went wrong on our side. Please try that again in a moment.")}
	}
	if !ok {
		return nil, []domain.Message{domain.Reply(ev.ChatID, "Only managers can use this.")}
	}
	listing, err := d.store.ListingByChat(ctx, ev.ChatID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, []domain.Message{domain.Reply(ev.ChatID, "This chat has no programme yet.")}
		}
		d.logger.Error("listing lookup failed", "chat_id", ev.ChatID, "err", err)
		return nil, []domain.Message{domain.Reply(ev.ChatID, "Something went wrong on our side. Please try that again in a moment.")}
	}
	return listing, nil
}
