package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/haleybot/haley/pkg/domain"
)

// Signup step names.
const (
	stepApplyListingID = "listing_id"
	stepApplyConfirmID = "confirm_id"
	stepApplyAnother   = "another"
)

// Apply builds the signup workflow. The programme id is entered twice; the
// application commits only when both entries match, and the flow loops so
// an actor can sign up for several programmes in one sitting.
func Apply() *Workflow {
	return &Workflow{
		ID:    FlowApply,
		Begin: beginApply,
		Steps: map[string]*Step{
			stepApplyListingID: {Accepts: domain.InputText, Handle: applyListingID},
			stepApplyConfirmID: {Accepts: domain.InputText, Handle: applyConfirmID},
			stepApplyAnother: {
				Accepts:  domain.InputChoice,
				Choices:  []string{choiceAnotherYes, choiceAnotherNo},
				Reprompt: "Please use the buttons above.",
				Handle:   applyAnother,
			},
		},
	}
}

func beginApply(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	if ev.ChatKind != domain.ChatPrivate {
		return Cancelled(domain.Reply(ev.ChatID, "Sign up in a direct message with me."))
	}
	_, err := env.Store.Actor(ctx, ev.ActorID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return Cancelled(domain.ReplyWithButtons(ev.ChatID,
			"You need to register before signing up for programmes.",
			domain.Button{Label: "Register", Choice: ChoiceRegister},
		))
	case err != nil:
		return Fail(err, transientFailure(ev.ChatID))
	}
	return Goto(stepApplyListingID, domain.Reply(ev.ChatID, "What is the ID of the programme you want to sign up for?"))
}

func applyListingID(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	id, err := ParseID(ev.Text)
	if err != nil {
		return Reprompt(domain.Reply(ev.ChatID, "Please enter the programme ID as a number."))
	}
	listing, err := env.Store.Listing(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return Reprompt(domain.Reply(ev.ChatID, "This ID is invalid. Please enter the programme ID again."))
	case err != nil:
		return Fail(err, transientFailure(ev.ChatID))
	}
	if listing.Status == domain.ListingClosed {
		return Reprompt(domain.Reply(ev.ChatID, "That programme has already been completed. Please enter a different programme ID."))
	}
	sess.Fields["listing_id"] = strconv.FormatInt(id, 10)
	return Goto(stepApplyConfirmID,
		domain.Reply(ev.ChatID, "Please confirm this is the programme you want:\n\n"+listingDetails(listing)),
		domain.Reply(ev.ChatID, "Enter the ID again to confirm."),
	)
}

func applyConfirmID(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	id, err := ParseID(ev.Text)
	if err != nil || strconv.FormatInt(id, 10) != sess.String("listing_id") {
		return Reprompt(domain.Reply(ev.ChatID, "You keyed in a different ID. Please enter the ID again to confirm."))
	}

	if _, err := env.Store.ActiveApplication(ctx, sess.ActorID, id); err == nil {
		return Finish(domain.ReplyWithButtons(ev.ChatID,
			"You have already signed up for this programme.",
			domain.Button{Label: "Go to main page", Choice: ChoiceHome},
		))
	} else if !errors.Is(err, domain.ErrNotFound) {
		return Fail(err, transientFailure(ev.ChatID))
	}

	listing, err := env.Store.Listing(ctx, id)
	if err != nil {
		return Fail(err, transientFailure(ev.ChatID))
	}
	if listing.Status == domain.ListingClosed {
		return Finish(domain.Reply(ev.ChatID, "That programme has already been completed."))
	}
	if listing.SlotsLeft <= 0 {
		return Finish(domain.ReplyWithButtons(ev.ChatID,
			"Sorry, there are no slots left on this programme.",
			domain.Button{Label: "Go to main page", Choice: ChoiceHome},
		))
	}

	actor, err := env.Store.Actor(ctx, sess.ActorID)
	if err != nil {
		return Fail(err, transientFailure(ev.ChatID))
	}
	app := &domain.Application{
		ActorID:   actor.ID,
		ListingID: listing.ID,
		ChatID:    listing.ChatID,
		FirstName: actor.FirstName,
		LastName:  actor.LastName,
		Mobile:    actor.Mobile,
		Postal:    actor.Postal,
		Title:     listing.Title,
		School:    listing.School,
		Date:      listing.Date,
		StartTime: listing.StartTime,
		Hours:     listing.Hours,
		Level:     listing.Level,
		Status:    domain.AppPending,
		AppliedAt: env.Now(),
	}
	appID, err := env.Store.CreateApplication(ctx, app)
	if err != nil {
		return Fail(err, transientFailure(ev.ChatID))
	}
	env.log().Info("application created",
		"app_id", appID, "actor_id", actor.ID, "listing_id", listing.ID)

	return Goto(stepApplyAnother, domain.ReplyWithButtons(ev.ChatID,
		fmt.Sprintf("Signup sent for programme %d! Would you like to sign up for another?", listing.ID),
		domain.Button{Label: "Yes", Choice: choiceAnotherYes},
		domain.Button{Label: "No", Choice: choiceAnotherNo},
	))
}

func applyAnother(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	if ev.Choice == choiceAnotherYes {
		delete(sess.Fields, "listing_id")
		return Goto(stepApplyListingID, domain.Reply(ev.ChatID, "What is the ID of the programme you want to sign up for?"))
	}
	return Finish(domain.ReplyWithButtons(ev.ChatID,
		"Thanks! You should get an update on your signup soon.",
		domain.Button{Label: "Go to main page", Choice: ChoiceHome},
	))
}
