package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/haleybot/haley/pkg/domain"
)

// Withdrawal step names.
const (
	stepWdOptions   = "options"
	stepWdConfirm   = "confirm_intent"
	stepWdListingID = "listing_id"
	stepWdConfirmID = "confirm_id"
)

// Withdraw builds the withdrawal workflow. The actor reviews their active
// signups, confirms twice (a button and a re-typed programme id), and the
// application moves to withdrawn. A slot is released back to the listing
// only when the withdrawn application had been accepted; a pending one
// never held a slot. A completed programme refuses withdrawal outright:
// its roster and credits are settled.
func Withdraw() *Workflow {
	return &Workflow{
		ID:    FlowWithdraw,
		Begin: beginWithdraw,
		Steps: map[string]*Step{
			stepWdOptions: {
				Accepts:  domain.InputChoice,
				Choices:  []string{choiceStartWithdraw, choiceWithdrawNo},
				Reprompt: "Please use the buttons above.",
				Handle:   wdOptions,
			},
			stepWdConfirm: {
				Accepts:  domain.InputChoice,
				Choices:  []string{choiceWithdrawYes, choiceWithdrawNo},
				Reprompt: "Please use the buttons above.",
				Handle:   wdConfirmIntent,
			},
			stepWdListingID: {Accepts: domain.InputText, Handle: wdListingID},
			stepWdConfirmID: {Accepts: domain.InputText, Handle: wdConfirmID},
		},
	}
}

func beginWithdraw(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	if ev.ChatKind != domain.ChatPrivate {
		return Cancelled(domain.Reply(ev.ChatID, "Manage your signups in a direct message with me."))
	}
	if _, err := env.Store.Actor(ctx, ev.ActorID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Cancelled(domain.ReplyWithButtons(ev.ChatID,
				"You need to register first.",
				domain.Button{Label: "Register", Choice: ChoiceRegister},
			))
		}
		return Fail(err, transientFailure(ev.ChatID))
	}
	apps, err := env.Store.ApplicationsByActor(ctx, ev.ActorID, domain.AppPending, domain.AppAccepted)
	if err != nil {
		return Fail(err, transientFailure(ev.ChatID))
	}
	if len(apps) == 0 {
		return Cancelled(domain.ReplyWithButtons(ev.ChatID,
			"You have no active signups.",
			domain.Button{Label: "Go to main page", Choice: ChoiceHome},
		))
	}
	return Goto(stepWdOptions, domain.ReplyWithButtons(ev.ChatID,
		"Here are your active signups:\n\n"+rosterLines(apps),
		domain.Button{Label: "All good", Choice: choiceWithdrawNo},
		domain.Button{Label: "Withdraw from a programme", Choice: choiceStartWithdraw},
	))
}

func wdOptions(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	if ev.Choice == choiceWithdrawNo {
		return Finish(domain.ReplyWithButtons(ev.ChatID,
			"Okay!",
			domain.Button{Label: "Go to main page", Choice: ChoiceHome},
		))
	}
	return Goto(stepWdConfirm, domain.ReplyWithButtons(ev.ChatID,
		"Are you sure you want to withdraw from a programme?",
		domain.Button{Label: "Yes, withdraw", Choice: choiceWithdrawYes},
		domain.Button{Label: "No, I'm staying", Choice: choiceWithdrawNo},
	))
}

func wdConfirmIntent(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	if ev.Choice == choiceWithdrawNo {
		return Finish(domain.ReplyWithButtons(ev.ChatID,
			"Glad you're staying!",
			domain.Button{Label: "Go to main page", Choice: ChoiceHome},
		))
	}
	return Goto(stepWdListingID, domain.Reply(ev.ChatID, "What is the ID of the programme you want to withdraw from?"))
}

func wdListingID(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	id, err := ParseID(ev.Text)
	if err != nil {
		return Reprompt(domain.Reply(ev.ChatID, "Please enter the programme ID as a number."))
	}
	app, err := env.Store.ActiveApplication(ctx, sess.ActorID, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return Reprompt(domain.Reply(ev.ChatID, "You have no active signup for that programme ID. Please enter the ID again."))
	case err != nil:
		return Fail(err, transientFailure(ev.ChatID))
	}
	listing, err := env.Store.Listing(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return Finish(domain.Reply(ev.ChatID, "There is nothing to withdraw for this programme."))
	case err != nil:
		return Fail(err, transientFailure(ev.ChatID))
	}
	if listing.Status == domain.ListingClosed {
		return Finish(domain.Reply(ev.ChatID, "That programme has already been completed, so there is nothing to withdraw from."))
	}
	sess.Fields["listing_id"] = strconv.FormatInt(id, 10)
	return Goto(stepWdConfirmID,
		domain.Reply(ev.ChatID, "You are withdrawing from:\n\n"+applicationLine(app)),
		domain.Reply(ev.ChatID, "Enter the programme ID again to confirm the withdrawal."),
	)
}

func wdConfirmID(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	id, err := ParseID(ev.Text)
	if err != nil || strconv.FormatInt(id, 10) != sess.String("listing_id") {
		return Reprompt(domain.Reply(ev.ChatID, "You keyed in a different ID. Please enter the programme ID again to confirm."))
	}

	app, err := env.Store.ActiveApplication(ctx, sess.ActorID, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return Finish(domain.Reply(ev.ChatID, "There is nothing to withdraw for this programme."))
	case err != nil:
		return Fail(err, transientFailure(ev.ChatID))
	}

	// The programme may have settled between the two id entries; a closed
	// listing's roster is final.
	listing, err := env.Store.Listing(ctx, app.ListingID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return Finish(domain.Reply(ev.ChatID, "There is nothing to withdraw for this programme."))
	case err != nil:
		return Fail(err, transientFailure(ev.ChatID))
	}
	if listing.Status == domain.ListingClosed {
		return Finish(domain.Reply(ev.ChatID, "That programme has already been completed, so there is nothing to withdraw from."))
	}

	was := app.Status
	ok, err := env.Store.TransitionApplication(ctx, app.ID, was, domain.AppWithdrawn)
	if err != nil {
		return Fail(err, transientFailure(ev.ChatID))
	}
	if !ok {
		return Finish(domain.Reply(ev.ChatID, "There is nothing to withdraw for this programme."))
	}
	env.log().Info("application withdrawn",
		"app_id", app.ID, "listing_id", app.ListingID, "was", was)

	// Only an accepted signup held a slot. Releasing it reopens the
	// listing, so the group is told.
	if was == domain.AppAccepted {
		if err := env.Ledger.Release(ctx, app.ListingID, 1); err != nil {
			env.log().Error("slot release failed", "listing_id", app.ListingID, "err", err)
		} else {
			env.Relay.Send(ctx, domain.Reply(app.ChatID, fmt.Sprintf(
				"A slot on programme %d has reopened: %s (signup %d) withdrew. Applications are open again!",
				app.ListingID, app.FullName(), app.ID)))
		}
	}
	return Finish(domain.ReplyWithButtons(ev.ChatID,
		fmt.Sprintf("You have withdrawn from programme %d.", app.ListingID),
		domain.Button{Label: "Go to main page", Choice: ChoiceHome},
	))
}
