package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/haleybot/haley/pkg/domain"
)

// Completion step names.
const (
	stepDoneConfirm    = "confirm_intent"
	stepDoneExclusions = "exclusions"
	stepDoneFinal      = "final_confirm"
)

// Complete builds the completion workflow. A manager confirms the
// programme ran, prunes no-shows from the accepted roster, reviews the
// final roster, and settles: every remaining accepted applicant is
// credited the listing's hours exactly once and the listing closes.
// Pruning a no-show does not reopen a slot; the programme is over.
func Complete() *Workflow {
	return &Workflow{
		ID:    FlowComplete,
		Begin: beginComplete,
		Steps: map[string]*Step{
			stepDoneConfirm: {
				Accepts:  domain.InputChoice,
				Choices:  []string{choiceCompleteYes, choiceCompleteNo},
				Reprompt: "Please use the buttons above.",
				Handle:   doneConfirmIntent,
			},
			stepDoneExclusions: {Accepts: domain.InputText, Handle: doneExclusions},
			stepDoneFinal: {
				Accepts:  domain.InputChoice,
				Choices:  []string{choiceConfirmRoster, choiceStartOver},
				Reprompt: "Please use the buttons above.",
				Handle:   doneFinalConfirm,
			},
		},
	}
}

func beginComplete(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	if ev.ChatKind != domain.ChatGroup {
		return Cancelled(domain.Reply(ev.ChatID, "Programmes are completed from their group chat."))
	}
	ok, err := env.Roles.IsManager(ctx, ev.ActorID)
	if err != nil {
		return Fail(err, transientFailure(ev.ChatID))
	}
	if !ok {
		return Cancelled(domain.Reply(ev.ChatID, "Only managers can complete programmes."))
	}

	listing, err := env.Store.ListingByChat(ctx, ev.ChatID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return Cancelled(domain.Reply(ev.ChatID, "This chat has no programme yet."))
	case err != nil:
		return Fail(err, transientFailure(ev.ChatID))
	}
	if listing.Status == domain.ListingClosed {
		return Cancelled(domain.Reply(ev.ChatID, "This programme has already been completed."))
	}

	sess.Fields["listing_id"] = listing.ID
	return Goto(stepDoneConfirm, domain.ReplyWithButtons(ev.ChatID,
		fmt.Sprintf("Completing programme %d (%s) locks in the hours for everyone who attended and closes it for good. Did the programme run?",
			listing.ID, listing.Title),
		domain.Button{Label: "Yes, it's done", Choice: choiceCompleteYes},
		domain.Button{Label: "Not yet", Choice: choiceCompleteNo},
	))
}

func doneConfirmIntent(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	if ev.Choice == choiceCompleteNo {
		return Finish(domain.Reply(ev.ChatID, "Okay, let me know when it's done."))
	}
	listingID := sessionInt64(sess, "listing_id")
	apps, err := env.Store.ApplicationsByListing(ctx, listingID, domain.AppAccepted)
	if err != nil {
		return Fail(err, transientFailure(ev.ChatID))
	}
	return Goto(stepDoneExclusions, domain.Reply(ev.ChatID,
		"Here is the accepted roster:\n\n"+rosterLines(apps)+
			"\n\nWhich of these did NOT attend? Enter their signup IDs separated by commas, or 0 if everyone attended."))
}

func doneExclusions(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	ids, err := ParseIDList(ev.Text)
	if err != nil {
		return Reprompt(domain.Reply(ev.ChatID, "Please enter the signup IDs separated by commas, or 0 if everyone attended."))
	}
	listingID := sessionInt64(sess, "listing_id")

	noChanges := len(ids) == 1 && ids[0] == 0
	if !noChanges {
		// Each removal commits independently; ids already removed (or
		// never accepted here) are skipped, so re-running the step with
		// the same list is harmless.
		for _, id := range ids {
			app, err := env.Store.Application(ctx, id)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return Fail(err, transientFailure(ev.ChatID))
			}
			if app.ListingID != listingID {
				continue
			}
			ok, err := env.Store.TransitionApplication(ctx, id, domain.AppAccepted, domain.AppRemoved)
			if err != nil {
				return Fail(err, transientFailure(ev.ChatID))
			}
			if ok {
				env.log().Info("applicant removed from roster", "app_id", id, "listing_id", listingID)
			}
		}
	}

	apps, err := env.Store.ApplicationsByListing(ctx, listingID, domain.AppAccepted)
	if err != nil {
		return Fail(err, transientFailure(ev.ChatID))
	}
	text := "Final roster:\n\n" + rosterLines(apps)
	if noChanges {
		text = "No changes made.\n\n" + text
	}
	return Goto(stepDoneFinal, domain.ReplyWithButtons(ev.ChatID,
		text+"\n\nEveryone on this list will be credited the programme hours.",
		domain.Button{Label: "Confirm and complete", Choice: choiceConfirmRoster},
		domain.Button{Label: "Edit the roster", Choice: choiceStartOver},
	))
}

func doneFinalConfirm(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	listingID := sessionInt64(sess, "listing_id")
	if ev.Choice == choiceStartOver {
		apps, err := env.Store.ApplicationsByListing(ctx, listingID, domain.AppAccepted)
		if err != nil {
			return Fail(err, transientFailure(ev.ChatID))
		}
		return Goto(stepDoneExclusions, domain.Reply(ev.ChatID,
			"Here is the accepted roster:\n\n"+rosterLines(apps)+
				"\n\nWhich of these did NOT attend? Enter their signup IDs separated by commas, or 0 if everyone attended."))
	}

	settlement, err := env.Store.SettleListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, domain.ErrListingClosed) {
			return Finish(domain.Reply(ev.ChatID, "This programme was already completed."))
		}
		return Fail(err, transientFailure(ev.ChatID))
	}
	env.log().Info("listing settled",
		"listing_id", listingID, "hours", settlement.Hours, "credited", len(settlement.Credited))
	return Finish(domain.Reply(ev.ChatID, fmt.Sprintf(
		"All done! %s hours credited to %d associate(s). Programme %d is now closed.",
		formatHours(settlement.Hours), len(settlement.Credited), listingID)))
}
