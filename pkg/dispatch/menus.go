package dispatch

import (
	"context"

	"github.com/haleybot/haley/pkg/domain"
	"github.com/haleybot/haley/pkg/workflow"
)

// mainMenu is the private-chat home screen. Unregistered actors see the
// register button; registered ones see the full menu.
func (d *Dispatcher) mainMenu(ctx context.Context, ev domain.Event) domain.Message {
	if _, err := d.store.Actor(ctx, ev.ActorID); err != nil {
		return domain.ReplyWithButtons(ev.ChatID,
			"Hello! I handle programme signups for the association. Register to get started.",
			domain.Button{Label: "Register", Choice: workflow.ChoiceRegister},
			domain.Button{Label: "About", Choice: workflow.ChoiceAbout},
		)
	}
	return domain.ReplyWithButtons(ev.ChatID,
		"What would you like to do?",
		domain.Button{Label: "Browse programmes", Choice: workflow.ChoiceList},
		domain.Button{Label: "Sign up for a programme", Choice: workflow.ChoiceSignup},
		domain.Button{Label: "My signups", Choice: workflow.ChoiceMySignups},
		domain.Button{Label: "My profile", Choice: workflow.ChoiceProfile},
		domain.Button{Label: "About", Choice: workflow.ChoiceAbout},
	)
}

// managerMenu is the group-chat control panel for a listing.
func managerMenu(chatID int64) domain.Message {
	return domain.ReplyWithButtons(chatID,
		"Manager menu:",
		domain.Button{Label: "Add a programme", Choice: workflow.ChoiceAddListing},
		domain.Button{Label: "View applicants", Choice: workflow.ChoiceViewApps},
		domain.Button{Label: "Accept applicants", Choice: workflow.ChoiceAccept},
		domain.Button{Label: "Reject applicants", Choice: workflow.ChoiceReject},
		domain.Button{Label: "View programme ID", Choice: workflow.ChoiceListingID},
		domain.Button{Label: "Complete programme", Choice: workflow.ChoiceCompleteRun},
	)
}

func defaultResponse(chatID int64) domain.Message {
	return domain.ReplyWithButtons(chatID,
		"Sorry, I didn't catch that. Use the menu below to get around.",
		domain.Button{Label: "Go to main page", Choice: workflow.ChoiceHome},
	)
}

func aboutResponse(chatID int64) domain.Message {
	return domain.ReplyWithButtons(chatID,
		"I track programme signups for the association: browse open programmes, sign up, and collect your training hours when a programme completes. Managers run their programmes from each programme's group chat.",
		domain.Button{Label: "Go to main page", Choice: workflow.ChoiceHome},
	)
}
