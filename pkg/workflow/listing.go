package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/haleybot/haley/pkg/domain"
)

// Listing creation step names.
const (
	stepProgSchool    = "school"
	stepProgDate      = "date"
	stepProgStartTime = "start_time"
	stepProgHours     = "hours"
	stepProgLevel     = "level"
	stepProgSlots     = "slots"
	stepProgTitle     = "title"
	stepProgReview    = "review"
)

// listWindowDays is the width of the open-listings view.
const listWindowDays = 7

// AddListing builds the listing-creation workflow. Managers run it in the
// group chat the listing belongs to.
func AddListing() *Workflow {
	return &Workflow{
		ID:    FlowAddListing,
		Begin: beginAddListing,
		Steps: map[string]*Step{
			stepProgSchool:    {Accepts: domain.InputText, Handle: progSchool},
			stepProgDate:      {Accepts: domain.InputText, Handle: progDate},
			stepProgStartTime: {Accepts: domain.InputText, Handle: progStartTime},
			stepProgHours:     {Accepts: domain.InputText, Handle: progHours},
			stepProgLevel:     {Accepts: domain.InputText, Handle: progLevel},
			stepProgSlots:     {Accepts: domain.InputText, Handle: progSlots},
			stepProgTitle:     {Accepts: domain.InputText, Handle: progTitle},
			stepProgReview: {
				Accepts:  domain.InputChoice,
				Choices:  []string{choiceConfirmListing, choiceCancelListing},
				Reprompt: "Please use the buttons above to confirm or cancel.",
				Handle:   progReview,
			},
		},
	}
}

func beginAddListing(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	if ev.ChatKind != domain.ChatGroup {
		return Cancelled(domain.Reply(ev.ChatID, "Programmes are added from their group chat."))
	}
	ok, err := env.Roles.IsManager(ctx, ev.ActorID)
	if err != nil {
		return Fail(err, transientFailure(ev.ChatID))
	}
	if !ok {
		return Cancelled(domain.Reply(ev.ChatID, "Only managers can add programmes."))
	}
	return Goto(stepProgSchool, domain.Reply(ev.ChatID, "Let's add a new programme. Please enter the school name in full."))
}

func progSchool(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	school := strings.TrimSpace(ev.Text)
	if school == "" {
		return Reprompt(domain.Reply(ev.ChatID, "Please enter the school name in full."))
	}
	sess.Fields["school"] = school
	return Goto(stepProgDate, domain.Reply(ev.ChatID, "Please enter the programme date in DDMMYY format (e.g. 120324)."))
}

func progDate(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	t, err := ParseDayMonthYear(ev.Text)
	if err != nil {
		return Reprompt(domain.Reply(ev.ChatID, "That doesn't look like a valid date. Please enter the programme date in DDMMYY format (e.g. 120324)."))
	}
	sess.Fields["date"] = t.Format(layoutFieldDate)
	return Goto(stepProgStartTime, domain.Reply(ev.ChatID, "Please enter the start time in 24h HHMM format (e.g. 0930)."))
}

func progStartTime(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	clock, err := ParseClock(ev.Text)
	if err != nil {
		return Reprompt(domain.Reply(ev.ChatID, "That doesn't look like a valid time. Please enter the start time in 24h HHMM format (e.g. 0930)."))
	}
	sess.Fields["start_time"] = clock
	return Goto(stepProgHours, domain.Reply(ev.ChatID, "How many hours does the programme run for? (e.g. 3.5)"))
}

func progHours(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	hours, err := ParseHours(ev.Text)
	if err != nil {
		return Reprompt(domain.Reply(ev.ChatID, "Please enter the number of hours as a positive number (e.g. 3.5)."))
	}
	sess.Fields["hours"] = hours
	return Goto(stepProgLevel, domain.Reply(ev.ChatID, "What level is the programme for? (e.g. Secondary 2)"))
}

func progLevel(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	level := strings.TrimSpace(ev.Text)
	if level == "" {
		return Reprompt(domain.Reply(ev.ChatID, "What level is the programme for? (e.g. Secondary 2)"))
	}
	sess.Fields["level"] = level
	return Goto(stepProgSlots, domain.Reply(ev.ChatID, "How many slots are available?"))
}

func progSlots(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	slots, err := ParseSlots(ev.Text)
	if err != nil {
		return Reprompt(domain.Reply(ev.ChatID, "Please enter the number of slots as a whole number of at least 1."))
	}
	sess.Fields["slots"] = slots
	return Goto(stepProgTitle, domain.Reply(ev.ChatID, "Finally, please enter a title for the programme."))
}

func progTitle(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	title := strings.TrimSpace(ev.Text)
	if title == "" {
		return Reprompt(domain.Reply(ev.ChatID, "Please enter a title for the programme."))
	}
	sess.Fields["title"] = title

	var form ListingForm
	if err := decodeForm(sess.Fields, &form); err != nil {
		return Fail(err, transientFailure(ev.ChatID))
	}
	return Goto(stepProgReview, domain.ReplyWithButtons(ev.ChatID,
		listingSummary(&form),
		domain.Button{Label: "Confirm", Choice: choiceConfirmListing},
		domain.Button{Label: "Cancel", Choice: choiceCancelListing},
	))
}

func progReview(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	if ev.Choice == choiceCancelListing {
		return Cancelled(domain.Reply(ev.ChatID, "Programme creation cancelled. Nothing was saved."))
	}

	var form ListingForm
	if err := decodeForm(sess.Fields, &form); err != nil {
		return Fail(err, transientFailure(ev.ChatID))
	}
	listing := form.Listing(sess.ChatID, sess.ActorID, env.Now())
	id, err := env.Store.CreateListing(ctx, listing)
	if err != nil {
		return Fail(err, transientFailure(ev.ChatID))
	}
	env.log().Info("listing created", "listing_id", id, "chat_id", sess.ChatID, "slots", listing.Slots)
	return Finish(domain.Reply(ev.ChatID, fmt.Sprintf("Programme %d added successfully.", id)))
}

// Open-listings view step names.
const stepListFrom = "from_date"

// ListListings builds the browse workflow: pick a start date, see the open
// listings in the following week.
func ListListings() *Workflow {
	return &Workflow{
		ID:    FlowListListings,
		Begin: beginListListings,
		Steps: map[string]*Step{
			stepListFrom: {Accepts: domain.InputText, Handle: listFromDate},
		},
	}
}

func beginListListings(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	if ev.ChatKind != domain.ChatPrivate {
		return Cancelled(domain.Reply(ev.ChatID, "Browse programmes in a direct message with me."))
	}
	return Goto(stepListFrom, domain.Reply(ev.ChatID,
		fmt.Sprintf("I can show all open programmes within a %d-day window. Which day should the window start from? (DDMMYY)", listWindowDays)))
}

func listFromDate(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	from, err := ParseDayMonthYear(ev.Text)
	if err != nil {
		return Reprompt(domain.Reply(ev.ChatID, "That doesn't look like a valid date. Please enter the first day in DDMMYY format."))
	}
	to := from.AddDate(0, 0, listWindowDays)
	listings, err := env.Store.OpenListings(ctx, from, to)
	if err != nil {
		return Fail(err, transientFailure(ev.ChatID))
	}

	buttons := []domain.Button{
		{Label: "Sign up for a programme", Choice: ChoiceSignup},
		{Label: "Pick another date", Choice: ChoiceList},
		{Label: "Go to main page", Choice: ChoiceHome},
	}
	if len(listings) == 0 {
		return Finish(domain.ReplyWithButtons(ev.ChatID,
			fmt.Sprintf("No open programmes between %s and %s.", formatDate(from), formatDate(to)),
			buttons...))
	}
	lines := make([]string, len(listings))
	for i, l := range listings {
		lines[i] = listingLine(l)
	}
	text := fmt.Sprintf("Open programmes between %s and %s:\n\n%s",
		formatDate(from), formatDate(to), strings.Join(lines, "\n"))
	return Finish(domain.ReplyWithButtons(ev.ChatID, text, buttons...))
}
