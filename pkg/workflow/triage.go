package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/haleybot/haley/pkg/domain"
)

// Triage step names and modes.
const (
	stepTriageIDs = "collect_ids"

	triageModeAccept = "accept"
	triageModeReject = "reject"
)

// Triage builds the accept/reject workflow. A manager runs it in the
// listing's group chat and submits a batch of application ids; each id is
// committed independently, so stale ids are skipped and a full batch is
// never rolled back.
func Triage() *Workflow {
	return &Workflow{
		ID:    FlowTriage,
		Begin: beginTriage,
		Steps: map[string]*Step{
			stepTriageIDs: {Accepts: domain.InputText, Handle: triageCollectIDs},
		},
	}
}

func beginTriage(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	if ev.ChatKind != domain.ChatGroup {
		return Cancelled(domain.Reply(ev.ChatID, "Applicants are processed from the programme's group chat."))
	}
	ok, err := env.Roles.IsManager(ctx, ev.ActorID)
	if err != nil {
		return Fail(err, transientFailure(ev.ChatID))
	}
	if !ok {
		return Cancelled(domain.Reply(ev.ChatID, "Only managers can process applicants."))
	}

	mode := triageModeAccept
	if ev.Choice == ChoiceReject {
		mode = triageModeReject
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

	sess.Fields["mode"] = mode
	sess.Fields["listing_id"] = listing.ID
	verb := "accept"
	if mode == triageModeReject {
		verb = "reject"
	}
	return Goto(stepTriageIDs, domain.Reply(ev.ChatID,
		fmt.Sprintf("Please enter the IDs of the applicants you want to %s (e.g. 23, 45, 67).", verb)))
}

func triageCollectIDs(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome {
	ids, err := ParseIDList(ev.Text)
	if err != nil {
		return Reprompt(domain.Reply(ev.ChatID, "No valid IDs found. Please enter them as numbers separated by commas (e.g. 23, 45, 67)."))
	}
	listingID := sessionInt64(sess, "listing_id")

	var result triageResult
	if sess.String("mode") == triageModeReject {
		result, err = rejectApplicants(ctx, env, listingID, ids)
	} else {
		result, err = acceptApplicants(ctx, env, listingID, ids)
	}
	if err != nil {
		return Fail(err, transientFailure(ev.ChatID))
	}
	return Finish(domain.Reply(ev.ChatID, result.summary()))
}

// triageResult partitions a batch by what happened to each id.
type triageResult struct {
	done    []int64
	skipped []int64
	noSlots []int64
	verb    string
}

func (r triageResult) summary() string {
	var parts []string
	if len(r.done) > 0 {
		parts = append(parts, fmt.Sprintf("%s: %s", r.verb, formatIDs(r.done)))
	}
	if len(r.noSlots) > 0 {
		parts = append(parts, "No slots left for: "+formatIDs(r.noSlots))
	}
	if len(r.skipped) > 0 {
		parts = append(parts, "Skipped (already processed or unknown): "+formatIDs(r.skipped))
	}
	if len(parts) == 0 {
		return "Nothing to do."
	}
	return strings.Join(parts, "\n")
}

// acceptApplicants accepts each pending application, one reserved slot per
// acceptance. The slot is reserved before the status moves, so an accepted
// application always holds a slot and a concurrent withdrawal can never
// release one the acceptance had yet to take; a failed transition hands the
// slot straight back. Accepted applicants are notified with an invite link
// after their commit.
func acceptApplicants(ctx context.Context, env *Env, listingID int64, ids []int64) (triageResult, error) {
	result := triageResult{verb: "Accepted"}
	var link string
	for _, id := range ids {
		app, err := env.Store.Application(ctx, id)
		if err != nil || app.ListingID != listingID {
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return result, err
			}
			result.skipped = append(result.skipped, id)
			continue
		}
		if app.Status != domain.AppPending {
			result.skipped = append(result.skipped, id)
			continue
		}
		if err := env.Ledger.Reserve(ctx, listingID, 1); err != nil {
			if errors.Is(err, domain.ErrNoCapacity) {
				result.noSlots = append(result.noSlots, id)
				continue
			}
			return result, err
		}
		ok, err := env.Store.TransitionApplication(ctx, id, domain.AppPending, domain.AppAccepted)
		if err != nil {
			return result, err
		}
		if !ok {
			if err := env.Ledger.Release(ctx, listingID, 1); err != nil {
				return result, err
			}
			result.skipped = append(result.skipped, id)
			continue
		}
		result.done = append(result.done, id)
		env.log().Info("application accepted", "app_id", id, "listing_id", listingID)

		if link == "" {
			link = env.Relay.InviteLink(ctx, app.ChatID)
		}
		text := fmt.Sprintf("Congratulations! You've been accepted for programme %d (%s).", listingID, app.Title)
		if link != "" {
			text += "\nJoin the group chat here: " + link
		}
		env.Relay.Send(ctx, domain.Reply(app.ActorID, text))
	}
	return result, nil
}

// rejectApplicants rejects each pending application. No capacity moves;
// pending applications never held a slot.
func rejectApplicants(ctx context.Context, env *Env, listingID int64, ids []int64) (triageResult, error) {
	result := triageResult{verb: "Rejected"}
	for _, id := range ids {
		app, err := env.Store.Application(ctx, id)
		if err != nil || app.ListingID != listingID {
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return result, err
			}
			result.skipped = append(result.skipped, id)
			continue
		}
		ok, err := env.Store.TransitionApplication(ctx, id, domain.AppPending, domain.AppRejected)
		if err != nil {
			return result, err
		}
		if !ok {
			result.skipped = append(result.skipped, id)
			continue
		}
		result.done = append(result.done, id)
		env.log().Info("application rejected", "app_id", id, "listing_id", listingID)
		env.Relay.Send(ctx, domain.Reply(app.ActorID,
			fmt.Sprintf("We're sorry, your signup for programme %d (%s) was not successful this time.", listingID, app.Title)))
	}
	return result, nil
}

// sessionInt64 reads a numeric field that may have been through a JSON
// round trip (arriving as float64) or set directly (int64).
func sessionInt64(sess *domain.Session, name string) int64 {
	switch v := sess.Fields[name].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return int64(v)
	default:
		return 0
	}
}
