package workflow

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haleybot/haley/pkg/adapters/memory"
	"github.com/haleybot/haley/pkg/capacity"
	"github.com/haleybot/haley/pkg/domain"
	"github.com/haleybot/haley/pkg/notify"
)

// fakeTransport records relay sends so tests can assert on notifications.
type fakeTransport struct {
	mu   sync.Mutex
	sent []domain.Message
	link string
}

func (f *fakeTransport) Send(ctx context.Context, msg domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) InviteLink(ctx context.Context, chatID int64) (string, error) {
	if f.link == "" {
		return "", fmt.Errorf("no link")
	}
	return f.link, nil
}

func (f *fakeTransport) sentTo(chatID int64) []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Message
	for _, m := range f.sent {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// stubRoles marks fixed ids as managers and everyone as a member.
type stubRoles struct {
	managers map[int64]bool
}

func (r *stubRoles) IsManager(ctx context.Context, actorID int64) (bool, error) {
	return r.managers[actorID], nil
}

func (r *stubRoles) IsMember(ctx context.Context, actorID int64) (bool, error) {
	return true, nil
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) (*Env, *memory.Store, *fakeTransport) {
	t.Helper()
	store := memory.NewStore()
	transport := &fakeTransport{link: "https://chat.example/join"}
	env := &Env{
		Store:  store,
		Ledger: capacity.NewLedger(store),
		Relay:  notify.NewRelay(transport),
		Roles:  &stubRoles{managers: map[int64]bool{900: true}},
		Clock:  func() time.Time { return testNow },
	}
	return env, store, transport
}

// runner drives one workflow the way the session manager would, keeping
// the cursor between steps.
type runner struct {
	env  *Env
	wf   *Workflow
	sess *domain.Session
	step string
}

func newRunner(env *Env, wf *Workflow, actorID, chatID int64) *runner {
	return &runner{
		env:  env,
		wf:   wf,
		sess: domain.NewSession(actorID, chatID, wf.ID, ""),
	}
}

func (r *runner) begin(t *testing.T, ev domain.Event) Outcome {
	t.Helper()
	out := r.wf.Begin(context.Background(), r.env, r.sess, ev)
	require.NoError(t, out.Err)
	if out.Kind == Continue {
		r.step = out.Next
	}
	return out
}

func (r *runner) send(t *testing.T, ev domain.Event) Outcome {
	t.Helper()
	step, ok := r.wf.Steps[r.step]
	require.True(t, ok, "no step named %q", r.step)
	out := step.Handle(context.Background(), r.env, r.sess, ev)
	require.NoError(t, out.Err)
	if out.Kind == Continue && out.Next != "" {
		r.step = out.Next
	}
	return out
}

func textEv(actorID, chatID int64, kind domain.ChatKind, text string) domain.Event {
	return domain.Event{ActorID: actorID, ChatID: chatID, ChatKind: kind, Text: text}
}

func choiceEv(actorID, chatID int64, kind domain.ChatKind, choice string) domain.Event {
	return domain.Event{ActorID: actorID, ChatID: chatID, ChatKind: kind, Choice: choice}
}

func photoEv(actorID, chatID int64, photo []byte) domain.Event {
	return domain.Event{ActorID: actorID, ChatID: chatID, ChatKind: domain.ChatPrivate, Photo: photo}
}

func seedActor(t *testing.T, env *Env, id int64, first, last string) {
	t.Helper()
	err := env.Store.CreateActor(context.Background(), &domain.Actor{
		ID:        id,
		FirstName: first,
		LastName:  last,
		Mobile:    "91234567",
		Postal:    "520123",
		Role:      domain.RoleStandard,
	})
	require.NoError(t, err)
}

func seedListing(t *testing.T, env *Env, chatID int64, slots int) int64 {
	t.Helper()
	id, err := env.Store.CreateListing(context.Background(), &domain.Listing{
		ChatID:    chatID,
		CreatedBy: 900,
		Title:     "Leadership Camp",
		School:    "Harbour Secondary",
		Date:      testNow.AddDate(0, 0, 3),
		StartTime: "09:00",
		Hours:     3.5,
		Level:     "S3",
		Slots:     slots,
		SlotsLeft: slots,
		Status:    domain.ListingOpen,
		CreatedAt: testNow,
	})
	require.NoError(t, err)
	return id
}

func seedApplication(t *testing.T, env *Env, actorID, listingID, chatID int64, status domain.AppStatus) int64 {
	t.Helper()
	id, err := env.Store.CreateApplication(context.Background(), &domain.Application{
		ActorID:   actorID,
		ListingID: listingID,
		ChatID:    chatID,
		FirstName: fmt.Sprintf("A%d", actorID),
		LastName:  "Tan",
		Title:     "Leadership Camp",
		Hours:     3.5,
		Status:    status,
		AppliedAt: testNow,
	})
	require.NoError(t, err)
	return id
}

func TestRegisterFlow(t *testing.T) {
	env, store, _ := newTestEnv(t)
	r := newRunner(env, Register(), 42, 42)

	out := r.begin(t, domain.Event{ActorID: 42, Username: "ada", ChatID: 42, ChatKind: domain.ChatPrivate, Choice: ChoiceRegister})
	require.Equal(t, Continue, out.Kind)

	r.send(t, textEv(42, 42, domain.ChatPrivate, "Ada"))
	r.send(t, textEv(42, 42, domain.ChatPrivate, "Tan"))

	// Garbage dates are rejected without moving the cursor.
	out = r.send(t, textEv(42, 42, domain.ChatPrivate, "not-a-date"))
	assert.Equal(t, Rejected, out.Kind)
	assert.Equal(t, stepRegBirthDate, r.step)

	r.send(t, textEv(42, 42, domain.ChatPrivate, "010190"))
	r.send(t, photoEv(42, 42, []byte("jpeg-bytes")))
	r.send(t, textEv(42, 42, domain.ChatPrivate, "S1234567D"))
	r.send(t, textEv(42, 42, domain.ChatPrivate, "300627"))
	r.send(t, textEv(42, 42, domain.ChatPrivate, "91234567"))
	out = r.send(t, textEv(42, 42, domain.ChatPrivate, "520123"))
	require.Equal(t, Continue, out.Kind)
	require.Len(t, out.Messages, 1)
	summary := out.Messages[0].Text
	assert.Contains(t, summary, "Ada Tan")
	assert.Contains(t, summary, "01 Jan 90")
	assert.Contains(t, summary, "S1234567D")
	assert.Contains(t, summary, "91234567")
	assert.Contains(t, summary, "520123")

	// Nothing committed until the confirm.
	_, err := store.Actor(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	out = r.send(t, choiceEv(42, 42, domain.ChatPrivate, choiceConfirmReg))
	require.Equal(t, Completed, out.Kind)

	actor, err := store.Actor(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "Ada", actor.FirstName)
	assert.Equal(t, 1990, actor.DateOfBirth.Year())
	assert.Equal(t, []byte("jpeg-bytes"), actor.Photo)
	assert.Equal(t, domain.RoleStandard, actor.Role)
	assert.True(t, actor.RegisteredAt.Equal(testNow))

	// A second registration attempt is turned away at the door.
	r2 := newRunner(env, Register(), 42, 42)
	out = r2.begin(t, domain.Event{ActorID: 42, ChatID: 42, ChatKind: domain.ChatPrivate, Choice: ChoiceRegister})
	assert.Equal(t, Aborted, out.Kind)
}

func TestRegisterCancelSavesNothing(t *testing.T) {
	env, store, _ := newTestEnv(t)
	r := newRunner(env, Register(), 43, 43)

	r.begin(t, domain.Event{ActorID: 43, ChatID: 43, ChatKind: domain.ChatPrivate})
	r.send(t, textEv(43, 43, domain.ChatPrivate, "Bo"))
	r.send(t, textEv(43, 43, domain.ChatPrivate, "Lim"))
	r.send(t, textEv(43, 43, domain.ChatPrivate, "020295"))
	r.send(t, photoEv(43, 43, []byte("x")))
	r.send(t, textEv(43, 43, domain.ChatPrivate, "T7654321Z"))
	r.send(t, textEv(43, 43, domain.ChatPrivate, "010128"))
	r.send(t, textEv(43, 43, domain.ChatPrivate, "81234567"))
	r.send(t, textEv(43, 43, domain.ChatPrivate, "650321"))

	out := r.send(t, choiceEv(43, 43, domain.ChatPrivate, choiceCancelReg))
	assert.Equal(t, Aborted, out.Kind)

	_, err := store.Actor(context.Background(), 43)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApplyDoubleEntry(t *testing.T) {
	env, store, _ := newTestEnv(t)
	seedActor(t, env, 42, "Ada", "Tan")
	listingID := seedListing(t, env, -500, 2)

	r := newRunner(env, Apply(), 42, 42)
	out := r.begin(t, choiceEv(42, 42, domain.ChatPrivate, ChoiceSignup))
	require.Equal(t, Continue, out.Kind)

	// Unknown listing id re-prompts.
	out = r.send(t, textEv(42, 42, domain.ChatPrivate, "999"))
	assert.Equal(t, Rejected, out.Kind)

	r.send(t, textEv(42, 42, domain.ChatPrivate, fmt.Sprintf("%d", listingID)))

	// A mismatched confirmation does not commit.
	out = r.send(t, textEv(42, 42, domain.ChatPrivate, "777"))
	assert.Equal(t, Rejected, out.Kind)
	apps, err := store.ApplicationsByActor(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, apps)

	out = r.send(t, textEv(42, 42, domain.ChatPrivate, fmt.Sprintf("%d", listingID)))
	require.Equal(t, Continue, out.Kind)

	apps, err = store.ApplicationsByActor(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, domain.AppPending, apps[0].Status)
	assert.Equal(t, "Ada", apps[0].FirstName)
	assert.Equal(t, "Leadership Camp", apps[0].Title)

	// Applying never consumes capacity.
	listing, err := store.Listing(context.Background(), listingID)
	require.NoError(t, err)
	assert.Equal(t, 2, listing.SlotsLeft)

	out = r.send(t, choiceEv(42, 42, domain.ChatPrivate, choiceAnotherNo))
	assert.Equal(t, Completed, out.Kind)
}

func TestApplyDuplicateAndNoSlots(t *testing.T) {
	env, store, _ := newTestEnv(t)
	seedActor(t, env, 42, "Ada", "Tan")
	listingID := seedListing(t, env, -500, 1)
	seedApplication(t, env, 42, listingID, -500, domain.AppPending)

	r := newRunner(env, Apply(), 42, 42)
	r.begin(t, choiceEv(42, 42, domain.ChatPrivate, ChoiceSignup))
	r.send(t, textEv(42, 42, domain.ChatPrivate, fmt.Sprintf("%d", listingID)))
	out := r.send(t, textEv(42, 42, domain.ChatPrivate, fmt.Sprintf("%d", listingID)))
	require.Equal(t, Completed, out.Kind)
	assert.Contains(t, out.Messages[0].Text, "already signed up")

	// A full listing turns a new applicant away at confirmation.
	seedActor(t, env, 77, "Bo", "Lim")
	_, err := store.AdjustListingSlots(context.Background(), listingID, -1)
	require.NoError(t, err)

	r2 := newRunner(env, Apply(), 77, 77)
	r2.begin(t, choiceEv(77, 77, domain.ChatPrivate, ChoiceSignup))
	r2.send(t, textEv(77, 77, domain.ChatPrivate, fmt.Sprintf("%d", listingID)))
	out = r2.send(t, textEv(77, 77, domain.ChatPrivate, fmt.Sprintf("%d", listingID)))
	require.Equal(t, Completed, out.Kind)
	assert.Contains(t, out.Messages[0].Text, "no slots left")
}

func TestTriageAcceptHonorsCapacity(t *testing.T) {
	env, store, transport := newTestEnv(t)
	const groupChat = -500
	listingID := seedListing(t, env, groupChat, 2)
	app1 := seedApplication(t, env, 101, listingID, groupChat, domain.AppPending)
	app2 := seedApplication(t, env, 102, listingID, groupChat, domain.AppPending)
	app3 := seedApplication(t, env, 103, listingID, groupChat, domain.AppPending)

	r := newRunner(env, Triage(), 900, groupChat)
	out := r.begin(t, choiceEv(900, groupChat, domain.ChatGroup, ChoiceAccept))
	require.Equal(t, Continue, out.Kind)

	batch := fmt.Sprintf("%d, %d, %d", app1, app2, app3)
	out = r.send(t, textEv(900, groupChat, domain.ChatGroup, batch))
	require.Equal(t, Completed, out.Kind)
	summary := out.Messages[0].Text
	assert.Contains(t, summary, fmt.Sprintf("Accepted: %d, %d", app1, app2))
	assert.Contains(t, summary, fmt.Sprintf("No slots left for: %d", app3))

	// Two slots reserved, the third attempt rolled back to pending.
	listing, err := store.Listing(context.Background(), listingID)
	require.NoError(t, err)
	assert.Equal(t, 0, listing.SlotsLeft)
	third, err := store.Application(context.Background(), app3)
	require.NoError(t, err)
	assert.Equal(t, domain.AppPending, third.Status)

	// Accepted applicants got a link, chatless actors got nothing else.
	require.Len(t, transport.sentTo(101), 1)
	assert.Contains(t, transport.sentTo(101)[0].Text, "https://chat.example/join")
	require.Len(t, transport.sentTo(102), 1)
	assert.Empty(t, transport.sentTo(103))

	// Re-running the same batch changes nothing: accepted ids are stale,
	// the third still cannot fit.
	r2 := newRunner(env, Triage(), 900, groupChat)
	r2.begin(t, choiceEv(900, groupChat, domain.ChatGroup, ChoiceAccept))
	out = r2.send(t, textEv(900, groupChat, domain.ChatGroup, batch))
	require.Equal(t, Completed, out.Kind)
	listing, err = store.Listing(context.Background(), listingID)
	require.NoError(t, err)
	assert.Equal(t, 0, listing.SlotsLeft)
	require.Len(t, transport.sentTo(101), 1)
}

func TestTriageRerunNeverDoubleReserves(t *testing.T) {
	env, store, _ := newTestEnv(t)
	const groupChat = -500
	listingID := seedListing(t, env, groupChat, 3)
	appID := seedApplication(t, env, 101, listingID, groupChat, domain.AppPending)

	r := newRunner(env, Triage(), 900, groupChat)
	r.begin(t, choiceEv(900, groupChat, domain.ChatGroup, ChoiceAccept))
	out := r.send(t, textEv(900, groupChat, domain.ChatGroup, fmt.Sprintf("%d", appID)))
	require.Equal(t, Completed, out.Kind)

	listing, err := store.Listing(context.Background(), listingID)
	require.NoError(t, err)
	require.Equal(t, 2, listing.SlotsLeft)

	// Accepting the same id again is a no-op: it is skipped before any
	// slot moves, even with capacity to spare.
	r2 := newRunner(env, Triage(), 900, groupChat)
	r2.begin(t, choiceEv(900, groupChat, domain.ChatGroup, ChoiceAccept))
	out = r2.send(t, textEv(900, groupChat, domain.ChatGroup, fmt.Sprintf("%d", appID)))
	require.Equal(t, Completed, out.Kind)
	assert.Contains(t, out.Messages[0].Text, "Skipped")

	listing, err = store.Listing(context.Background(), listingID)
	require.NoError(t, err)
	assert.Equal(t, 2, listing.SlotsLeft)
}

func TestTriageReject(t *testing.T) {
	env, store, transport := newTestEnv(t)
	const groupChat = -500
	listingID := seedListing(t, env, groupChat, 2)
	appID := seedApplication(t, env, 101, listingID, groupChat, domain.AppPending)

	r := newRunner(env, Triage(), 900, groupChat)
	r.begin(t, choiceEv(900, groupChat, domain.ChatGroup, ChoiceReject))
	out := r.send(t, textEv(900, groupChat, domain.ChatGroup, fmt.Sprintf("%d", appID)))
	require.Equal(t, Completed, out.Kind)

	app, err := store.Application(context.Background(), appID)
	require.NoError(t, err)
	assert.Equal(t, domain.AppRejected, app.Status)

	// Rejection never touches capacity.
	listing, err := store.Listing(context.Background(), listingID)
	require.NoError(t, err)
	assert.Equal(t, 2, listing.SlotsLeft)

	require.Len(t, transport.sentTo(101), 1)
	assert.Contains(t, transport.sentTo(101)[0].Text, "not successful")
}

func TestTriageRequiresManager(t *testing.T) {
	env, _, _ := newTestEnv(t)
	seedListing(t, env, -500, 2)

	r := newRunner(env, Triage(), 42, -500)
	out := r.begin(t, choiceEv(42, -500, domain.ChatGroup, ChoiceAccept))
	assert.Equal(t, Aborted, out.Kind)
}

func TestWithdrawReleasesOnlyAcceptedSlot(t *testing.T) {
	env, store, transport := newTestEnv(t)
	const groupChat = -500
	seedActor(t, env, 42, "Ada", "Tan")
	listingID := seedListing(t, env, groupChat, 2)
	appID := seedApplication(t, env, 42, listingID, groupChat, domain.AppAccepted)
	_, err := store.AdjustListingSlots(context.Background(), listingID, -1)
	require.NoError(t, err)

	r := newRunner(env, Withdraw(), 42, 42)
	out := r.begin(t, choiceEv(42, 42, domain.ChatPrivate, ChoiceMySignups))
	require.Equal(t, Continue, out.Kind)

	r.send(t, choiceEv(42, 42, domain.ChatPrivate, choiceStartWithdraw))
	r.send(t, choiceEv(42, 42, domain.ChatPrivate, choiceWithdrawYes))
	r.send(t, textEv(42, 42, domain.ChatPrivate, fmt.Sprintf("%d", listingID)))
	out = r.send(t, textEv(42, 42, domain.ChatPrivate, fmt.Sprintf("%d", listingID)))
	require.Equal(t, Completed, out.Kind)

	app, err := store.Application(context.Background(), appID)
	require.NoError(t, err)
	assert.Equal(t, domain.AppWithdrawn, app.Status)

	// The accepted slot came back and the group heard about it.
	listing, err := store.Listing(context.Background(), listingID)
	require.NoError(t, err)
	assert.Equal(t, 2, listing.SlotsLeft)
	require.Len(t, transport.sentTo(groupChat), 1)
	assert.Contains(t, transport.sentTo(groupChat)[0].Text, "reopened")
}

func TestWithdrawPendingReleasesNothing(t *testing.T) {
	env, store, transport := newTestEnv(t)
	const groupChat = -500
	seedActor(t, env, 42, "Ada", "Tan")
	listingID := seedListing(t, env, groupChat, 2)
	appID := seedApplication(t, env, 42, listingID, groupChat, domain.AppPending)

	r := newRunner(env, Withdraw(), 42, 42)
	r.begin(t, choiceEv(42, 42, domain.ChatPrivate, ChoiceMySignups))
	r.send(t, choiceEv(42, 42, domain.ChatPrivate, choiceStartWithdraw))
	r.send(t, choiceEv(42, 42, domain.ChatPrivate, choiceWithdrawYes))
	r.send(t, textEv(42, 42, domain.ChatPrivate, fmt.Sprintf("%d", listingID)))
	out := r.send(t, textEv(42, 42, domain.ChatPrivate, fmt.Sprintf("%d", listingID)))
	require.Equal(t, Completed, out.Kind)

	app, err := store.Application(context.Background(), appID)
	require.NoError(t, err)
	assert.Equal(t, domain.AppWithdrawn, app.Status)

	// A pending signup never held a slot, so none comes back and the
	// group stays quiet.
	listing, err := store.Listing(context.Background(), listingID)
	require.NoError(t, err)
	assert.Equal(t, 2, listing.SlotsLeft)
	assert.Empty(t, transport.sentTo(groupChat))
}

func TestWithdrawRefusedAfterSettlement(t *testing.T) {
	env, store, transport := newTestEnv(t)
	const groupChat = -500
	seedActor(t, env, 42, "Ada", "Tan")
	listingID := seedListing(t, env, groupChat, 1)
	appID := seedApplication(t, env, 42, listingID, groupChat, domain.AppAccepted)
	_, err := store.AdjustListingSlots(context.Background(), listingID, -1)
	require.NoError(t, err)
	_, err = store.SettleListing(context.Background(), listingID)
	require.NoError(t, err)

	r := newRunner(env, Withdraw(), 42, 42)
	r.begin(t, choiceEv(42, 42, domain.ChatPrivate, ChoiceMySignups))
	r.send(t, choiceEv(42, 42, domain.ChatPrivate, choiceStartWithdraw))
	r.send(t, choiceEv(42, 42, domain.ChatPrivate, choiceWithdrawYes))
	out := r.send(t, textEv(42, 42, domain.ChatPrivate, fmt.Sprintf("%d", listingID)))
	require.Equal(t, Completed, out.Kind)
	assert.Contains(t, out.Messages[0].Text, "already been completed")

	// The settled roster is final: status, slots, credit all untouched,
	// and no reopened-slot broadcast reaches the group.
	app, err := store.Application(context.Background(), appID)
	require.NoError(t, err)
	assert.Equal(t, domain.AppAccepted, app.Status)
	listing, err := store.Listing(context.Background(), listingID)
	require.NoError(t, err)
	assert.Equal(t, 0, listing.SlotsLeft)
	assert.Equal(t, domain.ListingClosed, listing.Status)
	actor, err := store.Actor(context.Background(), 42)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, actor.CreditHours, 1e-9)
	assert.Empty(t, transport.sentTo(groupChat))
}

func TestWithdrawRechecksListingAtConfirmation(t *testing.T) {
	env, store, transport := newTestEnv(t)
	const groupChat = -500
	seedActor(t, env, 42, "Ada", "Tan")
	listingID := seedListing(t, env, groupChat, 1)
	appID := seedApplication(t, env, 42, listingID, groupChat, domain.AppAccepted)
	_, err := store.AdjustListingSlots(context.Background(), listingID, -1)
	require.NoError(t, err)

	r := newRunner(env, Withdraw(), 42, 42)
	r.begin(t, choiceEv(42, 42, domain.ChatPrivate, ChoiceMySignups))
	r.send(t, choiceEv(42, 42, domain.ChatPrivate, choiceStartWithdraw))
	r.send(t, choiceEv(42, 42, domain.ChatPrivate, choiceWithdrawYes))
	out := r.send(t, textEv(42, 42, domain.ChatPrivate, fmt.Sprintf("%d", listingID)))
	require.Equal(t, Continue, out.Kind)

	// The programme settles between the two id entries.
	_, err = store.SettleListing(context.Background(), listingID)
	require.NoError(t, err)

	out = r.send(t, textEv(42, 42, domain.ChatPrivate, fmt.Sprintf("%d", listingID)))
	require.Equal(t, Completed, out.Kind)
	assert.Contains(t, out.Messages[0].Text, "already been completed")

	app, err := store.Application(context.Background(), appID)
	require.NoError(t, err)
	assert.Equal(t, domain.AppAccepted, app.Status)
	listing, err := store.Listing(context.Background(), listingID)
	require.NoError(t, err)
	assert.Equal(t, 0, listing.SlotsLeft)
	assert.Empty(t, transport.sentTo(groupChat))
}

func TestWithdrawNothingActive(t *testing.T) {
	env, _, _ := newTestEnv(t)
	seedActor(t, env, 42, "Ada", "Tan")

	r := newRunner(env, Withdraw(), 42, 42)
	out := r.begin(t, choiceEv(42, 42, domain.ChatPrivate, ChoiceMySignups))
	assert.Equal(t, Aborted, out.Kind)
	assert.Contains(t, out.Messages[0].Text, "no active signups")
}

func TestCompleteSettlesOnce(t *testing.T) {
	env, store, _ := newTestEnv(t)
	const groupChat = -500
	seedActor(t, env, 101, "Ada", "Tan")
	seedActor(t, env, 102, "Bo", "Lim")
	seedActor(t, env, 103, "Cy", "Ong")
	listingID := seedListing(t, env, groupChat, 3)
	seedApplication(t, env, 101, listingID, groupChat, domain.AppAccepted)
	seedApplication(t, env, 102, listingID, groupChat, domain.AppAccepted)
	noShow := seedApplication(t, env, 103, listingID, groupChat, domain.AppAccepted)
	_, err := store.AdjustListingSlots(context.Background(), listingID, -3)
	require.NoError(t, err)

	r := newRunner(env, Complete(), 900, groupChat)
	out := r.begin(t, choiceEv(900, groupChat, domain.ChatGroup, ChoiceCompleteRun))
	require.Equal(t, Continue, out.Kind)

	r.send(t, choiceEv(900, groupChat, domain.ChatGroup, choiceCompleteYes))

	// Prune the no-show, then do it again via the edit loop: the second
	// pass is a no-op.
	r.send(t, textEv(900, groupChat, domain.ChatGroup, fmt.Sprintf("%d", noShow)))
	r.send(t, choiceEv(900, groupChat, domain.ChatGroup, choiceStartOver))
	out = r.send(t, textEv(900, groupChat, domain.ChatGroup, fmt.Sprintf("%d", noShow)))
	require.Equal(t, Continue, out.Kind)

	out = r.send(t, choiceEv(900, groupChat, domain.ChatGroup, choiceConfirmRoster))
	require.Equal(t, Completed, out.Kind)
	assert.Contains(t, out.Messages[0].Text, "3.5 hours credited to 2")

	// The attendees got the hours, the no-show did not.
	for id, want := range map[int64]float64{101: 3.5, 102: 3.5, 103: 0} {
		actor, err := store.Actor(context.Background(), id)
		require.NoError(t, err)
		assert.InDelta(t, want, actor.CreditHours, 1e-9, "actor %d", id)
	}

	// Removal does not reopen capacity; the programme is over.
	listing, err := store.Listing(context.Background(), listingID)
	require.NoError(t, err)
	assert.Equal(t, 0, listing.SlotsLeft)
	assert.Equal(t, domain.ListingClosed, listing.Status)

	// A second completion attempt is refused at the door.
	r2 := newRunner(env, Complete(), 900, groupChat)
	out = r2.begin(t, choiceEv(900, groupChat, domain.ChatGroup, ChoiceCompleteRun))
	assert.Equal(t, Aborted, out.Kind)
	assert.Contains(t, out.Messages[0].Text, "already been completed")
}

func TestCompleteEveryoneAttended(t *testing.T) {
	env, store, _ := newTestEnv(t)
	const groupChat = -500
	seedActor(t, env, 101, "Ada", "Tan")
	listingID := seedListing(t, env, groupChat, 1)
	seedApplication(t, env, 101, listingID, groupChat, domain.AppAccepted)

	r := newRunner(env, Complete(), 900, groupChat)
	r.begin(t, choiceEv(900, groupChat, domain.ChatGroup, ChoiceCompleteRun))
	r.send(t, choiceEv(900, groupChat, domain.ChatGroup, choiceCompleteYes))
	out := r.send(t, textEv(900, groupChat, domain.ChatGroup, "0"))
	require.Equal(t, Continue, out.Kind)
	assert.Contains(t, out.Messages[0].Text, "No changes made")

	out = r.send(t, choiceEv(900, groupChat, domain.ChatGroup, choiceConfirmRoster))
	require.Equal(t, Completed, out.Kind)

	actor, err := store.Actor(context.Background(), 101)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, actor.CreditHours, 1e-9)
}

func TestAddListingFlow(t *testing.T) {
	env, store, _ := newTestEnv(t)
	const groupChat = -500

	r := newRunner(env, AddListing(), 900, groupChat)
	out := r.begin(t, choiceEv(900, groupChat, domain.ChatGroup, ChoiceAddListing))
	require.Equal(t, Continue, out.Kind)

	r.send(t, textEv(900, groupChat, domain.ChatGroup, "Harbour Secondary"))
	r.send(t, textEv(900, groupChat, domain.ChatGroup, "140326"))

	// 25:00 is not a time of day.
	out = r.send(t, textEv(900, groupChat, domain.ChatGroup, "2500"))
	assert.Equal(t, Rejected, out.Kind)

	r.send(t, textEv(900, groupChat, domain.ChatGroup, "0930"))
	r.send(t, textEv(900, groupChat, domain.ChatGroup, "3.5"))
	r.send(t, textEv(900, groupChat, domain.ChatGroup, "S3"))
	r.send(t, textEv(900, groupChat, domain.ChatGroup, "4"))
	out = r.send(t, textEv(900, groupChat, domain.ChatGroup, "Leadership Camp"))
	require.Equal(t, Continue, out.Kind)
	assert.Contains(t, out.Messages[0].Text, "9:30 AM")

	out = r.send(t, choiceEv(900, groupChat, domain.ChatGroup, choiceConfirmListing))
	require.Equal(t, Completed, out.Kind)

	listing, err := store.ListingByChat(context.Background(), groupChat)
	require.NoError(t, err)
	assert.Equal(t, "Leadership Camp", listing.Title)
	assert.Equal(t, 4, listing.Slots)
	assert.Equal(t, 4, listing.SlotsLeft)
	assert.Equal(t, "09:30", listing.StartTime)
	assert.Equal(t, domain.ListingOpen, listing.Status)
	assert.Equal(t, int64(900), listing.CreatedBy)
}

func TestAddListingRequiresManagerInGroup(t *testing.T) {
	env, _, _ := newTestEnv(t)

	out := newRunner(env, AddListing(), 42, -500).
		begin(t, choiceEv(42, -500, domain.ChatGroup, ChoiceAddListing))
	assert.Equal(t, Aborted, out.Kind)

	out = newRunner(env, AddListing(), 900, 900).
		begin(t, choiceEv(900, 900, domain.ChatPrivate, ChoiceAddListing))
	assert.Equal(t, Aborted, out.Kind)
}

func TestListListingsWindow(t *testing.T) {
	env, _, _ := newTestEnv(t)
	inside := seedListing(t, env, -500, 2)

	// A listing outside the 7-day window stays hidden.
	_, err := env.Store.CreateListing(context.Background(), &domain.Listing{
		ChatID: -501, Title: "Far Future", School: "Elsewhere",
		Date: testNow.AddDate(0, 0, 30), StartTime: "10:00", Hours: 2,
		Level: "S1", Slots: 5, SlotsLeft: 5, Status: domain.ListingOpen,
	})
	require.NoError(t, err)

	r := newRunner(env, ListListings(), 42, 42)
	out := r.begin(t, choiceEv(42, 42, domain.ChatPrivate, ChoiceList))
	require.Equal(t, Continue, out.Kind)

	out = r.send(t, textEv(42, 42, domain.ChatPrivate, "100326"))
	require.Equal(t, Completed, out.Kind)
	assert.Contains(t, out.Messages[0].Text, "Leadership Camp")
	assert.Contains(t, out.Messages[0].Text, fmt.Sprintf("%d |", inside))
	assert.NotContains(t, out.Messages[0].Text, "Far Future")
}
