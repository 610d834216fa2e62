package session_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haleybot/haley/pkg/adapters/memory"
	"github.com/haleybot/haley/pkg/domain"
	"github.com/haleybot/haley/pkg/session"
	"github.com/haleybot/haley/pkg/workflow"
)

// echoFlow is a minimal two-step workflow for exercising the manager's
// lifecycle rules without dragging in the real flows.
func echoFlow() *workflow.Workflow {
	return &workflow.Workflow{
		ID: "echo",
		Begin: func(ctx context.Context, env *workflow.Env, sess *domain.Session, ev domain.Event) workflow.Outcome {
			return workflow.Goto("ask", domain.Reply(ev.ChatID, "say something"))
		},
		Steps: map[string]*workflow.Step{
			"ask": {
				Accepts:  domain.InputText,
				Reprompt: "words please",
				Handle: func(ctx context.Context, env *workflow.Env, sess *domain.Session, ev domain.Event) workflow.Outcome {
					if ev.Text == "bad" {
						return workflow.Reprompt(domain.Reply(ev.ChatID, "try again"))
					}
					sess.Fields["said"] = ev.Text
					return workflow.Goto("confirm", domain.Reply(ev.ChatID, "sure?"))
				},
			},
			"confirm": {
				Accepts:  domain.InputChoice,
				Choices:  []string{"yes", "no"},
				Reprompt: "buttons please",
				Handle: func(ctx context.Context, env *workflow.Env, sess *domain.Session, ev domain.Event) workflow.Outcome {
					if ev.Choice == "yes" {
						return workflow.Finish(domain.Reply(ev.ChatID, "done: "+sess.String("said")))
					}
					return workflow.Cancelled(domain.Reply(ev.ChatID, "dropped"))
				},
			},
		},
	}
}

type clock struct{ now time.Time }

func newTestManager(t *testing.T, opts ...session.Option) (*session.Manager, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	env := &workflow.Env{Clock: func() time.Time { return c.now }}
	m := session.NewManager(memory.NewSessionStore(), workflow.NewRegistry(echoFlow()), env, opts...)
	return m, c
}

func ev(actorID, chatID int64) domain.Event {
	return domain.Event{ActorID: actorID, ChatID: chatID, ChatKind: domain.ChatPrivate}
}

func textEv(actorID, chatID int64, text string) domain.Event {
	e := ev(actorID, chatID)
	e.Text = text
	return e
}

func choiceEv(actorID, chatID int64, choice string) domain.Event {
	e := ev(actorID, chatID)
	e.Choice = choice
	return e
}

func TestSingleActiveSessionPerPair(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	out, err := m.Begin(ctx, ev(1, 1), "echo")
	require.NoError(t, err)
	assert.Equal(t, workflow.Continue, out.Kind)

	_, err = m.Begin(ctx, ev(1, 1), "echo")
	assert.ErrorIs(t, err, domain.ErrSessionActive)

	// A different chat for the same actor is a different session.
	_, err = m.Begin(ctx, ev(1, 2), "echo")
	assert.NoError(t, err)
}

func TestAdvanceLifecycle(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	// No session yet: the event is not consumed.
	_, handled, err := m.Advance(ctx, textEv(1, 1, "hello"))
	require.NoError(t, err)
	assert.False(t, handled)

	_, err = m.Begin(ctx, ev(1, 1), "echo")
	require.NoError(t, err)

	// Wrong input shape is rejected with the step's reprompt and the
	// cursor stays put.
	out, handled, err := m.Advance(ctx, choiceEv(1, 1, "yes"))
	require.NoError(t, err)
	require.True(t, handled)
	assert.Equal(t, workflow.Rejected, out.Kind)
	assert.Contains(t, out.Messages[0].Text, "words please")

	// Rejected input keeps the session alive on the same step.
	out, handled, err = m.Advance(ctx, textEv(1, 1, "bad"))
	require.NoError(t, err)
	require.True(t, handled)
	assert.Equal(t, workflow.Rejected, out.Kind)

	out, _, err = m.Advance(ctx, textEv(1, 1, "hello"))
	require.NoError(t, err)
	assert.Equal(t, workflow.Continue, out.Kind)

	// A choice the step did not offer is rejected.
	out, _, err = m.Advance(ctx, choiceEv(1, 1, "maybe"))
	require.NoError(t, err)
	assert.Equal(t, workflow.Rejected, out.Kind)

	out, _, err = m.Advance(ctx, choiceEv(1, 1, "yes"))
	require.NoError(t, err)
	assert.Equal(t, workflow.Completed, out.Kind)
	assert.Contains(t, out.Messages[0].Text, "done: hello")

	// Terminal outcome deleted the session.
	_, handled, err = m.Advance(ctx, textEv(1, 1, "again"))
	require.NoError(t, err)
	assert.False(t, handled)
}

// tallyFlow counts how many inputs its session has absorbed; "done" reports
// the total. Used to detect lost or doubled advances under contention.
func tallyFlow() *workflow.Workflow {
	return &workflow.Workflow{
		ID: "tally",
		Begin: func(ctx context.Context, env *workflow.Env, sess *domain.Session, ev domain.Event) workflow.Outcome {
			return workflow.Goto("count", domain.Reply(ev.ChatID, "counting"))
		},
		Steps: map[string]*workflow.Step{
			"count": {
				Accepts: domain.InputText,
				Handle: func(ctx context.Context, env *workflow.Env, sess *domain.Session, ev domain.Event) workflow.Outcome {
					n, _ := sess.Fields["n"].(int)
					if ev.Text == "done" {
						return workflow.Finish(domain.Reply(ev.ChatID, fmt.Sprintf("counted %d", n)))
					}
					sess.Fields["n"] = n + 1
					return workflow.Goto("count", domain.Reply(ev.ChatID, "ok"))
				},
			},
		},
	}
}

func TestConcurrentAdvancesSerialized(t *testing.T) {
	m := session.NewManager(memory.NewSessionStore(), workflow.NewRegistry(tallyFlow()), &workflow.Env{})
	ctx := context.Background()

	pairs := []int64{1, 2}
	for _, id := range pairs {
		_, err := m.Begin(ctx, ev(id, id), "tally")
		require.NoError(t, err)
	}

	const hits = 25
	var handledCount atomic.Int64
	var wg sync.WaitGroup
	for _, id := range pairs {
		for i := 0; i < hits; i++ {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				out, handled, err := m.Advance(ctx, textEv(id, id, "tick"))
				if err != nil || !handled || out.Kind != workflow.Continue {
					t.Errorf("advance actor %d: handled=%v kind=%v err=%v", id, handled, out.Kind, err)
					return
				}
				handledCount.Add(1)
			}(id)
		}
	}
	wg.Wait()
	require.Equal(t, int64(len(pairs)*hits), handledCount.Load())

	// Every tick landed exactly once per session: nothing lost to a
	// concurrent save, nothing applied twice.
	for _, id := range pairs {
		out, handled, err := m.Advance(ctx, textEv(id, id, "done"))
		require.NoError(t, err)
		require.True(t, handled)
		require.Equal(t, workflow.Completed, out.Kind)
		assert.Equal(t, fmt.Sprintf("counted %d", hits), out.Messages[0].Text)
	}
}

func TestCancel(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	existed, err := m.Cancel(ctx, 1, 1)
	require.NoError(t, err)
	assert.False(t, existed)

	_, err = m.Begin(ctx, ev(1, 1), "echo")
	require.NoError(t, err)

	existed, err = m.Cancel(ctx, 1, 1)
	require.NoError(t, err)
	assert.True(t, existed)

	// The pair can start fresh afterwards.
	_, err = m.Begin(ctx, ev(1, 1), "echo")
	assert.NoError(t, err)
}

func TestReapIdle(t *testing.T) {
	m, c := newTestManager(t, session.WithIdleTTL(30*time.Minute))
	ctx := context.Background()

	_, err := m.Begin(ctx, ev(1, 1), "echo")
	require.NoError(t, err)
	_, err = m.Begin(ctx, ev(2, 2), "echo")
	require.NoError(t, err)

	// Session 2 stays fresh, session 1 goes idle.
	c.now = c.now.Add(20 * time.Minute)
	_, _, err = m.Advance(ctx, textEv(2, 2, "still here"))
	require.NoError(t, err)

	c.now = c.now.Add(15 * time.Minute)
	reaped, err := m.ReapIdle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	_, handled, err := m.Advance(ctx, textEv(1, 1, "hello"))
	require.NoError(t, err)
	assert.False(t, handled, "idle session should be gone")

	_, handled, err = m.Advance(ctx, choiceEv(2, 2, "yes"))
	require.NoError(t, err)
	assert.True(t, handled, "fresh session should survive")
}

func TestActiveSessionGauge(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_active_sessions"})
	m, _ := newTestManager(t, session.WithActiveGauge(gauge))
	ctx := context.Background()

	_, err := m.Begin(ctx, ev(1, 1), "echo")
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(gauge))

	_, _, err = m.Advance(ctx, textEv(1, 1, "hello"))
	require.NoError(t, err)
	_, _, err = m.Advance(ctx, choiceEv(1, 1, "no"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, testutil.ToFloat64(gauge))
}
