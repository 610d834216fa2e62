package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/haleybot/haley/internal/logging"
	"github.com/haleybot/haley/pkg/domain"
	"github.com/haleybot/haley/pkg/ports"
	"github.com/haleybot/haley/pkg/workflow"
)

// DefaultIdleTTL is how long a session may sit untouched before the reaper
// discards it.
const DefaultIdleTTL = 30 * time.Minute

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.SessionStore
	flows *workflow.Registry
	env   *workflow.Env

	mu    sync.Mutex
	locks map[string]*lockEntry

	idleTTL time.Duration
	logger  *slog.Logger
	gauge   prometheus.Gauge
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithIdleTTL overrides how long idle sessions live.
func WithIdleTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.idleTTL = ttl
		}
	}
}

// WithActiveGauge tracks the number of live sessions.
func WithActiveGauge(g prometheus.Gauge) Option {
	return func(m *Manager) { m.gauge = g }
}

// NewManager creates a session manager over the given store and workflow
// registry.
func NewManager(store ports.SessionStore, flows *workflow.Registry, env *workflow.Env, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		flows:   flows,
		env:     env,
		locks:   make(map[string]*lockEntry),
		idleTTL: DefaultIdleTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(key) after
// unlocking.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it
// reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// withLock executes fn while holding the lock for the session key.
func (m *Manager) withLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := m.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(key)
	}()
	return fn(ctx)
}

// Begin starts the named workflow for the event's (actor, chat) pair.
// A pair can run at most one session at a time: starting a second returns
// domain.ErrSessionActive. The session persists only when the workflow's
// entry gate passes and asks for the first input.
func (m *Manager) Begin(ctx context.Context, ev domain.Event, workflowID string) (workflow.Outcome, error) {
	key := ev.SessionKey()
	var out workflow.Outcome
	err := m.withLock(ctx, key, func(ctx context.Context) error {
		_, err := m.store.Load(ctx, key)
		if err == nil {
			return domain.ErrSessionActive
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("check session existence: %w", err)
		}

		wf, ok := m.flows.Get(workflowID)
		if !ok {
			return fmt.Errorf("unknown workflow %q", workflowID)
		}

		sess := domain.NewSession(ev.ActorID, ev.ChatID, workflowID, "")
		sess.StartedAt = m.env.Now()
		sess.UpdatedAt = sess.StartedAt
		out = wf.Begin(ctx, m.env, sess, ev)
		if out.Err != nil {
			return nil
		}
		if out.Kind != workflow.Continue {
			return nil
		}

		sess.Step = out.Next
		if err := m.store.Save(ctx, sess); err != nil {
			out = workflow.Outcome{}
			return fmt.Errorf("save session: %w", err)
		}
		m.gaugeInc()
		m.logger.Debug("session started", "key", key, "workflow", workflowID, "step", sess.Step)
		return nil
	})
	return out, err
}

// Advance feeds the event to the session's current step. The second return
// reports whether a session consumed the event; false means no session
// exists for the key and the caller should treat the event as session-less.
//
// Outcome handling: Continue saves the moved cursor, Rejected leaves the
// session exactly as it was (cursor and fields survive so the actor can
// retry), Completed and Aborted delete it. A transient store failure also
// leaves the session untouched.
func (m *Manager) Advance(ctx context.Context, ev domain.Event) (workflow.Outcome, bool, error) {
	key := ev.SessionKey()
	var out workflow.Outcome
	handled := false
	err := m.withLock(ctx, key, func(ctx context.Context) error {
		sess, err := m.store.Load(ctx, key)
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		handled = true

		wf, ok := m.flows.Get(sess.Workflow)
		if !ok {
			// A session for a workflow that no longer exists cannot make
			// progress; drop it.
			m.logger.Warn("dropping session for unknown workflow", "key", key, "workflow", sess.Workflow)
			handled = false
			return m.deleteLocked(ctx, key)
		}
		step, ok := wf.Steps[sess.Step]
		if !ok {
			m.logger.Warn("dropping session at unknown step", "key", key, "workflow", sess.Workflow, "step", sess.Step)
			handled = false
			return m.deleteLocked(ctx, key)
		}

		if rej, ok := rejectShape(step, ev); ok {
			out = rej
			return nil
		}

		out = step.Handle(ctx, m.env, sess, ev)
		if out.Err != nil {
			// Session untouched; the same step can be retried.
			return nil
		}

		switch out.Kind {
		case workflow.Continue:
			if out.Next != "" {
				sess.Step = out.Next
			}
			sess.UpdatedAt = m.env.Now()
			if err := m.store.Save(ctx, sess); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
		case workflow.Completed, workflow.Aborted:
			if err := m.deleteLocked(ctx, key); err != nil {
				return err
			}
		case workflow.Rejected:
			// Keep the stored session as is.
		}
		return nil
	})
	return out, handled, err
}

// rejectShape builds the rejection outcome for an event whose shape does
// not fit the step: wrong input kind, or a choice the step did not offer.
func rejectShape(step *workflow.Step, ev domain.Event) (workflow.Outcome, bool) {
	kind := ev.Kind()
	mismatch := kind != step.Accepts ||
		(step.Accepts == domain.InputChoice && !step.AllowsChoice(ev.Choice))
	if !mismatch {
		return workflow.Outcome{}, false
	}
	text := step.Reprompt
	if text == "" {
		text = "Please answer the question above first, or use /cancel to stop."
	}
	return workflow.Reprompt(domain.Reply(ev.ChatID, text)), true
}

// Cancel discards the session for the (actor, chat) pair, reporting
// whether one existed.
func (m *Manager) Cancel(ctx context.Context, actorID, chatID int64) (bool, error) {
	key := domain.SessionKey(actorID, chatID)
	existed := false
	err := m.withLock(ctx, key, func(ctx context.Context) error {
		_, err := m.store.Load(ctx, key)
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		existed = true
		return m.deleteLocked(ctx, key)
	})
	return existed, err
}

// ReapIdle deletes every session whose UpdatedAt is older than the idle
// TTL and returns how many were dropped.
func (m *Manager) ReapIdle(ctx context.Context) (int, error) {
	keys, err := m.store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}
	cutoff := m.env.Now().Add(-m.idleTTL)
	reaped := 0
	for _, key := range keys {
		err := m.withLock(ctx, key, func(ctx context.Context) error {
			sess, err := m.store.Load(ctx, key)
			if errors.Is(err, domain.ErrSessionNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if sess.UpdatedAt.After(cutoff) {
				return nil
			}
			if err := m.deleteLocked(ctx, key); err != nil {
				return err
			}
			reaped++
			m.logger.Info("reaped idle session", "key", key, "workflow", sess.Workflow, "step", sess.Step)
			return nil
		})
		if err != nil {
			return reaped, err
		}
	}
	return reaped, nil
}

// RunReaper reaps idle sessions on the given interval until the context is
// cancelled.
func (m *Manager) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.ReapIdle(ctx); err != nil {
				m.logger.Error("session reap failed", "err", err)
			}
		}
	}
}

func (m *Manager) deleteLocked(ctx context.Context, key string) error {
	if err := m.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	m.gaugeDec()
	return nil
}

func (m *Manager) gaugeInc() {
	if m.gauge != nil {
		m.gauge.Inc()
	}
}

func (m *Manager) gaugeDec() {
	if m.gauge != nil {
		m.gauge.Dec()
	}
}
