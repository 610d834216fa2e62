// Package workflow defines the multi-step conversational procedures as
// declarative step tables. Each workflow is an ordered set of named steps;
// a step declares the input shape it accepts, validates it, applies side
// effects against the entity store, and names the next step. Branching on
// button choices replaces the next-step name, nothing else.
package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/haleybot/haley/internal/logging"
	"github.com/haleybot/haley/pkg/capacity"
	"github.com/haleybot/haley/pkg/domain"
	"github.com/haleybot/haley/pkg/notify"
	"github.com/haleybot/haley/pkg/ports"
)

// Env carries the collaborators step handlers commit against. Constructed
// once at wiring time and shared by every session.
type Env struct {
	Store  ports.EntityStore
	Ledger *capacity.Ledger
	Relay  *notify.Relay
	Roles  ports.RoleResolver
	Logger *slog.Logger

	// Clock defaults to time.Now; tests pin it.
	Clock func() time.Time
}

// Now returns the environment's current time.
func (e *Env) Now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

func (e *Env) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return logging.NewNop()
}

// ResultKind classifies what a step did with the input.
type ResultKind int

const (
	// Continue advances the cursor to Outcome.Next.
	Continue ResultKind = iota
	// Rejected keeps the cursor and the collected fields; the actor
	// retries the same step.
	Rejected
	// Completed ends the workflow after a successful commit.
	Completed
	// Aborted ends the workflow without committing.
	Aborted
)

// Outcome is the result of running a step handler (or a workflow's Begin).
type Outcome struct {
	Kind     ResultKind
	Next     string
	Messages []domain.Message

	// Err marks a transient failure (store unreachable). The session is
	// preserved so the same step can be retried.
	Err error
}

// Goto advances to the named step with the given prompts.
func Goto(step string, msgs ...domain.Message) Outcome {
	return Outcome{Kind: Continue, Next: step, Messages: msgs}
}

// Reprompt rejects the input and keeps the cursor where it is.
func Reprompt(msgs ...domain.Message) Outcome {
	return Outcome{Kind: Rejected, Messages: msgs}
}

// Finish completes the workflow.
func Finish(msgs ...domain.Message) Outcome {
	return Outcome{Kind: Completed, Messages: msgs}
}

// Cancelled aborts the workflow without committing anything.
func Cancelled(msgs ...domain.Message) Outcome {
	return Outcome{Kind: Aborted, Messages: msgs}
}

// Fail keeps the session for retry and reports the transient error.
func Fail(err error, msgs ...domain.Message) Outcome {
	return Outcome{Kind: Rejected, Messages: msgs, Err: err}
}

// Handler runs one step against the environment and the session.
type Handler func(ctx context.Context, env *Env, sess *domain.Session, ev domain.Event) Outcome

// Step is one entry in a workflow's table.
type Step struct {
	// Accepts is the input shape this step consumes. Events of any other
	// shape are rejected without invoking the handler.
	Accepts domain.InputKind

	// Choices are the valid button payloads when Accepts is InputChoice.
	Choices []string

	// Reprompt is shown when the input shape does not match.
	Reprompt string

	Handle Handler
}

// AllowsChoice reports whether the payload is one of the step's choices.
func (s *Step) AllowsChoice(choice string) bool {
	for _, c := range s.Choices {
		if c == choice {
			return true
		}
	}
	return false
}

// Workflow is a named, ordered table of steps. Begin gates entry (chat
// kind, role, registration) and emits the first prompt; its Outcome.Next is
// the entry step.
type Workflow struct {
	ID    string
	Begin Handler
	Steps map[string]*Step
}

// Registry holds the workflow definitions by id.
type Registry struct {
	flows map[string]*Workflow
}

// NewRegistry builds a registry from the given workflows.
func NewRegistry(flows ...*Workflow) *Registry {
	r := &Registry{flows: make(map[string]*Workflow, len(flows))}
	for _, wf := range flows {
		r.flows[wf.ID] = wf
	}
	return r
}

// Get returns the workflow for an id.
func (r *Registry) Get(id string) (*Workflow, bool) {
	wf, ok := r.flows[id]
	return wf, ok
}

// DefaultRegistry registers the seven built-in workflows.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Register(),
		AddListing(),
		ListListings(),
		Apply(),
		Triage(),
		Withdraw(),
		Complete(),
	)
}
