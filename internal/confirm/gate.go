// Package confirm gates destructive operations behind a single outstanding
// yes/cancel prompt.
package confirm

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Decision is the outcome of a confirmation request.
type Decision int

const (
	Cancelled Decision = iota
	Confirmed
)

func (d Decision) String() string {
	if d == Confirmed {
		return "confirmed"
	}
	return "cancelled"
}

var (
	// ErrPending is returned when a request is made while another one is
	// still waiting for a decision.
	ErrPending   = errors.New("confirmation already pending")
	ErrNoPending = errors.New("no confirmation pending")
	ErrStale     = errors.New("confirmation id does not match pending request")
)

// Prompt is the question currently shown to the user.
type Prompt struct {
	ID      uuid.UUID `json:"id"`
	Message string    `json:"message"`
}

// Prompter shows and hides the confirmation message. Dismiss only hides the
// prompt with the given id; a newer prompt already on screen stays.
type Prompter interface {
	ShowConfirmation(p Prompt)
	DismissConfirmation(id uuid.UUID)
}

type request struct {
	prompt   Prompt
	decision chan Decision
}

// Gate is a single-slot confirmation primitive. Begin reserves the slot and
// shows the prompt; the ticket's Wait blocks until Resolve is called with the
// matching prompt id, or until ctx is done.
type Gate struct {
	prompter Prompter
	log      *slog.Logger

	mu      sync.Mutex
	pending *request
}

// NewGate returns an idle gate that displays prompts through p.
func NewGate(p Prompter, log *slog.Logger) *Gate {
	return &Gate{prompter: p, log: log}
}

// Ticket is a reserved confirmation slot. Its prompt is already showing;
// Wait blocks for the decision and must be called exactly once.
type Ticket struct {
	g   *Gate
	req *request
}

// Prompt returns the question the ticket is waiting on.
func (t *Ticket) Prompt() Prompt { return t.req.prompt }

// Begin reserves the gate and shows message. It fails with ErrPending while
// another ticket is unresolved.
func (g *Gate) Begin(message string) (*Ticket, error) {
	g.mu.Lock()
	if g.pending != nil {
		g.mu.Unlock()
		return nil, ErrPending
	}
	req := &request{
		prompt:   Prompt{ID: uuid.New(), Message: message},
		decision: make(chan Decision, 1),
	}
	g.pending = req
	g.mu.Unlock()

	g.log.Debug("confirmation requested", "id", req.prompt.ID, "message", message)
	g.prompter.ShowConfirmation(req.prompt)
	return &Ticket{g: g, req: req}, nil
}

// Wait blocks until the ticket is resolved. A context that ends before a
// decision arrives resolves it as Cancelled.
func (t *Ticket) Wait(ctx context.Context) Decision {
	g, req := t.g, t.req
	var d Decision
	select {
	case d = <-req.decision:
	case <-ctx.Done():
		g.mu.Lock()
		if g.pending == req {
			g.pending = nil
			d = Cancelled
		} else {
			// Resolve won the race; its decision is already buffered.
			d = <-req.decision
		}
		g.mu.Unlock()
	}

	g.prompter.DismissConfirmation(req.prompt.ID)
	g.log.Debug("confirmation resolved", "id", req.prompt.ID, "decision", d)
	return d
}

// Request shows message and waits for a decision.
func (g *Gate) Request(ctx context.Context, message string) (Decision, error) {
	t, err := g.Begin(message)
	if err != nil {
		return Cancelled, err
	}
	return t.Wait(ctx), nil
}

// Resolve delivers d to the pending request with the given id. A request is
// resolved at most once.
func (g *Gate) Resolve(id uuid.UUID, d Decision) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return ErrNoPending
	}
	if g.pending.prompt.ID != id {
		return ErrStale
	}
	g.pending.decision <- d
	g.pending = nil
	return nil
}

// Pending returns the prompt awaiting a decision, if any.
func (g *Gate) Pending() (Prompt, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return Prompt{}, false
	}
	return g.pending.prompt, true
}
