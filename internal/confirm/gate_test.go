package confirm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type recordingPrompter struct {
	mu        sync.Mutex
	shown     chan Prompt
	dismissed []uuid.UUID
}

func newRecordingPrompter() *recordingPrompter {
	return &recordingPrompter{shown: make(chan Prompt, 4)}
}

func (p *recordingPrompter) ShowConfirmation(pr Prompt) { p.shown <- pr }

func (p *recordingPrompter) DismissConfirmation(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dismissed = append(p.dismissed, id)
}

func (p *recordingPrompter) dismissedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dismissed)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type result struct {
	d   Decision
	err error
}

func startRequest(g *Gate, ctx context.Context, msg string) <-chan result {
	out := make(chan result, 1)
	go func() {
		d, err := g.Request(ctx, msg)
		out <- result{d, err}
	}()
	return out
}

func waitPrompt(t *testing.T, p *recordingPrompter) Prompt {
	t.Helper()
	select {
	case pr := <-p.shown:
		return pr
	case <-time.After(2 * time.Second):
		t.Fatal("prompt was never shown")
	}
	return Prompt{}
}

func waitResult(t *testing.T, ch <-chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("request never resolved")
	}
	return result{}
}

// TestConfirm verifies a yes decision reaches the waiting caller.
func TestConfirm(t *testing.T) {
	p := newRecordingPrompter()
	g := NewGate(p, discardLogger())

	res := startRequest(g, context.Background(), "Are you sure that you want to delete this workout?")
	pr := waitPrompt(t, p)
	if pr.Message != "Are you sure that you want to delete this workout?" {
		t.Errorf("message = %q", pr.Message)
	}
	if got, ok := g.Pending(); !ok || got.ID != pr.ID {
		t.Errorf("Pending() = %v, %v; want %v", got, ok, pr.ID)
	}
	if err := g.Resolve(pr.ID, Confirmed); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	r := waitResult(t, res)
	if r.err != nil || r.d != Confirmed {
		t.Errorf("result = %v, %v; want confirmed", r.d, r.err)
	}
	if _, ok := g.Pending(); ok {
		t.Error("gate still pending after resolve")
	}
	if p.dismissedCount() != 1 {
		t.Errorf("dismissed %d prompts, want 1", p.dismissedCount())
	}
}

// TestCancel verifies a cancel decision resolves as Cancelled.
func TestCancel(t *testing.T) {
	p := newRecordingPrompter()
	g := NewGate(p, discardLogger())

	res := startRequest(g, context.Background(), "delete?")
	pr := waitPrompt(t, p)
	if err := g.Resolve(pr.ID, Cancelled); err != nil {
		t.Fatal(err)
	}
	if r := waitResult(t, res); r.d != Cancelled || r.err != nil {
		t.Errorf("result = %v, %v; want cancelled", r.d, r.err)
	}
}

// TestSecondRequestRejected verifies only one request may be outstanding.
func TestSecondRequestRejected(t *testing.T) {
	p := newRecordingPrompter()
	g := NewGate(p, discardLogger())

	first := startRequest(g, context.Background(), "first")
	pr := waitPrompt(t, p)

	if _, err := g.Request(context.Background(), "second"); !errors.Is(err, ErrPending) {
		t.Fatalf("second Request err = %v, want ErrPending", err)
	}
	if got, _ := g.Pending(); got.Message != "first" {
		t.Errorf("pending message = %q, want first", got.Message)
	}

	g.Resolve(pr.ID, Confirmed)
	waitResult(t, first)

	// Gate is idle again and accepts a new request.
	second := startRequest(g, context.Background(), "second")
	pr2 := waitPrompt(t, p)
	g.Resolve(pr2.ID, Cancelled)
	if r := waitResult(t, second); r.d != Cancelled {
		t.Errorf("second decision = %v, want cancelled", r.d)
	}
}

// TestResolveErrors covers resolving an idle gate and a stale id.
func TestResolveErrors(t *testing.T) {
	p := newRecordingPrompter()
	g := NewGate(p, discardLogger())

	if err := g.Resolve(uuid.New(), Confirmed); !errors.Is(err, ErrNoPending) {
		t.Errorf("idle Resolve err = %v, want ErrNoPending", err)
	}

	res := startRequest(g, context.Background(), "delete?")
	pr := waitPrompt(t, p)
	if err := g.Resolve(uuid.New(), Confirmed); !errors.Is(err, ErrStale) {
		t.Errorf("stale Resolve err = %v, want ErrStale", err)
	}
	if err := g.Resolve(pr.ID, Confirmed); err != nil {
		t.Fatal(err)
	}
	if err := g.Resolve(pr.ID, Cancelled); !errors.Is(err, ErrNoPending) {
		t.Errorf("double Resolve err = %v, want ErrNoPending", err)
	}
	if r := waitResult(t, res); r.d != Confirmed {
		t.Errorf("decision = %v, want confirmed", r.d)
	}
}

// TestContextCancel verifies an abandoned request resolves as Cancelled and
// frees the slot.
func TestContextCancel(t *testing.T) {
	p := newRecordingPrompter()
	g := NewGate(p, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	res := startRequest(g, ctx, "delete?")
	waitPrompt(t, p)
	cancel()

	if r := waitResult(t, res); r.d != Cancelled || r.err != nil {
		t.Errorf("result = %v, %v; want cancelled", r.d, r.err)
	}
	if _, ok := g.Pending(); ok {
		t.Error("gate still pending after context cancel")
	}
}

// TestBeginReservesSynchronously verifies the slot is taken and the prompt
// shown before Begin returns, so a second Begin fails immediately.
func TestBeginReservesSynchronously(t *testing.T) {
	p := newRecordingPrompter()
	g := NewGate(p, discardLogger())

	tk, err := g.Begin("delete?")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if got, ok := g.Pending(); !ok || got.ID != tk.Prompt().ID {
		t.Fatalf("Pending() = %v, %v; want %v", got, ok, tk.Prompt().ID)
	}
	if len(p.shown) != 1 {
		t.Errorf("shown %d prompts before Wait, want 1", len(p.shown))
	}
	if _, err := g.Begin("again?"); !errors.Is(err, ErrPending) {
		t.Fatalf("second Begin err = %v, want ErrPending", err)
	}

	if err := g.Resolve(tk.Prompt().ID, Confirmed); err != nil {
		t.Fatal(err)
	}
	if d := tk.Wait(context.Background()); d != Confirmed {
		t.Errorf("Wait = %v, want confirmed", d)
	}
	if p.dismissedCount() != 1 {
		t.Errorf("dismissed %d prompts, want 1", p.dismissedCount())
	}
}
