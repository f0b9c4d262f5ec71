package ui

import (
	"sync"

	"github.com/google/uuid"
	"github.com/nikolayrodzhev/mapty/internal/confirm"
	"github.com/nikolayrodzhev/mapty/internal/models"
)

// MessageKind distinguishes plain errors from confirmation prompts.
type MessageKind string

const (
	KindError        MessageKind = "error"
	KindConfirmation MessageKind = "confirmation"
)

// Message is the overlay currently on screen. Confirmation messages carry
// the prompt id that the yes/cancel buttons resolve.
type Message struct {
	Kind     MessageKind `json:"kind"`
	Text     string      `json:"text"`
	PromptID *uuid.UUID  `json:"prompt_id,omitempty"`
}

// State is a snapshot of the board.
type State struct {
	Items   []ListItem `json:"items"`
	Message *Message   `json:"message,omitempty"`
}

// Board holds the rendered workout list, newest first, and at most one
// overlay message. It is safe for concurrent use.
type Board struct {
	mu      sync.Mutex
	items   []ListItem
	message *Message
}

func NewBoard() *Board {
	return &Board{}
}

// ShowError displays text with no confirmation buttons.
func (b *Board) ShowError(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.message = &Message{Kind: KindError, Text: text}
}

// ShowConfirmation displays a yes/cancel prompt.
func (b *Board) ShowConfirmation(p confirm.Prompt) {
	id := p.ID
	b.mu.Lock()
	defer b.mu.Unlock()
	b.message = &Message{Kind: KindConfirmation, Text: p.Message, PromptID: &id}
}

// DismissConfirmation hides the prompt with the given id if it is still shown.
func (b *Board) DismissConfirmation(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.message != nil && b.message.PromptID != nil && *b.message.PromptID == id {
		b.message = nil
	}
}

// CloseMessage hides whatever overlay is shown.
func (b *Board) CloseMessage() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.message = nil
}

// RenderWorkout puts w at the top of the list.
func (b *Board) RenderWorkout(w models.Workout) {
	item := Render(w)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append([]ListItem{item}, b.items...)
}

// RemoveWorkout drops the list item for id.
func (b *Board) RemoveWorkout(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, it := range b.items {
		if it.ID == id {
			b.items = append(b.items[:i], b.items[i+1:]...)
			return
		}
	}
}

// ClearWorkouts empties the list.
func (b *Board) ClearWorkouts() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = nil
}

// State returns a copy of the board.
func (b *Board) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := State{Items: append([]ListItem{}, b.items...)}
	if b.message != nil {
		m := *b.message
		s.Message = &m
	}
	return s
}
