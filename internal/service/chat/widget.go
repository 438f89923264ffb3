package chat

import (
	"context"
	"sync"
)

// Widget is the state behind one chat bubble: visibility, the pending
// draft and the transcript.
type Widget struct {
	mu    sync.Mutex
	open  bool
	draft string

	log        *Log
	dispatcher *Dispatcher
}

// NewWidget returns a closed widget over l and d.
func NewWidget(l *Log, d *Dispatcher) *Widget {
	return &Widget{log: l, dispatcher: d}
}

// Toggle flips visibility and returns the new state.
func (w *Widget) Toggle() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.open = !w.open
	return w.open
}

// IsOpen reports whether the chat panel is shown.
func (w *Widget) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

// SetDraft replaces the text in the input field.
func (w *Widget) SetDraft(text string) {
	w.mu.Lock()
	w.draft = text
	w.mu.Unlock()
}

// Draft returns the text in the input field.
func (w *Widget) Draft() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

// Log exposes the transcript.
func (w *Widget) Log() *Log {
	return w.log
}

// Submit sends the current draft. The draft is cleared once the agent
// answered and kept when the dispatch failed.
func (w *Widget) Submit(ctx context.Context) (Outcome, bool) {
	out, ok := w.dispatcher.SendMessage(ctx, w.Draft())
	if ok && out.Answered() {
		w.SetDraft("")
	}
	return out, ok
}

// Send puts text in the input field and submits it.
func (w *Widget) Send(ctx context.Context, text string) (Outcome, bool) {
	w.SetDraft(text)
	return w.Submit(ctx)
}
