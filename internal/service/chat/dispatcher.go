package chat

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/foodloop/assistant/internal/model/chat"
)

// Fixed texts shown by the widget.
const (
	GreetingText = "Hello! 👋 How can I help you today?"
	FallbackText = "🤖 Sorry, I didn't get that."
	FailureText  = "⚠️ Failed to reach assistant."
)

// Detector resolves a user utterance into the agent's reply text.
type Detector interface {
	DetectIntent(ctx context.Context, sessionID, text string) (string, error)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(ctx context.Context, sessionID, text string) (string, error)

// DetectIntent calls f.
func (f DetectorFunc) DetectIntent(ctx context.Context, sessionID, text string) (string, error) {
	return f(ctx, sessionID, text)
}

// SessionResolver returns the conversation session identifier.
type SessionResolver interface {
	GetOrCreateSessionID(ctx context.Context) (string, error)
}

// Outcome describes one accepted send.
type Outcome struct {
	Request int64        `json:"request"`
	User    chat.Message `json:"user"`
	Reply   chat.Message `json:"reply"`
	// Err is the failure that produced the FailureText reply, if any.
	Err error `json:"-"`
}

// Answered reports whether the agent produced the reply.
func (o Outcome) Answered() bool {
	return o.Err == nil
}

// Dispatcher sends user utterances to the agent and records both sides in
// the log.
type Dispatcher struct {
	log      *Log
	sessions SessionResolver
	detector Detector
	seq      atomic.Int64
}

// NewDispatcher wires a Dispatcher.
func NewDispatcher(l *Log, sessions SessionResolver, detector Detector) *Dispatcher {
	return &Dispatcher{log: l, sessions: sessions, detector: detector}
}

// SendMessage dispatches text. Blank text is ignored and reported with
// ok == false. Otherwise exactly one user and one assistant message are
// appended, whatever happens on the way.
func (d *Dispatcher) SendMessage(ctx context.Context, text string) (out Outcome, ok bool) {
	if strings.TrimSpace(text) == "" {
		return Outcome{}, false
	}

	req := d.seq.Add(1)
	out.Request = req
	out.User = d.log.Append(chat.Message{Origin: chat.OriginUser, Text: text, Request: req})

	reply, err := d.exchange(ctx, text)
	if err != nil {
		log.Error().Err(err).Int64("request", req).Msg("assistant dispatch failed")
		out.Err = err
		reply = FailureText
	} else if reply == "" {
		reply = FallbackText
	}

	out.Reply = d.log.Append(chat.Message{Origin: chat.OriginAssistant, Text: reply, Request: req})
	return out, true
}

func (d *Dispatcher) exchange(ctx context.Context, text string) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector panicked: %v", r)
		}
	}()

	if d.sessions == nil || d.detector == nil {
		return "", errors.New("dispatcher is not configured")
	}

	sessionID, err := d.sessions.GetOrCreateSessionID(ctx)
	if err != nil {
		return "", errors.Wrap(err, "resolve session")
	}

	reply, err = d.detector.DetectIntent(ctx, sessionID, text)
	if err != nil {
		return "", err
	}
	log.Debug().Str("session_id", sessionID).Int("reply_len", len(reply)).Msg("intent detected")
	return reply, nil
}
