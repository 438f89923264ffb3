package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/foodloop/assistant/internal/model/chat"
	"github.com/foodloop/assistant/internal/service/session"
	"github.com/foodloop/assistant/internal/storage"
)

var (
	ErrProfileRequired = errors.New("profile id is required")
	ErrWidgetNotFound  = errors.New("widget not found")
)

// Service keeps one widget per client profile.
type Service struct {
	mu      sync.RWMutex
	widgets map[string]*Widget

	store    storage.Store
	detector Detector
}

// NewService builds widgets whose session identifiers live in store and
// whose messages go to detector.
func NewService(store storage.Store, detector Detector) *Service {
	return &Service{
		widgets:  make(map[string]*Widget),
		store:    store,
		detector: detector,
	}
}

// Widget returns the profile's widget, creating it on first use.
func (s *Service) Widget(_ context.Context, profileID string) (*Widget, error) {
	if profileID == "" {
		return nil, ErrProfileRequired
	}

	s.mu.RLock()
	w, ok := s.widgets[profileID]
	s.mu.RUnlock()
	if ok {
		return w, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.widgets[profileID]; ok {
		return w, nil
	}

	l := NewLog(chat.Message{Origin: chat.OriginAssistant, Text: GreetingText})
	resolver := session.NewResolver(storage.Scope(s.store, profileID))
	w = NewWidget(l, NewDispatcher(l, resolver, s.detector))
	s.widgets[profileID] = w

	log.Debug().Str("profile_id", profileID).Msg("widget created")
	return w, nil
}

// Lookup returns an existing widget.
func (s *Service) Lookup(profileID string) (*Widget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.widgets[profileID]
	if !ok {
		return nil, ErrWidgetNotFound
	}
	return w, nil
}
