package chat

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/foodloop/assistant/internal/model/chat"
)

// Log is the append-only, insertion-ordered transcript of one widget.
type Log struct {
	mu       sync.RWMutex
	messages []chat.Message
	subs     map[int]chan chat.Message
	nextSub  int
}

// NewLog returns a Log holding initial.
func NewLog(initial ...chat.Message) *Log {
	l := &Log{
		messages: make([]chat.Message, 0, 16),
		subs:     make(map[int]chan chat.Message),
	}
	for _, m := range initial {
		l.Append(m)
	}
	return l
}

// Append stores m at the end of the log and notifies subscribers. The stored
// copy is returned.
func (l *Log) Append(m chat.Message) chat.Message {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, m)
	for id, ch := range l.subs {
		select {
		case ch <- m:
		default:
			log.Warn().Int("subscriber", id).Msg("transcript subscriber is full, dropping message")
		}
	}
	return m
}

// Messages returns a copy of the transcript.
func (l *Log) Messages() []chat.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	copied := make([]chat.Message, len(l.messages))
	copy(copied, l.messages)
	return copied
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Subscribe returns the current transcript and a channel receiving every
// message appended afterwards. cancel must be called to release it.
func (l *Log) Subscribe(buffer int) (snapshot []chat.Message, updates <-chan chat.Message, cancel func()) {
	ch := make(chan chat.Message, buffer)

	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	snapshot = make([]chat.Message, len(l.messages))
	copy(snapshot, l.messages)
	l.mu.Unlock()

	var once sync.Once
	cancel = func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
			close(ch)
		})
	}
	return snapshot, ch, cancel
}
