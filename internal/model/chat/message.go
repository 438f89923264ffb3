package chat

import "time"

// Origin identifies who authored a message.
type Origin string

const (
	OriginUser      Origin = "user"
	OriginAssistant Origin = "assistant"
)

// Message is a single immutable entry of the widget transcript.
type Message struct {
	Origin    Origin    `json:"origin"`
	Text      string    `json:"text"`
	Request   int64     `json:"request"`
	CreatedAt time.Time `json:"createdAt"`
}
