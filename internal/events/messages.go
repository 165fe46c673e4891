package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message kinds routed over the single mutation-event queue.
const (
	KindEntryChanged = "entryChanged"
	KindBadgeAwarded = "badgeAwarded"
)

// Message is a lightweight mutation notification. Consumers fetch the full
// state from storage; the message carries only identifiers.
type Message struct {
	Kind       string    `json:"kind"`
	EntryID    string    `json:"entryId,omitempty"`
	CategoryID string    `json:"categoryId,omitempty"`
	Day        string    `json:"day,omitempty"`
	AwardKey   string    `json:"awardKey,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewEntryChangedMessage builds a message flagging that an entry on the given
// day was created or replaced.
func NewEntryChangedMessage(entryID, categoryID uuid.UUID, day string) *Message {
	return &Message{
		Kind:       KindEntryChanged,
		EntryID:    entryID.String(),
		CategoryID: categoryID.String(),
		Day:        day,
		Timestamp:  time.Now(),
	}
}

// NewBadgeAwardedMessage builds a message flagging a freshly granted award.
func NewBadgeAwardedMessage(awardKey string) *Message {
	return &Message{
		Kind:      KindBadgeAwarded,
		AwardKey:  awardKey,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func MessageFromJSON(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
