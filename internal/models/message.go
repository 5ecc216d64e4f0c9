package models

import "time"

// Message is one persisted chat utterance.
type Message struct {
	ID          string    `json:"id"`  // ULID
	Seq         int64     `json:"seq"` // store-assigned, strictly increasing
	RoomID      string    `json:"roomId"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	Text        string    `json:"text"`
	SentAt      time.Time `json:"sentAt"`
	Read        bool      `json:"read"`
}

// Before reports whether m sorts before o in room order: SentAt first,
// then store sequence.
func (m *Message) Before(o *Message) bool {
	if !m.SentAt.Equal(o.SentAt) {
		return m.SentAt.Before(o.SentAt)
	}
	return m.Seq < o.Seq
}

// Counterpart returns the participant of m that is not userID.
func (m *Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.RecipientID
	}
	return m.SenderID
}

// Conversation is a per-user projection over a room's history. It is never
// stored.
type Conversation struct {
	RoomID      string    `json:"roomId"`
	LastMessage Message   `json:"lastMessage"`
	OtherUser   *Identity `json:"otherUser"`
}
