package chat

import (
	"encoding/json"
	"time"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/models"
)

// Socket event names.
const (
	EventJoinRoom       = "join_room"
	EventSendMessage    = "send_message"
	EventReceiveMessage = "receive_message"
	EventError          = "chat_error"
)

// SendPayload is the body of a send_message event. The web client's older
// field names (room, authorId, message, author, time) are accepted too.
type SendPayload struct {
	RoomID          string `json:"roomId"`
	SenderID        string `json:"senderId"`
	RecipientID     string `json:"recipientId"`
	Text            string `json:"text"`
	SenderName      string `json:"senderName,omitempty"`
	ClientTimestamp string `json:"clientTimestamp,omitempty"`
}

func (p *SendPayload) UnmarshalJSON(data []byte) error {
	var raw struct {
		RoomID          string `json:"roomId"`
		Room            string `json:"room"`
		SenderID        string `json:"senderId"`
		AuthorID        string `json:"authorId"`
		RecipientID     string `json:"recipientId"`
		Text            string `json:"text"`
		Message         string `json:"message"`
		SenderName      string `json:"senderName"`
		Author          string `json:"author"`
		ClientTimestamp string `json:"clientTimestamp"`
		Time            string `json:"time"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = SendPayload{
		RoomID:          firstNonEmpty(raw.RoomID, raw.Room),
		SenderID:        firstNonEmpty(raw.SenderID, raw.AuthorID),
		RecipientID:     raw.RecipientID,
		Text:            firstNonEmpty(raw.Text, raw.Message),
		SenderName:      firstNonEmpty(raw.SenderName, raw.Author),
		ClientTimestamp: firstNonEmpty(raw.ClientTimestamp, raw.Time),
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ReceivePayload is pushed to the other members of a room. ID and SentAt
// are only set when the message was persisted before broadcast.
type ReceivePayload struct {
	RoomID          string     `json:"roomId"`
	SenderID        string     `json:"senderId"`
	SenderName      string     `json:"senderName,omitempty"`
	Text            string     `json:"text"`
	ClientTimestamp string     `json:"clientTimestamp,omitempty"`
	ID              string     `json:"id,omitempty"`
	SentAt          *time.Time `json:"sentAt,omitempty"`

	// Field names read by the original web client.
	Room    string `json:"room"`
	Message string `json:"message"`
	Author  string `json:"author,omitempty"`
	Time    string `json:"time,omitempty"`
}

func newReceivePayload(p SendPayload, persisted *models.Message) ReceivePayload {
	out := ReceivePayload{
		RoomID:          p.RoomID,
		SenderID:        p.SenderID,
		SenderName:      p.SenderName,
		Text:            p.Text,
		ClientTimestamp: p.ClientTimestamp,
		Room:            p.RoomID,
		Message:         p.Text,
		Author:          p.SenderName,
		Time:            p.ClientTimestamp,
	}
	if persisted != nil {
		sentAt := persisted.SentAt
		out.ID = persisted.ID
		out.SentAt = &sentAt
	}
	return out
}

// Ack answers a send_message when persist-first mode is on.
type Ack struct {
	OK      bool            `json:"ok"`
	Message *models.Message `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ErrorEvent is emitted to a connection whose request was rejected.
type ErrorEvent struct {
	Event string `json:"event"`
	Error string `json:"error"`
}
