package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendPayloadAcceptsLegacyFields(t *testing.T) {
	var p SendPayload
	err := json.Unmarshal([]byte(`{
		"room": "u1_u2",
		"author": "Amina",
		"authorId": "u1",
		"recipientId": "u2",
		"message": "Is the maize dry?",
		"time": "09:41"
	}`), &p)
	require.NoError(t, err)

	assert.Equal(t, SendPayload{
		RoomID:          "u1_u2",
		SenderID:        "u1",
		RecipientID:     "u2",
		Text:            "Is the maize dry?",
		SenderName:      "Amina",
		ClientTimestamp: "09:41",
	}, p)
}

func TestSendPayloadPrefersCanonicalFields(t *testing.T) {
	var p SendPayload
	err := json.Unmarshal([]byte(`{"roomId":"a_b","room":"x_y","text":"new","message":"old","senderId":"a","authorId":"z"}`), &p)
	require.NoError(t, err)

	assert.Equal(t, "a_b", p.RoomID)
	assert.Equal(t, "new", p.Text)
	assert.Equal(t, "a", p.SenderID)
	assert.Empty(t, p.RecipientID)
}

func TestReceivePayloadCarriesBothNames(t *testing.T) {
	out := newReceivePayload(SendPayload{RoomID: "a_b", SenderID: "a", SenderName: "Amina", Text: "hi", ClientTimestamp: "10:00"}, nil)

	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"roomId": "a_b",
		"senderId": "a",
		"senderName": "Amina",
		"text": "hi",
		"clientTimestamp": "10:00",
		"room": "a_b",
		"message": "hi",
		"author": "Amina",
		"time": "10:00"
	}`, string(data))
}
