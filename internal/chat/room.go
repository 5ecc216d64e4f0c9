// Package chat implements direct messaging between marketplace users: room
// naming, the per-user conversation list and the socket session handlers.
package chat

import (
	"sort"
	"strings"
)

// RoomSeparator joins the two participant ids of a room. User ids are UUIDs
// and never contain it.
const RoomSeparator = "_"

// RoomID returns the room shared by users a and b. The result does not
// depend on argument order, so both sides compute the same room.
func RoomID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, RoomSeparator)
}

// Participants splits a room id into its two user ids. ok is false when
// roomID is not of the form produced by RoomID.
func Participants(roomID string) (a, b string, ok bool) {
	parts := strings.Split(roomID, RoomSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// IsParticipant reports whether userID is one of the users encoded in roomID.
func IsParticipant(roomID, userID string) bool {
	a, b, ok := Participants(roomID)
	if !ok || userID == "" {
		return false
	}
	return userID == a || userID == b
}
