package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/api/middleware"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/chat"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/models"
)

// ConversationResponse is one inbox entry.
type ConversationResponse struct {
	RoomID      string           `json:"roomId"`
	LastMessage models.Message   `json:"lastMessage"`
	OtherUser   *models.Identity `json:"otherUser"`
}

// HistoryResponse is a room's message history.
type HistoryResponse struct {
	RoomID   string           `json:"roomId"`
	Messages []models.Message `json:"messages"`
}

// RoomResponse names the room shared with another user.
type RoomResponse struct {
	RoomID string `json:"roomId"`
}

// ListConversations returns the authenticated user's inbox.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	convos, err := h.convos.ListForUser(r.Context(), userID)
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	resp := make([]ConversationResponse, 0, len(convos))
	for _, c := range convos {
		resp = append(resp, ConversationResponse{
			RoomID:      c.RoomID,
			LastMessage: c.LastMessage,
			OtherUser:   c.OtherUser,
		})
	}
	h.JSON(w, http.StatusOK, resp)
}

// GetRoomMessages returns a room's history, oldest first.
func (h *Handler) GetRoomMessages(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if roomID == "" {
		h.Error(w, http.StatusBadRequest, "room id is required")
		return
	}

	if h.strictRooms && !chat.IsParticipant(roomID, middleware.GetUserIDFromContext(r.Context())) {
		h.Error(w, http.StatusForbidden, "not a participant of this room")
		return
	}

	msgs, err := h.convos.History(r.Context(), roomID)
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	h.JSON(w, http.StatusOK, HistoryResponse{RoomID: roomID, Messages: msgs})
}

// RoomWith returns the room id shared by the caller and another user.
func (h *Handler) RoomWith(w http.ResponseWriter, r *http.Request) {
	other := chi.URLParam(r, "userId")
	if other == "" {
		h.Error(w, http.StatusBadRequest, "user id is required")
		return
	}

	userID := middleware.GetUserIDFromContext(r.Context())
	h.JSON(w, http.StatusOK, RoomResponse{RoomID: chat.RoomID(userID, other)})
}
