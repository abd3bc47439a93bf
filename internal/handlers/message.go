package handlers

import (
	"errors"
	"net/http"

	"chat-backend/internal/middleware"
	"chat-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PinnedChatsResponse is returned by the pin and unpin endpoints
type PinnedChatsResponse struct {
	PinnedChats []string `json:"pinnedChats"`
}

// MessageHandler handles chat HTTP requests
type MessageHandler struct {
	messageService *services.MessageService
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
	}
}

// GetUsers handles GET /api/messages/users
func (h *MessageHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	users, err := h.messageService.ListContacts(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err, withUser(userID))
		return
	}

	respondJSON(w, http.StatusOK, users)
}

// GetMessages handles GET /api/messages/{id}
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	peerID := chi.URLParam(r, "id")

	messages, err := h.messageService.GetMessages(r.Context(), userID, peerID)
	if err != nil {
		respondServiceError(w, err, withPeer(userID, peerID))
		return
	}

	respondJSON(w, http.StatusOK, messages)
}

// SendMessage handles POST /api/messages/send/{id}
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	receiverID := chi.URLParam(r, "id")

	var req services.SendMessageInput
	if err := decodeBody(r, &req); err != nil {
		respondServiceError(w, err, nil)
		return
	}

	msg, err := h.messageService.SendMessage(r.Context(), userID, receiverID, req)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			respondError(w, "Receiver not found", http.StatusNotFound)
			return
		}
		respondServiceError(w, err, withPeer(userID, receiverID))
		return
	}

	respondJSON(w, http.StatusCreated, msg)
}

// MarkMessagesAsRead handles POST /api/messages/mark-read/{id}
func (h *MessageHandler) MarkMessagesAsRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	peerID := chi.URLParam(r, "id")

	if err := h.messageService.MarkMessagesAsRead(r.Context(), userID, peerID); err != nil {
		respondServiceError(w, err, withPeer(userID, peerID))
		return
	}

	respondJSON(w, http.StatusOK, MessageResponse{Message: "Messages marked as read"})
}

// PinChat handles POST /api/messages/pin/{chatId}
func (h *MessageHandler) PinChat(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	chatID := chi.URLParam(r, "chatId")

	pinned, err := h.messageService.PinChat(r.Context(), userID, chatID)
	if err != nil {
		respondServiceError(w, err, withPeer(userID, chatID))
		return
	}

	respondJSON(w, http.StatusOK, PinnedChatsResponse{PinnedChats: nonNil(pinned)})
}

// UnpinChat handles POST /api/messages/unpin/{chatId}
func (h *MessageHandler) UnpinChat(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	chatID := chi.URLParam(r, "chatId")

	pinned, err := h.messageService.UnpinChat(r.Context(), userID, chatID)
	if err != nil {
		respondServiceError(w, err, withPeer(userID, chatID))
		return
	}

	respondJSON(w, http.StatusOK, PinnedChatsResponse{PinnedChats: nonNil(pinned)})
}

// MarkMessageAsViewed handles POST /api/messages/view/{messageId}
func (h *MessageHandler) MarkMessageAsViewed(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID := chi.URLParam(r, "messageId")

	msg, err := h.messageService.MarkMessageAsViewed(r.Context(), userID, messageID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			respondError(w, "Message not found", http.StatusNotFound)
			return
		}
		respondServiceError(w, err, func(e *zerolog.Event) *zerolog.Event {
			return e.Str("user_id", userID).Str("message_id", messageID)
		})
		return
	}

	log.Debug().Str("user_id", userID).Str("message_id", messageID).Msg("Message viewed")
	respondJSON(w, http.StatusOK, msg)
}

func withUser(userID string) func(*zerolog.Event) *zerolog.Event {
	return func(e *zerolog.Event) *zerolog.Event {
		return e.Str("user_id", userID)
	}
}

func withPeer(userID, peerID string) func(*zerolog.Event) *zerolog.Event {
	return func(e *zerolog.Event) *zerolog.Event {
		return e.Str("user_id", userID).Str("peer_id", peerID)
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
