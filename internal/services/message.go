package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chat-backend/internal/metrics"
	"chat-backend/internal/models"
	"chat-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MessageStore persists messages
type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	ListConversation(ctx context.Context, userA, userB string) ([]*models.Message, error)
	MarkViewed(ctx context.Context, id string, at time.Time) (bool, error)
}

// UserStore persists users and their per-peer chat state.
// Counter and pin updates must be atomic in the store.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ListExcept(ctx context.Context, id string) ([]*models.User, error)
	IncrementUnread(ctx context.Context, userID, peerID string) (int, error)
	ResetUnread(ctx context.Context, userID, peerID string) error
	AddPinnedChat(ctx context.Context, userID, chatID string) ([]string, error)
	RemovePinnedChat(ctx context.Context, userID, chatID string) ([]string, error)
}

// EventNotifier pushes real-time events to users
type EventNotifier interface {
	Emit(ctx context.Context, event, recipientID string, payload interface{})
}

// SendMessageInput is the body of a send request
type SendMessageInput struct {
	Text       *string `json:"text" validate:"omitempty,max=5000"`
	Image      *string `json:"image"`
	IsViewOnce bool    `json:"isViewOnce"`
}

// MessageService implements the message lifecycle: sending, fetching with
// view-once redaction, unread bookkeeping and pinned chats.
type MessageService struct {
	messages MessageStore
	users    UserStore
	notifier EventNotifier
	uploader ImageUploader
	now      func() time.Time
}

// NewMessageService creates a new message service. uploader may be nil, in which case
// inline images are rejected and only image URLs are accepted.
func NewMessageService(messages MessageStore, users UserStore, notifier EventNotifier, uploader ImageUploader) *MessageService {
	return &MessageService{
		messages: messages,
		users:    users,
		notifier: notifier,
		uploader: uploader,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ListContacts returns every user except the requester
func (s *MessageService) ListContacts(ctx context.Context, requesterID string) ([]*models.User, error) {
	users, err := s.users.ListExcept(ctx, requesterID)
	if err != nil {
		return nil, storeError(err, "list users")
	}
	return users, nil
}

// SendMessage stores a message from senderID to receiverID, bumps the receiver's
// unread counter and pushes a newMessage event to the receiver.
func (s *MessageService) SendMessage(ctx context.Context, senderID, receiverID string, input SendMessageInput) (*models.Message, error) {
	if _, err := s.users.GetByID(ctx, receiverID); err != nil {
		return nil, storeError(err, "receiver "+receiverID)
	}

	image, err := s.resolveImage(ctx, senderID, input.Image)
	if err != nil {
		return nil, err
	}

	now := s.now()
	msg := &models.Message{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       input.Text,
		Image:      image,
		IsViewOnce: input.IsViewOnce,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if msg.IsViewOnce {
		snapshot := msg.Clone()
		msg.OriginalContent = &models.Content{Text: snapshot.Text, Image: snapshot.Image}
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, storeError(err, "create message")
	}
	metrics.MessagesSent.WithLabelValues(strconv.FormatBool(msg.IsViewOnce)).Inc()

	// The message is already stored at this point; a retry by the client sends a second copy.
	unread, err := s.users.IncrementUnread(ctx, receiverID, senderID)
	if err != nil {
		log.Error().Err(err).
			Str("message_id", msg.ID).
			Str("receiver_id", receiverID).
			Msg("Message stored but unread count not updated")
		return nil, storeError(err, "increment unread count for stored message "+msg.ID)
	}

	s.notifier.Emit(ctx, EventNewMessage, receiverID, models.NewMessageEvent{
		Message:     Redact(msg, receiverID),
		UnreadCount: unread,
		FromUser:    senderID,
	})

	log.Debug().
		Str("message_id", msg.ID).
		Str("sender_id", senderID).
		Str("receiver_id", receiverID).
		Bool("view_once", msg.IsViewOnce).
		Msg("Message sent")

	return msg, nil
}

// GetMessages returns the conversation between requesterID and peerID as the requester
// may see it, and clears the requester's unread counter for the peer.
func (s *MessageService) GetMessages(ctx context.Context, requesterID, peerID string) ([]*models.Message, error) {
	messages, err := s.messages.ListConversation(ctx, requesterID, peerID)
	if err != nil {
		return nil, storeError(err, "list conversation")
	}

	visible := make([]*models.Message, len(messages))
	for i, msg := range messages {
		visible[i] = Redact(msg, requesterID)
	}

	if err := s.users.ResetUnread(ctx, requesterID, peerID); err != nil {
		return nil, storeError(err, "reset unread count")
	}
	return visible, nil
}

// MarkMessageAsViewed opens a view-once message on behalf of its receiver.
// The first successful call emits messageViewed to both parties; later calls are no-ops.
func (s *MessageService) MarkMessageAsViewed(ctx context.Context, requesterID, messageID string) (*models.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, storeError(err, "message "+messageID)
	}

	if msg.ReceiverID != requesterID {
		return nil, fmt.Errorf("%w: only the receiver can view message %s", ErrForbidden, messageID)
	}

	if StateOf(msg) != ViewOnceUnviewed {
		return Redact(msg, requesterID), nil
	}

	now := s.now()
	transitioned, err := s.messages.MarkViewed(ctx, messageID, now)
	if err != nil {
		return nil, storeError(err, "mark message viewed")
	}
	if !transitioned {
		// Another request opened it first.
		current, err := s.messages.GetByID(ctx, messageID)
		if err != nil {
			return nil, storeError(err, "message "+messageID)
		}
		return Redact(current, requesterID), nil
	}

	msg.IsViewed = true
	msg.UpdatedAt = now
	metrics.MessagesViewed.Inc()

	s.notifier.Emit(ctx, EventMessageViewed, msg.ReceiverID, viewedEvent(msg, msg.ReceiverID))
	if msg.SenderID != msg.ReceiverID {
		s.notifier.Emit(ctx, EventMessageViewed, msg.SenderID, viewedEvent(msg, msg.SenderID))
	}

	log.Debug().
		Str("message_id", msg.ID).
		Str("receiver_id", msg.ReceiverID).
		Msg("View-once message opened")

	return Redact(msg, requesterID), nil
}

// MarkMessagesAsRead clears requesterID's unread counter for peerID
func (s *MessageService) MarkMessagesAsRead(ctx context.Context, requesterID, peerID string) error {
	if err := s.users.ResetUnread(ctx, requesterID, peerID); err != nil {
		return storeError(err, "reset unread count")
	}
	return nil
}

// PinChat adds chatID to requesterID's pinned chats and returns the resulting set
func (s *MessageService) PinChat(ctx context.Context, requesterID, chatID string) ([]string, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, fmt.Errorf("%w: chat id is required", ErrValidation)
	}
	pinned, err := s.users.AddPinnedChat(ctx, requesterID, chatID)
	if err != nil {
		return nil, storeError(err, "pin chat")
	}
	return pinned, nil
}

// UnpinChat removes chatID from requesterID's pinned chats and returns the resulting set
func (s *MessageService) UnpinChat(ctx context.Context, requesterID, chatID string) ([]string, error) {
	pinned, err := s.users.RemovePinnedChat(ctx, requesterID, chatID)
	if err != nil {
		return nil, storeError(err, "unpin chat")
	}
	return pinned, nil
}

// resolveImage uploads inline data-URL images and passes other values through.
// An empty image is treated as absent.
func (s *MessageService) resolveImage(ctx context.Context, ownerID string, image *string) (*string, error) {
	if image == nil || *image == "" {
		return nil, nil
	}
	if !strings.HasPrefix(*image, "data:") {
		url := *image
		return &url, nil
	}
	if s.uploader == nil {
		return nil, fmt.Errorf("%w: image uploads are not configured", ErrValidation)
	}

	url, err := s.uploader.Upload(ctx, ownerID, *image)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInfrastructure, err)
	}
	return &url, nil
}

func viewedEvent(msg *models.Message, viewerID string) models.MessageViewedEvent {
	visible := Redact(msg, viewerID)
	return models.MessageViewedEvent{
		MessageID: msg.ID,
		ViewedContent: models.ViewedContent{
			Text:     visible.Text,
			Image:    visible.Image,
			IsViewed: true,
		},
	}
}

// storeError translates repository errors into the service error taxonomy
func storeError(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	if errors.Is(err, repository.ErrDuplicate) {
		return fmt.Errorf("%w: %s", ErrConflict, what)
	}
	return fmt.Errorf("%w: %s: %w", ErrInfrastructure, what, err)
}
