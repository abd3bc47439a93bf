package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chat-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const messageColumns = `id, sender_id, receiver_id, text, image, is_view_once, is_viewed,
		has_original, original_text, original_image, created_at, updated_at`

// MessageRepository handles database operations for messages
type MessageRepository struct {
	db *pgxpool.Pool
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create appends a new message
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	var originalText, originalImage *string
	if msg.OriginalContent != nil {
		originalText = msg.OriginalContent.Text
		originalImage = msg.OriginalContent.Image
	}

	_, err := r.db.Exec(ctx, query,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Text, msg.Image, msg.IsViewOnce, msg.IsViewed,
		msg.OriginalContent != nil, originalText, originalImage, msg.CreatedAt, msg.UpdatedAt,
	)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return fmt.Errorf("message references unknown user: %w", ErrNotFound)
		}
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// GetByID retrieves a message by ID
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	msg, err := scanMessage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("message not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

// ListConversation returns all messages exchanged between userA and userB in insertion order
func (r *MessageRepository) ListConversation(ctx context.Context, userA, userB string) ([]*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY seq
	`
	rows, err := r.db.Query(ctx, query, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	defer rows.Close()

	messages := []*models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

// MarkViewed flips is_viewed for an unviewed view-once message.
// It reports whether this call performed the transition.
func (r *MessageRepository) MarkViewed(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE messages
		SET is_viewed = TRUE, updated_at = $2
		WHERE id = $1 AND is_view_once AND NOT is_viewed
	`
	result, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark message viewed: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var msg models.Message
	var hasOriginal bool
	var originalText, originalImage *string
	err := row.Scan(
		&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Text, &msg.Image, &msg.IsViewOnce, &msg.IsViewed,
		&hasOriginal, &originalText, &originalImage, &msg.CreatedAt, &msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if hasOriginal {
		msg.OriginalContent = &models.Content{Text: originalText, Image: originalImage}
	}
	return &msg, nil
}
