package repository

import (
	"context"
	"errors"
	"fmt"

	"chat-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// UserRepository handles database operations for users, unread counters and pinned chats
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, full_name, password_hash, profile_pic, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		user.ID, user.Email, user.FullName, user.PasswordHash, user.ProfilePic, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return fmt.Errorf("email %s: %w", user.Email, ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID, including unread counts and pinned chats
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, full_name, password_hash, profile_pic, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if user.UnreadCounts, err = r.unreadCounts(ctx, id); err != nil {
		return nil, err
	}
	if user.PinnedChats, err = r.pinnedChats(ctx, id); err != nil {
		return nil, err
	}
	return user, nil
}

// GetByEmail retrieves a user by email. Chat state is not loaded.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, full_name, password_hash, profile_pic, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

// ListExcept returns every user other than id, ordered by name
func (r *UserRepository) ListExcept(ctx context.Context, id string) ([]*models.User, error) {
	query := `
		SELECT id, email, full_name, password_hash, profile_pic, created_at, updated_at
		FROM users
		WHERE id <> $1
		ORDER BY full_name, id
	`
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// IncrementUnread atomically adds one to userID's counter for peerID and returns the new value
func (r *UserRepository) IncrementUnread(ctx context.Context, userID, peerID string) (int, error) {
	query := `
		INSERT INTO unread_counts (user_id, peer_id, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, peer_id)
		DO UPDATE SET count = unread_counts.count + 1
		RETURNING count
	`
	var count int
	if err := r.db.QueryRow(ctx, query, userID, peerID).Scan(&count); err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return 0, fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return 0, fmt.Errorf("failed to increment unread count: %w", err)
	}
	return count, nil
}

// ResetUnread sets userID's counter for peerID to zero
func (r *UserRepository) ResetUnread(ctx context.Context, userID, peerID string) error {
	query := `UPDATE unread_counts SET count = 0 WHERE user_id = $1 AND peer_id = $2`
	if _, err := r.db.Exec(ctx, query, userID, peerID); err != nil {
		return fmt.Errorf("failed to reset unread count: %w", err)
	}
	return nil
}

// AddPinnedChat pins chatID for userID and returns the resulting pinned set
func (r *UserRepository) AddPinnedChat(ctx context.Context, userID, chatID string) ([]string, error) {
	query := `
		INSERT INTO pinned_chats (user_id, chat_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, chat_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, userID, chatID); err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to pin chat: %w", err)
	}
	return r.pinnedChats(ctx, userID)
}

// RemovePinnedChat unpins chatID for userID and returns the resulting pinned set
func (r *UserRepository) RemovePinnedChat(ctx context.Context, userID, chatID string) ([]string, error) {
	query := `DELETE FROM pinned_chats WHERE user_id = $1 AND chat_id = $2`
	if _, err := r.db.Exec(ctx, query, userID, chatID); err != nil {
		return nil, fmt.Errorf("failed to unpin chat: %w", err)
	}
	return r.pinnedChats(ctx, userID)
}

// Ping checks database connectivity
func (r *UserRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *UserRepository) unreadCounts(ctx context.Context, userID string) (models.UnreadCounts, error) {
	rows, err := r.db.Query(ctx, `SELECT peer_id, count FROM unread_counts WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get unread counts: %w", err)
	}
	defer rows.Close()

	counts := models.UnreadCounts{}
	for rows.Next() {
		var peerID string
		var count int
		if err := rows.Scan(&peerID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan unread count: %w", err)
		}
		counts[peerID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unread counts: %w", err)
	}
	return counts, nil
}

func (r *UserRepository) pinnedChats(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT chat_id FROM pinned_chats WHERE user_id = $1 ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pinned chats: %w", err)
	}
	defer rows.Close()

	pinned := []string{}
	for rows.Next() {
		var chatID string
		if err := rows.Scan(&chatID); err != nil {
			return nil, fmt.Errorf("failed to scan pinned chat: %w", err)
		}
		pinned = append(pinned, chatID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pinned chats: %w", err)
	}
	return pinned, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Email, &user.FullName, &user.PasswordHash, &user.ProfilePic,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
