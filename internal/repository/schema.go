package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS users (
  id            TEXT PRIMARY KEY,
  email         TEXT NOT NULL UNIQUE,
  full_name     TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  profile_pic   TEXT NOT NULL DEFAULT '',
  created_at    TIMESTAMPTZ NOT NULL,
  updated_at    TIMESTAMPTZ NOT NULL
);
`,
	`
CREATE TABLE IF NOT EXISTS messages (
  seq            BIGSERIAL PRIMARY KEY,
  id             TEXT NOT NULL UNIQUE,
  sender_id      TEXT NOT NULL REFERENCES users(id),
  receiver_id    TEXT NOT NULL REFERENCES users(id),
  text           TEXT,
  image          TEXT,
  is_view_once   BOOLEAN NOT NULL DEFAULT FALSE,
  is_viewed      BOOLEAN NOT NULL DEFAULT FALSE,
  has_original   BOOLEAN NOT NULL DEFAULT FALSE,
  original_text  TEXT,
  original_image TEXT,
  created_at     TIMESTAMPTZ NOT NULL,
  updated_at     TIMESTAMPTZ NOT NULL
);
`,
	`
CREATE INDEX IF NOT EXISTS idx_messages_pair
ON messages (sender_id, receiver_id, seq);
`,
	`
CREATE TABLE IF NOT EXISTS unread_counts (
  user_id TEXT NOT NULL REFERENCES users(id),
  peer_id TEXT NOT NULL,
  count   INTEGER NOT NULL DEFAULT 0 CHECK (count >= 0),
  PRIMARY KEY (user_id, peer_id)
);
`,
	`
CREATE TABLE IF NOT EXISTS pinned_chats (
  user_id   TEXT NOT NULL REFERENCES users(id),
  chat_id   TEXT NOT NULL,
  seq       BIGSERIAL,
  pinned_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (user_id, chat_id)
);
`,
}

// Migrate creates the schema if it does not exist yet
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", i, err)
		}
	}
	return nil
}
