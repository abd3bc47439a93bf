package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"chat-backend/internal/models"
)

// MemoryStore is an in-process implementation of the user and message stores.
// It backs the "memory" database driver and the test suites.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	emails   map[string]string
	messages []*models.Message
	byID     map[string]int
	unread   map[string]models.UnreadCounts
	pinned   map[string][]string
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]*models.User),
		emails: make(map[string]string),
		byID:   make(map[string]int),
		unread: make(map[string]models.UnreadCounts),
		pinned: make(map[string][]string),
	}
}

// Create stores a new user
func (s *MemoryStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.emails[user.Email]; exists {
		return fmt.Errorf("email %s: %w", user.Email, ErrDuplicate)
	}
	if _, exists := s.users[user.ID]; exists {
		return fmt.Errorf("user %s: %w", user.ID, ErrDuplicate)
	}

	stored := user.Clone()
	stored.UnreadCounts = nil
	stored.PinnedChats = nil
	s.users[user.ID] = stored
	s.emails[user.Email] = user.ID
	return nil
}

// GetByID retrieves a user with its unread counts and pinned chats
func (s *MemoryStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", ErrNotFound)
	}

	out := user.Clone()
	out.UnreadCounts = models.UnreadCounts{}
	for peer, count := range s.unread[id] {
		out.UnreadCounts[peer] = count
	}
	out.PinnedChats = append([]string{}, s.pinned[id]...)
	return out, nil
}

// GetByEmail retrieves a user by email
func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[email]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", ErrNotFound)
	}
	return s.users[id].Clone(), nil
}

// ListExcept returns every user other than id, ordered by name
func (s *MemoryStore) ListExcept(ctx context.Context, id string) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*models.User, 0, len(s.users))
	for userID, user := range s.users {
		if userID != id {
			users = append(users, user.Clone())
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].FullName != users[j].FullName {
			return users[i].FullName < users[j].FullName
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

// IncrementUnread adds one to userID's counter for peerID and returns the new value
func (s *MemoryStore) IncrementUnread(ctx context.Context, userID, peerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return 0, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	counts, ok := s.unread[userID]
	if !ok {
		counts = models.UnreadCounts{}
		s.unread[userID] = counts
	}
	counts[peerID]++
	return counts[peerID], nil
}

// ResetUnread sets userID's counter for peerID to zero
func (s *MemoryStore) ResetUnread(ctx context.Context, userID, peerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if counts, ok := s.unread[userID]; ok {
		if _, tracked := counts[peerID]; tracked {
			counts[peerID] = 0
		}
	}
	return nil
}

// AddPinnedChat pins chatID for userID and returns the resulting pinned set
func (s *MemoryStore) AddPinnedChat(ctx context.Context, userID, chatID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	pinned := s.pinned[userID]
	for _, id := range pinned {
		if id == chatID {
			return append([]string{}, pinned...), nil
		}
	}
	s.pinned[userID] = append(pinned, chatID)
	return append([]string{}, s.pinned[userID]...), nil
}

// RemovePinnedChat unpins chatID for userID and returns the resulting pinned set
func (s *MemoryStore) RemovePinnedChat(ctx context.Context, userID, chatID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pinned := s.pinned[userID]
	kept := make([]string, 0, len(pinned))
	for _, id := range pinned {
		if id != chatID {
			kept = append(kept, id)
		}
	}
	s.pinned[userID] = kept
	return append([]string{}, kept...), nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Messages returns a view of the store satisfying the message store contract
func (s *MemoryStore) Messages() *MemoryMessages {
	return &MemoryMessages{s: s}
}

// MemoryMessages exposes the message operations of a MemoryStore.
// User and message stores share method names, so messages live behind their own type.
type MemoryMessages struct {
	s *MemoryStore
}

// Create appends a message
func (m *MemoryMessages) Create(ctx context.Context, msg *models.Message) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[msg.ID]; exists {
		return fmt.Errorf("message %s: %w", msg.ID, ErrDuplicate)
	}
	if _, ok := s.users[msg.SenderID]; !ok {
		return fmt.Errorf("message references unknown user: %w", ErrNotFound)
	}
	if _, ok := s.users[msg.ReceiverID]; !ok {
		return fmt.Errorf("message references unknown user: %w", ErrNotFound)
	}
	s.byID[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg.Clone())
	return nil
}

// GetByID retrieves a message by ID
func (m *MemoryMessages) GetByID(ctx context.Context, id string) (*models.Message, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("message not found: %w", ErrNotFound)
	}
	return s.messages[idx].Clone(), nil
}

// ListConversation returns all messages between userA and userB in insertion order
func (m *MemoryMessages) ListConversation(ctx context.Context, userA, userB string) ([]*models.Message, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*models.Message{}
	for _, msg := range s.messages {
		if (msg.SenderID == userA && msg.ReceiverID == userB) ||
			(msg.SenderID == userB && msg.ReceiverID == userA) {
			out = append(out, msg.Clone())
		}
	}
	return out, nil
}

// MarkViewed flips isViewed for an unviewed view-once message and reports whether it did
func (m *MemoryMessages) MarkViewed(ctx context.Context, id string, at time.Time) (bool, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[id]
	if !ok {
		return false, nil
	}
	msg := s.messages[idx]
	if !msg.IsViewOnce || msg.IsViewed {
		return false, nil
	}
	msg.IsViewed = true
	msg.UpdatedAt = at
	return true, nil
}
