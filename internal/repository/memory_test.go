package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chat-backend/internal/models"
)

func seedUsers(t *testing.T, store *MemoryStore, ids ...string) {
	t.Helper()
	for _, id := range ids {
		err := store.Create(context.Background(), &models.User{
			ID:       id,
			Email:    id + "@example.com",
			FullName: "User " + id,
		})
		if err != nil {
			t.Fatalf("Create(%s) failed: %v", id, err)
		}
	}
}

func TestMemoryStore_CreateDuplicateEmail(t *testing.T) {
	store := NewMemoryStore()
	seedUsers(t, store, "u1")

	err := store.Create(context.Background(), &models.User{ID: "u2", Email: "u1@example.com"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestMemoryStore_GetByIDNotFound(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_UnreadCounts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedUsers(t, store, "u1", "u2")

	for i := 1; i <= 3; i++ {
		got, err := store.IncrementUnread(ctx, "u2", "u1")
		if err != nil {
			t.Fatalf("IncrementUnread failed: %v", err)
		}
		if got != i {
			t.Errorf("IncrementUnread = %d, want %d", got, i)
		}
	}

	user, _ := store.GetByID(ctx, "u2")
	if user.UnreadCounts.Get("u1") != 3 {
		t.Errorf("expected 3 unread, got %d", user.UnreadCounts.Get("u1"))
	}
	if user.UnreadCounts.Get("nobody") != 0 {
		t.Errorf("absent key should read as zero")
	}

	if err := store.ResetUnread(ctx, "u2", "u1"); err != nil {
		t.Fatalf("ResetUnread failed: %v", err)
	}
	user, _ = store.GetByID(ctx, "u2")
	if user.UnreadCounts.Get("u1") != 0 {
		t.Errorf("expected 0 after reset, got %d", user.UnreadCounts.Get("u1"))
	}

	if _, err := store.IncrementUnread(ctx, "ghost", "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestMemoryStore_IncrementUnreadConcurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedUsers(t, store, "u1", "u2")

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.IncrementUnread(ctx, "u2", "u1"); err != nil {
				t.Errorf("IncrementUnread failed: %v", err)
			}
		}()
	}
	wg.Wait()

	user, _ := store.GetByID(ctx, "u2")
	if user.UnreadCounts.Get("u1") != n {
		t.Errorf("expected %d unread, got %d", n, user.UnreadCounts.Get("u1"))
	}
}

func TestMemoryStore_PinnedChats(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedUsers(t, store, "u1")

	pinned, _ := store.AddPinnedChat(ctx, "u1", "a")
	pinned, _ = store.AddPinnedChat(ctx, "u1", "b")
	pinned, _ = store.AddPinnedChat(ctx, "u1", "a")
	if len(pinned) != 2 || pinned[0] != "a" || pinned[1] != "b" {
		t.Fatalf("unexpected pinned set %v", pinned)
	}

	pinned, _ = store.RemovePinnedChat(ctx, "u1", "missing")
	if len(pinned) != 2 {
		t.Errorf("removing an absent chat changed the set: %v", pinned)
	}

	pinned, _ = store.RemovePinnedChat(ctx, "u1", "a")
	if len(pinned) != 1 || pinned[0] != "b" {
		t.Errorf("unexpected pinned set after unpin %v", pinned)
	}
}

func TestMemoryMessages_ConversationAndMarkViewed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedUsers(t, store, "u1", "u2", "u3")
	messages := store.Messages()

	text := "hello"
	for _, m := range []*models.Message{
		{ID: "m1", SenderID: "u1", ReceiverID: "u2", Text: &text},
		{ID: "m2", SenderID: "u3", ReceiverID: "u2", Text: &text},
		{ID: "m3", SenderID: "u2", ReceiverID: "u1", Text: &text, IsViewOnce: true},
	} {
		if err := messages.Create(ctx, m); err != nil {
			t.Fatalf("Create(%s) failed: %v", m.ID, err)
		}
	}

	conv, err := messages.ListConversation(ctx, "u2", "u1")
	if err != nil {
		t.Fatalf("ListConversation failed: %v", err)
	}
	if len(conv) != 2 || conv[0].ID != "m1" || conv[1].ID != "m3" {
		t.Fatalf("unexpected conversation %+v", conv)
	}

	ok, _ := messages.MarkViewed(ctx, "m1", time.Now())
	if ok {
		t.Error("non view-once message must not transition")
	}
	ok, _ = messages.MarkViewed(ctx, "m3", time.Now())
	if !ok {
		t.Error("expected first MarkViewed to transition")
	}
	ok, _ = messages.MarkViewed(ctx, "m3", time.Now())
	if ok {
		t.Error("expected second MarkViewed to be a no-op")
	}

	got, _ := messages.GetByID(ctx, "m3")
	if !got.IsViewed {
		t.Error("expected stored message to be viewed")
	}

	if err := messages.Create(ctx, &models.Message{ID: "m4", SenderID: "u1", ReceiverID: "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown receiver, got %v", err)
	}
}

func TestMemoryMessages_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedUsers(t, store, "u1", "u2")
	messages := store.Messages()

	text := "original"
	if err := messages.Create(ctx, &models.Message{ID: "m1", SenderID: "u1", ReceiverID: "u2", Text: &text}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, _ := messages.GetByID(ctx, "m1")
	*got.Text = "changed"

	again, _ := messages.GetByID(ctx, "m1")
	if *again.Text != "original" {
		t.Errorf("stored message was mutated through a returned copy: %q", *again.Text)
	}
}
