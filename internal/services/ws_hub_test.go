package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// drain returns every frame queued for client without blocking
func drain(c *Client) []WSMessage {
	var out []WSMessage
	for {
		select {
		case data := <-c.send:
			var msg WSMessage
			if err := json.Unmarshal(data, &msg); err == nil {
				out = append(out, msg)
			}
		default:
			return out
		}
	}
}

func framesOfType(frames []WSMessage, event string) []WSMessage {
	var out []WSMessage
	for _, f := range frames {
		if f.Type == event {
			out = append(out, f)
		}
	}
	return out
}

func TestWSHub_RegisterAndLookup(t *testing.T) {
	hub := NewWSHub()
	client := NewClient("u1", nil)
	hub.Register(client)

	got, ok := hub.Lookup("u1")
	if !ok || got != client {
		t.Fatal("expected registered client to be returned")
	}
	if !hub.IsOnline("u1") || hub.IsOnline("u2") {
		t.Error("unexpected online state")
	}
}

func TestWSHub_ReplaceClosesPreviousConnection(t *testing.T) {
	hub := NewWSHub()
	first := NewClient("u1", nil)
	second := NewClient("u1", nil)

	hub.Register(first)
	hub.Register(second)

	got, _ := hub.Lookup("u1")
	if got != second {
		t.Fatal("latest connection should win")
	}
	select {
	case <-first.Done():
	default:
		t.Error("replaced connection should be closed")
	}
	if users := hub.OnlineUsers(); len(users) != 1 {
		t.Errorf("expected one online user, got %v", users)
	}
}

func TestWSHub_StaleUnregisterKeepsNewerConnection(t *testing.T) {
	hub := NewWSHub()
	first := NewClient("u1", nil)
	second := NewClient("u1", nil)

	hub.Register(first)
	hub.Register(second)

	if hub.Unregister(first) {
		t.Error("stale unregister should not remove anything")
	}
	got, ok := hub.Lookup("u1")
	if !ok || got != second {
		t.Fatal("newer connection must survive a stale unregister")
	}

	if !hub.Unregister(second) {
		t.Error("expected current connection to be removed")
	}
	if hub.IsOnline("u1") {
		t.Error("user should be offline")
	}
}

func TestWSHub_SendToUser(t *testing.T) {
	hub := NewWSHub()
	client := NewClient("u1", nil)
	hub.Register(client)
	drain(client)

	if err := hub.SendToUser("u1", WSMessage{Type: EventNewMessage, Data: map[string]string{"text": "hi"}}); err != nil {
		t.Fatalf("SendToUser failed: %v", err)
	}
	frames := drain(client)
	if len(frames) != 1 || frames[0].Type != EventNewMessage {
		t.Fatalf("unexpected frames %+v", frames)
	}

	if err := hub.SendToUser("nobody", WSMessage{Type: EventNewMessage}); !errors.Is(err, ErrUserOffline) {
		t.Errorf("expected ErrUserOffline, got %v", err)
	}
}

func TestWSHub_SendToClosedClient(t *testing.T) {
	hub := NewWSHub()
	client := NewClient("u1", nil)
	hub.Register(client)
	client.Close()

	err := hub.SendToUser("u1", WSMessage{Type: EventNewMessage})
	if err == nil || errors.Is(err, ErrUserOffline) {
		t.Errorf("expected an unavailable error, got %v", err)
	}
	if client.Enqueue([]byte("x")) {
		t.Error("closed client must reject frames")
	}
}

func TestWSHub_FullQueueDoesNotBlock(t *testing.T) {
	client := NewClient("u1", nil)
	for i := 0; i < sendBufferSize; i++ {
		if !client.Enqueue([]byte("x")) {
			t.Fatalf("enqueue %d rejected before the queue was full", i)
		}
	}

	done := make(chan bool)
	go func() { done <- client.Enqueue([]byte("overflow")) }()
	select {
	case ok := <-done:
		if ok {
			t.Error("full queue should reject frames")
		}
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
}

func TestWSHub_BroadcastsOnlineUsers(t *testing.T) {
	hub := NewWSHub()
	a := NewClient("a", nil)
	b := NewClient("b", nil)

	hub.Register(a)
	hub.Register(b)

	frames := framesOfType(drain(a), EventGetOnlineUsers)
	if len(frames) != 2 {
		t.Fatalf("expected two presence updates, got %d", len(frames))
	}
	last, ok := frames[len(frames)-1].Data.([]interface{})
	if !ok || len(last) != 2 || last[0] != "a" || last[1] != "b" {
		t.Errorf("unexpected online users %v", frames[len(frames)-1].Data)
	}

	drain(b)
	hub.Unregister(a)
	frames = framesOfType(drain(b), EventGetOnlineUsers)
	if len(frames) != 1 {
		t.Fatalf("expected a presence update after unregister, got %d", len(frames))
	}
	if users := frames[0].Data.([]interface{}); len(users) != 1 || users[0] != "b" {
		t.Errorf("unexpected online users %v", users)
	}
}

func TestWSHub_ConcurrentRegisterUnregister(t *testing.T) {
	hub := NewWSHub()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := NewClient("u1", nil)
			hub.Register(c)
			hub.Unregister(c)
		}()
	}
	wg.Wait()

	if hub.IsOnline("u1") {
		t.Error("every connection was unregistered, user should be offline")
	}
}

func TestWSHub_Close(t *testing.T) {
	hub := NewWSHub()
	client := NewClient("u1", nil)
	hub.Register(client)

	hub.Close()

	if hub.IsOnline("u1") {
		t.Error("hub should be empty after Close")
	}
	select {
	case <-client.Done():
	default:
		t.Error("client should be closed")
	}
}

type recordingRelay struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (r *recordingRelay) Publish(ctx context.Context, recipientID string, message WSMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, recipientID)
	return r.err
}

func TestNotifier_Emit(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers locally", func(t *testing.T) {
		hub := NewWSHub()
		client := NewClient("u1", nil)
		hub.Register(client)
		drain(client)
		relay := &recordingRelay{}

		NewNotifier(hub, relay).Emit(ctx, EventNewMessage, "u1", map[string]string{"k": "v"})

		if frames := drain(client); len(frames) != 1 || frames[0].Type != EventNewMessage {
			t.Errorf("expected local delivery, got %+v", frames)
		}
		if len(relay.published) != 0 {
			t.Error("locally delivered event must not be relayed")
		}
	})

	t.Run("relays offline recipient", func(t *testing.T) {
		relay := &recordingRelay{}
		NewNotifier(NewWSHub(), relay).Emit(ctx, EventNewMessage, "u2", nil)

		if len(relay.published) != 1 || relay.published[0] != "u2" {
			t.Errorf("expected relay publish for u2, got %v", relay.published)
		}
	})

	t.Run("drops without relay", func(t *testing.T) {
		NewNotifier(NewWSHub(), nil).Emit(ctx, EventNewMessage, "u2", nil)
	})

	t.Run("swallows relay errors", func(t *testing.T) {
		relay := &recordingRelay{err: errors.New("nats down")}
		NewNotifier(NewWSHub(), relay).Emit(ctx, EventMessageViewed, "u2", nil)
		if len(relay.published) != 1 {
			t.Error("expected relay attempt")
		}
	})
}
