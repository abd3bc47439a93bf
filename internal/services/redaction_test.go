package services

import (
	"testing"

	"chat-backend/internal/models"
)

func strPtr(s string) *string { return &s }

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

func TestRedactContent(t *testing.T) {
	live := models.Content{Text: strPtr("live"), Image: strPtr("live.png")}
	original := &models.Content{Text: strPtr("orig"), Image: strPtr("orig.png")}

	tests := []struct {
		name      string
		state     ViewState
		role      ViewerRole
		wantText  string
		wantImage string
	}{
		{"plain message to sender", NotViewOnce, RoleSender, "live", "live.png"},
		{"plain message to receiver", NotViewOnce, RoleReceiver, "live", "live.png"},
		{"unviewed to sender", ViewOnceUnviewed, RoleSender, "orig", "orig.png"},
		{"unviewed to receiver", ViewOnceUnviewed, RoleReceiver, "live", "live.png"},
		{"viewed to sender", ViewOnceViewed, RoleSender, "orig", "orig.png"},
		{"viewed to receiver", ViewOnceViewed, RoleReceiver, ViewedPlaceholder, "<nil>"},
		{"viewed to outsider", ViewOnceViewed, RoleOther, "live", "live.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RedactContent(tt.state, tt.role, live, original)
			if text := derefOr(got.Text, "<nil>"); text != tt.wantText {
				t.Errorf("text = %q, want %q", text, tt.wantText)
			}
			if image := derefOr(got.Image, "<nil>"); image != tt.wantImage {
				t.Errorf("image = %q, want %q", image, tt.wantImage)
			}
		})
	}
}

func TestRedactContent_SenderFallsBackToLiveFields(t *testing.T) {
	live := models.Content{Text: strPtr("live"), Image: strPtr("live.png")}

	got := RedactContent(ViewOnceViewed, RoleSender, live, nil)
	if derefOr(got.Text, "") != "live" || derefOr(got.Image, "") != "live.png" {
		t.Errorf("without snapshot expected live content, got %+v", got)
	}

	partial := &models.Content{Text: strPtr(""), Image: strPtr("orig.png")}
	got = RedactContent(ViewOnceViewed, RoleSender, live, partial)
	if derefOr(got.Text, "") != "live" {
		t.Errorf("empty snapshot text should fall back to live, got %q", derefOr(got.Text, "<nil>"))
	}
	if derefOr(got.Image, "") != "orig.png" {
		t.Errorf("expected snapshot image, got %q", derefOr(got.Image, "<nil>"))
	}
}

func TestRedact_DoesNotMutateInput(t *testing.T) {
	msg := &models.Message{
		ID:              "m1",
		SenderID:        "u1",
		ReceiverID:      "u2",
		Text:            strPtr("hi"),
		IsViewOnce:      true,
		IsViewed:        true,
		OriginalContent: &models.Content{Text: strPtr("hi")},
	}

	redacted := Redact(msg, "u2")
	if derefOr(redacted.Text, "") != ViewedPlaceholder || redacted.Image != nil {
		t.Fatalf("receiver should see placeholder, got %+v", redacted)
	}
	if *msg.Text != "hi" {
		t.Errorf("input message was modified: %q", *msg.Text)
	}

	sender := Redact(msg, "u1")
	if derefOr(sender.Text, "") != "hi" {
		t.Errorf("sender should see original content, got %q", derefOr(sender.Text, "<nil>"))
	}
}

func TestRoleOf(t *testing.T) {
	msg := &models.Message{SenderID: "a", ReceiverID: "b"}
	if RoleOf(msg, "a") != RoleSender {
		t.Error("expected sender role")
	}
	if RoleOf(msg, "b") != RoleReceiver {
		t.Error("expected receiver role")
	}
	if RoleOf(msg, "c") != RoleOther {
		t.Error("expected other role")
	}

	self := &models.Message{SenderID: "a", ReceiverID: "a"}
	if RoleOf(self, "a") != RoleReceiver {
		t.Error("self-addressed message should resolve to receiver")
	}
}

func TestStateOf(t *testing.T) {
	if StateOf(&models.Message{}) != NotViewOnce {
		t.Error("expected NotViewOnce")
	}
	if StateOf(&models.Message{IsViewOnce: true}) != ViewOnceUnviewed {
		t.Error("expected ViewOnceUnviewed")
	}
	if StateOf(&models.Message{IsViewOnce: true, IsViewed: true}) != ViewOnceViewed {
		t.Error("expected ViewOnceViewed")
	}
	if StateOf(&models.Message{IsViewed: true}) != NotViewOnce {
		t.Error("isViewed without isViewOnce must not redact")
	}
}

func TestRedact_SnapshotOnlyForSender(t *testing.T) {
	msg := &models.Message{
		ID:              "m1",
		SenderID:        "u1",
		ReceiverID:      "u2",
		Text:            strPtr("secret"),
		IsViewOnce:      true,
		OriginalContent: &models.Content{Text: strPtr("secret")},
	}

	for _, viewed := range []bool{false, true} {
		msg.IsViewed = viewed
		if got := Redact(msg, "u2"); got.OriginalContent != nil {
			t.Errorf("viewed=%v: receiver must not get the snapshot, got %+v", viewed, got.OriginalContent)
		}
		if got := Redact(msg, "u3"); got.OriginalContent != nil {
			t.Errorf("viewed=%v: outsider must not get the snapshot", viewed)
		}
		if got := Redact(msg, "u1"); got.OriginalContent == nil || derefOr(got.OriginalContent.Text, "") != "secret" {
			t.Errorf("viewed=%v: sender should keep the snapshot, got %+v", viewed, got.OriginalContent)
		}
	}
	if msg.OriginalContent == nil {
		t.Error("input message was modified")
	}
}
