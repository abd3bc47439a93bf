package services

import "chat-backend/internal/models"

// ViewedPlaceholder replaces the content of a consumed view-once message for its receiver
const ViewedPlaceholder = "**"

// ViewState classifies a message for redaction purposes
type ViewState int

const (
	NotViewOnce ViewState = iota
	ViewOnceUnviewed
	ViewOnceViewed
)

// ViewerRole is the requester's relation to a message
type ViewerRole int

const (
	RoleOther ViewerRole = iota
	RoleSender
	RoleReceiver
)

// StateOf returns the view state of a message
func StateOf(m *models.Message) ViewState {
	switch {
	case !m.IsViewOnce:
		return NotViewOnce
	case m.IsViewed:
		return ViewOnceViewed
	default:
		return ViewOnceUnviewed
	}
}

// RoleOf returns viewerID's role for a message. The receiver role wins for self-addressed messages.
func RoleOf(m *models.Message, viewerID string) ViewerRole {
	switch viewerID {
	case m.ReceiverID:
		return RoleReceiver
	case m.SenderID:
		return RoleSender
	default:
		return RoleOther
	}
}

// RedactContent picks the content a viewer with the given role sees for a message in the given state.
func RedactContent(state ViewState, role ViewerRole, live models.Content, original *models.Content) models.Content {
	if state == NotViewOnce {
		return live
	}

	switch role {
	case RoleSender:
		return senderContent(live, original)
	case RoleReceiver:
		if state == ViewOnceViewed {
			placeholder := ViewedPlaceholder
			return models.Content{Text: &placeholder}
		}
		return live
	default:
		return live
	}
}

// Redact returns a copy of m as viewerID is allowed to see it. m is not modified.
func Redact(m *models.Message, viewerID string) *models.Message {
	out := m.Clone()
	role := RoleOf(m, viewerID)
	content := RedactContent(
		StateOf(m),
		role,
		models.Content{Text: out.Text, Image: out.Image},
		out.OriginalContent,
	)
	out.Text = content.Text
	out.Image = content.Image
	// The creation-time snapshot belongs to the sender alone.
	if out.IsViewOnce && role != RoleSender {
		out.OriginalContent = nil
	}
	return out
}

// senderContent prefers the creation-time snapshot, falling back to live fields
// when the snapshot or one of its fields is empty.
func senderContent(live models.Content, original *models.Content) models.Content {
	if original == nil {
		return live
	}
	return models.Content{
		Text:  firstNonEmpty(original.Text, live.Text),
		Image: firstNonEmpty(original.Image, live.Image),
	}
}

func firstNonEmpty(values ...*string) *string {
	for _, v := range values {
		if v != nil && *v != "" {
			return v
		}
	}
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
