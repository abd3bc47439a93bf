package models

import "time"

// User represents a registered account together with its per-peer chat state
type User struct {
	ID           string       `json:"_id"`
	Email        string       `json:"email"`
	FullName     string       `json:"fullName"`
	PasswordHash string       `json:"-"`
	ProfilePic   string       `json:"profilePic"`
	UnreadCounts UnreadCounts `json:"unreadCounts,omitempty"`
	PinnedChats  []string     `json:"pinnedChats,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// UnreadCounts maps a peer user ID to the number of unread messages from that peer.
// A missing key means zero.
type UnreadCounts map[string]int

// Get returns the unread count for peerID. Safe on a nil map.
func (u UnreadCounts) Get(peerID string) int {
	return u[peerID]
}

// Content is the text/image pair carried by a message
type Content struct {
	Text  *string `json:"text"`
	Image *string `json:"image"`
}

// Message represents a direct message between two users
type Message struct {
	ID              string    `json:"_id"`
	SenderID        string    `json:"senderId"`
	ReceiverID      string    `json:"receiverId"`
	Text            *string   `json:"text"`
	Image           *string   `json:"image"`
	IsViewOnce      bool      `json:"isViewOnce"`
	IsViewed        bool      `json:"isViewed"`
	OriginalContent *Content  `json:"originalContent,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of the message
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	c.Text = cloneString(m.Text)
	c.Image = cloneString(m.Image)
	if m.OriginalContent != nil {
		c.OriginalContent = &Content{
			Text:  cloneString(m.OriginalContent.Text),
			Image: cloneString(m.OriginalContent.Image),
		}
	}
	return &c
}

// Clone returns a deep copy of the user
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.UnreadCounts != nil {
		c.UnreadCounts = make(UnreadCounts, len(u.UnreadCounts))
		for k, v := range u.UnreadCounts {
			c.UnreadCounts[k] = v
		}
	}
	if u.PinnedChats != nil {
		c.PinnedChats = append([]string(nil), u.PinnedChats...)
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// NewMessageEvent is pushed to the receiver when a message arrives
type NewMessageEvent struct {
	Message     *Message `json:"message"`
	UnreadCount int      `json:"unreadCount"`
	FromUser    string   `json:"fromUser"`
}

// ViewedContent is the role-specific content delivered after a view-once message is opened
type ViewedContent struct {
	Text     *string `json:"text"`
	Image    *string `json:"image"`
	IsViewed bool    `json:"isViewed"`
}

// MessageViewedEvent is pushed to both parties when a view-once message is opened
type MessageViewedEvent struct {
	MessageID     string        `json:"messageId"`
	ViewedContent ViewedContent `json:"viewedContent"`
}
