package models

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
)

// User identifies an account. Users are created server-side and are
// immutable from the client's point of view.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Participant is a conversation member together with the point up to which
// they have read the conversation. LastReadAt only ever moves forward.
type Participant struct {
	User       User       `json:"user"`
	LastReadAt *time.Time `json:"lastReadAt,omitempty"`
}

// Conversation is the list-level summary of a chat. For a direct chat
// Participants always holds exactly two entries.
type Conversation struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name,omitempty"`
	IsGroupChat  bool          `json:"isGroupChat"`
	Participants []Participant `json:"participants"`
	LastMessage  *Message      `json:"lastMessage,omitempty"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// Message is a single chat message. Messages are immutable once created.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversationId"`
	Sender         User      `json:"sender"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Profile holds the mutable presentation fields of a user.
type Profile struct {
	UserID    int64  `json:"userId"`
	Bio       string `json:"bio,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// DisplayNameFor resolves the name shown for the conversation: the explicit
// name if set, otherwise the other participant's username.
func (c Conversation) DisplayNameFor(selfID int64) string {
	if c.Name != "" {
		return c.Name
	}
	for _, p := range c.Participants {
		if p.User.ID != selfID {
			return p.User.Username
		}
	}
	return "Group Chat"
}

// Participant returns the entry for the given user id.
func (c Conversation) Participant(userID int64) (Participant, bool) {
	for _, p := range c.Participants {
		if p.User.ID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

// IsDirectWith reports whether the conversation is a two-party chat between
// exactly selfID and otherID. Used for create-time deduplication.
func (c Conversation) IsDirectWith(selfID, otherID int64) bool {
	if c.IsGroupChat || len(c.Participants) != 2 {
		return false
	}
	_, hasSelf := c.Participant(selfID)
	_, hasOther := c.Participant(otherID)
	return hasSelf && hasOther
}

// UnreadFor reports whether the conversation holds a message the given user
// has not read yet.
func (c Conversation) UnreadFor(userID int64) bool {
	if c.LastMessage == nil {
		return false
	}
	p, ok := c.Participant(userID)
	if !ok || p.LastReadAt == nil {
		return false
	}
	return p.LastReadAt.Before(c.LastMessage.CreatedAt)
}

// LastReadMessageBy returns the id of the newest message authored by selfID
// that falls at or before lastRead. It backs the "Read" receipt under the
// sender's latest seen message. Returns 0 when nothing qualifies.
func LastReadMessageBy(messages []Message, selfID int64, lastRead *time.Time) int64 {
	if lastRead == nil {
		return 0
	}
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Sender.ID == selfID && !m.CreatedAt.After(*lastRead) {
			return m.ID
		}
	}
	return 0
}
