package store

import (
	"time"

	"posto/internal/models"
)

// Action is a typed state transition request. Every mutation of the store
// goes through exactly one of these.
type Action interface {
	isAction()
}

// ConversationsRequested marks the list fetch as in flight.
type ConversationsRequested struct{}

// ConversationsLoaded replaces the conversation list wholesale with a fresh
// snapshot. The replace is atomic: on failure the previous list survives.
type ConversationsLoaded struct {
	Conversations []models.Conversation
}

type ConversationsFailed struct {
	Err string
}

// ConversationSelected switches the selection. Selecting the already-current
// id deselects; id 0 always deselects. The message log and its error are
// cleared synchronously so stale content can never show under a new header.
type ConversationSelected struct {
	ID int64
}

type MessagesRequested struct {
	ConversationID int64
}

// MessagesLoaded replaces the message log with a snapshot, ordered oldest
// first. Snapshots tagged with a conversation other than the current one are
// discarded: they belong to a selection that no longer exists.
type MessagesLoaded struct {
	ConversationID int64
	Messages       []models.Message
}

type MessagesFailed struct {
	ConversationID int64
	Err            string
}

// MessageReceived ingests a live inbound message. Conversation optionally
// carries the server-embedded conversation payload for ids the store has
// never seen.
type MessageReceived struct {
	Message      models.Message
	Conversation *models.Conversation
}

// ConversationAdded appends a newly created conversation.
type ConversationAdded struct {
	Conversation models.Conversation
}

type NewConversationRequested struct{}

type NewConversationFailed struct {
	Err string
}

// UserSearchMissed records a user-search miss (or a self-conversation
// rejection) in the field-level error slot, distinct from global errors.
type UserSearchMissed struct {
	Err string
}

type SearchErrorCleared struct{}

// ExistingConversationSelected resolves a duplicate 1:1 creation attempt by
// selecting the conversation that already exists.
type ExistingConversationSelected struct {
	ID int64
}

type NoticeCleared struct{}

type SendStarted struct{}

type SendFinished struct{}

type SendFailed struct {
	Err string
}

// ReadMarked advances a participant's lastReadAt for a conversation. The
// timestamp never regresses.
type ReadMarked struct {
	ConversationID int64
	UserID         int64
	At             time.Time
}

// Reset returns the store to its zero state. Dispatched on logout.
type Reset struct{}

func (ConversationsRequested) isAction() {}
func (ConversationsLoaded) isAction() {}
func (ConversationsFailed) isAction() {}
func (ConversationSelected) isAction() {}
func (MessagesRequested) isAction() {}
func (MessagesLoaded) isAction() {}
func (MessagesFailed) isAction() {}
func (MessageReceived) isAction() {}
func (ConversationAdded) isAction() {}
func (NewConversationRequested) isAction() {}
func (NewConversationFailed) isAction() {}
func (UserSearchMissed) isAction() {}
func (SearchErrorCleared) isAction() {}
func (ExistingConversationSelected) isAction() {}
func (NoticeCleared) isAction() {}
func (SendStarted) isAction() {}
func (SendFinished) isAction() {}
func (SendFailed) isAction() {}
func (ReadMarked) isAction() {}
func (Reset) isAction() {}
