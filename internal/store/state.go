// Package store holds the client-side conversation state: the conversation
// list, the selected conversation's message log, and the transient flags the
// view renders. All mutation goes through Dispatch with a typed action and a
// pure reducer, so every rule is testable as state × action → state.
package store

import (
	"sort"

	"posto/internal/models"
)

// State is the full conversation-store snapshot. It is treated as a value:
// reducers copy what they change and never mutate slices in place, so a
// snapshot handed to a subscriber stays stable.
type State struct {
	// Conversations is kept sorted by UpdatedAt descending; iteration order
	// is display order.
	Conversations []models.Conversation
	Loading       bool
	Err           string

	// CurrentConversationID is 0 when nothing is selected. Messages always
	// belongs to this conversation and is cleared the moment the selection
	// changes.
	CurrentConversationID int64
	Messages              []models.Message
	MessagesLoading       bool
	MessagesErr           string

	NewConversationLoading bool
	SearchUserErr          string
	// Notice carries informational results, such as resolving a duplicate
	// 1:1 conversation to the existing one. It is not an error.
	Notice string

	Sending bool
	SendErr string

	// ListStale is raised when a message arrives for a conversation the
	// store has never seen and the event carried no conversation payload.
	// The effects layer refetches the list and the next ConversationsLoaded
	// clears it.
	ListStale bool
}

// Conversation returns the entry with the given id.
func (s State) Conversation(id int64) (models.Conversation, bool) {
	for _, c := range s.Conversations {
		if c.ID == id {
			return c, true
		}
	}
	return models.Conversation{}, false
}

// Current returns the selected conversation, if any.
func (s State) Current() (models.Conversation, bool) {
	if s.CurrentConversationID == 0 {
		return models.Conversation{}, false
	}
	return s.Conversation(s.CurrentConversationID)
}

func cloneConversations(in []models.Conversation) []models.Conversation {
	out := make([]models.Conversation, len(in))
	copy(out, in)
	return out
}

func cloneMessages(in []models.Message) []models.Message {
	out := make([]models.Message, len(in))
	copy(out, in)
	return out
}

func cloneParticipants(in []models.Participant) []models.Participant {
	out := make([]models.Participant, len(in))
	copy(out, in)
	return out
}

// sortByRecency orders conversations by UpdatedAt descending. The sort is
// stable so conversations with equal timestamps keep their relative order.
func sortByRecency(conversations []models.Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
}

func sortByCreation(messages []models.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
}
