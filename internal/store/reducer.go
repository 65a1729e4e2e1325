package store

import (
	"posto/internal/models"
)

// reduce applies one action to the state and returns the next state. It is a
// pure function: the input state is never mutated.
func reduce(s State, action Action) State {
	switch a := action.(type) {
	case ConversationsRequested:
		s.Loading = true
		s.Err = ""
		return s

	case ConversationsLoaded:
		s.Loading = false
		s.Err = ""
		s.ListStale = false
		s.Conversations = cloneConversations(a.Conversations)
		sortByRecency(s.Conversations)
		return s

	case ConversationsFailed:
		s.Loading = false
		s.Err = a.Err
		return s

	case ConversationSelected:
		id := a.ID
		if id == s.CurrentConversationID {
			id = 0
		}
		s.CurrentConversationID = id
		s.Messages = nil
		s.MessagesErr = ""
		s.MessagesLoading = false
		return s

	case MessagesRequested:
		if a.ConversationID != s.CurrentConversationID {
			return s
		}
		s.MessagesLoading = true
		s.MessagesErr = ""
		return s

	case MessagesLoaded:
		// A snapshot for a conversation that is no longer selected is a
		// late response to a cancelled fetch. Drop it.
		if a.ConversationID != s.CurrentConversationID {
			return s
		}
		s.MessagesLoading = false
		s.MessagesErr = ""
		s.Messages = cloneMessages(a.Messages)
		sortByCreation(s.Messages)
		return s

	case MessagesFailed:
		if a.ConversationID != s.CurrentConversationID {
			return s
		}
		s.MessagesLoading = false
		s.MessagesErr = a.Err
		return s

	case MessageReceived:
		return reduceMessageReceived(s, a)

	case ConversationAdded:
		s.NewConversationLoading = false
		s.Conversations = append(cloneConversations(s.Conversations), a.Conversation)
		sortByRecency(s.Conversations)
		return s

	case NewConversationRequested:
		s.NewConversationLoading = true
		s.Err = ""
		s.SearchUserErr = ""
		s.Notice = ""
		return s

	case NewConversationFailed:
		s.NewConversationLoading = false
		s.Err = a.Err
		return s

	case UserSearchMissed:
		s.NewConversationLoading = false
		s.SearchUserErr = a.Err
		return s

	case SearchErrorCleared:
		s.SearchUserErr = ""
		return s

	case ExistingConversationSelected:
		s.NewConversationLoading = false
		s.Notice = "Conversation with this user already exists. Selected existing chat."
		if a.ID != s.CurrentConversationID {
			s.CurrentConversationID = a.ID
			s.Messages = nil
			s.MessagesErr = ""
			s.MessagesLoading = false
		}
		return s

	case NoticeCleared:
		s.Notice = ""
		return s

	case SendStarted:
		s.Sending = true
		s.SendErr = ""
		return s

	case SendFinished:
		s.Sending = false
		s.SendErr = ""
		return s

	case SendFailed:
		s.Sending = false
		s.SendErr = a.Err
		return s

	case ReadMarked:
		return reduceReadMarked(s, a)

	case Reset:
		return State{}

	default:
		return s
	}
}

func reduceMessageReceived(s State, a MessageReceived) State {
	msg := a.Message

	if msg.ConversationID == s.CurrentConversationID {
		// The channel should never redeliver an id, but a duplicate in the
		// log is worse than the scan that defends against it.
		if !containsMessage(s.Messages, msg.ID) {
			s.Messages = append(cloneMessages(s.Messages), msg)
		}
	}

	idx := -1
	for i, c := range s.Conversations {
		if c.ID == msg.ConversationID {
			idx = i
			break
		}
	}

	conversations := cloneConversations(s.Conversations)
	switch {
	case idx >= 0:
		conv := conversations[idx]
		conv.LastMessage = &msg
		if msg.CreatedAt.After(conv.UpdatedAt) {
			conv.UpdatedAt = msg.CreatedAt
		}
		conversations[idx] = conv
	case a.Conversation != nil:
		// First message of a conversation the store has never fetched; the
		// event embedded enough metadata to synthesize the entry.
		conv := *a.Conversation
		conv.LastMessage = &msg
		if msg.CreatedAt.After(conv.UpdatedAt) {
			conv.UpdatedAt = msg.CreatedAt
		}
		conversations = append(conversations, conv)
	default:
		// Unknown conversation and no embedded payload: ask the effects
		// layer for a one-off list refresh.
		s.ListStale = true
	}
	sortByRecency(conversations)
	s.Conversations = conversations
	return s
}

func reduceReadMarked(s State, a ReadMarked) State {
	idx := -1
	for i, c := range s.Conversations {
		if c.ID == a.ConversationID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s
	}

	conversations := cloneConversations(s.Conversations)
	conv := conversations[idx]
	participants := cloneParticipants(conv.Participants)
	for i, p := range participants {
		if p.User.ID != a.UserID {
			continue
		}
		// Monotonic: a stale or reordered read event never moves it back.
		if p.LastReadAt == nil || p.LastReadAt.Before(a.At) {
			at := a.At
			participants[i].LastReadAt = &at
		}
	}
	conv.Participants = participants
	conversations[idx] = conv
	s.Conversations = conversations
	return s
}

func containsMessage(messages []models.Message, id int64) bool {
	for _, m := range messages {
		if m.ID == id {
			return true
		}
	}
	return false
}
