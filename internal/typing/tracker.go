package typing

import (
	"sync"
)

// Tracker holds who is typing in the currently selected conversation,
// keyed by user id. Entries come and go with typing events, a typist's own
// message, selection changes and disconnects.
type Tracker struct {
	mu             sync.RWMutex
	selfID         int64
	conversationID int64
	typists        map[int64]string
}

func NewTracker() *Tracker {
	return &Tracker{typists: make(map[int64]string)}
}

// SetSelf records the authenticated user so their own echoed typing events
// are ignored.
func (t *Tracker) SetSelf(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.selfID = userID
}

// SetConversation scopes the tracker to a new selection and drops all
// current indicators.
func (t *Tracker) SetConversation(conversationID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conversationID = conversationID
	t.typists = make(map[int64]string)
}

// ApplyStart adds a typist if the event targets the selected conversation
// and is not the local user's own echo.
func (t *Tracker) ApplyStart(conversationID, userID int64, username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if conversationID != t.conversationID || userID == t.selfID {
		return
	}
	t.typists[userID] = username
}

// ApplyStop removes a typist if the event targets the selected conversation.
func (t *Tracker) ApplyStop(conversationID, userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if conversationID != t.conversationID {
		return
	}
	delete(t.typists, userID)
}

// MessageArrived clears the sender's indicator: their message supersedes any
// typing state, even if the stop event got lost.
func (t *Tracker) MessageArrived(conversationID, senderID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if conversationID != t.conversationID {
		return
	}
	delete(t.typists, senderID)
}

// Clear drops all indicators. Called on disconnect and logout; a stale
// indicator is worse than none.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.typists = make(map[int64]string)
}

// Typists returns the usernames currently typing.
func (t *Tracker) Typists() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.typists))
	for _, name := range t.typists {
		names = append(names, name)
	}
	return names
}
