package store

import (
	"sync"
)

// Presence tracks which users are currently online. It is reset wholesale
// from the server snapshot on every (re)connect; individual status events
// apply last-event-wins per user id.
type Presence struct {
	mu     sync.RWMutex
	online map[int64]struct{}
}

func NewPresence() *Presence {
	return &Presence{online: make(map[int64]struct{})}
}

// SetOnlineUsers replaces the whole set with the server snapshot.
func (p *Presence) SetOnlineUsers(userIDs []int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = make(map[int64]struct{}, len(userIDs))
	for _, id := range userIDs {
		p.online[id] = struct{}{}
	}
}

// SetStatus marks a single user online or offline. Both directions are
// idempotent.
func (p *Presence) SetStatus(userID int64, online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if online {
		p.online[userID] = struct{}{}
	} else {
		delete(p.online, userID)
	}
}

func (p *Presence) IsOnline(userID int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.online[userID]
	return ok
}

// OnlineUsers returns the current set of online user ids.
func (p *Presence) OnlineUsers() []int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]int64, 0, len(p.online))
	for id := range p.online {
		ids = append(ids, id)
	}
	return ids
}

// Reset empties the set. Used on logout.
func (p *Presence) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = make(map[int64]struct{})
}
