// Package typing owns both halves of the typing-indicator state: the local
// submachine that decides when to put typing_start/typing_stop on the wire,
// and the tracker for indicators received from other participants.
package typing

import (
	"sync"
	"time"
)

const (
	DefaultStartWindow = 500 * time.Millisecond
	DefaultStopWindow  = time.Second
)

// Sender carries typing commands to the realtime channel.
type Sender interface {
	TypingStart(conversationID int64)
	TypingStop(conversationID int64)
}

// Notifier is the idle → composing → idle submachine for the local user.
// Rapid keystrokes collapse into at most one typing_start per start window;
// a start suppressed by the window is re-emitted once the window elapses if
// the user is still composing, so starts and stops always pair up. The stop
// fires after the stop window of inactivity, or immediately on blur or an
// emptied input. Pending timers live in the struct so cancellation on
// disconnect is explicit.
type Notifier struct {
	sender      Sender
	startWindow time.Duration
	stopWindow  time.Duration
	now         func() time.Time

	mu             sync.Mutex
	conversationID int64
	composing      bool
	announced      bool
	lastStart      time.Time
	startTimer     *time.Timer
	stopTimer      *time.Timer
}

func NewNotifier(sender Sender, startWindow, stopWindow time.Duration) *Notifier {
	if startWindow <= 0 {
		startWindow = DefaultStartWindow
	}
	if stopWindow <= 0 {
		stopWindow = DefaultStopWindow
	}
	return &Notifier{
		sender:      sender,
		startWindow: startWindow,
		stopWindow:  stopWindow,
		now:         time.Now,
	}
}

// Keystroke records input activity in the given conversation.
func (n *Notifier) Keystroke(conversationID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.composing && conversationID != n.conversationID {
		// Typed into a different conversation: stop the old one first.
		n.endComposing(true)
	}
	n.conversationID = conversationID

	if !n.composing {
		n.composing = true
		now := n.now()
		if wait := n.startWindow - now.Sub(n.lastStart); wait <= 0 {
			n.announce(now)
		} else {
			n.startTimer = time.AfterFunc(wait, n.fireStart)
		}
	}

	if n.stopTimer != nil {
		n.stopTimer.Stop()
	}
	n.stopTimer = time.AfterFunc(n.stopWindow, n.fireStop)
}

// announce emits typing_start. Caller holds the lock.
func (n *Notifier) announce(now time.Time) {
	n.lastStart = now
	n.announced = true
	n.sender.TypingStart(n.conversationID)
}

// fireStart emits the start that was suppressed by the window, if the user
// is still composing.
func (n *Notifier) fireStart() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.composing && !n.announced {
		n.announce(n.now())
	}
}

func (n *Notifier) fireStop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.composing {
		n.endComposing(true)
	}
}

// endComposing leaves the composing state, emitting typing_stop only when a
// start was actually announced so the other side never sees an unpaired
// stop. Caller holds the lock.
func (n *Notifier) endComposing(emit bool) {
	if n.startTimer != nil {
		n.startTimer.Stop()
		n.startTimer = nil
	}
	if emit && n.announced {
		n.sender.TypingStop(n.conversationID)
	}
	n.composing = false
	n.announced = false
}

// Stop ends composing immediately, emitting typing_stop if one is owed.
// Called on input blur and when the input is emptied.
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopTimer != nil {
		n.stopTimer.Stop()
		n.stopTimer = nil
	}
	if n.composing {
		n.endComposing(true)
	}
}

// Cancel resets the submachine without emitting anything. Used when the
// channel drops: there is nobody to tell.
func (n *Notifier) Cancel() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopTimer != nil {
		n.stopTimer.Stop()
		n.stopTimer = nil
	}
	n.endComposing(false)
}
