package typing

import (
	"sync"
	"testing"
	"time"
)

type recordingSender struct {
	mu     sync.Mutex
	starts []int64
	stops  []int64
}

func (r *recordingSender) TypingStart(conversationID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, conversationID)
}

func (r *recordingSender) TypingStop(conversationID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops = append(r.stops, conversationID)
}

func (r *recordingSender) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.starts), len(r.stops)
}

func TestNotifier_DebouncesRapidKeystrokes(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, 50*time.Millisecond, 100*time.Millisecond)

	// 5 keystrokes in quick succession: exactly one start.
	for i := 0; i < 5; i++ {
		n.Keystroke(1)
		time.Sleep(5 * time.Millisecond)
	}

	starts, stops := sender.counts()
	if starts != 1 {
		t.Errorf("expected 1 typing_start, got %d", starts)
	}
	if stops != 0 {
		t.Errorf("expected no typing_stop yet, got %d", stops)
	}

	// After the stop window elapses with no input: exactly one stop.
	time.Sleep(150 * time.Millisecond)
	starts, stops = sender.counts()
	if starts != 1 || stops != 1 {
		t.Errorf("expected 1 start / 1 stop after inactivity, got %d / %d", starts, stops)
	}
}

func TestNotifier_StopFiresImmediately(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, 10*time.Millisecond, time.Minute)

	n.Keystroke(1)
	n.Stop()

	starts, stops := sender.counts()
	if starts != 1 || stops != 1 {
		t.Errorf("expected immediate stop, got %d starts / %d stops", starts, stops)
	}

	// Stop while idle owes nothing.
	n.Stop()
	_, stops = sender.counts()
	if stops != 1 {
		t.Errorf("idle stop emitted: %d stops", stops)
	}
}

func TestNotifier_StartSuppressionWindow(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, 60*time.Millisecond, time.Minute)

	n.Keystroke(1)
	n.Stop()
	// Resuming within the suppression window must not emit another start
	// right away.
	n.Keystroke(1)

	starts, _ := sender.counts()
	if starts != 1 {
		t.Errorf("expected suppressed second start, got %d", starts)
	}

	// Still composing once the window elapses: the suppressed start is
	// re-emitted, so the eventual stop is not unpaired.
	time.Sleep(100 * time.Millisecond)
	starts, _ = sender.counts()
	if starts != 2 {
		t.Errorf("suppressed start never re-emitted: %d starts", starts)
	}

	n.Stop()
	starts, stops := sender.counts()
	if starts != stops {
		t.Errorf("unbalanced pair: %d starts / %d stops", starts, stops)
	}
}

func TestNotifier_SuppressedStartOwesNoStop(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, time.Minute, time.Minute)

	n.Keystroke(1)
	n.Stop()
	// Second composing burst entirely inside the suppression window: no
	// start was announced, so the stop must not go out either.
	n.Keystroke(1)
	n.Stop()

	starts, stops := sender.counts()
	if starts != 1 || stops != 1 {
		t.Errorf("expected 1 start / 1 stop, got %d / %d", starts, stops)
	}
}

func TestNotifier_ConversationSwitchStopsOld(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, time.Millisecond, time.Minute)

	n.Keystroke(1)
	time.Sleep(5 * time.Millisecond)
	n.Keystroke(2)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.stops) != 1 || sender.stops[0] != 1 {
		t.Errorf("expected stop for conversation 1, got %v", sender.stops)
	}
	if len(sender.starts) != 2 || sender.starts[1] != 2 {
		t.Errorf("expected start for conversation 2, got %v", sender.starts)
	}
}

func TestNotifier_CancelIsSilent(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, time.Millisecond, 50*time.Millisecond)

	n.Keystroke(1)
	n.Cancel()
	time.Sleep(80 * time.Millisecond)

	_, stops := sender.counts()
	if stops != 0 {
		t.Errorf("cancel emitted a stop: %d", stops)
	}
}

func TestTracker(t *testing.T) {
	tr := NewTracker()
	tr.SetSelf(1)
	tr.SetConversation(10)

	// Own echo ignored.
	tr.ApplyStart(10, 1, "me")
	if len(tr.Typists()) != 0 {
		t.Error("own typing echo recorded")
	}

	// Wrong conversation ignored.
	tr.ApplyStart(11, 2, "bob")
	if len(tr.Typists()) != 0 {
		t.Error("typing for unselected conversation recorded")
	}

	tr.ApplyStart(10, 2, "bob")
	if got := tr.Typists(); len(got) != 1 || got[0] != "bob" {
		t.Errorf("expected [bob], got %v", got)
	}

	// The typist's own message clears the indicator even without a stop.
	tr.MessageArrived(10, 2)
	if len(tr.Typists()) != 0 {
		t.Error("message arrival did not clear indicator")
	}

	tr.ApplyStart(10, 3, "carol")
	tr.ApplyStop(10, 3)
	if len(tr.Typists()) != 0 {
		t.Error("stop did not clear indicator")
	}

	tr.ApplyStart(10, 2, "bob")
	tr.SetConversation(11)
	if len(tr.Typists()) != 0 {
		t.Error("selection change did not clear indicators")
	}

	tr.ApplyStart(11, 2, "bob")
	tr.Clear()
	if len(tr.Typists()) != 0 {
		t.Error("clear left indicators behind")
	}
}
