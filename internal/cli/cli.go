// Package cli is the line-oriented front-end. It is a pure view layer: every
// line of input maps to a client operation, every line of output renders a
// store snapshot. No conversation state lives here.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"posto/internal/client"
	"posto/internal/content"
	"posto/internal/models"
	"posto/internal/session"
	"posto/internal/store"
	"posto/internal/typing"
)

type UI struct {
	client   *client.Client
	store    *store.Store
	presence *store.Presence
	typing   *typing.Tracker
	session  *session.Store
	in       io.Reader

	outMu sync.Mutex
	out   io.Writer

	stateMu     sync.Mutex
	lastConvID  int64
	lastPrinted int64
	lastReceipt int64
	lastNotice  string
	lastSendErr string

	// draft accumulates continuation lines (trailing backslash) so a
	// multi-line message counts as one send with several keystrokes.
	draft strings.Builder
}

func New(cl *client.Client, st *store.Store, presence *store.Presence, tracker *typing.Tracker, sess *session.Store, in io.Reader, out io.Writer) *UI {
	return &UI{
		client:   cl,
		store:    st,
		presence: presence,
		typing:   tracker,
		session:  sess,
		in:       in,
		out:      out,
	}
}

// Run reads commands until EOF, /quit or context cancellation.
func (u *UI) Run(ctx context.Context) error {
	defer u.store.Subscribe(u.onState)()
	defer u.session.Subscribe(u.onSession)()

	u.printf("posto — /help for commands")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(u.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if u.handle(ctx, line) {
				return nil
			}
		}
	}
}

// handle processes one input line. Returns true to quit.
func (u *UI) handle(ctx context.Context, line string) bool {
	if !strings.HasPrefix(line, "/") {
		u.compose(ctx, line)
		return false
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/help":
		u.printHelp()
	case "/login":
		if len(args) != 2 {
			u.printf("usage: /login <username> <password>")
			return false
		}
		if err := u.client.Login(ctx, args[0], args[1]); err != nil {
			u.printf("login failed: %v", err)
		}
	case "/register":
		if len(args) != 3 {
			u.printf("usage: /register <username> <password> <email>")
			return false
		}
		if err := u.client.Register(ctx, args[0], args[1], args[2]); err != nil {
			u.printf("registration failed: %v", err)
		}
	case "/logout":
		u.client.Logout()
	case "/list":
		if err := u.client.EnsureConversations(ctx); err != nil {
			u.printf("error: %v", err)
			return false
		}
		u.printConversations()
	case "/open":
		if len(args) != 1 {
			u.printf("usage: /open <conversation id>")
			return false
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			u.printf("not a conversation id: %q", args[0])
			return false
		}
		if err := u.client.SelectConversation(ctx, id); err != nil {
			u.printf("error: %v", err)
		}
	case "/close":
		if err := u.client.SelectConversation(ctx, 0); err != nil {
			u.printf("error: %v", err)
		}
	case "/new":
		if len(args) != 1 {
			u.printf("usage: /new <username>")
			return false
		}
		if err := u.client.StartConversation(ctx, args[0]); err != nil {
			s := u.store.State()
			if s.SearchUserErr != "" {
				u.printf("%s", s.SearchUserErr)
			} else {
				u.printf("error: %v", err)
			}
		}
	case "/del":
		if len(args) != 1 {
			u.printf("usage: /del <message id>")
			return false
		}
		msgID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			u.printf("not a message id: %q", args[0])
			return false
		}
		convID := u.store.State().CurrentConversationID
		if convID == 0 {
			u.printf("open a conversation first")
			return false
		}
		if err := u.client.DeleteMessage(ctx, convID, msgID); err != nil {
			u.printf("error: %v", err)
		}
	case "/profile":
		if len(args) != 1 {
			u.printf("usage: /profile <user id>")
			return false
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			u.printf("not a user id: %q", args[0])
			return false
		}
		p, err := u.client.Profile(ctx, userID)
		if err != nil {
			u.printf("error: %v", err)
			return false
		}
		u.printf("user %d: %s", p.UserID, p.Bio)
	case "/bio":
		if _, err := u.client.UpdateProfile(ctx, strings.Join(args, " "), ""); err != nil {
			u.printf("error: %v", err)
		}
	case "/who":
		ids := u.presence.OnlineUsers()
		if len(ids) == 0 {
			u.printf("nobody online")
			return false
		}
		u.printf("online: %v", ids)
	case "/typing":
		names := u.typing.Typists()
		if len(names) == 0 {
			u.printf("nobody is typing")
			return false
		}
		u.printf("typing: %s", strings.Join(names, ", "))
	case "/quit":
		return true
	default:
		u.printf("unknown command %q, /help for the list", cmd)
	}
	return false
}

// compose treats a trailing backslash as a continuation: the draft grows and
// the typing indicator fires, the send happens on the final line.
func (u *UI) compose(ctx context.Context, line string) {
	u.client.Keystroke()

	if strings.HasSuffix(line, "\\") {
		u.draft.WriteString(strings.TrimSuffix(line, "\\"))
		u.draft.WriteString("\n")
		return
	}

	u.draft.WriteString(line)
	body := u.draft.String()
	u.draft.Reset()

	if err := u.client.SendMessage(ctx, body); err != nil {
		u.printf("send failed: %v", err)
	}
}

func (u *UI) printHelp() {
	u.printf(strings.TrimSpace(`
/login <username> <password>
/register <username> <password> <email>
/logout
/list                 conversations
/open <id>            open a conversation
/close                leave the current conversation
/new <username>       start a direct conversation
/del <message id>     delete a message in the open conversation
/profile <user id>
/bio <text>           update your profile bio
/who                  online users
/typing               who is typing here
/quit
Anything else is sent as a message; end a line with \ to continue it.`))
}

func (u *UI) printConversations() {
	s := u.store.State()
	self, _ := u.session.User()

	if len(s.Conversations) == 0 {
		u.printf("no conversations, /new <username> to start one")
		return
	}
	for _, conv := range s.Conversations {
		marker := " "
		if conv.ID == s.CurrentConversationID {
			marker = ">"
		}
		unread := ""
		if conv.UnreadFor(self.ID) {
			unread = " *"
		}
		online := ""
		if other, ok := otherParticipant(conv, self.ID); ok && u.presence.IsOnline(other.ID) {
			online = " (online)"
		}
		u.printf("%s %4d  %s%s%s", marker, conv.ID, conv.DisplayNameFor(self.ID), online, unread)
	}
}

func otherParticipant(conv models.Conversation, selfID int64) (models.User, bool) {
	if conv.IsGroupChat {
		return models.User{}, false
	}
	for _, p := range conv.Participants {
		if p.User.ID != selfID {
			return p.User, true
		}
	}
	return models.User{}, false
}

// onState prints what changed: messages that arrived for the open
// conversation, read receipts, notices and send failures.
func (u *UI) onState(s store.State) {
	u.stateMu.Lock()
	defer u.stateMu.Unlock()

	// Message ids are only comparable within one conversation, so the
	// printed watermark resets on every selection change.
	if s.CurrentConversationID != u.lastConvID {
		u.lastConvID = s.CurrentConversationID
		u.lastPrinted = 0
		u.lastReceipt = 0
	}

	if s.CurrentConversationID != 0 {
		for _, m := range s.Messages {
			if m.ID > u.lastPrinted {
				u.lastPrinted = m.ID
				u.printf("[%d] %s: %s", m.ID, m.Sender.Username, content.RenderText(m.Content))
			}
		}
		u.printReceipt(s)
	}

	if s.Notice != "" && s.Notice != u.lastNotice {
		u.printf("%s", s.Notice)
	}
	u.lastNotice = s.Notice

	if s.SendErr != "" && s.SendErr != u.lastSendErr {
		u.printf("send failed: %s", s.SendErr)
	}
	u.lastSendErr = s.SendErr
}

// printReceipt shows how far the other side has read in a direct
// conversation, anchored to the newest own message at or before their
// lastReadAt. Caller holds stateMu.
func (u *UI) printReceipt(s store.State) {
	conv, ok := s.Current()
	if !ok || conv.IsGroupChat {
		return
	}
	self, ok := u.session.User()
	if !ok {
		return
	}
	other, ok := otherParticipant(conv, self.ID)
	if !ok {
		return
	}
	p, ok := conv.Participant(other.ID)
	if !ok {
		return
	}
	id := models.LastReadMessageBy(s.Messages, self.ID, p.LastReadAt)
	if id == 0 || id == u.lastReceipt {
		return
	}
	u.lastReceipt = id
	u.printf("read by %s up to [%d]", other.Username, id)
}

func (u *UI) onSession(sess session.Session) {
	switch sess.Status {
	case session.StatusAuthenticated:
		if sess.User != nil {
			u.printf("logged in as %s", sess.User.Username)
		}
	case session.StatusFailed:
		u.printf("authentication failed: %s", sess.Err)
	case session.StatusIdle:
		u.printf("logged out")
	}
}

func (u *UI) printf(format string, args ...any) {
	u.outMu.Lock()
	defer u.outMu.Unlock()
	fmt.Fprintf(u.out, format+"\n", args...)
}
