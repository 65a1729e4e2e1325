// Package client is the effects layer: it drives the API gateway and the
// realtime channel in response to user intents and keeps the stores
// consistent. All state lives in the stores; the Client only sequences
// network calls and dispatches.
package client

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/c-pro/geche"

	"posto/internal/api"
	"posto/internal/content"
	"posto/internal/models"
	"posto/internal/realtime"
	"posto/internal/session"
	"posto/internal/store"
	"posto/internal/typing"
)

var (
	ErrNoSelection  = errors.New("no conversation selected")
	ErrSendInFlight = errors.New("a send is already in flight")
)

// Gateway is the request/response collaborator surface the client uses.
// *api.Client satisfies it.
type Gateway interface {
	Login(ctx context.Context, username, password string) (api.AuthResult, error)
	Register(ctx context.Context, username, password, email string) (api.AuthResult, error)
	Verify(ctx context.Context) (models.User, error)
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	CreateConversation(ctx context.Context, participantIDs []int64, isGroupChat bool, name string) (models.Conversation, error)
	MarkRead(ctx context.Context, conversationID int64) error
	SearchUser(ctx context.Context, username string) (models.User, error)
	ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error)
	CreateMessage(ctx context.Context, conversationID int64, body string) (models.Message, error)
	DeleteMessage(ctx context.Context, conversationID, messageID int64) error
	GetProfile(ctx context.Context, userID int64) (models.Profile, error)
	UpdateProfile(ctx context.Context, userID int64, bio, avatarURL string) (models.Profile, error)
}

// Channel is the realtime collaborator surface. *realtime.Adapter
// satisfies it.
type Channel interface {
	Join(conversationID int64)
	Send(ctx context.Context, conversationID int64, body string) error
	Ready() bool
}

type Config struct {
	Gateway    Gateway
	Channel    Channel
	Store      *store.Store
	Presence   *store.Presence
	Typing     *typing.Tracker
	Notifier   *typing.Notifier
	Session    *session.Store
	ProfileTTL time.Duration
	Logger     *slog.Logger
}

type Client struct {
	gw       Gateway
	channel  Channel
	store    *store.Store
	presence *store.Presence
	typing   *typing.Tracker
	notifier *typing.Notifier
	session  *session.Store
	profiles geche.Geche[int64, models.Profile]
	log      *slog.Logger

	refreshing atomic.Bool
	sending    atomic.Bool
	lastReadID atomic.Int64
}

func New(ctx context.Context, cfg Config) *Client {
	if cfg.ProfileTTL <= 0 {
		cfg.ProfileTTL = 5 * time.Minute
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	c := &Client{
		gw:       cfg.Gateway,
		channel:  cfg.Channel,
		store:    cfg.Store,
		presence: cfg.Presence,
		typing:   cfg.Typing,
		notifier: cfg.Notifier,
		session:  cfg.Session,
		profiles: geche.NewMapTTLCache[int64, models.Profile](ctx, cfg.ProfileTTL, time.Minute),
		log:      log,
	}

	c.store.Subscribe(func(s store.State) { c.onStoreChange(ctx, s) })
	return c
}

// onStoreChange reacts to store transitions that need a network follow-up:
// a stale conversation list, and read-marking when a new message lands in
// the selected conversation.
func (c *Client) onStoreChange(ctx context.Context, s store.State) {
	if s.ListStale && !s.Loading && c.refreshing.CompareAndSwap(false, true) {
		go func() {
			defer c.refreshing.Store(false)
			if err := c.LoadConversations(ctx); err != nil {
				c.log.Warn("stale-list refresh failed", "error", err)
			}
		}()
	}

	if s.CurrentConversationID != 0 && len(s.Messages) > 0 {
		last := s.Messages[len(s.Messages)-1]
		if c.lastReadID.Swap(last.ID) != last.ID {
			go c.markRead(ctx, s.CurrentConversationID)
		}
	}
}

// Restore seeds the session from persisted credentials and verifies the
// token before trusting it.
func (c *Client) Restore(ctx context.Context) error {
	creds, err := c.session.SeedFromStorage()
	if err != nil {
		// Nothing persisted: stay idle, the user logs in normally.
		return nil
	}

	user, err := c.gw.Verify(ctx)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			// The stored token is dead; drop it for good.
			c.session.Logout()
		} else {
			c.session.SetFailed(err.Error())
		}
		return err
	}

	c.session.SetAuthenticated(user, creds.Token)
	c.typing.SetSelf(user.ID)
	return nil
}

func (c *Client) Login(ctx context.Context, username, password string) error {
	c.session.BeginAuth()
	res, err := c.gw.Login(ctx, username, password)
	if err != nil {
		c.session.SetFailed(err.Error())
		return err
	}
	c.session.SetAuthenticated(res.User, res.Token)
	c.typing.SetSelf(res.User.ID)
	return nil
}

func (c *Client) Register(ctx context.Context, username, password, email string) error {
	if err := content.ValidateUsername(username); err != nil {
		c.session.SetFailed(err.Error())
		return err
	}
	c.session.BeginAuth()
	res, err := c.gw.Register(ctx, username, password, email)
	if err != nil {
		c.session.SetFailed(err.Error())
		return err
	}
	c.session.SetAuthenticated(res.User, res.Token)
	c.typing.SetSelf(res.User.ID)
	return nil
}

// Logout tears the whole client-side state down: session, persisted
// credentials, conversations, presence and typing.
func (c *Client) Logout() {
	c.session.Logout()
	c.store.Dispatch(store.Reset{})
	c.presence.Reset()
	c.typing.Clear()
	c.notifier.Cancel()
	c.lastReadID.Store(0)
}

// EnsureConversations loads the list if it has never been loaded this
// session.
func (c *Client) EnsureConversations(ctx context.Context) error {
	s := c.store.State()
	if len(s.Conversations) > 0 || s.Loading {
		return nil
	}
	return c.LoadConversations(ctx)
}

// LoadConversations replaces the list with a fresh snapshot.
func (c *Client) LoadConversations(ctx context.Context) error {
	if c.store.State().Loading {
		return nil
	}
	c.store.Dispatch(store.ConversationsRequested{})
	conversations, err := c.gw.ListConversations(ctx)
	if err != nil {
		c.store.Dispatch(store.ConversationsFailed{Err: err.Error()})
		return err
	}
	c.store.Dispatch(store.ConversationsLoaded{Conversations: conversations})
	return nil
}

// SelectConversation switches the selection. Selecting the current id
// deselects. The message log clears before any fetch starts, so a slow
// response for the previous conversation can never show under the new one.
func (c *Client) SelectConversation(ctx context.Context, id int64) error {
	c.notifier.Stop()
	c.store.Dispatch(store.ConversationSelected{ID: id})
	return c.afterSelect(ctx)
}

// afterSelect runs the side effects of a selection change: rescope typing,
// join the conversation's event stream and fetch the snapshot. Read-marking
// happens in onStoreChange once the snapshot lands.
func (c *Client) afterSelect(ctx context.Context) error {
	id := c.store.State().CurrentConversationID
	c.typing.SetConversation(id)
	if id == 0 {
		return nil
	}

	c.channel.Join(id)

	c.store.Dispatch(store.MessagesRequested{ConversationID: id})
	messages, err := c.gw.ListMessages(ctx, id)
	if err != nil {
		c.store.Dispatch(store.MessagesFailed{ConversationID: id, Err: err.Error()})
		return err
	}
	c.store.Dispatch(store.MessagesLoaded{ConversationID: id, Messages: messages})
	return nil
}

// StartConversation resolves a username and opens a direct conversation
// with that user, reusing an existing one instead of creating a duplicate.
// The server is not assumed to enforce 1:1 uniqueness; the check here is
// the only guard.
func (c *Client) StartConversation(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if err := content.ValidateUsername(username); err != nil {
		c.store.Dispatch(store.UserSearchMissed{Err: err.Error()})
		return err
	}

	c.store.Dispatch(store.NewConversationRequested{})

	target, err := c.gw.SearchUser(ctx, username)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			c.store.Dispatch(store.UserSearchMissed{Err: "User not found."})
		} else {
			c.store.Dispatch(store.NewConversationFailed{Err: err.Error()})
		}
		return err
	}

	self, ok := c.session.User()
	if !ok {
		err := errors.New("not authenticated")
		c.store.Dispatch(store.NewConversationFailed{Err: err.Error()})
		return err
	}
	if target.ID == self.ID {
		err := errors.New("cannot start a conversation with yourself")
		c.store.Dispatch(store.UserSearchMissed{Err: "Cannot start a conversation with yourself."})
		return err
	}

	for _, conv := range c.store.State().Conversations {
		if conv.IsDirectWith(self.ID, target.ID) {
			c.store.Dispatch(store.ExistingConversationSelected{ID: conv.ID})
			return c.afterSelect(ctx)
		}
	}

	conv, err := c.gw.CreateConversation(ctx, []int64{self.ID, target.ID}, false, "")
	if err != nil {
		c.store.Dispatch(store.NewConversationFailed{Err: err.Error()})
		return err
	}
	c.store.Dispatch(store.ConversationAdded{Conversation: conv})
	c.channel.Join(conv.ID)
	return nil
}

// SendMessage puts the trimmed body on the channel and waits for the
// delivery acknowledgment. A second send while one is pending is dropped,
// not queued. On failure the draft stays with the caller for retry.
func (c *Client) SendMessage(ctx context.Context, body string) error {
	if err := content.ValidateMessage(body); err != nil {
		return err
	}
	s := c.store.State()
	if s.CurrentConversationID == 0 {
		return ErrNoSelection
	}
	if s.Sending {
		return ErrSendInFlight
	}
	// The snapshot check above is not atomic with the dispatch below; the
	// flag is what actually serializes concurrent callers.
	if !c.sending.CompareAndSwap(false, true) {
		return ErrSendInFlight
	}
	defer c.sending.Store(false)

	c.notifier.Stop()
	c.store.Dispatch(store.SendStarted{})
	trimmed := strings.TrimSpace(body)
	err := c.channel.Send(ctx, s.CurrentConversationID, trimmed)
	if errors.Is(err, realtime.ErrNotConnected) {
		// Channel down: fall back to the REST endpoint. The echo event will
		// not arrive either, so the created message is ingested directly.
		var msg models.Message
		if msg, err = c.gw.CreateMessage(ctx, s.CurrentConversationID, trimmed); err == nil {
			c.store.Dispatch(store.MessageReceived{Message: msg})
		}
	}
	if err != nil {
		c.store.Dispatch(store.SendFailed{Err: err.Error()})
		return err
	}
	// On the channel path the acknowledged message arrives via the
	// message_new event; inserting it here too would double it up.
	c.store.Dispatch(store.SendFinished{})
	return nil
}

// DeleteMessage removes a message through the gateway. Log reconciliation
// happens via the list refetch on the next selection; deletion is outside
// the live event contract.
func (c *Client) DeleteMessage(ctx context.Context, conversationID, messageID int64) error {
	return c.gw.DeleteMessage(ctx, conversationID, messageID)
}

// Keystroke reports local input activity for the typing indicator.
func (c *Client) Keystroke() {
	id := c.store.State().CurrentConversationID
	if id == 0 || !c.channel.Ready() {
		return
	}
	c.notifier.Keystroke(id)
}

// InputIdle signals blur or an emptied input; any owed typing_stop fires
// immediately.
func (c *Client) InputIdle() {
	c.notifier.Stop()
}

// Profile fetches a user's profile through a TTL cache.
func (c *Client) Profile(ctx context.Context, userID int64) (models.Profile, error) {
	if p, err := c.profiles.Get(userID); err == nil {
		return p, nil
	}
	p, err := c.gw.GetProfile(ctx, userID)
	if err != nil {
		return models.Profile{}, err
	}
	c.profiles.Set(userID, p)
	return p, nil
}

func (c *Client) UpdateProfile(ctx context.Context, bio, avatarURL string) (models.Profile, error) {
	self, ok := c.session.User()
	if !ok {
		return models.Profile{}, errors.New("not authenticated")
	}
	p, err := c.gw.UpdateProfile(ctx, self.ID, bio, avatarURL)
	if err != nil {
		return models.Profile{}, err
	}
	c.profiles.Set(self.ID, p)
	return p, nil
}

func (c *Client) markRead(ctx context.Context, conversationID int64) {
	if err := c.gw.MarkRead(ctx, conversationID); err != nil {
		c.log.Warn("mark read failed", "conversation_id", conversationID, "error", err)
	}
	self, ok := c.session.User()
	if !ok {
		return
	}
	// Only the local user's marker moves locally; other participants'
	// markers advance solely via server-confirmed events.
	c.store.Dispatch(store.ReadMarked{
		ConversationID: conversationID,
		UserID:         self.ID,
		At:             time.Now(),
	})
}
