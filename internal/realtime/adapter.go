// Package realtime adapts the bidirectional event channel to the stores:
// inbound events become store actions, store-level intents become channel
// commands. The adapter owns connection state, join replay, and send
// acknowledgment tracking; it never owns conversation data.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"posto/internal/content"
	"posto/internal/models"
	"posto/internal/store"
	"posto/internal/typing"
)

var (
	// ErrNotConnected is returned for sends attempted while the channel is
	// down. Joins, by contrast, queue and replay.
	ErrNotConnected = errors.New("channel not connected")
	// ErrAckTimeout is returned when the server does not acknowledge a send
	// within the configured bound.
	ErrAckTimeout = errors.New("send not acknowledged in time")
)

// Conn is the minimal surface the adapter needs from a websocket
// connection.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

// Dialer establishes one authenticated connection.
type Dialer func(ctx context.Context) (Conn, error)

type Config struct {
	Dial         Dialer
	Store        *store.Store
	Presence     *store.Presence
	Typing       *typing.Tracker
	AckTimeout   time.Duration
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	Logger       *slog.Logger

	// OnDisconnect runs after every connection loss, in addition to the
	// adapter's own typing-state cleanup.
	OnDisconnect func()
}

type Adapter struct {
	cfg      Config
	log      *slog.Logger
	validate *validator.Validate

	mu           sync.Mutex
	conn         Conn
	ready        bool
	pendingJoins map[int64]struct{}
	pendingAcks  map[string]chan ackPayload

	writeMu sync.Mutex
}

func NewAdapter(cfg Config) *Adapter {
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = 10 * time.Second
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = time.Second
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		cfg:          cfg,
		log:          log,
		validate:     validator.New(),
		pendingJoins: make(map[int64]struct{}),
		pendingAcks:  make(map[string]chan ackPayload),
	}
}

// Run connects and pumps events until ctx is cancelled, redialing with
// exponential backoff after every connection loss. Conversation and message
// state survive a drop untouched; only typing indicators are cleared.
func (a *Adapter) Run(ctx context.Context) error {
	backoff := a.cfg.ReconnectMin
	for {
		conn, err := a.cfg.Dial(ctx)
		if err != nil {
			a.log.Warn("channel dial failed", "error", err, "retry_in", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = min(backoff*2, a.cfg.ReconnectMax)
			continue
		}
		backoff = a.cfg.ReconnectMin

		a.onConnect(conn)

		// ReadJSON has no cancellation of its own: close the connection when
		// the context ends so the read loop unblocks.
		watch := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				_ = conn.Close()
			case <-watch:
			}
		}()

		err = a.readLoop(ctx, conn)
		close(watch)
		a.onDisconnect(conn)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.log.Warn("channel disconnected", "error", err, "retry_in", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = min(backoff*2, a.cfg.ReconnectMax)
	}
}

// Ready reports whether the channel is currently connected.
func (a *Adapter) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

func (a *Adapter) onConnect(conn Conn) {
	a.mu.Lock()
	a.conn = conn
	a.ready = true
	queued := a.pendingJoins
	a.pendingJoins = make(map[int64]struct{})
	a.mu.Unlock()

	// Join state does not survive a reconnect server-side: re-emit for
	// every conversation the store knows about, plus anything queued while
	// the channel was down.
	for _, c := range a.cfg.Store.State().Conversations {
		queued[c.ID] = struct{}{}
	}
	if id := a.cfg.Store.State().CurrentConversationID; id != 0 {
		queued[id] = struct{}{}
	}
	for id := range queued {
		if err := a.write(command{Type: commandJoin, Payload: joinPayload{ConversationID: id}}); err != nil {
			a.log.Warn("join replay failed", "conversation_id", id, "error", err)
		}
	}
}

func (a *Adapter) onDisconnect(conn Conn) {
	_ = conn.Close()

	a.mu.Lock()
	a.conn = nil
	a.ready = false
	acks := a.pendingAcks
	a.pendingAcks = make(map[string]chan ackPayload)
	a.mu.Unlock()

	// Unblock in-flight sends; they fail with a network error.
	for _, ch := range acks {
		close(ch)
	}

	a.cfg.Typing.Clear()
	if a.cfg.OnDisconnect != nil {
		a.cfg.OnDisconnect()
	}
}

func (a *Adapter) readLoop(ctx context.Context, conn Conn) error {
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return err
		}
		a.handleEvent(env)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (a *Adapter) write(cmd command) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return conn.WriteJSON(cmd)
}

// Join subscribes to a conversation's events. When the channel is down the
// join queues and replays on the next connect.
func (a *Adapter) Join(conversationID int64) {
	a.mu.Lock()
	ready := a.ready
	if !ready {
		a.pendingJoins[conversationID] = struct{}{}
	}
	a.mu.Unlock()
	if !ready {
		return
	}
	if err := a.write(command{Type: commandJoin, Payload: joinPayload{ConversationID: conversationID}}); err != nil {
		a.log.Warn("join failed", "conversation_id", conversationID, "error", err)
	}
}

// Send puts a message on the wire and waits for the server's acknowledgment.
// The acknowledgment is a delivery receipt only: the message itself arrives
// through the regular message_new event, which keeps the sender's own
// broadcast from inserting twice.
func (a *Adapter) Send(ctx context.Context, conversationID int64, body string) error {
	clientMsgID := uuid.NewString()

	ch := make(chan ackPayload, 1)
	a.mu.Lock()
	if !a.ready {
		a.mu.Unlock()
		return ErrNotConnected
	}
	a.pendingAcks[clientMsgID] = ch
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.pendingAcks, clientMsgID)
		a.mu.Unlock()
	}()

	err := a.write(command{Type: commandMessageSend, Payload: sendPayload{
		ClientMsgID:    clientMsgID,
		ConversationID: conversationID,
		Content:        body,
	}})
	if err != nil {
		return err
	}

	select {
	case ack, ok := <-ch:
		if !ok {
			return ErrNotConnected
		}
		if !ack.OK {
			return fmt.Errorf("send rejected: %s", ack.Error)
		}
		return nil
	case <-time.After(a.cfg.AckTimeout):
		return ErrAckTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TypingStart and TypingStop implement typing.Sender. Both are best-effort
// UX signals; failures are logged and swallowed.
func (a *Adapter) TypingStart(conversationID int64) {
	if err := a.write(command{Type: commandTypingStart, Payload: typingPayload{ConversationID: conversationID}}); err != nil && !errors.Is(err, ErrNotConnected) {
		a.log.Debug("typing start not sent", "error", err)
	}
}

func (a *Adapter) TypingStop(conversationID int64) {
	if err := a.write(command{Type: commandTypingStop, Payload: typingPayload{ConversationID: conversationID}}); err != nil && !errors.Is(err, ErrNotConnected) {
		a.log.Debug("typing stop not sent", "error", err)
	}
}

// handleEvent decodes, validates and applies one inbound event. Events that
// fail validation are dropped: propagating a half-decoded payload into the
// stores is the one thing this boundary exists to prevent.
func (a *Adapter) handleEvent(env envelope) {
	switch env.Type {
	case eventOnlineUsers:
		var p onlineUsersPayload
		if err := decodePayload(a.validate, env.Payload, &p); err != nil {
			a.dropEvent(env.Type, err)
			return
		}
		a.cfg.Presence.SetOnlineUsers(p.UserIDs)

	case eventUserStatus:
		var p userStatusPayload
		if err := decodePayload(a.validate, env.Payload, &p); err != nil {
			a.dropEvent(env.Type, err)
			return
		}
		a.cfg.Presence.SetStatus(p.UserID, p.Status == "online")

	case eventTypingStart:
		var p typingStartPayload
		if err := decodePayload(a.validate, env.Payload, &p); err != nil {
			a.dropEvent(env.Type, err)
			return
		}
		a.cfg.Typing.ApplyStart(p.ConversationID, p.UserID, p.Username)

	case eventTypingStop:
		var p typingStopPayload
		if err := decodePayload(a.validate, env.Payload, &p); err != nil {
			a.dropEvent(env.Type, err)
			return
		}
		a.cfg.Typing.ApplyStop(p.ConversationID, p.UserID)

	case eventMessageNew:
		var p messageNewPayload
		if err := decodePayload(a.validate, env.Payload, &p); err != nil {
			a.dropEvent(env.Type, err)
			return
		}
		msg := p.Message.toModel()
		msg.Content = content.Sanitize(msg.Content)

		var conv *models.Conversation
		if p.Conversation != nil {
			c := p.Conversation.toModel()
			conv = &c
		}
		a.cfg.Store.Dispatch(store.MessageReceived{Message: msg, Conversation: conv})
		// A message from a participant supersedes their typing indicator.
		a.cfg.Typing.MessageArrived(msg.ConversationID, msg.Sender.ID)

	case eventAck:
		var p ackPayload
		if err := decodePayload(a.validate, env.Payload, &p); err != nil {
			a.dropEvent(env.Type, err)
			return
		}
		a.mu.Lock()
		ch, ok := a.pendingAcks[p.ClientMsgID]
		if ok {
			delete(a.pendingAcks, p.ClientMsgID)
		}
		a.mu.Unlock()
		if ok {
			ch <- p
		}

	default:
		a.log.Debug("unknown event type", "type", env.Type)
	}
}

func (a *Adapter) dropEvent(eventType string, err error) {
	a.log.Warn("dropping event", "type", eventType, "error", err)
}
