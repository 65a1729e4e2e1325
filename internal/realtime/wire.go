package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"posto/internal/models"
)

// Event and command names on the channel. The envelope is the same both
// ways: {"type": ..., "payload": ...}.
const (
	eventOnlineUsers = "online_users"
	eventUserStatus  = "user_status"
	eventTypingStart = "typing_start"
	eventTypingStop  = "typing_stop"
	eventMessageNew  = "message_new"
	eventAck         = "ack"

	commandJoin        = "join"
	commandMessageSend = "message_send"
	commandTypingStart = "typing_start"
	commandTypingStop  = "typing_stop"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type command struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Wire payloads are decoded into these types and validated before anything
// reaches a store. A payload that fails validation is dropped and logged;
// half-formed events must not leak zero values into the model.

type wireUser struct {
	ID       int64  `json:"id" validate:"required,gt=0"`
	Username string `json:"username" validate:"required"`
	Email    string `json:"email"`
}

func (u wireUser) toModel() models.User {
	return models.User{ID: u.ID, Username: u.Username, Email: u.Email}
}

type wireParticipant struct {
	User       wireUser   `json:"user" validate:"required"`
	LastReadAt *time.Time `json:"lastReadAt"`
}

type wireConversation struct {
	ID           int64             `json:"id" validate:"required,gt=0"`
	Name         string            `json:"name"`
	IsGroupChat  bool              `json:"isGroupChat"`
	Participants []wireParticipant `json:"participants" validate:"dive"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

func (c wireConversation) toModel() models.Conversation {
	conv := models.Conversation{
		ID:          c.ID,
		Name:        c.Name,
		IsGroupChat: c.IsGroupChat,
		UpdatedAt:   c.UpdatedAt,
	}
	for _, p := range c.Participants {
		conv.Participants = append(conv.Participants, models.Participant{
			User:       p.User.toModel(),
			LastReadAt: p.LastReadAt,
		})
	}
	return conv
}

type wireMessage struct {
	ID             int64     `json:"id" validate:"required,gt=0"`
	ConversationID int64     `json:"conversationId" validate:"required,gt=0"`
	Sender         wireUser  `json:"sender" validate:"required"`
	Content        string    `json:"content" validate:"required"`
	CreatedAt      time.Time `json:"createdAt" validate:"required"`
}

func (m wireMessage) toModel() models.Message {
	return models.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         m.Sender.toModel(),
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}

type onlineUsersPayload struct {
	UserIDs []int64 `json:"userIds" validate:"dive,gt=0"`
}

type userStatusPayload struct {
	UserID int64  `json:"userId" validate:"required,gt=0"`
	Status string `json:"status" validate:"required,oneof=online offline"`
}

type typingStartPayload struct {
	ConversationID int64  `json:"conversationId" validate:"required,gt=0"`
	UserID         int64  `json:"userId" validate:"required,gt=0"`
	Username       string `json:"username" validate:"required"`
}

type typingStopPayload struct {
	ConversationID int64 `json:"conversationId" validate:"required,gt=0"`
	UserID         int64 `json:"userId" validate:"required,gt=0"`
}

type messageNewPayload struct {
	Message wireMessage `json:"message" validate:"required"`
	// Conversation is embedded by the server for conversations the client
	// has never seen (the first message of a brand-new chat).
	Conversation *wireConversation `json:"conversation,omitempty"`
}

type ackPayload struct {
	ClientMsgID string       `json:"clientMsgId" validate:"required"`
	OK          bool         `json:"ok"`
	Error       string       `json:"error,omitempty"`
	Message     *wireMessage `json:"message,omitempty"`
}

type joinPayload struct {
	ConversationID int64 `json:"conversationId"`
}

type sendPayload struct {
	ClientMsgID    string `json:"clientMsgId"`
	ConversationID int64  `json:"conversationId"`
	Content        string `json:"content"`
}

type typingPayload struct {
	ConversationID int64 `json:"conversationId"`
}

// decodePayload unmarshals and validates a payload in one step.
func decodePayload[T any](validate *validator.Validate, raw json.RawMessage, out *T) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}
