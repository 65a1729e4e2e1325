package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"posto/internal/models"
)

type AuthResult struct {
	User  models.User
	Token string
}

func (c *Client) Login(ctx context.Context, username, password string) (AuthResult, error) {
	req := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{username, password}

	var resp struct {
		User  models.User `json:"user"`
		Token string      `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &resp); err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: resp.User, Token: resp.Token}, nil
}

func (c *Client) Register(ctx context.Context, username, password, email string) (AuthResult, error) {
	req := struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}{username, password, email}

	var resp struct {
		NewUser models.User `json:"newUser"`
		Token   string      `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &resp); err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: resp.NewUser, Token: resp.Token}, nil
}

// Verify revalidates the current token and returns the user it belongs to.
func (c *Client) Verify(ctx context.Context) (models.User, error) {
	var resp struct {
		User models.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/verify", nil, &resp); err != nil {
		return models.User{}, err
	}
	return resp.User, nil
}

func (c *Client) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var resp struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

func (c *Client) CreateConversation(ctx context.Context, participantIDs []int64, isGroupChat bool, name string) (models.Conversation, error) {
	req := struct {
		ParticipantIDs []int64 `json:"participantIds"`
		IsGroupChat    bool    `json:"isGroupChat"`
		Name           string  `json:"name,omitempty"`
	}{participantIDs, isGroupChat, name}

	var resp struct {
		Conversation models.Conversation `json:"conversation"`
	}
	if err := c.do(ctx, http.MethodPost, "/conversations", req, &resp); err != nil {
		return models.Conversation{}, err
	}
	return resp.Conversation, nil
}

// MarkRead tells the server the current user has read the conversation up
// to now. The server broadcasts the updated lastReadAt to other members.
func (c *Client) MarkRead(ctx context.Context, conversationID int64) error {
	path := fmt.Sprintf("/conversations/%d/read", conversationID)
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

// SearchUser resolves a username to a user. A miss surfaces as ErrNotFound.
func (c *Client) SearchUser(ctx context.Context, username string) (models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(username), nil, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (c *Client) ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error) {
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	path := fmt.Sprintf("/conversations/%d/messages", conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *Client) CreateMessage(ctx context.Context, conversationID int64, body string) (models.Message, error) {
	req := struct {
		Content string `json:"content"`
	}{body}

	var resp struct {
		Message models.Message `json:"message"`
	}
	path := fmt.Sprintf("/conversations/%d/messages", conversationID)
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return models.Message{}, err
	}
	return resp.Message, nil
}

func (c *Client) DeleteMessage(ctx context.Context, conversationID, messageID int64) error {
	path := fmt.Sprintf("/conversations/%d/messages/%d", conversationID, messageID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) GetProfile(ctx context.Context, userID int64) (models.Profile, error) {
	var resp struct {
		Profile models.Profile `json:"profile"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/profiles/%d", userID), nil, &resp); err != nil {
		return models.Profile{}, err
	}
	return resp.Profile, nil
}

func (c *Client) UpdateProfile(ctx context.Context, userID int64, bio, avatarURL string) (models.Profile, error) {
	req := struct {
		Bio       string `json:"bio"`
		AvatarURL string `json:"avatarUrl"`
	}{bio, avatarURL}

	var resp struct {
		Profile models.Profile `json:"profile"`
	}
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/profiles/%d", userID), req, &resp); err != nil {
		return models.Profile{}, err
	}
	return resp.Profile, nil
}
