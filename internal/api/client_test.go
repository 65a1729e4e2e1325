package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"posto/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, StaticToken("test-token"), 5*time.Second)
}

func TestClient_Login(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/login" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.Username != "alice" || req.Password != "pw" {
			t.Errorf("wrong credentials forwarded: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user":  models.User{ID: 1, Username: "alice"},
			"token": "tok",
		})
	}))

	res, err := c.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	require.Equal(t, int64(1), res.User.ID)
	require.Equal(t, "tok", res.Token)
}

func TestClient_BearerHeader(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{"conversations": []models.Conversation{}})
	}))

	_, err := c.ListConversations(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer test-token", gotAuth)
}

func TestClient_SearchUserNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "User not found."})
	}))

	_, err := c.SearchUser(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClient_Unauthorized(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := c.Verify(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := NewClient(addr, StaticToken(""), time.Second)
	_, err := c.ListConversations(context.Background())
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("expected ErrUnreachable, got %v", err)
	}
}

func TestClient_MessagesRoundtrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/conversations/7/messages":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"messages": []models.Message{
					{ID: 1, ConversationID: 7, Content: "hi", CreatedAt: now},
				},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/conversations/7/messages":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"message": models.Message{ID: 2, ConversationID: 7, Content: "yo", CreatedAt: now},
			})
		case r.Method == http.MethodDelete && r.URL.Path == "/conversations/7/messages/2":
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusBadRequest)
		}
	}))

	msgs, err := c.ListMessages(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "hi", msgs[0].Content)

	msg, err := c.CreateMessage(context.Background(), 7, "yo")
	require.NoError(t, err)
	require.Equal(t, int64(2), msg.ID)

	require.NoError(t, c.DeleteMessage(context.Background(), 7, 2))
}
