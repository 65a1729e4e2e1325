package realtime

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"posto/internal/api"
)

// NewDialer returns a Dialer that opens a websocket to wsURL with the
// current bearer token attached at handshake. The token is read fresh on
// every dial so a re-login picks up the new credential.
func NewDialer(wsURL string, tokens api.TokenSource) Dialer {
	return func(ctx context.Context) (Conn, error) {
		header := http.Header{}
		if token := tokens.Token(); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}

		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("websocket handshake failed (status %d): %w", resp.StatusCode, err)
			}
			return nil, fmt.Errorf("websocket dial failed: %w", err)
		}
		return conn, nil
	}
}
