package web

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

// WatchEvent is one message received from /ws/state. Data is left raw so the
// caller can decode it by Type.
type WatchEvent struct {
	Type string              `json:"type"`
	Time time.Time           `json:"time"`
	Data jsoniter.RawMessage `json:"data"`
}

// Watch connects to a /ws/state endpoint and calls fn for every event until
// ctx is done, the server closes the connection, or fn returns an error.
func Watch(ctx context.Context, url string, fn func(WatchEvent) error) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer ws.Close()

	// unblock ReadMessage when ctx ends
	stop := context.AfterFunc(ctx, func() {
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		ws.Close()
	})
	defer stop()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		var ev WatchEvent
		if err := jsoniter.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("failed to decode event: %w", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}
