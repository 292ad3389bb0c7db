package client

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/vanguard/backend/internal/model/chat"
)

// DialStream sends req over the websocket transport. Frames are fed to the
// same decoder as the HTTP body, so events are identical.
func (c *Client) DialStream(ctx context.Context, req chat.ChatRequest) *Stream {
	url := websocketURL(c.baseURL) + "/api/chat/ws"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		log.Printf("[client] websocket dial %s failed: %v", url, err)
		return failureStream(c.networkErrorMessage())
	}

	if err := conn.WriteJSON(req); err != nil {
		_ = conn.Close()
		return failureStream(fmt.Sprintf("failed to send request: %v", err))
	}

	pr, pw := io.Pipe()
	go pumpFrames(conn, pw)

	return NewStream(&frameBody{PipeReader: pr, conn: conn})
}

func pumpFrames(conn *websocket.Conn, pw *io.PipeWriter) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				pw.Close()
				return
			}
			pw.CloseWithError(err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if _, err := pw.Write(data); err != nil {
			// reader closed
			return
		}
	}
}

type frameBody struct {
	*io.PipeReader
	conn *websocket.Conn
}

func (b *frameBody) Close() error {
	_ = b.PipeReader.Close()
	return b.conn.Close()
}

func websocketURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}
