// ABOUTME: Dialer and Conn seams over the websocket library.
// ABOUTME: Tests inject fakes; production wraps coder/websocket.

package channel

import (
	"context"

	"github.com/coder/websocket"
)

// Conn is a minimal text-frame connection.
type Conn interface {
	ReadMessage(ctx context.Context) ([]byte, error)
	WriteMessage(ctx context.Context, data []byte) error
	Close() error
}

// Dialer opens websocket connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer is the production Dialer.
type WebsocketDialer struct{}

// Dial opens a websocket connection to url.
func (WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &websocketConn{conn: c}, nil
}

type websocketConn struct {
	conn *websocket.Conn
}

func (w *websocketConn) ReadMessage(ctx context.Context) ([]byte, error) {
	_, data, err := w.conn.Read(ctx)
	return data, err
}

func (w *websocketConn) WriteMessage(ctx context.Context, data []byte) error {
	return w.conn.Write(ctx, websocket.MessageText, data)
}

func (w *websocketConn) Close() error {
	return w.conn.Close(websocket.StatusNormalClosure, "")
}
