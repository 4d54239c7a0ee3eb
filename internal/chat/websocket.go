package chat

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"renomarket.org/internal/gateway"
)

// WebsocketTransport dials the marketplace realtime endpoint. Frames are
// JSON text messages in both directions.
type WebsocketTransport struct {
	url    string
	tokens gateway.TokenSource
	dialer *websocket.Dialer
}

func NewWebsocketTransport(url string, tokens gateway.TokenSource) *WebsocketTransport {
	return &WebsocketTransport{
		url:    url,
		tokens: tokens,
		dialer: websocket.DefaultDialer,
	}
}

func (t *WebsocketTransport) Connect(ctx context.Context) (Conn, error) {
	header := http.Header{}
	if t.tokens != nil {
		if token := strings.TrimSpace(t.tokens.Token()); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}
	ws, _, err := t.dialer.DialContext(ctx, t.url, header)
	if err != nil {
		return nil, err
	}
	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	// gorilla allows one concurrent writer; writes are serialized here.
	writeMu sync.Mutex
	ws      *websocket.Conn
}

func (c *wsConn) Send(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(f)
}

func (c *wsConn) Receive() (Frame, error) {
	var f Frame
	if err := c.ws.ReadJSON(&f); err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return Frame{}, ErrClosed
		}
		return Frame{}, err
	}
	return f, nil
}

func (c *wsConn) Close() error {
	c.writeMu.Lock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.ws.Close()
}
