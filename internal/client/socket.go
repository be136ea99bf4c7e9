package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/yapyard-server/internal/proto"
)

// Socket is a live connection to the server's /ws endpoint.
type Socket struct {
	conn *websocket.Conn
}

// DialSocket connects to wsURL (ws://host:port/ws) as the owner of token.
func DialSocket(ctx context.Context, wsURL, token string) (*Socket, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("parse socket url: %w", err)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	conn, resp, err := websocket.Dial(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(1 << 22)
	return &Socket{conn: conn}, nil
}

// Send submits a message for peer over the socket.
func (s *Socket) Send(ctx context.Context, peer UserID, text, image string) error {
	data, err := json.Marshal(proto.SendMessageData{ReceiverID: string(peer), Text: text, Image: image})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return wsjson.Write(ctx, s.conn, proto.Inbound{Type: proto.InboundTypeSendMessage, Data: data})
}

// RequestOnline asks for a fresh presence snapshot.
func (s *Socket) RequestOnline(ctx context.Context) error {
	return wsjson.Write(ctx, s.conn, proto.Inbound{Type: proto.InboundTypeGetOnlineUsers})
}

// Read blocks for the next server frame.
func (s *Socket) Read(ctx context.Context) (proto.InboundEvent, error) {
	var ev proto.InboundEvent
	err := wsjson.Read(ctx, s.conn, &ev)
	return ev, err
}

// Close closes the connection normally.
func (s *Socket) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "bye")
}
