package transport

import (
	"context"
	"fmt"

	"golang.org/x/net/websocket"
)

// DialWS opens a stream via WebSocket connection.
// The address must be a host and port. Opening a WebSocket
// connection at a particular path is not supported.
func DialWS(ctx context.Context, addr string) (Stream, error) {
	cfg, err := websocket.NewConfig(fmt.Sprintf("ws://%s/", addr), fmt.Sprintf("http://%s/", addr))
	if err != nil {
		return nil, err
	}
	ws, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, err
	}
	ws.PayloadType = websocket.BinaryFrame
	return &netStream{
		Conn:   ws,
		remote: Endpoint{Address: "ws://" + addr, Name: addr},
	}, nil
}
