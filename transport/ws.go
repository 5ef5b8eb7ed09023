package transport

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn adapts a *websocket.Conn, framed as a sequence of binary
// messages, to the byte-stream Conn interface the session layer reads
// proto frames from. Each Write call becomes one binary message; Read
// drains the current message before pulling the next one off the wire,
// so callers see a continuous byte stream regardless of how the proto
// codec chooses to chunk its reads.
type wsConn struct {
	ws      *websocket.Conn
	reader  []byte
	deadline time.Time
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

func (c *wsConn) Read(p []byte) (int, error) {
	for len(c.reader) == 0 {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return 0, err
		}
		c.reader = data
	}
	n := copy(p, c.reader)
	c.reader = c.reader[n:]
	return n, nil
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error { return c.ws.Close() }

func (c *wsConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

// WSListener exposes an http.Handler that upgrades each request to a
// WebSocket and hands the resulting Conn to whoever is calling Accept,
// so that Server can treat it exactly like TCPListener.
type WSListener struct {
	addr     net.Addr
	upgrader websocket.Upgrader
	accepted chan Conn
	srv      *http.Server
}

// NewWSListener starts an HTTP server on addr that upgrades every
// request on path to a WebSocket connection. Unlike TCPListener, the
// accept loop here is driven by the http.Server's own goroutine pool;
// Accept just drains the channel it feeds.
func NewWSListener(addr, path string) (*WSListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	l := &WSListener{
		addr:     ln.Addr(),
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		accepted: make(chan Conn, 16),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, l.handle)
	l.srv = &http.Server{Handler: mux}

	go l.srv.Serve(ln)
	return l, nil
}

func (l *WSListener) handle(w http.ResponseWriter, r *http.Request) {
	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	l.accepted <- newWSConn(ws)
}

func (l *WSListener) Addr() net.Addr { return l.addr }

func (l *WSListener) Close() error { return l.srv.Close() }

func (l *WSListener) Accept(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case conn := <-l.accepted:
		return conn, nil
	}
}
