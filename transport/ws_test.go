package transport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWSListenerAcceptRoundTrip(t *testing.T) {
	ln, err := NewWSListener("127.0.0.1:0", "/pathfinder")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	url := fmt.Sprintf("ws://%s/pathfinder", ln.Addr().String())
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	server, err := ln.Accept(ctx)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	defer server.Close()

	if err := client.WriteMessage(websocket.BinaryMessage, []byte("hello")); err != nil {
		t.Fatalf("client write: %v", err)
	}
	buf := make([]byte, 5)
	if _, err := server.Read(buf); err != nil {
		t.Fatalf("server read: %v", err)
	}
	if string(buf) != "hello" {
		t.Fatalf("got %q, want %q", buf, "hello")
	}

	if _, err := server.Write([]byte("world")); err != nil {
		t.Fatalf("server write: %v", err)
	}
	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	if string(data) != "world" {
		t.Fatalf("got %q, want %q", data, "world")
	}

	if server.RemoteAddr() == nil {
		t.Fatal("remote addr is nil")
	}
}

func TestWSListenerAcceptContextCanceled(t *testing.T) {
	ln, err := NewWSListener("127.0.0.1:0", "/pathfinder")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ln.Accept(ctx); err == nil {
		t.Fatal("expected accept to fail once ctx is already canceled")
	}
}
