package pathfinder

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gonzalop/pathfinder/internal/proto"
	"github.com/gonzalop/pathfinder/transport"
)

// pipeConn adapts a net.Conn from net.Pipe to transport.Conn, the same
// in-memory-pipe technique the teacher's keepalive_test.go and
// auth_test.go use to exercise connection handling without a real
// socket.
type pipeConn struct {
	net.Conn
}

func (pipeConn) SetDeadline(time.Time) error { return nil }

func newPipe() (transport.Conn, net.Conn) {
	server, client := net.Pipe()
	return pipeConn{server}, client
}

func readFrame(t *testing.T, conn net.Conn) *proto.Frame {
	t.Helper()
	f, err := proto.ReadFrame(conn)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func writeFrame(t *testing.T, conn net.Conn, f *proto.Frame) {
	t.Helper()
	if err := proto.WriteFrame(conn, f); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func TestSessionHelloThenPublishThenSubscribe(t *testing.T) {
	d, ctx := newTestDomain(t)

	serverConn, clientConn := newPipe()
	sess := NewSession(d, serverConn, "alice", nil)
	go sess.Serve(ctx)
	defer clientConn.Close()

	writeFrame(t, clientConn, &proto.Frame{Kind: proto.KindHello, TaID: 1, Body: proto.HelloRequest{MinVersion: 1, MaxVersion: 1}.Encode()})
	accept := readFrame(t, clientConn)
	if accept.Kind != proto.KindAccept {
		t.Fatalf("want accept, got %v", accept.Kind)
	}
	ab, err := proto.DecodeAcceptBody(accept.Body)
	if err != nil || !ab.HasHello || ab.ClientID == 0 {
		t.Fatalf("bad hello accept: %+v, %v", ab, err)
	}

	pub := proto.PublishRequest{ServiceID: 1, Generation: 0, TTLSeconds: 60}
	writeFrame(t, clientConn, &proto.Frame{Kind: proto.KindPublish, TaID: 2, Body: pub.Encode()})
	reply := readFrame(t, clientConn)
	if reply.Kind != proto.KindAccept {
		t.Fatalf("want accept for publish, got %v", reply.Kind)
	}

	writeFrame(t, clientConn, &proto.Frame{Kind: proto.KindSubscribe, TaID: 3, Body: proto.SubscribeRequest{SubscriptionID: 9, FilterText: ""}.Encode()})

	// The already-published service matches the empty filter, so its
	// synchronous appeared notification is queued before the subscribe's
	// own accept (domain.go's handleSubscribe calls the sink before
	// returning).
	notify := readFrame(t, clientConn)
	if notify.Kind != proto.KindNotify {
		t.Fatalf("want notify for the pre-existing match, got %v", notify.Kind)
	}
	reply = readFrame(t, clientConn)
	if reply.Kind != proto.KindAccept {
		t.Fatalf("want accept for subscribe, got %v", reply.Kind)
	}
}

func TestSessionRejectsMessageBeforeHello(t *testing.T) {
	d, ctx := newTestDomain(t)

	serverConn, clientConn := newPipe()
	sess := NewSession(d, serverConn, "alice", nil)
	go sess.Serve(ctx)
	defer clientConn.Close()

	writeFrame(t, clientConn, &proto.Frame{Kind: proto.KindPing, TaID: 1, Body: proto.PingRequest{}.Encode()})
	reply := readFrame(t, clientConn)
	if reply.Kind != proto.KindFail {
		t.Fatalf("want fail before hello, got %v", reply.Kind)
	}
	fb, err := proto.DecodeFailBody(reply.Body)
	if err != nil || FailReason(fb.Reason) != ReasonNoHello {
		t.Fatalf("want no-hello, got %+v, %v", fb, err)
	}
}

func TestSessionTeardownOrphansServices(t *testing.T) {
	d, ctx := newTestDomain(t)

	serverConn, clientConn := newPipe()
	sess := NewSession(d, serverConn, "alice", nil)
	done := make(chan struct{})
	go func() { sess.Serve(ctx); close(done) }()

	writeFrame(t, clientConn, &proto.Frame{Kind: proto.KindHello, TaID: 1, Body: proto.HelloRequest{MinVersion: 1, MaxVersion: 1}.Encode()})
	readFrame(t, clientConn)

	pub := proto.PublishRequest{ServiceID: 1, Generation: 0, TTLSeconds: 60}
	writeFrame(t, clientConn, &proto.Frame{Kind: proto.KindPublish, TaID: 2, Body: pub.Encode()})
	readFrame(t, clientConn)

	clientConn.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("session never tore down after client close")
	}

	services, err := d.Services(context.Background(), "")
	if err != nil {
		t.Fatalf("services: %v", err)
	}
	if len(services) != 1 || !services[0].IsOrphan() {
		t.Fatalf("expected service to survive as an orphan, got %+v", services)
	}
}
