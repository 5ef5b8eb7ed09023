package pathfinder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gonzalop/pathfinder/internal/proto"
	"github.com/gonzalop/pathfinder/transport"
)

// State is a session's position in the protocol state machine (spec.md
// §4.3): CONNECTING -> GREETED -> ACCEPTED -> CLOSING -> CLOSED.
type State uint8

const (
	StateConnecting State = iota
	StateGreeted
	StateAccepted
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateGreeted:
		return "greeted"
	case StateAccepted:
		return "accepted"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one client connection's protocol state machine, routing
// decoded transactions to a Domain and delivering asynchronous
// notifications back over its outbound queue (spec.md §4.3).
//
// Grounded on the teacher's Client (client.go): a connection plus a
// sessionLock-guarded bit of local state plus an outgoing queue drained
// by its own goroutine — generalized from a client dialing a server to
// a server accepting a client, and from MQTT packets to pathfinder
// frames.
type Session struct {
	domain *Domain
	conn   transport.Conn
	user   string
	log    *log.Logger

	dispatch Dispatch

	out *outboundQueue

	mu       sync.Mutex
	state    State
	clientID ClientID
	subs     map[SubscriptionID]struct{}

	closeOnce sync.Once
	done      chan struct{}
}

// NewSession constructs a session over conn, identified as user. Serve
// must be called to actually run it.
func NewSession(domain *Domain, conn transport.Conn, user string, logger *log.Logger, interceptors ...Interceptor) *Session {
	if logger == nil {
		logger = log.Default()
	}
	s := &Session{
		domain: domain,
		conn:   conn,
		user:   user,
		log:    logger,
		out:    newOutboundQueue(),
		subs:   make(map[SubscriptionID]struct{}),
		done:   make(chan struct{}),
	}
	s.dispatch = chainInterceptors(s.handleFrame, interceptors)
	return s
}

// Serve runs the session until the connection fails, a protocol
// violation occurs, or ctx is canceled. It always returns after closing
// the connection and releasing everything the session owned from the
// domain.
func (s *Session) Serve(ctx context.Context) {
	writerDone := make(chan struct{})
	go s.writeLoop(writerDone)

	// Canceling ctx flushes what is queued and closes the connection,
	// which unblocks the read loop.
	readDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.drain(time.Now().Add(100 * time.Millisecond))
			s.conn.Close()
		case <-readDone:
		}
	}()

	s.setState(StateConnecting)
	s.readLoop(ctx)
	close(readDone)

	s.teardown(ctx)
	close(s.done)
	<-writerDone
}

func (s *Session) writeLoop(done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-s.out.notify:
			for _, f := range s.out.drain() {
				if err := proto.WriteFrame(s.conn, f); err != nil {
					return
				}
			}
		case <-s.done:
			for _, f := range s.out.drain() {
				proto.WriteFrame(s.conn, f)
			}
			return
		}
	}
}

func (s *Session) readLoop(ctx context.Context) {
	for {
		frame, err := proto.ReadFrame(s.conn)
		if err != nil {
			return
		}
		if err := s.dispatch(ctx, s, frame); err != nil {
			s.log.Debug("session closing after dispatch error", "err", err, "client", s.clientID)
			return
		}
		if s.getState() == StateClosing {
			return
		}
	}
}

func (s *Session) teardown(ctx context.Context) {
	s.setState(StateClosing)
	s.drain(time.Now().Add(100 * time.Millisecond))
	s.conn.Close()
	if s.getState() != StateConnecting && s.getClientID() != 0 {
		teardownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.domain.SessionClosed(teardownCtx, s.getClientID()); err != nil {
			s.log.Warn("session teardown", "client", s.getClientID(), "err", err)
		}
	}
	s.setState(StateClosed)
}

// drain gives the writer goroutine a short grace window to flush
// whatever is still queued (typically a protocol-violation fail the
// peer hasn't read yet) before the connection is torn down.
func (s *Session) drain(deadline time.Time) {
	for !s.out.empty() {
		if time.Now().After(deadline) {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) getState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) getClientID() ClientID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientID
}

// handleFrame is the innermost Dispatch: it decodes one frame's body
// per its Kind and invokes the matching Domain command. Interceptors
// registered on the session wrap this.
func (s *Session) handleFrame(ctx context.Context, sess *Session, frame *proto.Frame) error {
	if sess.getState() == StateConnecting && frame.Kind != proto.KindHello {
		sess.sendFail(frame.TaID, ReasonNoHello, "hello must be the first message")
		return errNoHello
	}
	if sess.getState() != StateConnecting && frame.Kind == proto.KindHello {
		sess.sendFail(frame.TaID, ReasonClientIDExists, "hello already completed")
		return errDuplicateHello
	}

	switch frame.Kind {
	case proto.KindHello:
		return sess.onHello(ctx, frame)
	case proto.KindPublish:
		return sess.onPublish(ctx, frame)
	case proto.KindUnpublish:
		return sess.onUnpublish(ctx, frame)
	case proto.KindSubscribe:
		return sess.onSubscribe(ctx, frame)
	case proto.KindUnsubscribe:
		return sess.onUnsubscribe(ctx, frame)
	case proto.KindServices:
		return sess.onServices(ctx, frame)
	case proto.KindSubscriptions:
		return sess.onSubscriptions(ctx, frame)
	case proto.KindClients:
		return sess.onClients(ctx, frame)
	case proto.KindPing:
		return sess.onPing(ctx, frame)
	default:
		return ErrUnknownCommand
	}
}

var (
	errNoHello        = errors.New("pathfinder: message before hello")
	errDuplicateHello = errors.New("pathfinder: duplicate hello")
)

func (s *Session) sendAccept(taID uint64, body AcceptBodyArgs) {
	s.out.push(&proto.Frame{
		Kind: proto.KindAccept,
		TaID: taID,
		Body: proto.AcceptBody{HasHello: body.HasHello, Version: body.Version, ClientID: uint64(body.ClientID)}.Encode(),
	})
}

// AcceptBodyArgs carries the optional hello-negotiation fields an
// accept may need; every other command sends a bare accept.
type AcceptBodyArgs struct {
	HasHello bool
	Version  uint8
	ClientID ClientID
}

func (s *Session) sendFail(taID uint64, reason FailReason, format string, args ...any) {
	s.out.push(&proto.Frame{
		Kind: proto.KindFail,
		TaID: taID,
		Body: proto.FailBody{Reason: wireReason(reason), Message: fail(reason, format, args...).Message}.Encode(),
	})
}

func (s *Session) sendComplete(taID uint64) {
	s.out.push(&proto.Frame{Kind: proto.KindComplete, TaID: taID, Body: proto.CompleteBody{}.Encode()})
}

func (s *Session) sendNotify(taID uint64, body proto.NotifyBody) {
	s.out.push(&proto.Frame{Kind: proto.KindNotify, TaID: taID, Body: body.Encode()})
}

func (s *Session) failFromErr(taID uint64, err error) {
	var te *TransactionError
	if errors.As(err, &te) {
		s.sendFail(taID, te.Reason, "%s", te.Message)
		return
	}
	s.sendFail(taID, ReasonPermissionDenied, "internal error: %v", err)
}

func (s *Session) onHello(ctx context.Context, frame *proto.Frame) error {
	req, err := proto.DecodeHelloRequest(frame.Body)
	if err != nil {
		return err
	}
	clientID, version, err := s.domain.Hello(ctx, s.user, s.conn.RemoteAddr().String(), req.MinVersion, req.MaxVersion)
	if err != nil {
		s.failFromErr(frame.TaID, err)
		return err
	}
	s.mu.Lock()
	s.clientID = clientID
	s.mu.Unlock()
	s.setState(StateAccepted)
	s.sendAccept(frame.TaID, AcceptBodyArgs{HasHello: true, Version: version, ClientID: clientID})
	return nil
}

func (s *Session) onPublish(ctx context.Context, frame *proto.Frame) error {
	req, err := proto.DecodePublishRequest(frame.Body)
	if err != nil {
		return err
	}
	err = s.domain.Publish(ctx, s.getClientID(), ServiceID(req.ServiceID), req.Generation, fromWireProps(req.Props), secondsToTTL(req.TTLSeconds))
	if err != nil {
		s.failFromErr(frame.TaID, err)
		return nil
	}
	s.sendAccept(frame.TaID, AcceptBodyArgs{})
	return nil
}

func (s *Session) onUnpublish(ctx context.Context, frame *proto.Frame) error {
	req, err := proto.DecodeUnpublishRequest(frame.Body)
	if err != nil {
		return err
	}
	if err := s.domain.Unpublish(ctx, s.getClientID(), ServiceID(req.ServiceID)); err != nil {
		s.failFromErr(frame.TaID, err)
		return nil
	}
	s.sendAccept(frame.TaID, AcceptBodyArgs{})
	return nil
}

func (s *Session) onSubscribe(ctx context.Context, frame *proto.Frame) error {
	req, err := proto.DecodeSubscribeRequest(frame.Body)
	if err != nil {
		return err
	}
	subID := SubscriptionID(req.SubscriptionID)
	taID := frame.TaID

	sink := func(n Notification) {
		body := proto.NotifyBody{
			NotifyKind: proto.NotifyMatch,
			MatchType:  wireMatchType(n.Match),
			ServiceID:  uint64(n.Service.ID),
			Generation: n.Service.Generation,
			Props:      toWireProps(n.Service.Props),
			TTLSeconds: ttlToSeconds(n.Service.TTL),
			Owner:      uint64(n.Service.Owner),
		}
		if n.Service.IsOrphan() {
			body.IsOrphan = true
			body.OrphanUnixNano = n.Service.OrphanSince().UnixNano()
		}
		s.sendNotify(taID, body)
	}

	tok, err := s.domain.Subscribe(ctx, s.getClientID(), subID, req.FilterText, sink)
	if err != nil {
		s.failFromErr(taID, err)
		return nil
	}

	s.mu.Lock()
	s.subs[subID] = struct{}{}
	s.mu.Unlock()
	s.sendAccept(taID, AcceptBodyArgs{})

	go func() {
		<-tok.Done()
		if err := tok.Err(); err != nil && !errors.Is(err, ErrSessionClosed) {
			s.log.Debug("subscription ended abnormally", "subscription", subID, "err", err)
		}
		s.mu.Lock()
		delete(s.subs, subID)
		s.mu.Unlock()
	}()
	return nil
}

func (s *Session) onUnsubscribe(ctx context.Context, frame *proto.Frame) error {
	req, err := proto.DecodeUnsubscribeRequest(frame.Body)
	if err != nil {
		return err
	}
	if err := s.domain.Unsubscribe(ctx, s.getClientID(), SubscriptionID(req.SubscriptionID)); err != nil {
		s.failFromErr(frame.TaID, err)
		return nil
	}
	s.sendAccept(frame.TaID, AcceptBodyArgs{})
	return nil
}

func (s *Session) onServices(ctx context.Context, frame *proto.Frame) error {
	req, err := proto.DecodeServicesRequest(frame.Body)
	if err != nil {
		return err
	}
	services, err := s.domain.Services(ctx, req.FilterText)
	if err != nil {
		s.failFromErr(frame.TaID, err)
		return nil
	}
	s.sendAccept(frame.TaID, AcceptBodyArgs{})
	for _, svc := range services {
		body := proto.NotifyBody{
			NotifyKind: proto.NotifyServiceEntry,
			ServiceID:  uint64(svc.ID),
			Generation: svc.Generation,
			Props:      toWireProps(svc.Props),
			TTLSeconds: ttlToSeconds(svc.TTL),
			Owner:      uint64(svc.Owner),
			IsOrphan:   svc.IsOrphan(),
		}
		if svc.IsOrphan() {
			body.OrphanUnixNano = svc.OrphanSince().UnixNano()
		}
		s.sendNotify(frame.TaID, body)
	}
	s.sendComplete(frame.TaID)
	return nil
}

func (s *Session) onSubscriptions(ctx context.Context, frame *proto.Frame) error {
	subs, err := s.domain.Subscriptions(ctx)
	if err != nil {
		s.failFromErr(frame.TaID, err)
		return nil
	}
	s.sendAccept(frame.TaID, AcceptBodyArgs{})
	for _, sub := range subs {
		s.sendNotify(frame.TaID, proto.NotifyBody{
			NotifyKind:     proto.NotifySubscriptionEntry,
			SubscriptionID: uint64(sub.ID),
			FilterText:     sub.Filter.String(),
		})
	}
	s.sendComplete(frame.TaID)
	return nil
}

func (s *Session) onClients(ctx context.Context, frame *proto.Frame) error {
	clients, err := s.domain.Clients(ctx)
	if err != nil {
		s.failFromErr(frame.TaID, err)
		return nil
	}
	s.sendAccept(frame.TaID, AcceptBodyArgs{})
	for _, c := range clients {
		s.sendNotify(frame.TaID, proto.NotifyBody{
			NotifyKind:        proto.NotifyClientEntry,
			ClientID:          uint64(c.ClientID),
			RemoteAddr:        c.RemoteAddr,
			ConnectedUnixNano: c.ConnectedAt.UnixNano(),
		})
	}
	s.sendComplete(frame.TaID)
	return nil
}

func (s *Session) onPing(ctx context.Context, frame *proto.Frame) error {
	if err := s.domain.Ping(ctx); err != nil {
		s.failFromErr(frame.TaID, err)
		return nil
	}
	s.sendAccept(frame.TaID, AcceptBodyArgs{})
	return nil
}
