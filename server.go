package pathfinder

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/gonzalop/pathfinder/transport"
)

// Server accepts connections from every transport Listener it serves
// into one Domain, handing each accepted Conn off to a new Session
// (SPEC_FULL.md §4, "Per-domain independent configuration"). A process
// embeds one Server per domain it serves. The Domain's event loop is
// not started by Server; the caller runs domain.Run.
//
// Grounded on the teacher's Client, generalized from "one connection
// this process dials out" to "N connections this process accepts in":
// Server.Serve plays the role of Client.Connect, and Server.Shutdown
// mirrors Client.Disconnect's drain-then-close.
type Server struct {
	Domain *Domain

	log        *log.Logger
	identifier transport.Identifier
	interceptors []Interceptor

	mu        sync.Mutex
	listeners []transport.Listener
	sessions  map[*Session]struct{}
	wg        sync.WaitGroup
}

// ServerOption configures a Server at construction time.
type ServerOption func(*Server)

// WithIdentifier overrides how a Server derives the per-user identity
// string for a newly accepted Conn. Defaults to
// transport.RemoteHostIdentifier().
func WithIdentifier(id transport.Identifier) ServerOption {
	return func(s *Server) { s.identifier = id }
}

// WithServerLogger overrides the Server's own logger (distinct from the
// Domain's, so transport-level logging can be filtered independently).
func WithServerLogger(logger *log.Logger) ServerOption {
	return func(s *Server) { s.log = logger }
}

// WithInterceptors installs the Interceptor chain every Session
// this Server creates will dispatch requests through.
func WithInterceptors(interceptors ...Interceptor) ServerOption {
	return func(s *Server) { s.interceptors = interceptors }
}

// NewServer builds a Server around an already-constructed Domain. The
// caller is responsible for running domain.Run in its own goroutine.
func NewServer(domain *Domain, opts ...ServerOption) *Server {
	s := &Server{
		Domain:     domain,
		log:        log.Default(),
		identifier: transport.RemoteHostIdentifier(),
		sessions:   make(map[*Session]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve accepts connections from ln until ctx is canceled or ln's
// Accept returns a non-cancellation error, spawning one Session per
// accepted Conn. It may be called more than once, concurrently, to
// serve several listeners (e.g. one TCP and one WebSocket) into the
// same domain.
func (s *Server) Serve(ctx context.Context, ln transport.Listener) error {
	s.mu.Lock()
	s.listeners = append(s.listeners, ln)
	s.mu.Unlock()

	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("pathfinder: accept on %s: %w", ln.Addr(), err)
		}

		user, err := s.identifier.Identify(conn)
		if err != nil {
			s.log.Warn("identify failed, closing connection", "remote", conn.RemoteAddr(), "err", err)
			conn.Close()
			continue
		}

		sess := NewSession(s.Domain, conn, user, s.log, s.interceptors...)
		s.trackSession(sess)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrackSession(sess)
			sess.Serve(ctx)
		}()
	}
}

func (s *Server) trackSession(sess *Session) {
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrackSession(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
}

// Shutdown closes every listener this Server is serving and waits for
// every in-flight Session to finish tearing down. Shutdown does not
// close sessions itself: canceling the ctx passed to Serve is what
// closes each session's connection, so callers cancel it first;
// otherwise Shutdown waits until every peer has disconnected.
func (s *Server) Shutdown() {
	s.mu.Lock()
	listeners := s.listeners
	s.mu.Unlock()

	for _, ln := range listeners {
		ln.Close()
	}
	s.wg.Wait()
}

// SessionCount reports how many sessions are currently being served,
// for diagnostics and tests.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
