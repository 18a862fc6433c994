// Package emberserver accepts TCP clients and hands each one to its own
// internal/connection.Connection, tracking the live set for inventory and
// graceful shutdown.
package emberserver

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/emberplus/emberd/internal/connection"
	"github.com/emberplus/emberd/pkg/log"
)

// Server accepts connections on a single TCP listener and serves each one
// with its own Connection.
type Server struct {
	addr    string
	handler connection.RequestHandler
	logger  log.Logger

	keepAliveInterval time.Duration
	maxPayloadSize    int

	mu       sync.RWMutex
	listener net.Listener
	conns    map[*connection.Connection]struct{}
	connsWG  sync.WaitGroup

	onDisconnect func(*connection.Connection)
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithLogger sets the protocol logger for the server and every connection
// it accepts.
func WithLogger(l log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithKeepAliveInterval overrides connection.DefaultKeepAliveInterval for
// every accepted connection.
func WithKeepAliveInterval(d time.Duration) Option {
	return func(s *Server) { s.keepAliveInterval = d }
}

// WithMaxPayloadSize overrides the default per-frame payload cap for every
// accepted connection's S101 codec.
func WithMaxPayloadSize(n int) Option {
	return func(s *Server) { s.maxPayloadSize = n }
}

// WithOnDisconnect registers a callback invoked once a connection has fully
// shut down and been removed from the live set, after its socket is closed.
// Used to reap that connection's subscriptions from the registry.
func WithOnDisconnect(fn func(*connection.Connection)) Option {
	return func(s *Server) { s.onDisconnect = fn }
}

// New creates a Server listening on addr ("host:port") that routes every
// decoded request to handler.
func New(addr string, handler connection.RequestHandler, opts ...Option) *Server {
	s := &Server{
		addr:    addr,
		handler: handler,
		logger:  log.NoopLogger{},
		conns:   make(map[*connection.Connection]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run binds the listener and serves connections until ctx is cancelled or
// the listener fails. On cancellation it closes the listener and every live
// connection's socket (per the protocol's shutdown requirement that closing
// the listener closes all active sockets), then returns once all accepted
// connections have fully shut down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("emberserver: listen %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})
	group.Go(func() error {
		return s.acceptLoop(gctx, ln)
	})

	// group.Wait only returns once acceptLoop has stopped accepting, so no
	// connection can be added to s.conns after this point; closeAll's
	// snapshot is final.
	err = group.Wait()
	s.closeAll()
	s.connsWG.Wait()
	return err
}

// Stop closes the listener and every live connection, then waits for their
// goroutines to finish or ctx to expire, whichever comes first.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.RLock()
	ln := s.listener
	s.mu.RUnlock()
	if ln != nil {
		_ = ln.Close()
	}
	s.closeAll()

	done := make(chan struct{})
	go func() {
		s.connsWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// closeAll closes every currently live connection's socket, unblocking each
// one's read loop so its Serve goroutine can exit.
func (s *Server) closeAll() {
	s.mu.RLock()
	conns := make([]*connection.Connection, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("emberserver: accept: %w", err)
			}
		}

		c := connection.New(conn, s.handler,
			connection.WithLogger(s.logger),
			connection.WithKeepAliveInterval(s.keepAliveInterval),
			connection.WithMaxPayloadSize(s.maxPayloadSize),
		)
		s.addConn(c)
		s.connsWG.Add(1)

		go func() {
			defer s.connsWG.Done()
			defer s.removeConn(c)
			c.Serve(ctx)
		}()
	}
}

func (s *Server) addConn(c *connection.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c] = struct{}{}
}

func (s *Server) removeConn(c *connection.Connection) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()

	if s.onDisconnect != nil {
		s.onDisconnect(c)
	}
}

// ConnectionCount returns the number of currently live connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Connections returns a snapshot of the currently live connections.
func (s *Server) Connections() []*connection.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*connection.Connection, 0, len(s.conns))
	for c := range s.conns {
		out = append(out, c)
	}
	return out
}

// Addr returns the listener's bound address, valid only after Run has
// started listening.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
