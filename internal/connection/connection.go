// Package connection manages a single client's S101 byte stream: framing,
// keepalive, and the per-connection FIFO request pump that gives every
// client strict, non-reentrant request ordering.
package connection

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/emberplus/emberd/internal/ember"
	"github.com/emberplus/emberd/internal/s101"
	"github.com/emberplus/emberd/pkg/log"
)

// state is the connection's lifecycle state.
type state int32

const (
	stateConnecting state = iota
	stateConnected
	stateClosing
	stateClosed
)

// DefaultKeepAliveInterval is how often a keepalive request is sent absent
// configuration, per the protocol's recommended default.
const DefaultKeepAliveInterval = 10 * time.Second

// maxMissedKeepAlives is how many consecutive un-acked keepalive requests
// are tolerated before the connection is considered dead.
const maxMissedKeepAlives = 2

// RequestHandler processes a decoded Ember+ message for a connection. It
// is invoked from the connection's request pump, never concurrently with
// itself for the same connection.
type RequestHandler interface {
	HandleRoot(conn *Connection, root *ember.Root)
}

// Connection wraps one client's net.Conn with S101 framing, a keepalive
// timer, and a FIFO request pump.
type Connection struct {
	id      string
	conn    net.Conn
	codec   *s101.Codec
	logger  log.Logger
	handler RequestHandler

	keepAliveInterval time.Duration
	pendingKeepAlive  atomic.Bool
	missedKeepAlives  atomic.Int32

	state atomic.Int32

	writeMu sync.Mutex

	reqMu    sync.Mutex
	reqQueue []func()
	reqWake  chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

// Option configures a Connection at construction time.
type Option func(*Connection)

// WithLogger sets the protocol logger. Defaults to log.NoopLogger{}.
func WithLogger(l log.Logger) Option {
	return func(c *Connection) { c.logger = l }
}

// WithKeepAliveInterval overrides DefaultKeepAliveInterval.
func WithKeepAliveInterval(d time.Duration) Option {
	return func(c *Connection) {
		if d > 0 {
			c.keepAliveInterval = d
		}
	}
}

// WithMaxPayloadSize overrides the codec's per-frame payload cap.
func WithMaxPayloadSize(n int) Option {
	return func(c *Connection) { c.codec.SetMaxPayloadSize(n) }
}

// New wraps conn in a Connection. handler receives decoded requests via
// the request pump; call Serve to start reading.
func New(conn net.Conn, handler RequestHandler, opts ...Option) *Connection {
	c := &Connection{
		id:                uuid.NewString(),
		conn:              conn,
		handler:           handler,
		logger:            log.NoopLogger{},
		keepAliveInterval: DefaultKeepAliveInterval,
		reqWake:           make(chan struct{}, 1),
		closed:            make(chan struct{}),
	}
	c.codec = s101.NewCodec(c)
	c.state.Store(int32(stateConnecting))

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the connection's unique identifier.
func (c *Connection) ID() string { return c.id }

// RemoteAddress returns the peer's network address.
func (c *Connection) RemoteAddress() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// Alive reports whether the connection is still usable, satisfying
// subscription.Subscriber.
func (c *Connection) Alive() bool {
	return state(c.state.Load()) == stateConnected
}

// Serve runs the read loop and keepalive loop until the connection closes
// or ctx is cancelled. It blocks; callers typically run it in its own
// goroutine per accepted connection.
func (c *Connection) Serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.state.Store(int32(stateConnected))
	c.logStateChange("", "connected", "")

	// Closing the socket is what unblocks readLoop's Read once ctx ends
	// (caller cancellation or keepalive timeout).
	go func() {
		<-ctx.Done()
		c.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		c.runRequestPump(ctx)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		c.keepAliveLoop(ctx)
	}()

	c.readLoop(ctx)
	cancel()
	wg.Wait()
	c.Close()
}

func (c *Connection) readLoop(ctx context.Context) {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := c.conn.Read(buf)
		if n > 0 {
			c.codec.Feed(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

func (c *Connection) keepAliveLoop(ctx context.Context) {
	ticker := time.NewTicker(c.keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.pendingKeepAlive.Swap(true) {
				if c.missedKeepAlives.Add(1) > maxMissedKeepAlives {
					c.logStateChange("connected", "closing", "keepalive timeout")
					return
				}
			}
			if err := c.writeFrames(s101.EncodeKeepAliveRequest()); err != nil {
				return
			}
		}
	}
}

// OnKeepAliveRequest implements s101.Handler: answer immediately, bypassing
// the request queue, since this is a transport-level courtesy reply.
func (c *Connection) OnKeepAliveRequest() {
	_ = c.writeFrames(s101.EncodeKeepAliveResponse())
}

// OnKeepAliveResponse implements s101.Handler.
func (c *Connection) OnKeepAliveResponse() {
	c.pendingKeepAlive.Store(false)
	c.missedKeepAlives.Store(0)
}

// OnEmberPacket implements s101.Handler: decode the payload and enqueue
// dispatch onto the request pump so every client's requests are handled
// one at a time, in arrival order.
func (c *Connection) OnEmberPacket(payload []byte) {
	root, err := ember.Decode(payload)
	if err != nil {
		c.logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: c.id,
			Direction:    log.DirectionIn,
			Layer:        log.LayerTree,
			Category:     log.CategoryError,
			Error: &log.ErrorEventData{
				Layer:   log.LayerTree,
				Message: err.Error(),
				Context: "decode",
			},
		})
		return
	}
	if c.handler == nil {
		return
	}
	c.AddRequest(func() { c.handler.HandleRoot(c, root) })
}

// AddRequest appends fn to the connection's FIFO request queue. fn runs on
// the single request-pump goroutine, after every request queued before it
// and before any queued after it.
func (c *Connection) AddRequest(fn func()) {
	c.reqMu.Lock()
	c.reqQueue = append(c.reqQueue, fn)
	c.reqMu.Unlock()

	select {
	case c.reqWake <- struct{}{}:
	default:
	}
}

func (c *Connection) runRequestPump(ctx context.Context) {
	for {
		c.reqMu.Lock()
		if len(c.reqQueue) == 0 {
			c.reqMu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-c.reqWake:
				continue
			}
		}
		fn := c.reqQueue[0]
		c.reqQueue = c.reqQueue[1:]
		c.reqMu.Unlock()

		fn()
	}
}

// QueueMessage encodes root and writes it to the client, satisfying
// subscription.Subscriber. Errors are logged, not returned: a broken
// connection is reaped the next time it is iterated for notification.
func (c *Connection) QueueMessage(root *ember.Root) {
	payload, err := ember.Encode(root)
	if err != nil {
		c.logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: c.id,
			Direction:    log.DirectionOut,
			Layer:        log.LayerTree,
			Category:     log.CategoryError,
			Error:        &log.ErrorEventData{Layer: log.LayerTree, Message: err.Error(), Context: "encode"},
		})
		return
	}
	_ = c.writeFrames(c.codec.EncodeEmber(payload)...)
}

func (c *Connection) writeFrames(frames ...[]byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	for _, frame := range frames {
		if _, err := c.conn.Write(frame); err != nil {
			return err
		}
	}
	return nil
}

// Close shuts down the connection's socket. Safe to call multiple times
// and from multiple goroutines.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.state.Store(int32(stateClosed))
		err = c.conn.Close()
		close(c.closed)
		c.logStateChange("connected", "closed", "")
	})
	return err
}

// Done returns a channel closed once the connection has fully shut down.
func (c *Connection) Done() <-chan struct{} { return c.closed }

func (c *Connection) logStateChange(old, new, reason string) {
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Direction:    log.DirectionIn,
		Layer:        log.LayerDispatch,
		Category:     log.CategoryState,
		RemoteAddr:   c.RemoteAddress(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: old,
			NewState: new,
			Reason:   reason,
		},
	})
}

var _ s101.Handler = (*Connection)(nil)
