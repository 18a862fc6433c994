// Package dispatch interprets decoded Ember+ requests, mutates the live
// tree, and fans out change notifications to subscribers. It is the
// single serialization point for tree mutation: HandleRoot is only ever
// invoked from a connection's own request pump, so concurrent calls for
// distinct clients are the only concurrency the dispatcher itself must
// guard against (the tree and subscription registry do that locking).
package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/emberplus/emberd/internal/connection"
	"github.com/emberplus/emberd/internal/ember"
	"github.com/emberplus/emberd/internal/subscription"
	"github.com/emberplus/emberd/internal/tree"
	"github.com/emberplus/emberd/pkg/log"
)

// DefaultRequestTimeout is the nominal ceiling for a single dispatch
// call, matching spec's configurable default. Handling is synchronous
// and in-process, so this is carried for configuration parity only: it
// is not enforced with a deadline and not compared against elapsed
// time (HandleRoot logs every request's processing time regardless).
const DefaultRequestTimeout = 2000 * time.Millisecond

// Sentinel errors for semantic failures. These never close a
// connection; HandleRoot logs them and replies with a minimal tree.
var (
	ErrNoTopLevelElement = errors.New("dispatch: root must carry exactly one top-level element")
	ErrUnknownPath       = errors.New("dispatch: unknown path")
	ErrUnknownCommand    = errors.New("dispatch: unknown command")
	ErrInvalidMatrix     = errors.New("dispatch: invalid matrix request")
)

// Dispatcher applies decoded requests against a tree and a subscription
// registry.
type Dispatcher struct {
	tree   *tree.Tree
	subs   *subscription.Registry
	logger log.Logger

	requestTimeout time.Duration
}

// Option configures a Dispatcher at construction time.
type Option func(*Dispatcher)

// WithLogger sets the protocol logger. Defaults to log.NoopLogger{}.
func WithLogger(l log.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithRequestTimeout overrides DefaultRequestTimeout.
func WithRequestTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.requestTimeout = t
		}
	}
}

// New builds a Dispatcher over t and subs.
func New(t *tree.Tree, subs *subscription.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		tree:           t,
		subs:           subs,
		logger:         log.NoopLogger{},
		requestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Stats summarizes the shape of the live tree and subscription set, for
// operational visibility (e.g. a healthz-style check).
type Stats struct {
	NodeCount         int
	ParameterCount    int
	MatrixCount       int
	ConnectionCount   int
	SubscriptionCount int
}

// Stats walks the tree and subscription registry and returns a current
// snapshot.
func (d *Dispatcher) Stats() Stats {
	var s Stats
	var walk func(e tree.Element)
	walk = func(e tree.Element) {
		switch {
		case e.IsParameter():
			s.ParameterCount++
		case e.IsMatrix():
			s.MatrixCount++
			for _, sources := range e.Connections() {
				s.ConnectionCount += len(sources)
			}
		default:
			s.NodeCount++
		}
		for _, child := range e.Children() {
			walk(child)
		}
	}
	for _, root := range d.tree.Roots() {
		walk(root)
	}
	s.SubscriptionCount = d.subs.PathCount()
	return s
}

// HandleRoot is the dispatcher's single entry point, satisfying
// connection.RequestHandler. It is invoked once per decoded request,
// already serialized per connection by the caller's request pump.
func (d *Dispatcher) HandleRoot(client *connection.Connection, root *ember.Root) {
	start := time.Now()

	resp, err := d.dispatch(client, root)
	if err != nil {
		d.logError(client, err)
		client.QueueMessage(minimalTreeRoot())
		return
	}
	if resp != nil {
		client.QueueMessage(resp)
	}

	d.logProcessingTime(client, time.Since(start))
}

func (d *Dispatcher) dispatch(client *connection.Connection, root *ember.Root) (*ember.Root, error) {
	if len(root.Elements) != 1 {
		return nil, ErrNoTopLevelElement
	}
	top := root.Elements[0]

	req, err := resolveRequest(d.tree, top)
	if err != nil {
		return nil, err
	}

	switch {
	case req.cmd != nil:
		return d.handleCommand(client, *req.cmd, req)
	case req.wireElement.IsMatrix() && len(req.wireElement.Connections) > 0:
		return d.handleMatrixConnections(client, req, req.wireElement.Connections)
	case req.wireElement.IsParameter() && req.wireElement.HasValue:
		return d.handleParameterSet(client, req)
	default:
		return nil, fmt.Errorf("%w: request neither a command, matrix connection, nor parameter set", ErrUnknownPath)
	}
}

// minimalTreeRoot is the empty-directory echo sent back for a malformed
// or semantically invalid request: a single contentless Node, never
// the literal zero-element Root (whose BER encoding is an empty frame
// that a codec discards without ever surfacing a decode event).
func minimalTreeRoot() *ember.Root {
	return &ember.Root{Elements: []*ember.Element{{Kind: ember.KindNode}}}
}

// HandleDisconnect reaps every subscription client held, so a dropped
// connection doesn't leave stale entries for Notify to skip over one path
// at a time. Wired as the server's on-disconnect hook.
func (d *Dispatcher) HandleDisconnect(client *connection.Connection) {
	d.subs.UnsubscribeAll(client)
}

var _ connection.RequestHandler = (*Dispatcher)(nil)
