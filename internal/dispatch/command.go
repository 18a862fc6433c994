package dispatch

import (
	"fmt"

	"github.com/emberplus/emberd/internal/connection"
	"github.com/emberplus/emberd/internal/ember"
	"github.com/emberplus/emberd/internal/subscription"
	"github.com/emberplus/emberd/internal/tree"
)

func (d *Dispatcher) handleCommand(client *connection.Connection, cmd ember.Command, req resolvedRequest) (*ember.Root, error) {
	switch cmd {
	case ember.CommandGetDirectory:
		return d.handleGetDirectory(client, req), nil
	case ember.CommandSubscribe:
		d.subscribeTarget(client, req)
		return nil, nil
	case ember.CommandUnsubscribe:
		d.unsubscribeTarget(client, req)
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCommand, cmd)
	}
}

// handleGetDirectory builds the directory response and, per Ember+
// convention, auto-subscribes the client: directly to a matrix or
// non-stream parameter's own path, or to each immediate child's path
// otherwise (including the synthetic root-level case).
func (d *Dispatcher) handleGetDirectory(client *connection.Connection, req resolvedRequest) *ember.Root {
	if req.isRoot {
		roots := d.tree.Roots()
		elements := make([]*ember.Element, len(roots))
		for i, r := range roots {
			elements[i] = r.ToWire(false, true)
			d.subs.Subscribe(r.Path(), client)
		}
		d.logSubscribe(client, "", len(roots))
		return &ember.Root{Elements: elements}
	}

	target := req.target
	autoSubscribeSelf := (target.IsMatrix() || target.IsParameter()) && !target.IsStream()
	if autoSubscribeSelf {
		d.subs.Subscribe(target.Path(), client)
	} else {
		for _, child := range target.Children() {
			d.subs.Subscribe(child.Path(), client)
		}
	}
	d.logSubscribe(client, target.Path(), 1)

	if req.qualified {
		return &ember.Root{Elements: []*ember.Element{target.ToWire(true, true)}}
	}
	return target.BuildChain(true)
}

func (d *Dispatcher) subscribeTarget(client *connection.Connection, req resolvedRequest) {
	forEachTargetPath(d.tree, req, func(path string) {
		d.subs.Subscribe(path, client)
	})
}

func (d *Dispatcher) unsubscribeTarget(client *connection.Connection, req resolvedRequest) {
	forEachTargetPath(d.tree, req, func(path string) {
		d.subs.Unsubscribe(path, client)
	})
}

// forEachTargetPath calls fn with the path(s) a Subscribe/Unsubscribe
// command applies to: every root path for the synthetic root-level
// request, or the resolved target's own path otherwise.
func forEachTargetPath(t *tree.Tree, req resolvedRequest, fn func(path string)) {
	if req.isRoot {
		for _, r := range t.Roots() {
			fn(r.Path())
		}
		return
	}
	fn(req.target.Path())
}

var _ subscription.Subscriber = (*connection.Connection)(nil)
