package dispatch

import (
	"github.com/emberplus/emberd/internal/connection"
	"github.com/emberplus/emberd/internal/ember"
)

// handleParameterSet applies a parameter write if the parameter's
// access level permits it. A read-only write is a silent no-op: no
// mutation, no event, no response, per the resolved behavior for an
// undelivered write future.
func (d *Dispatcher) handleParameterSet(client *connection.Connection, req resolvedRequest) (*ember.Root, error) {
	target := req.target
	if !target.Access().CanWrite() {
		return nil, nil
	}

	previous, _ := target.Value()
	target.SetValue(req.wireElement.Value)
	d.logValueChange(client, target, previous, req.wireElement.Value)

	var resp *ember.Root
	if req.qualified {
		resp = &ember.Root{Elements: []*ember.Element{target.ToWire(true, false)}}
	} else {
		resp = target.BuildChain(false)
	}

	d.subs.Notify(target.Path(), resp, client)
	return resp, nil
}
