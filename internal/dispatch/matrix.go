package dispatch

import (
	"fmt"

	"github.com/emberplus/emberd/internal/connection"
	"github.com/emberplus/emberd/internal/ember"
)

// handleMatrixConnections validates and applies a batch of crosspoint
// mutations against req.target, then builds a response carrying only
// the touched targets with their resulting source sets, per spec's
// disposition=modified contract.
func (d *Dispatcher) handleMatrixConnections(client *connection.Connection, req resolvedRequest, requested []ember.Connection) (*ember.Root, error) {
	target := req.target
	if !target.IsMatrix() {
		return nil, fmt.Errorf("%w: target is not a matrix", ErrInvalidMatrix)
	}
	targetCount := target.TargetCount()
	if targetCount == nil {
		return nil, fmt.Errorf("%w: matrix has no declared targetCount", ErrInvalidMatrix)
	}
	for _, c := range requested {
		if c.Target < 0 || c.Target >= *targetCount {
			return nil, fmt.Errorf("%w: target %d out of range [0,%d)", ErrInvalidMatrix, c.Target, *targetCount)
		}
	}

	touched := make([]int, 0, len(requested))
	seen := make(map[int]bool, len(requested))
	for _, c := range requested {
		op := ember.MatrixOperationAbsolute
		if c.HasOp {
			op = c.Operation
		}
		if err := target.ApplyConnection(c.Target, c.Sources, op); err != nil {
			return nil, err
		}
		if !seen[c.Target] {
			seen[c.Target] = true
			touched = append(touched, c.Target)
		}
	}
	state := target.Connections()
	wireConns := make([]ember.Connection, len(touched))
	for i, t := range touched {
		wireConns[i] = ember.Connection{
			Target:      t,
			Sources:     state[t],
			Disposition: ember.DispositionModified,
		}
		d.logMatrixChange(client, target, matrixOp{target: t, sources: state[t]})
	}

	var resp *ember.Root
	if req.qualified {
		resp = &ember.Root{Elements: []*ember.Element{target.ToWire(true, false)}}
	} else {
		resp = target.BuildChain(false)
	}
	replaceLeafConnections(resp, wireConns)

	d.subs.Notify(target.Path(), resp, client)
	return resp, nil
}

// replaceLeafConnections overwrites the Connections carried by the
// addressed element within resp (the single qualified element, or the
// deepest element of a tree-branch chain) with conns.
func replaceLeafConnections(resp *ember.Root, conns []ember.Connection) {
	if len(resp.Elements) == 0 {
		return
	}
	cur := resp.Elements[0]
	for len(cur.Children) == 1 {
		cur = cur.Children[0]
	}
	cur.Connections = conns
}
