package tree

import (
	"errors"
	"fmt"

	"github.com/emberplus/emberd/internal/ember"
)

// ErrNotMatrix is returned when a matrix operation is applied to a
// non-Matrix element.
var ErrNotMatrix = errors.New("tree: element is not a Matrix")

// ErrConstraintViolated is the sentinel wrapped by Validate's errors.
var ErrConstraintViolated = errors.New("tree: matrix constraint violated")

func errorsTooManySources(target int) error {
	return fmt.Errorf("%w: target %d has more than one source", ErrConstraintViolated, target)
}

func errorsSourceReused(source int) error {
	return fmt.Errorf("%w: source %d connected to more than one target", ErrConstraintViolated, source)
}

// ApplyConnection mutates a Matrix's crosspoint state for a single
// target according to op, using set-union semantics: Connect adds
// sources, Disconnect removes them, Absolute replaces the set outright.
// No oneToN/oneToOne/nToN constraint is enforced here; see Validate.
func (e Element) ApplyConnection(target int, sources []int, op ember.MatrixOperation) error {
	e.tree.mu.Lock()
	defer e.tree.mu.Unlock()

	n := e.tree.arena[e.id]
	if n.kind != ember.KindMatrix {
		return ErrNotMatrix
	}
	if n.connections == nil {
		n.connections = make(map[int]map[int]struct{})
	}

	switch op {
	case ember.MatrixOperationConnect:
		set := n.connections[target]
		if set == nil {
			set = make(map[int]struct{})
			n.connections[target] = set
		}
		for _, s := range sources {
			set[s] = struct{}{}
		}
	case ember.MatrixOperationDisconnect:
		set := n.connections[target]
		for _, s := range sources {
			delete(set, s)
		}
	default: // MatrixOperationAbsolute
		set := make(map[int]struct{}, len(sources))
		for _, s := range sources {
			set[s] = struct{}{}
		}
		n.connections[target] = set
	}
	return nil
}

// Connections returns a snapshot of a Matrix's current crosspoint state:
// target -> sorted-free set of connected sources.
func (e Element) Connections() map[int][]int {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()
	n := e.tree.arena[e.id]
	out := make(map[int][]int, len(n.connections))
	for target, sources := range n.connections {
		for s := range sources {
			out[target] = append(out[target], s)
		}
	}
	return out
}

// Validate checks a Matrix's current crosspoint state against its
// declared MatrixKind constraint. It is never called during dispatch:
// connect/disconnect/absolute mutate first and reduce never, per the
// resolved behavior for this server. Callers that want enforcement (for
// example a config loader rejecting an invalid starting state) can call
// it explicitly.
func (e Element) Validate() error {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()

	n := e.tree.arena[e.id]
	if n.kind != ember.KindMatrix {
		return ErrNotMatrix
	}
	if n.matrixKind == nil {
		return nil
	}

	switch *n.matrixKind {
	case ember.MatrixOneToOne:
		// Each target holds at most one source, and each source feeds at
		// most one target: no fan-out, no fan-in.
		seen := make(map[int]struct{})
		for target, sources := range n.connections {
			if len(sources) > 1 {
				return errorsTooManySources(target)
			}
			for s := range sources {
				if _, dup := seen[s]; dup {
					return errorsSourceReused(s)
				}
				seen[s] = struct{}{}
			}
		}
	case ember.MatrixOneToN:
		// Each target holds at most one source, but a source may fan out
		// to any number of targets.
		for target, sources := range n.connections {
			if len(sources) > 1 {
				return errorsTooManySources(target)
			}
		}
	case ember.MatrixNToN:
		// No cardinality constraint beyond declared target/source counts.
	}
	return nil
}
