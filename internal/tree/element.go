package tree

import "github.com/emberplus/emberd/internal/ember"

// Element is a handle to a node living in a Tree's arena. It is cheap to
// copy and carries no state of its own beyond the tree pointer and id.
type Element struct {
	tree *Tree
	id   ElementID
}

// Valid reports whether e refers to a live element.
func (e Element) Valid() bool { return e.tree != nil && e.id != invalidID }

// Number returns e's local child index.
func (e Element) Number() int {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()
	return e.tree.arena[e.id].number
}

// Kind returns e's element kind.
func (e Element) Kind() ember.ElementKind {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()
	return e.tree.arena[e.id].kind
}

// Path returns e's dot-joined absolute path.
func (e Element) Path() string {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()
	return e.tree.path(e.id)
}

// Parent returns e's parent element, if any.
func (e Element) Parent() (Element, bool) {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()
	p := e.tree.arena[e.id].parent
	if p == invalidID {
		return Element{}, false
	}
	return Element{tree: e.tree, id: p}, true
}

// Children returns e's direct children, in insertion order.
func (e Element) Children() []Element {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()
	kids := e.tree.arena[e.id].children
	out := make([]Element, len(kids))
	for i, id := range kids {
		out[i] = Element{tree: e.tree, id: id}
	}
	return out
}

// IsParameter reports whether e is a Parameter element.
func (e Element) IsParameter() bool { return e.Kind() == ember.KindParameter }

// IsMatrix reports whether e is a Matrix element.
func (e Element) IsMatrix() bool { return e.Kind() == ember.KindMatrix }

// IsStream reports whether e is a Parameter carrying a stream identifier.
func (e Element) IsStream() bool {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()
	n := e.tree.arena[e.id]
	return n.kind == ember.KindParameter && n.streamIdentifier != nil
}

// Value returns a Parameter's current value.
func (e Element) Value() (any, bool) {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()
	n := e.tree.arena[e.id]
	return n.value, n.hasValue
}

// Access returns a Parameter's access level.
func (e Element) Access() ember.ParameterAccess {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()
	return e.tree.arena[e.id].access
}

// ParamType returns a Parameter's declared value type.
func (e Element) ParamType() ember.ParameterType {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()
	return e.tree.arena[e.id].paramType
}

// SetValue overwrites a Parameter's value. Callers are responsible for
// checking Access().CanWrite() first; SetValue itself never refuses a
// write, matching the synchronous, future-free semantics settled on for
// this implementation.
func (e Element) SetValue(v any) {
	e.tree.mu.Lock()
	defer e.tree.mu.Unlock()
	n := e.tree.arena[e.id]
	n.value = v
	n.hasValue = true
}

// Labels returns a Matrix's source/target label list.
func (e Element) Labels() []string {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()
	return append([]string(nil), e.tree.arena[e.id].labels...)
}

// MatrixKind returns a Matrix's topology constraint, if set.
func (e Element) MatrixKind() *ember.MatrixType {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()
	return e.tree.arena[e.id].matrixKind
}

// TargetCount returns a Matrix's declared target count, if set.
func (e Element) TargetCount() *int {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()
	return e.tree.arena[e.id].targetCount
}

// SourceCount returns a Matrix's declared source count, if set.
func (e Element) SourceCount() *int {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()
	return e.tree.arena[e.id].sourceCount
}

// ToWire converts e into a wire-shaped Element carrying its own fields.
// When includeChildren is true, direct children are attached one level
// deep (without their own children), in the same qualified or
// unqualified form as e (used for GetDirectory responses); otherwise the
// result has no Children.
func (e Element) ToWire(qualified bool, includeChildren bool) *ember.Element {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()
	return e.toWireLocked(qualified, includeChildren)
}

func (e Element) toWireLocked(qualified bool, includeChildren bool) *ember.Element {
	n := e.tree.arena[e.id]
	el := &ember.Element{
		Kind:      n.kind,
		Number:    n.number,
		Qualified: qualified,
	}
	if qualified {
		el.Path = e.tree.path(e.id)
	}

	switch n.kind {
	case ember.KindParameter:
		el.Value = n.value
		el.HasValue = n.hasValue
		el.Access = n.access
		el.ParamType = n.paramType
		el.StreamIdentifier = n.streamIdentifier
	case ember.KindMatrix:
		el.TargetCount = n.targetCount
		el.SourceCount = n.sourceCount
		el.MatrixKind = n.matrixKind
		el.MatrixMode = n.matrixMode
		el.Labels = append([]string(nil), n.labels...)
		el.Connections = connectionsToWire(n.connections)
	case ember.KindCommand:
		el.Cmd = n.cmd
	}

	if includeChildren {
		for _, childID := range n.children {
			child := Element{tree: e.tree, id: childID}
			el.Children = append(el.Children, child.toWireLocked(qualified, false))
		}
	}
	return el
}

func connectionsToWire(conns map[int]map[int]struct{}) []ember.Connection {
	if len(conns) == 0 {
		return nil
	}
	out := make([]ember.Connection, 0, len(conns))
	for target, sources := range conns {
		c := ember.Connection{Target: target}
		for s := range sources {
			c.Sources = append(c.Sources, s)
		}
		out = append(out, c)
	}
	return out
}

// BuildChain constructs the unqualified Root a client would expect back
// for a request that addressed e via a number chain from the tree root:
// nested single-child Node wrappers down to e, with e itself carrying
// includeChildren's worth of detail.
func (e Element) BuildChain(includeChildren bool) *ember.Root {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()

	var chainIDs []ElementID
	for cur := e.id; cur != invalidID; cur = e.tree.arena[cur].parent {
		chainIDs = append([]ElementID{cur}, chainIDs...)
	}

	leaf := Element{tree: e.tree, id: e.id}
	wireLeaf := leaf.toWireLocked(false, includeChildren)

	cur := wireLeaf
	for i := len(chainIDs) - 2; i >= 0; i-- {
		n := e.tree.arena[chainIDs[i]]
		wrapper := &ember.Element{
			Kind:     n.kind,
			Number:   n.number,
			Children: []*ember.Element{cur},
		}
		cur = wrapper
	}
	return &ember.Root{Elements: []*ember.Element{cur}}
}
