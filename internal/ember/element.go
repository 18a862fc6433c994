package ember

// Element is the wire-level representation of one node in a decoded or
// about-to-be-encoded Ember+ message. A request from a client is either
// qualified (Path set, no ancestor chain) or unqualified (a chain of
// single-child Node elements from the root down to the deepest element or
// command, identified only by local Number at each step).
type Element struct {
	Kind ElementKind

	// Number is this element's local child index. Always present.
	Number int

	// Path is the dot-joined absolute path ("1.3.2"). Only meaningful
	// when Qualified is true.
	Path      string
	Qualified bool

	// Children holds nested elements: for an unqualified request this is
	// the next hop in the path chain (at most one, until the leaf); for a
	// GetDirectory response this is the full or trimmed child listing.
	Children []*Element

	// Parameter fields.
	Value            any
	HasValue         bool
	Access           ParameterAccess
	ParamType        ParameterType
	StreamIdentifier *int32

	// Matrix fields.
	TargetCount *int
	SourceCount *int
	MatrixKind  *MatrixType
	MatrixMode  *MatrixMode
	Labels      []string
	Connections []Connection

	// Command field.
	Cmd Command
}

// Connection is a single matrix crosspoint mutation as carried on the wire:
// a target, the source set, and the operation to apply (absolute when
// omitted, per spec).
type Connection struct {
	Target     int
	Sources    []int
	Operation  MatrixOperation
	HasOp      bool
	Disposition MatrixDisposition
}

// Root is the top-level container of a decoded or to-be-encoded message.
type Root struct {
	Elements []*Element
}

// IsParameter reports whether e is a Parameter element.
func (e *Element) IsParameter() bool { return e.Kind == KindParameter }

// IsMatrix reports whether e is a Matrix element.
func (e *Element) IsMatrix() bool { return e.Kind == KindMatrix }

// IsCommand reports whether e is a Command element.
func (e *Element) IsCommand() bool { return e.Kind == KindCommand }

// IsStream reports whether e is a Parameter carrying a stream identifier.
func (e *Element) IsStream() bool {
	return e.Kind == KindParameter && e.StreamIdentifier != nil
}

// Leaf walks an unqualified request's single-child chain and returns the
// deepest element along with the path of Numbers leading to it.
func (e *Element) Leaf() (*Element, []int) {
	path := []int{e.Number}
	cur := e
	for len(cur.Children) == 1 {
		cur = cur.Children[0]
		path = append(path, cur.Number)
	}
	return cur, path
}
