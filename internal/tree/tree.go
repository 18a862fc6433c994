// Package tree implements the live, mutable element tree the dispatcher
// operates on. Elements are stored in a flat arena and referenced by
// numeric ElementID rather than pointer, so parent/child/connection
// references never form pointer cycles and the whole tree can be walked,
// copied, or garbage-collected as a single slice.
package tree

import (
	"strconv"
	"strings"
	"sync"

	"github.com/emberplus/emberd/internal/ember"
)

// ElementID is an arena index; the first element created has ID 0.
// invalidID marks "no parent" / "not found".
type ElementID int

const invalidID ElementID = -1

type node struct {
	id       ElementID
	parent   ElementID
	number   int
	kind     ember.ElementKind
	children []ElementID

	value            any
	hasValue         bool
	access           ember.ParameterAccess
	paramType        ember.ParameterType
	streamIdentifier *int32

	targetCount *int
	sourceCount *int
	matrixKind  *ember.MatrixType
	matrixMode  *ember.MatrixMode
	labels      []string
	// connections holds live crosspoint state: target -> set of sources.
	connections map[int]map[int]struct{}

	cmd ember.Command
}

// Tree is the arena-backed element store. The zero value is not usable;
// use New.
type Tree struct {
	mu    sync.RWMutex
	arena []*node
	roots []ElementID
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{}
}

// NodeSpec describes an element to insert via AddChild/AddRoot.
type NodeSpec struct {
	Number int
	Kind   ember.ElementKind

	Value     any
	HasValue  bool
	Access    ember.ParameterAccess
	ParamType ember.ParameterType

	TargetCount *int
	SourceCount *int
	MatrixKind  *ember.MatrixType
	MatrixMode  *ember.MatrixMode
	Labels      []string
}

// AddRoot inserts a new top-level element and returns a handle to it.
func (t *Tree) AddRoot(spec NodeSpec) Element {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.newNode(invalidID, spec)
	t.roots = append(t.roots, id)
	return Element{tree: t, id: id}
}

// AddChild inserts a new element as a child of parent and returns a
// handle to it.
func (t *Tree) AddChild(parent Element, spec NodeSpec) Element {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.newNode(parent.id, spec)
	t.arena[parent.id].children = append(t.arena[parent.id].children, id)
	return Element{tree: t, id: id}
}

func (t *Tree) newNode(parent ElementID, spec NodeSpec) ElementID {
	n := &node{
		id:          ElementID(len(t.arena)),
		parent:      parent,
		number:      spec.Number,
		kind:        spec.Kind,
		value:       spec.Value,
		hasValue:    spec.HasValue,
		access:      spec.Access,
		paramType:   spec.ParamType,
		targetCount: spec.TargetCount,
		sourceCount: spec.SourceCount,
		matrixKind:  spec.MatrixKind,
		matrixMode:  spec.MatrixMode,
		labels:      append([]string(nil), spec.Labels...),
	}
	if spec.Kind == ember.KindMatrix {
		n.connections = make(map[int]map[int]struct{})
	}
	t.arena = append(t.arena, n)
	return n.id
}

// Roots returns the top-level elements, in insertion order.
func (t *Tree) Roots() []Element {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Element, len(t.roots))
	for i, id := range t.roots {
		out[i] = Element{tree: t, id: id}
	}
	return out
}

// ByPath resolves a dot-joined path ("1.3.2") to an element, walking
// from the roots by Number at each level.
func (t *Tree) ByPath(path string) (Element, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	parts := strings.Split(path, ".")
	numbers := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Element{}, false
		}
		numbers[i] = n
	}
	return t.byNumbers(numbers)
}

// ByNumbers resolves an unqualified number chain to an element.
func (t *Tree) ByNumbers(numbers []int) (Element, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byNumbers(numbers)
}

func (t *Tree) byNumbers(numbers []int) (Element, bool) {
	if len(numbers) == 0 {
		return Element{}, false
	}
	candidates := t.roots
	var found ElementID = invalidID
	for _, want := range numbers {
		found = invalidID
		for _, id := range candidates {
			if t.arena[id].number == want {
				found = id
				break
			}
		}
		if found == invalidID {
			return Element{}, false
		}
		candidates = t.arena[found].children
	}
	return Element{tree: t, id: found}, true
}

// path returns the dot-joined absolute path of id, without taking the lock
// (callers must already hold it).
func (t *Tree) path(id ElementID) string {
	var numbers []int
	for cur := id; cur != invalidID; cur = t.arena[cur].parent {
		numbers = append([]int{t.arena[cur].number}, numbers...)
	}
	strs := make([]string, len(numbers))
	for i, n := range numbers {
		strs[i] = strconv.Itoa(n)
	}
	return strings.Join(strs, ".")
}
