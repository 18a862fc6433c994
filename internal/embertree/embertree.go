// Package embertree converts between the live internal/tree representation
// and a plain document form suitable for startup fixtures and operator
// inspection: JSON for the conversion spec.md names, and the same document
// shape over YAML for config-file and test fixtures, mirroring the
// teacher's YAML test-vector loader.
package embertree

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/emberplus/emberd/internal/ember"
	"github.com/emberplus/emberd/internal/tree"
)

// doc is the wire-agnostic tree document shape. Both json and yaml tags
// are carried so the same struct serves FromJSON/ToJSON and FromYAML/ToYAML.
type doc struct {
	Roots []nodeDoc `json:"roots" yaml:"roots"`
}

type nodeDoc struct {
	Number   int       `json:"number" yaml:"number"`
	Kind     string    `json:"kind" yaml:"kind"`
	Children []nodeDoc `json:"children,omitempty" yaml:"children,omitempty"`

	// Parameter fields.
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
	Access   string `json:"access,omitempty" yaml:"access,omitempty"`
	ParamType string `json:"type,omitempty" yaml:"type,omitempty"`

	// Matrix fields.
	TargetCount *int     `json:"targetCount,omitempty" yaml:"targetCount,omitempty"`
	SourceCount *int     `json:"sourceCount,omitempty" yaml:"sourceCount,omitempty"`
	MatrixKind  string   `json:"matrixKind,omitempty" yaml:"matrixKind,omitempty"`
	MatrixMode  string   `json:"matrixMode,omitempty" yaml:"matrixMode,omitempty"`
	Labels      []string `json:"labels,omitempty" yaml:"labels,omitempty"`

	// Connections is best-effort: present when a matrix fixture declares
	// crosspoint state up front, omitted otherwise. Never authoritative —
	// only internal/dispatch mutates live matrix state.
	Connections map[int][]int `json:"connections,omitempty" yaml:"connections,omitempty"`
}

// FromJSON builds a Tree from a JSON tree document.
func FromJSON(data []byte) (*tree.Tree, error) {
	var d doc
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("embertree: parse JSON: %w", err)
	}
	return build(d)
}

// ToJSON renders t as an indented JSON tree document.
func ToJSON(t *tree.Tree) ([]byte, error) {
	d := render(t)
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("embertree: render JSON: %w", err)
	}
	return out, nil
}

// FromYAML builds a Tree from a YAML tree document, the format used for
// internal/config's TreePath startup fixture and for test seeding.
func FromYAML(data []byte) (*tree.Tree, error) {
	var d doc
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("embertree: parse YAML: %w", err)
	}
	return build(d)
}

// ToYAML renders t as a YAML tree document.
func ToYAML(t *tree.Tree) ([]byte, error) {
	d := render(t)
	out, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("embertree: render YAML: %w", err)
	}
	return out, nil
}

func build(d doc) (*tree.Tree, error) {
	t := tree.New()
	for _, rd := range d.Roots {
		if _, err := buildNode(t, tree.Element{}, rd, true); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func buildNode(t *tree.Tree, parent tree.Element, nd nodeDoc, isRoot bool) (tree.Element, error) {
	kind, err := parseKind(nd.Kind)
	if err != nil {
		return tree.Element{}, fmt.Errorf("embertree: node %d: %w", nd.Number, err)
	}

	spec := tree.NodeSpec{Number: nd.Number, Kind: kind, Labels: nd.Labels}

	switch kind {
	case ember.KindParameter:
		spec.Value = nd.Value
		if i, ok := nd.Value.(int); ok {
			spec.Value = int64(i)
		}
		spec.HasValue = nd.Value != nil
		spec.Access = parseAccess(nd.Access)
		spec.ParamType = parseParamType(nd.ParamType)
	case ember.KindMatrix:
		spec.TargetCount = nd.TargetCount
		spec.SourceCount = nd.SourceCount
		if nd.MatrixKind != "" {
			mk := parseMatrixKind(nd.MatrixKind)
			spec.MatrixKind = &mk
		}
		if nd.MatrixMode != "" {
			mm := parseMatrixMode(nd.MatrixMode)
			spec.MatrixMode = &mm
		}
	}

	var el tree.Element
	if isRoot {
		el = t.AddRoot(spec)
	} else {
		el = t.AddChild(parent, spec)
	}

	if kind == ember.KindMatrix {
		for target, sources := range nd.Connections {
			if err := el.ApplyConnection(target, sources, ember.MatrixOperationAbsolute); err != nil {
				return tree.Element{}, fmt.Errorf("embertree: node %d: seed connections: %w", nd.Number, err)
			}
		}
	}

	for _, child := range nd.Children {
		if _, err := buildNode(t, el, child, false); err != nil {
			return tree.Element{}, err
		}
	}
	return el, nil
}

func render(t *tree.Tree) doc {
	var d doc
	for _, root := range t.Roots() {
		d.Roots = append(d.Roots, renderNode(root))
	}
	return d
}

func renderNode(e tree.Element) nodeDoc {
	nd := nodeDoc{Number: e.Number(), Kind: e.Kind().String(), Labels: e.Labels()}

	switch e.Kind() {
	case ember.KindParameter:
		if v, ok := e.Value(); ok {
			nd.Value = v
		}
		nd.Access = e.Access().String()
		nd.ParamType = e.ParamType().String()
	case ember.KindMatrix:
		nd.TargetCount = e.TargetCount()
		nd.SourceCount = e.SourceCount()
		if mk := e.MatrixKind(); mk != nil {
			nd.MatrixKind = mk.String()
		}
		if conns := e.Connections(); len(conns) > 0 {
			nd.Connections = conns
		}
	}

	for _, child := range e.Children() {
		nd.Children = append(nd.Children, renderNode(child))
	}
	return nd
}

func parseKind(s string) (ember.ElementKind, error) {
	switch s {
	case "", "Node", "node":
		return ember.KindNode, nil
	case "Parameter", "parameter":
		return ember.KindParameter, nil
	case "Matrix", "matrix":
		return ember.KindMatrix, nil
	default:
		return 0, fmt.Errorf("unknown element kind %q", s)
	}
}

func parseAccess(s string) ember.ParameterAccess {
	switch s {
	case "read":
		return ember.AccessRead
	case "write":
		return ember.AccessWrite
	case "readWrite", "readwrite":
		return ember.AccessReadWrite
	default:
		return ember.AccessNone
	}
}

func parseParamType(s string) ember.ParameterType {
	switch s {
	case "real":
		return ember.TypeReal
	case "string":
		return ember.TypeString
	case "boolean", "bool":
		return ember.TypeBoolean
	case "enum":
		return ember.TypeEnum
	case "octets":
		return ember.TypeOctets
	case "null":
		return ember.TypeNull
	default:
		return ember.TypeInteger
	}
}

func parseMatrixKind(s string) ember.MatrixType {
	switch s {
	case "oneToOne":
		return ember.MatrixOneToOne
	case "nToN":
		return ember.MatrixNToN
	default:
		return ember.MatrixOneToN
	}
}

func parseMatrixMode(s string) ember.MatrixMode {
	switch s {
	case "nonLinear":
		return ember.MatrixNonLinear
	default:
		return ember.MatrixLinear
	}
}
