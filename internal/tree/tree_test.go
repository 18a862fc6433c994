package tree

import (
	"testing"

	"github.com/emberplus/emberd/internal/ember"
)

func buildSample(t *testing.T) *Tree {
	t.Helper()
	tr := New()

	root := tr.AddRoot(NodeSpec{Number: 1, Kind: ember.KindNode})
	tr.AddChild(root, NodeSpec{
		Number:    1,
		Kind:      ember.KindParameter,
		Value:     int64(42),
		HasValue:  true,
		Access:    ember.AccessReadWrite,
		ParamType: ember.TypeInteger,
	})

	matrixTargets, matrixSources := 2, 2
	kind := ember.MatrixOneToN
	tr.AddChild(root, NodeSpec{
		Number:      2,
		Kind:        ember.KindMatrix,
		TargetCount: &matrixTargets,
		SourceCount: &matrixSources,
		MatrixKind:  &kind,
	})

	return tr
}

func TestByPathResolution(t *testing.T) {
	tr := buildSample(t)

	el, ok := tr.ByPath("1.1")
	if !ok {
		t.Fatal("expected to resolve 1.1")
	}
	if !el.IsParameter() {
		t.Fatalf("expected parameter at 1.1, got %v", el.Kind())
	}
	v, has := el.Value()
	if !has || v.(int64) != 42 {
		t.Fatalf("unexpected value: %v %v", v, has)
	}

	if _, ok := tr.ByPath("9.9"); ok {
		t.Fatal("expected no match for unknown path")
	}
}

func TestSetValueWriteGating(t *testing.T) {
	tr := buildSample(t)
	el, _ := tr.ByPath("1.1")

	if !el.Access().CanWrite() {
		t.Fatal("expected read-write parameter to permit writes")
	}
	el.SetValue(int64(99))
	v, _ := el.Value()
	if v.(int64) != 99 {
		t.Fatalf("expected updated value 99, got %v", v)
	}
}

func TestMatrixConnectUnionSemantics(t *testing.T) {
	tr := buildSample(t)
	matrix, ok := tr.ByPath("1.2")
	if !ok {
		t.Fatal("expected to resolve matrix")
	}

	if err := matrix.ApplyConnection(0, []int{0}, ember.MatrixOperationConnect); err != nil {
		t.Fatal(err)
	}
	if err := matrix.ApplyConnection(0, []int{1}, ember.MatrixOperationConnect); err != nil {
		t.Fatal(err)
	}

	conns := matrix.Connections()
	if len(conns[0]) != 2 {
		t.Fatalf("expected union of sources {0,1}, got %v", conns[0])
	}

	// oneToN forbids a target holding more than one source; union-before-
	// constraint means ApplyConnection still succeeds, Validate is what
	// would flag it.
	if err := matrix.Validate(); err == nil {
		t.Fatal("expected Validate to flag target 0 holding two sources")
	}
}

func TestMatrixOneToNAllowsSourceFanOut(t *testing.T) {
	tr := buildSample(t)
	matrix, _ := tr.ByPath("1.2")

	// Under oneToN a single source may feed any number of targets, so long
	// as each target still holds at most one source.
	if err := matrix.ApplyConnection(0, []int{0}, ember.MatrixOperationConnect); err != nil {
		t.Fatal(err)
	}
	if err := matrix.ApplyConnection(1, []int{0}, ember.MatrixOperationConnect); err != nil {
		t.Fatal(err)
	}
	if err := matrix.Validate(); err != nil {
		t.Fatalf("expected oneToN fan-out to validate cleanly, got %v", err)
	}
}

func TestMatrixOneToOneForbidsSourceFanOut(t *testing.T) {
	tr := New()
	root := tr.AddRoot(NodeSpec{Number: 1, Kind: ember.KindNode})

	matrixTargets, matrixSources := 2, 2
	kind := ember.MatrixOneToOne
	tr.AddChild(root, NodeSpec{
		Number:      1,
		Kind:        ember.KindMatrix,
		TargetCount: &matrixTargets,
		SourceCount: &matrixSources,
		MatrixKind:  &kind,
	})
	matrix, _ := tr.ByPath("1.1")

	if err := matrix.ApplyConnection(0, []int{0}, ember.MatrixOperationConnect); err != nil {
		t.Fatal(err)
	}
	if err := matrix.ApplyConnection(1, []int{0}, ember.MatrixOperationConnect); err != nil {
		t.Fatal(err)
	}
	if err := matrix.Validate(); err == nil {
		t.Fatal("expected Validate to flag source 0 feeding two targets under oneToOne")
	}
}

func TestMatrixDisconnectRemovesSource(t *testing.T) {
	tr := buildSample(t)
	matrix, _ := tr.ByPath("1.2")

	_ = matrix.ApplyConnection(0, []int{0, 1}, ember.MatrixOperationConnect)
	_ = matrix.ApplyConnection(0, []int{0}, ember.MatrixOperationDisconnect)

	conns := matrix.Connections()
	if len(conns[0]) != 1 || conns[0][0] != 1 {
		t.Fatalf("expected only source 1 left, got %v", conns[0])
	}
}

func TestBuildChainWrapsUnqualified(t *testing.T) {
	tr := buildSample(t)
	el, _ := tr.ByPath("1.1")

	root := el.BuildChain(false)
	if len(root.Elements) != 1 {
		t.Fatalf("expected single top-level element, got %d", len(root.Elements))
	}
	top := root.Elements[0]
	if top.Number != 1 || top.Qualified {
		t.Fatalf("unexpected top wrapper: %+v", top)
	}
	if len(top.Children) != 1 || top.Children[0].Number != 1 {
		t.Fatalf("unexpected chain shape: %+v", top.Children)
	}
}

func TestToWireQualifiedIncludesPath(t *testing.T) {
	tr := buildSample(t)
	el, _ := tr.ByPath("1.1")

	wire := el.ToWire(true, false)
	if !wire.Qualified || wire.Path != "1.1" {
		t.Fatalf("expected qualified path 1.1, got %+v", wire)
	}
}

func TestDuplicateIsDetached(t *testing.T) {
	tr := buildSample(t)
	el, _ := tr.ByPath("1")

	snapshot := el.Duplicate()
	live, _ := tr.ByPath("1.1")
	live.SetValue(int64(7))

	dupEl, ok := snapshot.ByPath("1.1")
	if !ok {
		t.Fatal("expected duplicated path to resolve")
	}
	v, _ := dupEl.Value()
	if v.(int64) != 42 {
		t.Fatalf("expected snapshot to retain original value 42, got %v", v)
	}
}
