package dispatch_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberplus/emberd/internal/connection"
	"github.com/emberplus/emberd/internal/dispatch"
	"github.com/emberplus/emberd/internal/ember"
	"github.com/emberplus/emberd/internal/s101"
	"github.com/emberplus/emberd/internal/subscription"
	"github.com/emberplus/emberd/internal/tree"
)

func intPtr(n int) *int { return &n }

// newFixture builds a tree with a root Node(1) containing a readWrite
// integer Parameter(2) (path "1.2", matching the parameter-write
// propagation scenario), plus a root-level Matrix(3) with targetCount 4
// and target 1 already carrying source 0 (matching the matrix-connect
// scenario).
func newFixture() (*tree.Tree, tree.Element, tree.Element) {
	tr := tree.New()
	root := tr.AddRoot(tree.NodeSpec{Number: 1, Kind: ember.KindNode})
	param := tr.AddChild(root, tree.NodeSpec{
		Number:    2,
		Kind:      ember.KindParameter,
		Access:    ember.AccessReadWrite,
		ParamType: ember.TypeInteger,
		Value:     int64(10),
		HasValue:  true,
	})
	matrix := tr.AddRoot(tree.NodeSpec{
		Number:      3,
		Kind:        ember.KindMatrix,
		TargetCount: intPtr(4),
		SourceCount: intPtr(4),
	})
	_ = matrix.ApplyConnection(1, []int{0}, ember.MatrixOperationAbsolute)
	return tr, param, matrix
}

// testClient wraps a connection.Connection whose Serve loop is running
// against one end of a loopback socket, so it reports Alive() and is
// usable as a subscription.Subscriber / dispatch client, with the other
// end available to read back anything QueueMessage writes.
type testClient struct {
	conn   *connection.Connection
	peer   net.Conn
	cancel context.CancelFunc
}

// newTestClient wires a connection.Connection to one end of a loopback
// TCP socket pair. A real socket (rather than net.Pipe, which has no
// internal buffering) is used deliberately: dispatch handling writes
// responses and subscriber fan-out synchronously and in-line, so a
// zero-buffer pipe would deadlock a test driving HandleRoot directly
// instead of through the connection's own async request pump.
func newTestClient(t *testing.T) *testClient {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	accepted := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		accepted <- c
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	server := <-accepted
	ln.Close()

	conn := connection.New(server, nil, connection.WithKeepAliveInterval(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	go conn.Serve(ctx)
	t.Cleanup(func() {
		cancel()
		client.Close()
	})
	require.Eventually(t, conn.Alive, time.Second, 5*time.Millisecond)
	return &testClient{conn: conn, peer: client, cancel: cancel}
}

type captureHandler struct{ ch chan []byte }

func (h *captureHandler) OnKeepAliveRequest()  {}
func (h *captureHandler) OnKeepAliveResponse() {}
func (h *captureHandler) OnEmberPacket(payload []byte) {
	h.ch <- payload
}

func (c *testClient) readRoot(t *testing.T) *ember.Root {
	t.Helper()
	h := &captureHandler{ch: make(chan []byte, 1)}
	codec := s101.NewCodec(h)

	c.peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	for {
		n, err := c.peer.Read(buf)
		if n > 0 {
			codec.Feed(buf[:n])
		}
		select {
		case payload := <-h.ch:
			root, decodeErr := ember.Decode(payload)
			require.NoError(t, decodeErr)
			return root
		default:
		}
		if err != nil {
			t.Fatalf("readRoot: %v", err)
		}
	}
}

func TestGetDirectoryOnRoot(t *testing.T) {
	tr, _, _ := newFixture()
	subs := subscription.New()
	d := dispatch.New(tr, subs)

	client := newTestClient(t)
	req := &ember.Root{Elements: []*ember.Element{
		{Kind: ember.KindCommand, Number: 0, Cmd: ember.CommandGetDirectory},
	}}

	d.HandleRoot(client.conn, req)

	resp := client.readRoot(t)
	require.Len(t, resp.Elements, 2)
	assert.Equal(t, 1, subs.Count("1"))
	assert.Equal(t, 1, subs.Count("3"))
}

func TestParameterWritePropagatesToSubscribersExceptOriginator(t *testing.T) {
	tr, param, _ := newFixture()
	subs := subscription.New()
	d := dispatch.New(tr, subs)

	clientA := newTestClient(t)
	clientB := newTestClient(t)
	subs.Subscribe("1.2", clientB.conn)

	req := &ember.Root{Elements: []*ember.Element{
		{Kind: ember.KindParameter, Qualified: true, Path: "1.2", Value: int64(42), HasValue: true},
	}}
	d.HandleRoot(clientA.conn, req)

	value, ok := param.Value()
	require.True(t, ok)
	assert.Equal(t, int64(42), value)

	respA := clientA.readRoot(t)
	require.Len(t, respA.Elements, 1)
	assert.Equal(t, "1.2", respA.Elements[0].Path)
	assert.Equal(t, int64(42), respA.Elements[0].Value)

	respB := clientB.readRoot(t)
	require.Len(t, respB.Elements, 1)
	assert.Equal(t, "1.2", respB.Elements[0].Path)
	assert.Equal(t, int64(42), respB.Elements[0].Value)
}

func TestParameterWriteToReadOnlyIsSilentNoOp(t *testing.T) {
	tr := tree.New()
	root := tr.AddRoot(tree.NodeSpec{Number: 1, Kind: ember.KindNode})
	param := tr.AddChild(root, tree.NodeSpec{
		Number: 2, Kind: ember.KindParameter, Access: ember.AccessRead,
		ParamType: ember.TypeInteger, Value: int64(5), HasValue: true,
	})
	subs := subscription.New()
	d := dispatch.New(tr, subs)
	client := newTestClient(t)

	req := &ember.Root{Elements: []*ember.Element{
		{Kind: ember.KindParameter, Qualified: true, Path: "1.2", Value: int64(99), HasValue: true},
	}}
	d.HandleRoot(client.conn, req)

	value, _ := param.Value()
	assert.Equal(t, int64(5), value)
}

func TestMatrixConnectUnionsSourcesAndReportsTouchedTarget(t *testing.T) {
	tr, _, matrix := newFixture()
	subs := subscription.New()
	d := dispatch.New(tr, subs)
	client := newTestClient(t)

	req := &ember.Root{Elements: []*ember.Element{
		{
			Kind: ember.KindMatrix, Qualified: true, Path: "3",
			Connections: []ember.Connection{
				{Target: 1, Sources: []int{2}, Operation: ember.MatrixOperationConnect, HasOp: true},
			},
		},
	}}
	d.HandleRoot(client.conn, req)

	conns := matrix.Connections()
	assert.ElementsMatch(t, []int{0, 2}, conns[1])

	resp := client.readRoot(t)
	require.Len(t, resp.Elements, 1)
	require.Len(t, resp.Elements[0].Connections, 1)
	touched := resp.Elements[0].Connections[0]
	assert.Equal(t, 1, touched.Target)
	assert.ElementsMatch(t, []int{0, 2}, touched.Sources)
	assert.Equal(t, ember.DispositionModified, touched.Disposition)
}

func TestMatrixOutOfRangeTargetProducesNoResponseMutation(t *testing.T) {
	tr, _, matrix := newFixture()
	subs := subscription.New()
	d := dispatch.New(tr, subs)
	client := newTestClient(t)

	req := &ember.Root{Elements: []*ember.Element{
		{
			Kind: ember.KindMatrix, Qualified: true, Path: "3",
			Connections: []ember.Connection{{Target: 99, Sources: []int{0}}},
		},
	}}
	d.HandleRoot(client.conn, req)

	resp := client.readRoot(t)
	require.Len(t, resp.Elements, 1)
	assert.Equal(t, ember.KindNode, resp.Elements[0].Kind)
	assert.Empty(t, matrix.Connections()[99])
}

func TestUnsubscribeStopsFanout(t *testing.T) {
	tr, _, _ := newFixture()
	subs := subscription.New()
	d := dispatch.New(tr, subs)

	clientA := newTestClient(t)
	clientB := newTestClient(t)
	subs.Subscribe("1.2", clientB.conn)
	subs.Unsubscribe("1.2", clientB.conn)

	req := &ember.Root{Elements: []*ember.Element{
		{Kind: ember.KindParameter, Qualified: true, Path: "1.2", Value: int64(7), HasValue: true},
	}}
	d.HandleRoot(clientA.conn, req)

	_ = clientA.readRoot(t)
	assert.Equal(t, 0, subs.Count("1.2"))
}
