package emberserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/emberplus/emberd/internal/connection"
	"github.com/emberplus/emberd/internal/ember"
	"github.com/emberplus/emberd/internal/s101"
)

type countingHandler struct {
	hits chan struct{}
}

func (h *countingHandler) HandleRoot(conn *connection.Connection, root *ember.Root) {
	h.hits <- struct{}{}
}

func TestServerAcceptsAndDispatches(t *testing.T) {
	handler := &countingHandler{hits: make(chan struct{}, 1)}
	srv := New("127.0.0.1:0", handler, WithKeepAliveInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	var addr net.Addr
	for i := 0; i < 100; i++ {
		if addr = srv.Addr(); addr != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if addr == nil {
		t.Fatal("server never bound a listener")
	}

	client, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	root := &ember.Root{Elements: []*ember.Element{
		{Kind: ember.KindCommand, Number: 0, Cmd: ember.CommandGetDirectory},
	}}
	payload, err := ember.Encode(root)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	codec := s101.NewCodec(nil)
	for _, frame := range codec.EncodeEmber(payload) {
		if _, err := client.Write(frame); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	select {
	case <-handler.hits:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never received request")
	}

	for i := 0; i < 100; i++ {
		if srv.ConnectionCount() == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if srv.ConnectionCount() != 1 {
		t.Fatalf("expected 1 live connection, got %d", srv.ConnectionCount())
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}
