package main

import (
	"fmt"
	"net"
	"sync"

	"github.com/emberplus/emberd/internal/ember"
	"github.com/emberplus/emberd/internal/s101"
)

// client holds one TCP connection to an emberd server, feeding inbound
// bytes through an s101.Codec and printing each decoded root as it
// arrives, decoupled from command input.
type client struct {
	conn  net.Conn
	codec *s101.Codec

	writeMu sync.Mutex
}

func newClient(addr string) (*client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	c := &client{conn: conn}
	c.codec = s101.NewCodec(c)
	go c.readLoop()
	return c, nil
}

func (c *client) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.codec.Feed(buf[:n])
		}
		if err != nil {
			fmt.Printf("\n[connection closed: %v]\n", err)
			return
		}
	}
}

// OnEmberPacket implements s101.Handler.
func (c *client) OnEmberPacket(payload []byte) {
	root, err := ember.Decode(payload)
	if err != nil {
		fmt.Printf("\n[decode error: %v]\n", err)
		return
	}
	fmt.Printf("\n%s\n", formatRoot(root))
}

// OnKeepAliveRequest implements s101.Handler by answering in kind.
func (c *client) OnKeepAliveRequest() {
	c.writeRaw(s101.EncodeKeepAliveResponse())
}

// OnKeepAliveResponse implements s101.Handler; nothing to do client-side.
func (c *client) OnKeepAliveResponse() {}

// Send encodes root as BER, frames it via S101, and writes it to the
// server.
func (c *client) Send(root *ember.Root) error {
	payload, err := ember.Encode(root)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	for _, frame := range c.codec.EncodeEmber(payload) {
		c.writeRaw(frame)
	}
	return nil
}

func (c *client) writeRaw(frame []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, _ = c.conn.Write(frame)
}

func (c *client) Close() error {
	return c.conn.Close()
}
