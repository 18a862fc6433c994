package s101

import "encoding/binary"

// receiveState is the codec's byte-level receive state.
type receiveState int

const (
	stateSearchBOF receiveState = iota
	stateInFrame
	stateEscaped
)

// Handler receives decoded events from a Codec as bytes are fed to it.
// Implementations must not block; Codec.Feed calls them synchronously.
type Handler interface {
	// OnKeepAliveRequest is called when a keepalive-request frame is received.
	OnKeepAliveRequest()
	// OnKeepAliveResponse is called when a keepalive-response frame is received.
	OnKeepAliveResponse()
	// OnEmberPacket is called when a complete (possibly reassembled) Ember+
	// payload has been received.
	OnEmberPacket(payload []byte)
}

// Codec is a stateful, single-connection S101 receiver. Feed arbitrary byte
// chunks to it; it emits events to the configured Handler. Codec never
// panics or returns an error across the Feed boundary: CRC failures,
// truncated frames, and unknown commands are dropped silently per the
// protocol's failure policy.
type Codec struct {
	handler Handler

	state   receiveState
	buf     []byte
	escaped bool

	// reassembly state for multi-frame Ember+ payloads
	reassembling bool
	reassembly   []byte

	maxPayloadSize int
}

// NewCodec creates a Codec that delivers events to handler.
func NewCodec(handler Handler) *Codec {
	return &Codec{
		handler:        handler,
		state:          stateSearchBOF,
		maxPayloadSize: DefaultMaxPayloadSize,
	}
}

// Feed processes an arbitrary chunk of bytes read from the wire.
func (c *Codec) Feed(data []byte) {
	for _, b := range data {
		c.feedByte(b)
	}
}

func (c *Codec) feedByte(b byte) {
	switch c.state {
	case stateSearchBOF:
		if b == BOF {
			c.buf = c.buf[:0]
			c.state = stateInFrame
		}

	case stateInFrame:
		switch b {
		case EOF:
			c.finishFrame()
			c.state = stateSearchBOF
		case Escape:
			c.state = stateEscaped
		case BOF:
			// Restart: treat as a new BOF.
			c.buf = c.buf[:0]
		default:
			c.buf = append(c.buf, b)
		}

	case stateEscaped:
		c.buf = append(c.buf, b^EscapeXOR)
		c.state = stateInFrame
	}
}

// finishFrame validates and dispatches the accumulated frame body
// (everything seen since BOF, excluding BOF/EOF).
func (c *Codec) finishFrame() {
	if len(c.buf) < 2 {
		return
	}

	payload := c.buf[:len(c.buf)-2]
	wantCRC := binary.LittleEndian.Uint16(c.buf[len(c.buf)-2:])
	if Checksum(payload) != wantCRC {
		return
	}

	frame, err := parseFrameBody(payload)
	if err != nil {
		return
	}
	if frame.MessageType != MessageTypeS101 {
		return
	}

	switch frame.Command {
	case CommandKeepAliveRequest:
		c.handler.OnKeepAliveRequest()
	case CommandKeepAliveResponse:
		c.handler.OnKeepAliveResponse()
	case CommandEmberPacket:
		c.handleEmberFrame(frame)
	default:
		// Unknown command: drop.
	}
}

func (c *Codec) handleEmberFrame(frame *Frame) {
	if frame.IsEmptyPacket() {
		// An empty frame is valid and its payload discarded; if it also
		// carries the first-packet flag, it restarts reassembly and drops
		// whatever was accumulated so far.
		if frame.IsFirstPacket() {
			c.reassembling = true
			c.reassembly = c.reassembly[:0]
		}
		return
	}

	if frame.IsFirstPacket() {
		c.reassembling = true
		c.reassembly = append(c.reassembly[:0], frame.Payload...)
	} else if c.reassembling {
		c.reassembly = append(c.reassembly, frame.Payload...)
	} else {
		// A continuation frame with no preceding first-packet frame: there
		// is nothing sane to reassemble, so treat this frame as if it were
		// the start of a new message.
		c.reassembling = true
		c.reassembly = append(c.reassembly[:0], frame.Payload...)
	}

	if frame.IsLastPacket() {
		complete := append([]byte(nil), c.reassembly...)
		c.reassembling = false
		c.reassembly = c.reassembly[:0]
		c.handler.OnEmberPacket(complete)
	}
}

// SetMaxPayloadSize overrides the per-frame payload cap used when encoding.
func (c *Codec) SetMaxPayloadSize(n int) {
	if n > 0 {
		c.maxPayloadSize = n
	}
}

// EncodeKeepAliveRequest returns the bytes of a keepalive-request frame.
func EncodeKeepAliveRequest() []byte {
	return encodeControlFrame(CommandKeepAliveRequest)
}

// EncodeKeepAliveResponse returns the bytes of a keepalive-response frame.
func EncodeKeepAliveResponse() []byte {
	return encodeControlFrame(CommandKeepAliveResponse)
}

func encodeControlFrame(command byte) []byte {
	frame := &Frame{
		Slot:        0,
		MessageType: MessageTypeS101,
		Command:     command,
		Version:     VersionS101,
		Flags:       FlagSinglePacket,
		DTD:         0,
	}
	return encodeFrame(frame)
}

// EncodeEmber splits payload into one or more Ember+ frames (more than one
// if payload exceeds the codec's max payload size) and returns their wire
// bytes in order.
func (c *Codec) EncodeEmber(payload []byte) [][]byte {
	max := c.maxPayloadSize
	if max <= 0 {
		max = DefaultMaxPayloadSize
	}

	if len(payload) == 0 {
		frame := &Frame{
			MessageType: MessageTypeS101,
			Command:     CommandEmberPacket,
			Version:     VersionS101,
			Flags:       FlagFirstPacket | FlagLastPacket | FlagEmptyPacket,
		}
		return [][]byte{encodeFrame(frame)}
	}

	var frames [][]byte
	for offset := 0; offset < len(payload); offset += max {
		end := offset + max
		if end > len(payload) {
			end = len(payload)
		}

		var flags byte
		if offset == 0 {
			flags |= FlagFirstPacket
		}
		if end == len(payload) {
			flags |= FlagLastPacket
		}

		frame := &Frame{
			MessageType: MessageTypeS101,
			Command:     CommandEmberPacket,
			Version:     VersionS101,
			Flags:       flags,
			Payload:     payload[offset:end],
		}
		frames = append(frames, encodeFrame(frame))
	}
	return frames
}

// encodeFrame escapes and CRCs a frame, returning its full wire bytes
// (BOF ... EOF inclusive).
func encodeFrame(f *Frame) []byte {
	body := encodeFrameBody(f)

	crc := Checksum(body)
	var crcBytes [2]byte
	binary.LittleEndian.PutUint16(crcBytes[:], crc)

	unescaped := make([]byte, 0, len(body)+2)
	unescaped = append(unescaped, body...)
	unescaped = append(unescaped, crcBytes[:]...)

	out := make([]byte, 0, len(unescaped)+4)
	out = append(out, BOF)
	for _, b := range unescaped {
		switch b {
		case BOF, EOF, Escape:
			out = append(out, Escape, b^EscapeXOR)
		default:
			out = append(out, b)
		}
	}
	out = append(out, EOF)
	return out
}
