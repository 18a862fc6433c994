// Package s101 implements the S101 byte-framing codec used to carry
// Ember+ messages (and keepalive traffic) over a TCP stream.
//
// # Framing
//
// Each frame is delimited by BOF (0xFE) and EOF (0xFF). Within the
// body, BOF, EOF, and the escape byte (0xFD) are escaped: each is
// preceded by 0xFD and XORed with 0x20. The body carries a fixed
// envelope (slot, message type, command, version, flags, DTD,
// application bytes) followed by payload and a little-endian CRC-16
// (CCITT, reflected, init 0xFFFF) computed over everything between
// BOF and the CRC field.
package s101

import "errors"

// Framing constants.
const (
	// BOF marks the beginning of a frame.
	BOF byte = 0xFE
	// EOF marks the end of a frame.
	EOF byte = 0xFF
	// Escape is the escape prefix byte.
	Escape byte = 0xFD
	// EscapeXOR is XORed into an escaped byte's value.
	EscapeXOR byte = 0x20

	// MessageTypeS101 identifies the S101 message type.
	MessageTypeS101 byte = 0x0E

	// CommandEmberPacket identifies an Ember+ payload frame.
	CommandEmberPacket byte = 0x01
	// CommandKeepAliveRequest identifies a keepalive request frame.
	CommandKeepAliveRequest byte = 0x02
	// CommandKeepAliveResponse identifies a keepalive response frame.
	CommandKeepAliveResponse byte = 0x03

	// VersionS101 is the only S101 version this codec speaks.
	VersionS101 byte = 0x01

	// Flag bits for multi-packet Ember+ payloads.
	FlagFirstPacket byte = 0x02
	FlagLastPacket  byte = 0x04
	FlagEmptyPacket byte = 0x08

	// FlagSinglePacket marks a payload that is both first and last.
	FlagSinglePacket = FlagFirstPacket | FlagLastPacket

	// DefaultMaxPayloadSize is the default per-frame payload cap; larger
	// Ember+ messages are split across multiple frames.
	DefaultMaxPayloadSize = 1024

	// minFrameBody is the minimum decodable body length (slot, msgType,
	// command, version, flags, dtd, appByteCount) before the CRC.
	minFrameBody = 7
)

// ErrFrameTooShort indicates a frame body shorter than the fixed envelope.
var ErrFrameTooShort = errors.New("s101: frame shorter than minimum envelope")

// Frame is a single decoded (unescaped, CRC-validated) S101 frame.
type Frame struct {
	Slot        byte
	MessageType byte
	Command     byte
	Version     byte
	Flags       byte
	DTD         byte
	AppBytes    []byte
	Payload     []byte
}

// IsFirstPacket reports whether this frame starts a multi-frame message.
func (f *Frame) IsFirstPacket() bool { return f.Flags&FlagFirstPacket != 0 }

// IsLastPacket reports whether this frame ends a multi-frame message.
func (f *Frame) IsLastPacket() bool { return f.Flags&FlagLastPacket != 0 }

// IsEmptyPacket reports whether this frame carries an intentionally empty payload.
func (f *Frame) IsEmptyPacket() bool { return f.Flags&FlagEmptyPacket != 0 }

// parseFrameBody splits an unescaped, un-CRC'd frame body (the bytes that
// were between BOF and EOF, minus the trailing 2 CRC bytes) into a Frame.
func parseFrameBody(body []byte) (*Frame, error) {
	if len(body) < minFrameBody {
		return nil, ErrFrameTooShort
	}

	f := &Frame{
		Slot:        body[0],
		MessageType: body[1],
		Command:     body[2],
		Version:     body[3],
		Flags:       body[4],
		DTD:         body[5],
	}

	appLen := int(body[6])
	rest := body[7:]
	if len(rest) < appLen {
		return nil, ErrFrameTooShort
	}
	f.AppBytes = append([]byte(nil), rest[:appLen]...)
	f.Payload = append([]byte(nil), rest[appLen:]...)
	return f, nil
}

// encodeFrameBody serializes the envelope + payload (everything that will
// be escaped and CRC-covered), excluding BOF/EOF/CRC.
func encodeFrameBody(f *Frame) []byte {
	body := make([]byte, 0, minFrameBody+len(f.AppBytes)+len(f.Payload))
	body = append(body, f.Slot, f.MessageType, f.Command, f.Version, f.Flags, f.DTD, byte(len(f.AppBytes)))
	body = append(body, f.AppBytes...)
	body = append(body, f.Payload...)
	return body
}
