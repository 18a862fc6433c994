// Package ember implements the Ember+ tree vocabulary and a compact
// BER-style wire codec: encode/decode of Element trees, qualified vs.
// unqualified addressing, and the small set of enumerations the
// dispatcher needs (ParameterAccess, ParameterType, MatrixType,
// MatrixMode, MatrixOperation, MatrixDisposition, Command).
//
// The codec uses definite-length BER tag/length/value (TLV) records
// exactly as real Ember+ does at the octet level, but with a reduced,
// internally-consistent tag vocabulary rather than the full glow.asn
// schema — this server only ever talks to itself (or to the
// spec's own test vectors), so byte-for-byte interop with a
// third-party Ember+ stack is not a goal; see DESIGN.md.
package ember

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Errors returned by the BER primitives and by Decode.
var (
	ErrTruncated    = errors.New("ember: truncated BER data")
	ErrBadLength    = errors.New("ember: invalid BER length")
	ErrUnknownTag   = errors.New("ember: unknown element tag")
	ErrEmptyMessage = errors.New("ember: empty message")
)

// tlv is a single decoded tag/length/value record.
type tlv struct {
	tag     byte
	payload []byte
}

// encodeTLV serializes a tag/payload pair using BER definite-length rules:
// lengths under 128 use the short form (a single length byte); longer
// payloads use the long form (0x80|n length-of-length octets followed by
// the big-endian length).
func encodeTLV(tag byte, payload []byte) []byte {
	out := make([]byte, 0, len(payload)+6)
	out = append(out, tag)
	out = appendLength(out, len(payload))
	out = append(out, payload...)
	return out
}

func appendLength(out []byte, n int) []byte {
	if n < 128 {
		return append(out, byte(n))
	}
	var lenBytes []byte
	v := uint64(n)
	for v > 0 {
		lenBytes = append([]byte{byte(v)}, lenBytes...)
		v >>= 8
	}
	out = append(out, 0x80|byte(len(lenBytes)))
	return append(out, lenBytes...)
}

// readTLV reads one TLV record from data, returning the record and the
// remaining unconsumed bytes.
func readTLV(data []byte) (tlv, []byte, error) {
	if len(data) < 2 {
		return tlv{}, nil, ErrTruncated
	}
	tag := data[0]
	rest := data[1:]

	length, n, err := readLength(rest)
	if err != nil {
		return tlv{}, nil, err
	}
	rest = rest[n:]
	if len(rest) < length {
		return tlv{}, nil, ErrTruncated
	}
	return tlv{tag: tag, payload: rest[:length]}, rest[length:], nil
}

// readLength reads a BER definite length field, returning the decoded
// length and the number of bytes it occupied.
func readLength(data []byte) (int, int, error) {
	if len(data) < 1 {
		return 0, 0, ErrTruncated
	}
	first := data[0]
	if first < 128 {
		return int(first), 1, nil
	}

	numOctets := int(first &^ 0x80)
	if numOctets == 0 || numOctets > 4 {
		return 0, 0, ErrBadLength
	}
	if len(data) < 1+numOctets {
		return 0, 0, ErrTruncated
	}

	var buf [4]byte
	copy(buf[4-numOctets:], data[1:1+numOctets])
	return int(binary.BigEndian.Uint32(buf[:])), 1 + numOctets, nil
}

// readAll decodes every sibling TLV record in data.
func readAll(data []byte) ([]tlv, error) {
	var records []tlv
	for len(data) > 0 {
		rec, rest, err := readTLV(data)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		data = rest
	}
	return records, nil
}

func fieldError(tag byte, err error) error {
	return fmt.Errorf("ember: field 0x%02x: %w", tag, err)
}
