package ember

import "fmt"

// Outer element tags.
const (
	tagNode              byte = 0x01
	tagParameter         byte = 0x02
	tagMatrix            byte = 0x03
	tagCommand           byte = 0x04
	tagQualifiedNode     byte = 0x05
	tagQualifiedParam    byte = 0x06
	tagQualifiedMatrix   byte = 0x07
)

// Field tags nested within an element's body.
const (
	fieldNumber           byte = 0x00
	fieldPath             byte = 0x01
	fieldValue            byte = 0x02
	fieldAccess           byte = 0x03
	fieldParamType        byte = 0x04
	fieldStreamIdentifier byte = 0x05
	fieldChildren         byte = 0x06
	fieldTargetCount      byte = 0x07
	fieldSourceCount      byte = 0x08
	fieldMatrixType       byte = 0x09
	fieldMatrixMode       byte = 0x0A
	fieldLabels           byte = 0x0B
	fieldConnections      byte = 0x0C
	fieldCommandNumber    byte = 0x0D
)

// Decode parses a BER-encoded Ember+ message into a Root.
func Decode(data []byte) (*Root, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}

	records, err := readAll(data)
	if err != nil {
		return nil, err
	}

	root := &Root{}
	for _, rec := range records {
		el, err := decodeElement(rec)
		if err != nil {
			return nil, err
		}
		root.Elements = append(root.Elements, el)
	}
	return root, nil
}

func decodeElement(rec tlv) (*Element, error) {
	el := &Element{}

	switch rec.tag {
	case tagNode:
		el.Kind = KindNode
	case tagParameter:
		el.Kind = KindParameter
	case tagMatrix:
		el.Kind = KindMatrix
	case tagCommand:
		el.Kind = KindCommand
	case tagQualifiedNode:
		el.Kind = KindNode
		el.Qualified = true
	case tagQualifiedParam:
		el.Kind = KindParameter
		el.Qualified = true
	case tagQualifiedMatrix:
		el.Kind = KindMatrix
		el.Qualified = true
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownTag, rec.tag)
	}

	fields, err := readAll(rec.payload)
	if err != nil {
		return nil, err
	}

	for _, f := range fields {
		if err := applyField(el, f); err != nil {
			return nil, fieldError(f.tag, err)
		}
	}
	return el, nil
}

func applyField(el *Element, f tlv) error {
	switch f.tag {
	case fieldNumber:
		n, err := decodeInt(f.payload)
		if err != nil {
			return err
		}
		el.Number = n

	case fieldPath:
		el.Path = string(f.payload)

	case fieldValue:
		v, err := decodeValue(f.payload)
		if err != nil {
			return err
		}
		el.Value = v
		el.HasValue = true

	case fieldAccess:
		if len(f.payload) != 1 {
			return ErrTruncated
		}
		el.Access = ParameterAccess(f.payload[0])

	case fieldParamType:
		if len(f.payload) != 1 {
			return ErrTruncated
		}
		el.ParamType = ParameterType(f.payload[0])

	case fieldStreamIdentifier:
		n, err := decodeInt(f.payload)
		if err != nil {
			return err
		}
		id := int32(n)
		el.StreamIdentifier = &id

	case fieldChildren:
		children, err := readAll(f.payload)
		if err != nil {
			return err
		}
		for _, c := range children {
			child, err := decodeElement(c)
			if err != nil {
				return err
			}
			el.Children = append(el.Children, child)
		}

	case fieldTargetCount:
		n, err := decodeInt(f.payload)
		if err != nil {
			return err
		}
		el.TargetCount = &n

	case fieldSourceCount:
		n, err := decodeInt(f.payload)
		if err != nil {
			return err
		}
		el.SourceCount = &n

	case fieldMatrixType:
		if len(f.payload) != 1 {
			return ErrTruncated
		}
		t := MatrixType(f.payload[0])
		el.MatrixKind = &t

	case fieldMatrixMode:
		if len(f.payload) != 1 {
			return ErrTruncated
		}
		m := MatrixMode(f.payload[0])
		el.MatrixMode = &m

	case fieldLabels:
		labels, err := readAll(f.payload)
		if err != nil {
			return err
		}
		for _, l := range labels {
			el.Labels = append(el.Labels, string(l.payload))
		}

	case fieldConnections:
		conns, err := readAll(f.payload)
		if err != nil {
			return err
		}
		for _, c := range conns {
			conn, err := decodeConnection(c.payload)
			if err != nil {
				return err
			}
			el.Connections = append(el.Connections, conn)
		}

	case fieldCommandNumber:
		if len(f.payload) != 1 {
			return ErrTruncated
		}
		el.Cmd = Command(f.payload[0])

	default:
		// Unknown fields are ignored: BER is self-describing.
	}
	return nil
}

// Connection field tags.
const (
	connFieldTarget  byte = 0x00
	connFieldSources byte = 0x01
	connFieldOp      byte = 0x02
)

func decodeConnection(data []byte) (Connection, error) {
	var conn Connection
	fields, err := readAll(data)
	if err != nil {
		return conn, err
	}
	for _, f := range fields {
		switch f.tag {
		case connFieldTarget:
			n, err := decodeInt(f.payload)
			if err != nil {
				return conn, err
			}
			conn.Target = n
		case connFieldSources:
			sources, err := readAll(f.payload)
			if err != nil {
				return conn, err
			}
			for _, s := range sources {
				n, err := decodeInt(s.payload)
				if err != nil {
					return conn, err
				}
				conn.Sources = append(conn.Sources, n)
			}
		case connFieldOp:
			if len(f.payload) != 1 {
				return conn, ErrTruncated
			}
			conn.Operation = MatrixOperation(f.payload[0])
			conn.HasOp = true
		}
	}
	return conn, nil
}

func decodeInt(data []byte) (int, error) {
	if len(data) == 0 || len(data) > 8 {
		return 0, ErrTruncated
	}
	var v int64
	for _, b := range data {
		v = v<<8 | int64(b)
	}
	return int(v), nil
}
