package ember

import "io"

// Encode serializes a Root into BER bytes.
func Encode(root *Root) ([]byte, error) {
	var out []byte
	for _, el := range root.Elements {
		encoded, err := encodeElement(el)
		if err != nil {
			return nil, err
		}
		out = append(out, encoded...)
	}
	return out, nil
}

// EncodeTo writes a Root's BER encoding to w.
func EncodeTo(w io.Writer, root *Root) error {
	data, err := Encode(root)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func encodeElement(el *Element) ([]byte, error) {
	tag, err := outerTag(el)
	if err != nil {
		return nil, err
	}

	var fields []byte
	fields = append(fields, encodeTLV(fieldNumber, encodeInt(el.Number))...)

	if el.Qualified && el.Path != "" {
		fields = append(fields, encodeTLV(fieldPath, []byte(el.Path))...)
	}

	switch el.Kind {
	case KindParameter:
		if el.HasValue {
			v, err := encodeValue(el.Value)
			if err != nil {
				return nil, err
			}
			fields = append(fields, encodeTLV(fieldValue, v)...)
		}
		fields = append(fields, encodeTLV(fieldAccess, []byte{byte(el.Access)})...)
		fields = append(fields, encodeTLV(fieldParamType, []byte{byte(el.ParamType)})...)
		if el.StreamIdentifier != nil {
			fields = append(fields, encodeTLV(fieldStreamIdentifier, encodeInt(int(*el.StreamIdentifier)))...)
		}

	case KindMatrix:
		if el.TargetCount != nil {
			fields = append(fields, encodeTLV(fieldTargetCount, encodeInt(*el.TargetCount))...)
		}
		if el.SourceCount != nil {
			fields = append(fields, encodeTLV(fieldSourceCount, encodeInt(*el.SourceCount))...)
		}
		if el.MatrixKind != nil {
			fields = append(fields, encodeTLV(fieldMatrixType, []byte{byte(*el.MatrixKind)})...)
		}
		if el.MatrixMode != nil {
			fields = append(fields, encodeTLV(fieldMatrixMode, []byte{byte(*el.MatrixMode)})...)
		}
		if len(el.Labels) > 0 {
			var labelBytes []byte
			for _, l := range el.Labels {
				labelBytes = append(labelBytes, encodeTLV(0, []byte(l))...)
			}
			fields = append(fields, encodeTLV(fieldLabels, labelBytes)...)
		}
		if len(el.Connections) > 0 {
			var connBytes []byte
			for _, c := range el.Connections {
				connBytes = append(connBytes, encodeTLV(0, encodeConnection(c))...)
			}
			fields = append(fields, encodeTLV(fieldConnections, connBytes)...)
		}

	case KindCommand:
		fields = append(fields, encodeTLV(fieldCommandNumber, []byte{byte(el.Cmd)})...)
	}

	if len(el.Children) > 0 {
		var childBytes []byte
		for _, c := range el.Children {
			encoded, err := encodeElement(c)
			if err != nil {
				return nil, err
			}
			childBytes = append(childBytes, encoded...)
		}
		fields = append(fields, encodeTLV(fieldChildren, childBytes)...)
	}

	return encodeTLV(tag, fields), nil
}

func outerTag(el *Element) (byte, error) {
	switch {
	case el.Kind == KindNode && el.Qualified:
		return tagQualifiedNode, nil
	case el.Kind == KindNode:
		return tagNode, nil
	case el.Kind == KindParameter && el.Qualified:
		return tagQualifiedParam, nil
	case el.Kind == KindParameter:
		return tagParameter, nil
	case el.Kind == KindMatrix && el.Qualified:
		return tagQualifiedMatrix, nil
	case el.Kind == KindMatrix:
		return tagMatrix, nil
	case el.Kind == KindCommand:
		return tagCommand, nil
	default:
		return 0, ErrUnknownTag
	}
}

func encodeConnection(c Connection) []byte {
	var out []byte
	out = append(out, encodeTLV(connFieldTarget, encodeInt(c.Target))...)

	var sourceBytes []byte
	for _, s := range c.Sources {
		sourceBytes = append(sourceBytes, encodeTLV(0, encodeInt(s))...)
	}
	out = append(out, encodeTLV(connFieldSources, sourceBytes)...)

	if c.HasOp {
		out = append(out, encodeTLV(connFieldOp, []byte{byte(c.Operation)})...)
	}
	return out
}

func encodeInt(v int) []byte {
	// Minimal big-endian two's complement representation, at least 1 byte.
	n := int64(v)
	if n == 0 {
		return []byte{0}
	}

	var buf []byte
	neg := n < 0
	for n != 0 && n != -1 {
		buf = append([]byte{byte(n)}, buf...)
		n >>= 8
	}
	if neg && (len(buf) == 0 || buf[0]&0x80 == 0) {
		buf = append([]byte{0xFF}, buf...)
	} else if !neg && len(buf) > 0 && buf[0]&0x80 != 0 {
		buf = append([]byte{0x00}, buf...)
	}
	if len(buf) == 0 {
		buf = []byte{0}
	}
	return buf
}
