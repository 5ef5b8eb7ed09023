package proto

import (
	"bytes"
	"fmt"
)

// PropKind mirrors filter.ValueKind without importing the root package —
// proto is the lowest layer and must not depend on the domain types it
// serializes for (the root package converts in both directions, the same
// separation the teacher keeps between internal/packets and its
// client-facing Message type).
type PropKind uint8

const (
	PropString PropKind = iota
	PropInt
)

// PropValue is one value of a (possibly multi-valued) property.
type PropValue struct {
	Kind PropKind
	Str  string
	Int  int64
}

// PropEntry is one key and all of its values. Encoding uses a slice
// rather than a map so wire output is deterministic and key order is
// caller-controlled.
type PropEntry struct {
	Key    string
	Values []PropValue
}

// PropList is the wire form of a service's property bag.
type PropList []PropEntry

func writePropValue(buf *bytes.Buffer, v PropValue) {
	writeUint8(buf, uint8(v.Kind))
	switch v.Kind {
	case PropString:
		writeString(buf, v.Str)
	case PropInt:
		var b [8]byte
		putInt64(b[:], v.Int)
		buf.Write(b[:])
	}
}

func readPropValue(buf *bytes.Reader) (PropValue, error) {
	kindByte, err := readUint8(buf)
	if err != nil {
		return PropValue{}, err
	}
	switch PropKind(kindByte) {
	case PropString:
		s, err := readString(buf)
		if err != nil {
			return PropValue{}, err
		}
		return PropValue{Kind: PropString, Str: s}, nil
	case PropInt:
		var b [8]byte
		if _, err := readFull(buf, b[:]); err != nil {
			return PropValue{}, err
		}
		return PropValue{Kind: PropInt, Int: getInt64(b[:])}, nil
	default:
		return PropValue{}, fmt.Errorf("proto: unknown property value kind %d", kindByte)
	}
}

// writeProps encodes a PropList as: varint entry count, then for each
// entry the key string, a varint value count, and each value.
func writeProps(buf *bytes.Buffer, props PropList) {
	buf.Write(encodeVarInt(len(props)))
	for _, entry := range props {
		writeString(buf, entry.Key)
		buf.Write(encodeVarInt(len(entry.Values)))
		for _, v := range entry.Values {
			writePropValue(buf, v)
		}
	}
}

func readProps(buf *bytes.Reader) (PropList, error) {
	n, err := decodeVarInt(buf)
	if err != nil {
		return nil, err
	}
	out := make(PropList, 0, n)
	for i := 0; i < n; i++ {
		key, err := readString(buf)
		if err != nil {
			return nil, err
		}
		vn, err := decodeVarInt(buf)
		if err != nil {
			return nil, err
		}
		values := make([]PropValue, 0, vn)
		for j := 0; j < vn; j++ {
			v, err := readPropValue(buf)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		out = append(out, PropEntry{Key: key, Values: values})
	}
	return out, nil
}

func putInt64(b []byte, v int64) {
	u := uint64(v)
	for i := 7; i >= 0; i-- {
		b[i] = byte(u)
		u >>= 8
	}
}

func getInt64(b []byte) int64 {
	var u uint64
	for i := 0; i < 8; i++ {
		u = u<<8 | uint64(b[i])
	}
	return int64(u)
}
