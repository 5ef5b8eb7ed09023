// Package proto implements pathfinder's wire codec: a generic framed
// record format (length-prefixed header + typed body) adapted from the
// teacher library's MQTT packet encoding in internal/packets — the same
// variable-length integer, length-prefixed string, and buffer-pooling
// techniques, applied to a different message catalogue.
package proto

import (
	"encoding/binary"
	"fmt"
	"io"
)

// encodeVarInt encodes a non-negative integer as a Variable Byte Integer
// (1-5 bytes, base-128), the same scheme MQTT uses for its Remaining
// Length field.
func encodeVarInt(value int) []byte {
	if value < 128 && value >= 0 {
		return []byte{byte(value)}
	}
	return appendVarInt(make([]byte, 0, 5), value)
}

func appendVarInt(dst []byte, value int) []byte {
	if value < 0 {
		panic(fmt.Sprintf("value %d out of range for variable byte integer", value))
	}
	for {
		digit := byte(value % 128)
		value /= 128
		if value > 0 {
			digit |= 0x80
		}
		dst = append(dst, digit)
		if value == 0 {
			break
		}
	}
	return dst
}

// decodeVarInt reads a Variable Byte Integer from r.
func decodeVarInt(r io.Reader) (int, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteReader{r: r}
	}
	val, err := binary.ReadUvarint(br)
	if err != nil {
		return 0, err
	}
	return int(val), nil
}

type byteReader struct {
	r   io.Reader
	buf [1]byte
}

func (br *byteReader) ReadByte() (byte, error) {
	_, err := io.ReadFull(br.r, br.buf[:])
	return br.buf[0], err
}

// decodeVarIntBuf reads a Variable Byte Integer from a byte slice,
// returning the decoded value and the number of bytes consumed.
func decodeVarIntBuf(buf []byte) (int, int, error) {
	val, n := binary.Uvarint(buf)
	if n == 0 {
		return 0, 0, fmt.Errorf("proto: buffer too short for variable byte integer")
	}
	if n < 0 {
		return 0, 0, fmt.Errorf("proto: malformed variable byte integer")
	}
	return int(val), n, nil
}
