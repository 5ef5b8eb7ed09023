package proto

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// writeString writes a UTF-8 string prefixed by a 2-byte big-endian
// length, the same "UTF-8 Encoded String" layout the teacher packets use
// for topic names and client identifiers.
func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("proto: string too long (%d bytes)", len(s))
	}
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(s)))
	buf.Write(lenBuf[:])
	buf.WriteString(s)
	return nil
}

func readString(buf *bytes.Reader) (string, error) {
	var lenBuf [2]byte
	if _, err := readFull(buf, lenBuf[:]); err != nil {
		return "", err
	}
	n := int(binary.BigEndian.Uint16(lenBuf[:]))
	raw := make([]byte, n)
	if _, err := readFull(buf, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}

func readFull(buf *bytes.Reader, dst []byte) (int, error) {
	n, err := buf.Read(dst)
	if err == nil && n < len(dst) {
		return n, fmt.Errorf("proto: short read (%d of %d bytes)", n, len(dst))
	}
	return n, err
}

func writeUint8(buf *bytes.Buffer, v uint8)   { buf.WriteByte(v) }
func writeUint32(buf *bytes.Buffer, v uint32) { var b [4]byte; binary.BigEndian.PutUint32(b[:], v); buf.Write(b[:]) }
func writeUint64(buf *bytes.Buffer, v uint64) { var b [8]byte; binary.BigEndian.PutUint64(b[:], v); buf.Write(b[:]) }

func readUint8(buf *bytes.Reader) (uint8, error) {
	return buf.ReadByte()
}

func readUint32(buf *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := readFull(buf, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readUint64(buf *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := readFull(buf, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// writeVarBytes writes a varint-prefixed opaque byte slice, used for the
// pre-encoded property list.
func writeVarBytes(buf *bytes.Buffer, b []byte) {
	buf.Write(encodeVarInt(len(b)))
	buf.Write(b)
}

func readVarBytes(buf *bytes.Reader) ([]byte, error) {
	n, err := decodeVarInt(buf)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, n)
	if n > 0 {
		if _, err := readFull(buf, raw); err != nil {
			return nil, err
		}
	}
	return raw, nil
}
