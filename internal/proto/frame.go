package proto

import (
	"bytes"
	"fmt"
	"io"
)

// MaxFrameSize bounds the Remaining Length an incoming frame may declare,
// guarding against a peer that tries to make us allocate an unbounded
// buffer before we've even charged it against any resource limit.
const MaxFrameSize = 1 << 20 // 1 MiB

// Frame is one wire record: a kind, the transaction id it belongs to,
// and an opaque, already-encoded body. Session encodes/decodes the body
// into the concrete request/response types declared in messages.go.
type Frame struct {
	Kind Kind
	TaID uint64
	Body []byte
}

// WriteFrame writes f to w as [kind byte][varint remaining][8-byte
// ta-id][body].
func WriteFrame(w io.Writer, f *Frame) error {
	buf := getBuffer()
	defer putBuffer(buf)

	buf.WriteByte(byte(f.Kind))
	remaining := 8 + len(f.Body)
	buf.Write(encodeVarInt(remaining))
	writeUint64(buf, f.TaID)
	buf.Write(f.Body)

	_, err := w.Write(buf.Bytes())
	return err
}

// ReadHeader reads just the kind byte and remaining-length varint,
// without consuming the body — callers use this to charge the declared
// size against a frame-size limit before reading the rest.
func ReadHeader(r io.Reader) (Header, error) {
	var kindBuf [1]byte
	if _, err := io.ReadFull(r, kindBuf[:]); err != nil {
		return Header{}, err
	}
	remaining, err := decodeVarInt(r)
	if err != nil {
		return Header{}, err
	}
	if remaining < 8 {
		return Header{}, fmt.Errorf("proto: frame remaining length %d shorter than ta-id", remaining)
	}
	if remaining > MaxFrameSize {
		return Header{}, fmt.Errorf("proto: frame remaining length %d exceeds maximum %d", remaining, MaxFrameSize)
	}
	return Header{Kind: Kind(kindBuf[0]), Remaining: remaining}, nil
}

// ReadFrame reads a complete frame (header plus body) from r.
func ReadFrame(r io.Reader) (*Frame, error) {
	hdr, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	rest := make([]byte, hdr.Remaining)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}
	br := bytes.NewReader(rest)
	taID, err := readUint64(br)
	if err != nil {
		return nil, err
	}
	body := make([]byte, br.Len())
	if _, err := br.Read(body); err != nil && br.Len() > 0 {
		return nil, err
	}
	return &Frame{Kind: hdr.Kind, TaID: taID, Body: body}, nil
}
