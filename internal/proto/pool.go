package proto

import (
	"bytes"
	"sync"
)

// bufPool recycles the scratch buffers used to build frame bodies before
// they are copied onto the wire, the same buffer-reuse technique the
// teacher library's internal/packets/pool.go applies to packet encoding
// to keep steady-state allocations off the hot path.
var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

func getBuffer() *bytes.Buffer {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 64*1024 {
		// Don't let one oversized listing frame pin a huge buffer in the
		// pool forever.
		return
	}
	bufPool.Put(buf)
}
