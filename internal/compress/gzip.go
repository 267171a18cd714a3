// Package compress optionally gzip-wraps a batch's concatenated payload
// buffer before it goes out over the wire.
package compress

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// maxPooledBufferBytes bounds how large a buffer this package will hand
// back to the pool; larger ones are left for the garbage collector so one
// oversized batch doesn't pin a huge buffer in the pool forever.
const maxPooledBufferBytes = 1 << 20 // 1MiB

var bufferPool = sync.Pool{
	New: func() any { return bytes.NewBuffer(make([]byte, 0, 64*1024)) },
}

var writerPool = sync.Pool{
	New: func() any {
		w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
		return w
	},
}

// Gzip returns the gzip encoding of data as a caller-owned byte slice.
// Codec failures (OOM, writer errors) are returned as an error; the caller
// may decide to send uncompressed or fail the flush.
func Gzip(data []byte) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer putBuffer(buf)

	w := writerPool.Get().(*gzip.Writer)
	w.Reset(buf)
	defer writerPool.Put(w)

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBufferBytes {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}
