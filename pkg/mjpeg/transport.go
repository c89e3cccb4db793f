package mjpeg

import (
	"fmt"
	"io"
)

// Transport sends one chunk of an open response.
type Transport interface {
	SendChunk(p []byte) error
}

type flusher interface {
	Flush() error
}

type writerTransport struct {
	w io.Writer
	f flusher
}

// NewWriterTransport sends chunks to w. If w can Flush (bufio.Writer, the
// fasthttp body stream writer), every chunk is flushed so it reaches the
// client before the next frame is requested.
func NewWriterTransport(w io.Writer) Transport {
	t := &writerTransport{w: w}
	if f, ok := w.(flusher); ok {
		t.f = f
	}
	return t
}

func (t *writerTransport) SendChunk(p []byte) error {
	if _, err := t.w.Write(p); err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	if t.f != nil {
		if err := t.f.Flush(); err != nil {
			return fmt.Errorf("%w: %v", ErrSend, err)
		}
	}
	return nil
}
