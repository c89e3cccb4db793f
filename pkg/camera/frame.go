// Package camera provides frame sources for the MJPEG stream.
//
// A Source hands out Frames one at a time. The caller owns a Frame until it
// gives it back with Release; frames are never shared between callers.
package camera

import (
	"context"
	"errors"
	"time"
)

// PixelFormat tags how Frame.Data is encoded.
type PixelFormat int

const (
	// FormatJPEG is an already-encoded JPEG image.
	FormatJPEG PixelFormat = iota
	// FormatRGB24 is packed 8-bit R, G, B.
	FormatRGB24
	// FormatGray8 is one 8-bit luma byte per pixel.
	FormatGray8
)

func (f PixelFormat) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatRGB24:
		return "rgb24"
	case FormatGray8:
		return "gray8"
	default:
		return "unknown"
	}
}

// Frame is one captured image.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Format    PixelFormat
	Timestamp time.Time
}

// Len returns the payload size in bytes.
func (f *Frame) Len() int {
	return len(f.Data)
}

// Timeval splits the capture timestamp into whole seconds and microseconds.
func (f *Frame) Timeval() (sec, usec int64) {
	us := f.Timestamp.UnixMicro()
	sec, usec = us/1_000_000, us%1_000_000
	if usec < 0 {
		sec--
		usec += 1_000_000
	}
	return sec, usec
}

// Sentinel errors.
var (
	// ErrFrameUnavailable is returned when the source has no frame to give.
	ErrFrameUnavailable = errors.New("camera: frame unavailable")

	// ErrEncode is returned when a raw frame could not be encoded.
	ErrEncode = errors.New("camera: encode failed")

	// ErrClosed is returned by sources that have been closed.
	ErrClosed = errors.New("camera: source closed")
)

// Source produces frames. Acquire blocks until a frame is ready, ctx is done,
// or the source fails. Implementations serialize concurrent Acquire calls.
type Source interface {
	Acquire(ctx context.Context) (*Frame, error)
	Release(f *Frame)
}

// Encoder turns a raw frame into JPEG bytes at the given quality (1-100).
// The returned Buffer is owned by the caller and must be released.
type Encoder interface {
	Encode(f *Frame, quality int) (Buffer, error)
}
