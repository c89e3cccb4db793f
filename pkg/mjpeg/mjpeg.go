// Package mjpeg streams frames from a camera.Source as a
// multipart/x-mixed-replace response.
//
// Each frame goes out as three chunks: a boundary line, a part header
// carrying the JPEG length and capture timestamp, and the JPEG bytes.
// A session runs until the source, the encoder, or the transport fails,
// or until its context is cancelled.
package mjpeg

import (
	"strconv"
	"time"
)

// Boundary is the fixed multipart delimiter id.
const Boundary = "123456789000000000000987654321"

// ContentType is the response content type for a stream.
const ContentType = "multipart/x-mixed-replace;boundary=" + Boundary

// AdvertisedFramerate is sent in the X-Framerate response header.
const AdvertisedFramerate = "60"

// DefaultConvertQuality is the JPEG quality used for raw frames.
const DefaultConvertQuality = 80

var boundaryChunk = []byte("\r\n--" + Boundary + "\r\n")

// BoundaryChunk returns the delimiter chunk sent before every part.
func BoundaryChunk() []byte {
	return append([]byte(nil), boundaryChunk...)
}

// AppendPartHeader appends the part header for a JPEG of length bytes
// captured at sec.usec to dst.
//
//	Content-Type: image/jpeg\r\n
//	Content-Length: <length>\r\n
//	X-Timestamp: <sec>.<usec, 6 digits>\r\n
//	\r\n
func AppendPartHeader(dst []byte, length int, sec, usec int64) []byte {
	dst = append(dst, "Content-Type: image/jpeg\r\nContent-Length: "...)
	dst = strconv.AppendInt(dst, int64(length), 10)
	dst = append(dst, "\r\nX-Timestamp: "...)
	dst = strconv.AppendInt(dst, sec, 10)
	dst = append(dst, '.')
	for div := int64(100000); div > 1 && usec < div; div /= 10 {
		dst = append(dst, '0')
	}
	dst = strconv.AppendInt(dst, usec, 10)
	return append(dst, "\r\n\r\n"...)
}

// FrameRate converts the time between two frames into whole frames per
// second. Non-positive intervals yield 0.
func FrameRate(elapsedUS int64) uint32 {
	if elapsedUS <= 0 {
		return 0
	}
	return uint32(1_000_000 / elapsedUS)
}

// Clock returns monotonic time in microseconds.
type Clock interface {
	NowMicros() int64
}

type monotonicClock struct {
	base time.Time
}

// NewClock returns a Clock backed by the runtime's monotonic clock,
// counting from the moment it was created.
func NewClock() Clock {
	return monotonicClock{base: time.Now()}
}

func (c monotonicClock) NowMicros() int64 {
	return time.Since(c.base).Microseconds()
}
