// Package client reads a joycam MJPEG stream and posts control records.
// It backs the probe command and the end-to-end tests.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/teslashibe/go-joycam/internal/httpc"
)

// ErrNotMultipart is returned when the server does not answer with a
// multipart/x-mixed-replace body.
var ErrNotMultipart = errors.New("client: not a multipart stream")

// Frame is one JPEG read from the stream.
type Frame struct {
	Data     []byte
	Captured time.Time // from X-Timestamp; zero if absent
	Received time.Time
}

// Stream is an open MJPEG response.
type Stream struct {
	body     io.ReadCloser
	mr       *multipart.Reader
	Boundary string
}

// streamClient has no overall timeout; the request context ends the stream.
var streamClient = httpc.NewClient(0)

// OpenStream connects to url and checks the response is a multipart stream.
func OpenStream(ctx context.Context, url string) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "multipart/x-mixed-replace")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &httpc.StatusError{StatusCode: resp.StatusCode}
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" || params["boundary"] == "" {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %q", ErrNotMultipart, resp.Header.Get("Content-Type"))
	}

	return &Stream{
		body:     resp.Body,
		mr:       multipart.NewReader(resp.Body, params["boundary"]),
		Boundary: params["boundary"],
	}, nil
}

// Next reads the next frame. It returns io.EOF when the server ends the
// stream between frames.
func (s *Stream) Next() (*Frame, error) {
	part, err := s.mr.NextPart()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	defer part.Close()

	if ct := part.Header.Get("Content-Type"); ct != "" && ct != "image/jpeg" {
		return nil, fmt.Errorf("unexpected part type %q", ct)
	}

	f := &Frame{Received: time.Now()}
	if ts := part.Header.Get("X-Timestamp"); ts != "" {
		f.Captured, err = ParseTimestamp(ts)
		if err != nil {
			return nil, err
		}
	}

	n, err := contentLength(part.Header)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		f.Data, err = io.ReadAll(part)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, err
		}
		return f, nil
	}

	// the last part has no closing delimiter, so trust Content-Length
	f.Data = make([]byte, n)
	if _, err := io.ReadFull(part, f.Data); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return f, nil
}

// Close ends the stream.
func (s *Stream) Close() error {
	return s.body.Close()
}

func contentLength(h textproto.MIMEHeader) (int, error) {
	v := h.Get("Content-Length")
	if v == "" {
		return -1, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad Content-Length %q", v)
	}
	return n, nil
}

// ParseTimestamp parses an X-Timestamp value of the form sec.usec.
func ParseTimestamp(v string) (time.Time, error) {
	secStr, usecStr, ok := strings.Cut(v, ".")
	if !ok {
		usecStr = "0"
	}
	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad X-Timestamp %q", v)
	}
	usec, err := strconv.ParseInt(usecStr, 10, 64)
	if err != nil || usec < 0 || usec >= 1_000_000 {
		return time.Time{}, fmt.Errorf("bad X-Timestamp %q", v)
	}
	return time.Unix(sec, usec*1000), nil
}
