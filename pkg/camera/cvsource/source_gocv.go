//go:build gocv

package cvsource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-joycam/pkg/camera"
)

// source reads from a gocv.VideoCapture and hands out JPEG frames whose
// bytes live in OpenCV-owned memory until Release.
type source struct {
	cap    *gocv.VideoCapture
	cfg    camera.Config
	logger *slog.Logger

	mu     sync.Mutex
	mat    gocv.Mat
	native map[*camera.Frame]*gocv.NativeByteBuffer
	closed bool
}

// Open opens device ("0", "/dev/video2", or a stream URL) and applies the
// requested size and frame rate.
func Open(device string, cfg camera.Config, logger *slog.Logger) (Capture, error) {
	if logger == nil {
		logger = slog.Default()
	}

	vc, err := gocv.OpenVideoCapture(deviceID(device))
	if err != nil {
		return nil, fmt.Errorf("open capture %q: %w", device, err)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	if cfg.Framerate > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	}

	logger.Info("capture opened",
		"device", device,
		"width", vc.Get(gocv.VideoCaptureFrameWidth),
		"height", vc.Get(gocv.VideoCaptureFrameHeight),
		"fps", vc.Get(gocv.VideoCaptureFPS),
	)

	return &source{
		cap:    vc,
		cfg:    cfg,
		logger: logger,
		mat:    gocv.NewMat(),
		native: make(map[*camera.Frame]*gocv.NativeByteBuffer),
	}, nil
}

func (s *source) Acquire(ctx context.Context) (*camera.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, camera.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if ok := s.cap.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, camera.ErrFrameUnavailable
	}
	ts := time.Now()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, s.mat, []int{gocv.IMWriteJpegQuality, s.cfg.Quality})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", camera.ErrEncode, err)
	}

	f := &camera.Frame{
		Data:      buf.GetBytes(),
		Width:     s.mat.Cols(),
		Height:    s.mat.Rows(),
		Format:    camera.FormatJPEG,
		Timestamp: ts,
	}
	s.native[f] = buf
	return f, nil
}

func (s *source) Release(f *camera.Frame) {
	s.mu.Lock()
	buf, ok := s.native[f]
	delete(s.native, f)
	s.mu.Unlock()

	if !ok {
		s.logger.Warn("release of unknown frame ignored")
		return
	}
	f.Data = nil
	buf.Close()
}

func (s *source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	for f, buf := range s.native {
		buf.Close()
		delete(s.native, f)
	}
	s.mat.Close()
	return s.cap.Close()
}

// encoder transcodes raw frames with OpenCV's JPEG codec.
type encoder struct{}

// NewEncoder returns an OpenCV-backed camera.Encoder.
func NewEncoder() (camera.Encoder, error) {
	return encoder{}, nil
}

func (encoder) Encode(f *camera.Frame, quality int) (camera.Buffer, error) {
	var (
		mt   gocv.MatType
		conv = -1
	)
	switch f.Format {
	case camera.FormatRGB24:
		mt = gocv.MatTypeCV8UC3
		conv = int(gocv.ColorRGBToBGR)
	case camera.FormatGray8:
		mt = gocv.MatTypeCV8UC1
	default:
		return nil, fmt.Errorf("%w: cannot encode %s frame", camera.ErrEncode, f.Format)
	}

	src, err := gocv.NewMatFromBytes(f.Height, f.Width, mt, f.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", camera.ErrEncode, err)
	}
	defer src.Close()

	img := src
	if conv >= 0 {
		bgr := gocv.NewMat()
		defer bgr.Close()
		gocv.CvtColor(src, &bgr, gocv.ColorConversionCode(conv))
		img = bgr
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", camera.ErrEncode, err)
	}
	return camera.NewBuffer(buf.GetBytes(), buf.Close), nil
}
