//go:build !gocv

package cvsource

import (
	"log/slog"

	"github.com/teslashibe/go-joycam/pkg/camera"
)

// Open returns ErrUnavailable when built without the gocv tag.
func Open(device string, cfg camera.Config, logger *slog.Logger) (Capture, error) {
	return nil, ErrUnavailable
}

// NewEncoder returns ErrUnavailable when built without the gocv tag.
func NewEncoder() (camera.Encoder, error) {
	return nil, ErrUnavailable
}
