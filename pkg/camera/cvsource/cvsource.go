// Package cvsource captures frames from a V4L2/UVC device through OpenCV.
//
// The OpenCV bindings need cgo and a system OpenCV install, so the real
// implementation is only compiled with the "gocv" build tag. Without it,
// Open and NewEncoder return ErrUnavailable.
package cvsource

import (
	"errors"
	"strconv"

	"github.com/teslashibe/go-joycam/pkg/camera"
)

// ErrUnavailable is returned when the binary was built without OpenCV.
var ErrUnavailable = errors.New("cvsource: built without gocv support")

// Capture is an open capture device.
type Capture interface {
	camera.Source
	Close() error
}

// deviceID turns "0" into the integer index OpenCV expects for /dev/video0
// and passes paths and URLs through unchanged.
func deviceID(device string) any {
	if n, err := strconv.Atoi(device); err == nil {
		return n
	}
	return device
}
