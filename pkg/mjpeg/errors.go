package mjpeg

import (
	"errors"
	"fmt"
)

// ErrSend is returned when the transport rejects a chunk.
var ErrSend = errors.New("mjpeg: send failed")

// State is where a session is in its per-frame cycle.
type State int32

const (
	StateAwaitingFrame State = iota
	StateEncoding
	StateSendingBoundary
	StateSendingHeader
	StateSendingBody
	StateReleasing
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingFrame:
		return "awaiting_frame"
	case StateEncoding:
		return "encoding"
	case StateSendingBoundary:
		return "sending_boundary"
	case StateSendingHeader:
		return "sending_header"
	case StateSendingBody:
		return "sending_body"
	case StateReleasing:
		return "releasing"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// StageError records which stage of the frame cycle ended a session.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("mjpeg: %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
