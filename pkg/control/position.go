// Package control holds the joystick position shared between the HTTP
// ingest path and the actuation layer.
//
// A Position is published wholesale by the ingest handler and polled by the
// actuator at its own cadence. Readers always see a complete record; there is
// no queue, so a fast client can overwrite positions that were never read.
package control

import "fmt"

// Joystick axis limits. Values outside the range are clamped, never rejected.
const (
	MinValue = -100
	MaxValue = 100
)

// Position is a snapshot of two independent 2D joysticks.
type Position struct {
	X1 int8 `json:"x1" msgpack:"x1"`
	Y1 int8 `json:"y1" msgpack:"y1"`
	X2 int8 `json:"x2" msgpack:"x2"`
	Y2 int8 `json:"y2" msgpack:"y2"`
}

// NewPosition builds a Position, clamping every axis to [MinValue, MaxValue].
func NewPosition(x1, y1, x2, y2 int64) Position {
	return Position{
		X1: clamp(x1),
		Y1: clamp(y1),
		X2: clamp(x2),
		Y2: clamp(y2),
	}
}

// IsZero reports whether both sticks are centered.
func (p Position) IsZero() bool {
	return p == Position{}
}

// MaxDelta returns the largest per-axis difference between p and other.
func (p Position) MaxDelta(other Position) int {
	d := absDiff(p.X1, other.X1)
	d = max(d, absDiff(p.Y1, other.Y1))
	d = max(d, absDiff(p.X2, other.X2))
	return max(d, absDiff(p.Y2, other.Y2))
}

func (p Position) String() string {
	return fmt.Sprintf("x1:%d y1:%d x2:%d y2:%d", p.X1, p.Y1, p.X2, p.Y2)
}

// clamp restricts v to [MinValue, MaxValue].
func clamp(v int64) int8 {
	if v < MinValue {
		return MinValue
	}
	if v > MaxValue {
		return MaxValue
	}
	return int8(v)
}

func absDiff(a, b int8) int {
	d := int(a) - int(b)
	if d < 0 {
		return -d
	}
	return d
}
