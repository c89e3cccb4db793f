package control

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
)

// fieldNames are the required members of a control record, in wire order.
var fieldNames = [4]string{"x1", "y1", "x2", "y2"}

// Ingester validates control payloads and publishes accepted positions.
type Ingester struct {
	pub        Publisher
	maxPayload int

	// decode is swapped out in tests to observe parser calls.
	decode func([]byte) (Position, error)
}

// NewIngester creates an Ingester with a buffer of maxPayload bytes.
// Payloads must be strictly shorter than maxPayload, leaving room for the
// terminator the device firmware appends.
func NewIngester(pub Publisher, maxPayload int) *Ingester {
	return &Ingester{
		pub:        pub,
		maxPayload: maxPayload,
		decode:     Decode,
	}
}

// MaxPayload returns the buffer capacity in bytes.
func (in *Ingester) MaxPayload() int {
	return in.maxPayload
}

// Ingest reads declared bytes from body, decodes them and publishes the
// result. Nothing is published unless all four fields are valid.
func (in *Ingester) Ingest(declared int64, body io.Reader) (Position, error) {
	if declared >= int64(in.maxPayload) {
		return Position{}, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, declared, in.maxPayload-1)
	}
	if declared <= 0 {
		return Position{}, fmt.Errorf("%w: empty body", ErrReceive)
	}

	buf := make([]byte, declared)
	if _, err := io.ReadFull(body, buf); err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrReceive, err)
	}

	pos, err := in.decode(buf)
	if err != nil {
		return Position{}, err
	}
	in.pub.Publish(pos)
	return pos, nil
}

// Decode parses a control record. The body is treated as a C string: it ends
// at the first NUL byte, and anything after the first JSON value is ignored.
// Field lookup is case-insensitive with exact matches preferred. Numbers are
// truncated toward zero and clamped to [MinValue, MaxValue].
func Decode(body []byte) (Position, error) {
	if i := bytes.IndexByte(body, 0); i >= 0 {
		body = body[:i]
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return Position{}, fmt.Errorf("%w: not an object", ErrInvalidFields)
	}

	var vals [4]int64
	for i, name := range fieldNames {
		num, ok := lookup(obj, name).(json.Number)
		if !ok {
			return Position{}, fmt.Errorf("%w: %s", ErrInvalidFields, name)
		}
		vals[i] = toAxis(num)
	}
	return NewPosition(vals[0], vals[1], vals[2], vals[3]), nil
}

func lookup(obj map[string]any, name string) any {
	if v, ok := obj[name]; ok {
		return v
	}
	for k, v := range obj {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

// toAxis converts a JSON number to an integer, saturating at the int32 range
// before the axis clamp is applied.
func toAxis(n json.Number) int64 {
	f, _ := n.Float64() // out-of-range values come back as ±Inf
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int64(f)
}
