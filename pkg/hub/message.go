// Package hub fans telemetry out to websocket clients.
//
// A single Hub goroutine owns the client set; publishers hand it messages
// through a buffered channel and never block on slow clients.
package hub

import (
	"encoding/json"
	"time"
)

// MessageType indicates the websocket frame type.
type MessageType int

const (
	// JSONMessage is sent as a text frame.
	JSONMessage MessageType = iota
	// BinaryMessage is sent as a binary frame.
	BinaryMessage
)

// Message is one frame queued for every client.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage wraps pre-encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage wraps raw bytes.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

// Event kinds on the telemetry feed.
const (
	EventControl      = "control"
	EventFrame        = "frame"
	EventSessionStart = "session_start"
	EventSessionEnd   = "session_end"
)

// Event is the JSON envelope for telemetry.
type Event struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

// Encode marshals the event into a JSON message.
func (e Event) Encode() (Message, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return Message{}, err
	}
	return NewJSONMessage(data), nil
}
