// Package termproto describes the JSON frames exchanged over the terminal
// socket. Every frame in both directions carries a "type" discriminator,
// payload fields are meaningful only for specific types.
package termproto

import "encoding/json"

// Client to server frame types.
const (
	TypeAuth   = "auth"
	TypeInput  = "input"
	TypeResize = "resize"
	TypePing   = "ping"
)

// Server to client frame types.
const (
	TypeAuthOK   = "auth.ok"
	TypeAuthFail = "auth.fail"
	TypeOutput   = "output"
	TypePong     = "pong"
	TypeError    = "error"
)

// Message is the envelope for all terminal socket frames.
type Message struct {
	Type      string `json:"type"`
	Token     string `json:"token,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Data      string `json:"data,omitempty"`
	Cols      int    `json:"cols,omitempty"`
	Rows      int    `json:"rows,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Decode parses a single frame.
func Decode(data []byte) (Message, error) {
	var msg Message
	err := json.Unmarshal(data, &msg)
	return msg, err
}

// Encode serializes a frame for transmission.
func Encode(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
