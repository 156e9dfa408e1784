package events

import (
	"encoding/json"
	"time"
)

// Frame is the JSON text frame written to a websocket client.
type Frame struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"ts"`
}

// NewFrame encodes payload into a frame stamped with the current time.
func NewFrame(event string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	return json.Marshal(Frame{Event: event, Data: data, Timestamp: time.Now().UnixMilli()})
}

// Envelope wraps an encoded frame for the cross-instance bridge. Origin lets
// an instance skip frames it published itself.
type Envelope struct {
	Origin string          `json:"origin"`
	Target string          `json:"target,omitempty"`
	Frame  json.RawMessage `json:"frame"`
}
