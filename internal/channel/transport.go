package channel

import (
	"context"
	"encoding/json"
)

// Conn is one live subscription to a channel.
type Conn interface {
	// Publish sends data to every subscriber of the channel, including this
	// connection.
	Publish(ctx context.Context, data []byte) error
	// Messages delivers inbound payloads in arrival order. It is closed when
	// the connection ends.
	Messages() <-chan []byte
	// Done is closed when the connection ends for any reason.
	Done() <-chan struct{}
	// Err returns the transport error that ended the connection, or nil if
	// it was closed locally.
	Err() error
	Close() error
}

// Dialer opens connections to channels identified by key.
type Dialer interface {
	Dial(ctx context.Context, key string) (Conn, error)
}

// Envelope is the wire form of every channel event.
type Envelope struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data"`
}

// Encode wraps payload in an envelope for event.
func Encode(event, id string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, ID: id, Data: data})
}
