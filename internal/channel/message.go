// Package channel implements a Bayeux (CometD) long-polling client.
//
// The client performs a single handshake, subscribes to one event channel and
// delivers each inbound event in arrival order on a Go channel.
package channel

import (
	"encoding/json"
	"fmt"
)

// Meta channels used by the protocol.
const (
	MetaHandshake   = "/meta/handshake"
	MetaConnect     = "/meta/connect"
	MetaSubscribe   = "/meta/subscribe"
	MetaUnsubscribe = "/meta/unsubscribe"
	MetaDisconnect  = "/meta/disconnect"
)

// BayeuxVersion is the protocol version sent in the handshake.
const BayeuxVersion = "1.0"

// ConnectionTypeLongPolling is the only connection type regalert negotiates.
const ConnectionTypeLongPolling = "long-polling"

// Reconnect advice values.
const (
	ReconnectRetry     = "retry"
	ReconnectHandshake = "handshake"
	ReconnectNone      = "none"
)

// Message is a single Bayeux message. Requests and responses share the shape.
type Message struct {
	Channel                  string          `json:"channel"`
	ID                       string          `json:"id,omitempty"`
	ClientID                 string          `json:"clientId,omitempty"`
	Version                  string          `json:"version,omitempty"`
	MinimumVersion           string          `json:"minimumVersion,omitempty"`
	SupportedConnectionTypes []string        `json:"supportedConnectionTypes,omitempty"`
	ConnectionType           string          `json:"connectionType,omitempty"`
	Subscription             string          `json:"subscription,omitempty"`
	Successful               bool            `json:"successful,omitempty"`
	Error                    string          `json:"error,omitempty"`
	Advice                   *Advice         `json:"advice,omitempty"`
	Data                     json.RawMessage `json:"data,omitempty"`
	Ext                      map[string]any  `json:"ext,omitempty"`
}

// IsMeta reports whether the message belongs to a /meta/ channel.
func (m Message) IsMeta() bool {
	return len(m.Channel) >= 6 && m.Channel[:6] == "/meta/"
}

// Advice carries server guidance on how to continue the connect loop.
type Advice struct {
	Reconnect string `json:"reconnect,omitempty"`
	Interval  int64  `json:"interval,omitempty"` // milliseconds
	Timeout   int64  `json:"timeout,omitempty"`  // milliseconds
}

// Event is a data message delivered on the subscribed channel.
type Event struct {
	Channel  string
	ReplayID int64
	Payload  json.RawMessage
}

// eventData is the envelope the platform wraps around published events.
type eventData struct {
	Payload json.RawMessage `json:"payload"`
	Event   struct {
		ReplayID int64 `json:"replayId"`
	} `json:"event"`
}

// toEvent unwraps a data message. Messages without the platform envelope are
// delivered with their raw data as the payload.
func toEvent(m Message) (Event, error) {
	ev := Event{Channel: m.Channel}
	if len(m.Data) == 0 {
		return ev, fmt.Errorf("message on %s has no data", m.Channel)
	}

	var env eventData
	if err := json.Unmarshal(m.Data, &env); err != nil {
		return ev, fmt.Errorf("failed to decode event data: %w", err)
	}
	if len(env.Payload) == 0 {
		ev.Payload = m.Data
		return ev, nil
	}
	ev.Payload = env.Payload
	ev.ReplayID = env.Event.ReplayID
	return ev, nil
}
