package transports

import "context"

// EventType is the closed set of inbound telephony events. The wire
// event string is decoded exactly once at the transport boundary;
// everything inside the session layer switches on this enum.
type EventType int

const (
	// EventConnected is the platform handshake; no payload of interest.
	EventConnected EventType = iota
	// EventStart opens a call and assigns stream/call identifiers.
	EventStart
	// EventMedia carries one decoded telephony audio frame.
	EventMedia
	// EventStop terminates the session normally.
	EventStop
	// EventDisconnect is a transport close without a stop event.
	EventDisconnect
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventStart:
		return "start"
	case EventMedia:
		return "media"
	case EventStop:
		return "stop"
	case EventDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Event is one decoded inbound message.
type Event struct {
	Type     EventType
	StreamID string
	CallID   string
	From     string
	TraceID  string
	Audio    []byte
}

// SessionHandler consumes decoded events. Each connection's events are
// delivered from a single goroutine in strict arrival order, and the
// handler must never block on a full conversational turn.
type SessionHandler interface {
	HandleEvent(evt Event)
}

// Outbound streams audio back to the caller and flushes queued
// playback (the barge-in signal).
type Outbound interface {
	SendAudio(streamID string, frame []byte) error
	Clear(streamID string) error
}

// Transport is the vendor boundary for the telephony platform.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	SetHandler(h SessionHandler)
	Outbound
}

// OutboundDialer creates a new outbound call through the platform's
// REST interface.
type OutboundDialer interface {
	Dial(ctx context.Context, to, from, callbackURL string) (callID string, err error)
}

// ReadyReporter exposes readiness metadata (webhook URLs) for
// informational logging.
type ReadyReporter interface {
	ReadyFields() map[string]any
}
