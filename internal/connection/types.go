package connection

import (
	"errors"
	"time"

	"github.com/rickgao/mediaroute/internal/auth"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrUnknownCommand  = errors.New("unknown command type")
	ErrMissingRouteID  = errors.New("command missing route_id")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Frame types exchanged with the Media Router.
const (
	TypeListen        = "listen"
	TypeStopListening = "stop_listening"
	TypeRouteRemoved  = "route_removed"
	TypeRouteMessages = "route_messages"
)

// Command is an inbound frame from the Media Router.
type Command struct {
	Type    string `json:"type"`
	RouteID string `json:"route_id"`
}

// RouteMessagesFrame is an outbound batch for one route.
type RouteMessagesFrame struct {
	Type     string        `json:"type"`
	RouteID  string        `json:"route_id"`
	Messages []WireMessage `json:"messages"`
}

// WireMessage carries exactly one of Text or Binary. Both are pointers so
// empty payloads still encode. Binary is base64 encoded by encoding/json.
type WireMessage struct {
	ID     string  `json:"id"`
	Text   *string `json:"text,omitempty"`
	Binary *[]byte `json:"binary,omitempty"`
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string            // ws:// or wss:// endpoint of the Media Router
	Credentials  *auth.Credentials // nil = unsigned handshake
	PingInterval time.Duration     // How often the client pings the router
	PingTimeout  time.Duration     // Max time without ping/pong before the connection is stale
	WriteTimeout time.Duration     // Write deadline for sends
	BufferSize   int               // Inbound message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval: 15 * time.Second,
		PingTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Second,
		BufferSize:   256,
	}
}

// LinkConfig configures the Link.
type LinkConfig struct {
	Client             ClientConfig
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
}

// DefaultLinkConfig returns sensible defaults.
func DefaultLinkConfig() LinkConfig {
	return LinkConfig{
		Client:             DefaultClientConfig(),
		ReconnectBaseDelay: 1 * time.Second,
		ReconnectMaxDelay:  60 * time.Second,
	}
}

// LinkStats provides statistics about the link.
type LinkStats struct {
	Connected        bool  `json:"connected"`
	Reconnects       int64 `json:"reconnects"`
	CommandsReceived int64 `json:"commands_received"`
	InvalidFrames    int64 `json:"invalid_frames"`
	BatchesSent      int64 `json:"batches_sent"`
	MessagesSent     int64 `json:"messages_sent"`
	SendErrors       int64 `json:"send_errors"`
}
