package api

import "github.com/rickgao/mediaroute/internal/router"

// RouteSender is the part of the route message sender the API drives.
type RouteSender interface {
	SendText(routeID, text string)
	SendBinary(routeID string, data []byte)
	Listen(routeID string)
	StopListening(routeID string)
	OnRouteRemoved(routeID string)
	Stats() router.Stats
}

// KeepAliveState reports the aggregate keep-alive decision.
type KeepAliveState interface {
	Active() bool
	Holders() []string
}

// HandlerConfig configures the HTTP handler.
type HandlerConfig struct {
	InstanceID   string
	Version      string
	MaxBodyBytes int64
	Token        string      // empty = no auth
	LinkUp       func() bool // nil = no link configured
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string   `json:"status"`
	Instance      string   `json:"instance"`
	Version       string   `json:"version"`
	KeepAlive     bool     `json:"keep_alive"`
	Holders       []string `json:"keep_alive_holders,omitempty"`
	LinkConnected *bool    `json:"link_connected,omitempty"`
}

// SendResponse is the body of an accepted POST /v1/routes/{id}/messages.
type SendResponse struct {
	RouteID string `json:"route_id"`
	Kind    string `json:"kind"`
	Bytes   int    `json:"bytes"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
