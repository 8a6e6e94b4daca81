// Package keepalive aggregates keep-alive demands from components that hold
// perishable state, so the host knows when it may be suspended.
//
// Components report through UpdateKeepAlive under a fixed key. Subscribers
// receive the aggregate only when it flips; a slow subscriber sees the
// latest value.
package keepalive
