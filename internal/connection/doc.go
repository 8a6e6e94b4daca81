// Package connection implements the websocket link to the Media Router.
//
// The link:
//   - Keeps one websocket connection open, signing the handshake when
//     credentials are configured
//   - Reconnects with exponential backoff when the connection drops
//   - Dispatches listen, stop_listening and route_removed commands to a
//     CommandHandler
//   - Writes route_messages batches produced by the route message sender
package connection
