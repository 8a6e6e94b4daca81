// Package api exposes the route message sender over HTTP and provides a
// client for it.
//
// Routes:
//   - POST   /v1/routes/{id}/messages  queue a message (octet-stream = binary)
//   - PUT    /v1/routes/{id}/listen    start delivering the route
//   - DELETE /v1/routes/{id}/listen    stop delivering the route
//   - DELETE /v1/routes/{id}           remove the route and drop its backlog
//   - GET    /v1/stats                 sender statistics
//   - GET    /health                   liveness and keep-alive state
package api
