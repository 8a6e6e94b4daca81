// Package database provides PostgreSQL connectivity for mediaroute.
//
// It is used only by the postgres persistence backend, which keeps one row
// per persisted component in the route_state table.
package database
