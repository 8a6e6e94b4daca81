// Package persist snapshots component state before the process is
// suspended and restores it on resume.
//
// Components register under a fixed key. Stores hold one opaque blob per
// key: in memory, as JSON files in a directory, or in PostgreSQL
// (see internal/database).
package persist
