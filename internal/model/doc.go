// Package model defines shared data types used across the route message service.
//
// Conventions:
//   - Route IDs: opaque strings chosen by the provider, never validated
//   - Text length: UTF-16 code units, the unit browser hosts measure strings in
//   - IDs: uuid.UUID per message, carried through delivery frames
package model
