// Package throttle implements the periodic flush primitive used by the
// Route Message Sender.
//
// The Throttler:
//   - Coalesces any number of ScheduleFlush calls into one pending flush
//   - Runs the flush hook from a ticker, at most once per interval
//   - Runs a final pending flush when stopped
package throttle
