// Package router implements the Route Message Sender.
//
// The Sender:
//   - Queues text and binary messages per media route, in send order
//   - Delivers queued messages only for routes the consumer listens to
//   - Relies on a throttler to call Flush no more often than a fixed interval
//   - Tells a keep-alive policy when binary data or a large text backlog is pending
//   - Snapshots and restores its text queues across process suspension
package router
