package router

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/mediaroute/internal/model"
	"github.com/rickgao/mediaroute/internal/persist"
)

// PersistKey identifies the sender to keep-alive and persistence collaborators.
const PersistKey = "mr.RouteMessageSender"

// Errors
var (
	ErrBinaryPersistence = fmt.Errorf("binary route messages cannot be persisted: %w", persist.ErrNotSuspendable)
	ErrNoDeliverer       = errors.New("no delivery callback configured")

	// ErrConsumerUnavailable is returned by a DeliverFunc when nobody is
	// there to receive the batch. Flush puts the batch back at the head of
	// its queue and stops listening to the route.
	ErrConsumerUnavailable = errors.New("route message consumer unavailable")
)

// DeliverFunc hands one route's ordered batch to the consumer.
type DeliverFunc func(routeID string, msgs []model.RouteMessage) error

// FlushScheduler requests a flush no sooner than its minimum interval.
type FlushScheduler interface {
	ScheduleFlush()
}

// KeepAlivePolicy is told whenever the sender's keep-alive decision changes.
// It is called with the sender's lock held and must not call back into it.
type KeepAlivePolicy interface {
	UpdateKeepAlive(key string, keepAlive bool)
}

// Config holds configuration for the Route Message Sender.
type Config struct {
	QueueWarnThreshold   int // Default: 50
	KeepAliveThreshold   int // Queued text size in UTF-16 units. Default: 1 MiB
	InitialQueueCapacity int // Default: 16
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		QueueWarnThreshold:   50,
		KeepAliveThreshold:   1 << 20,
		InitialQueueCapacity: 16,
	}
}

// Stats contains runtime statistics.
type Stats struct {
	Routes             int   `json:"routes"`
	ListeningRoutes    int   `json:"listening_routes"`
	QueuedMessages     int   `json:"queued_messages"`
	TotalMessageSize   int   `json:"total_message_size"`
	BinaryMessageCount int   `json:"binary_message_count"`
	KeepAlive          bool  `json:"keep_alive"`
	MessagesSent       int64 `json:"messages_sent"`
	MessagesDelivered  int64 `json:"messages_delivered"`
	MessagesDropped    int64 `json:"messages_dropped"`
	Flushes            int64 `json:"flushes"`
	MessagesRequeued   int64 `json:"messages_requeued"`
	DeliveryErrors     int64 `json:"delivery_errors"`
	QueueWarnings      int64 `json:"queue_warnings"`
}

// Snapshot is a point-in-time copy of the sender's durable state.
type Snapshot struct {
	Queues           map[string][]SnapshotMessage `json:"queues"`
	ListeningRoutes  []string                     `json:"listening_routes"`
	TotalMessageSize int                          `json:"total_message_size"`
}

// SnapshotMessage is the persisted form of a queued message. Binary is
// only ever populated by a faulty writer and is rejected on restore.
type SnapshotMessage struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	Binary    []byte    `json:"binary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type noopScheduler struct{}

func (noopScheduler) ScheduleFlush() {}

type noopPolicy struct{}

func (noopPolicy) UpdateKeepAlive(string, bool) {}
