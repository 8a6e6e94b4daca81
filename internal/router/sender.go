package router

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/rickgao/mediaroute/internal/model"
)

// Sender buffers outbound route messages per route and delivers them in
// batches when the throttler calls Flush. Only routes the consumer is
// listening to are delivered; everything else stays queued.
type Sender struct {
	cfg       Config
	scheduler FlushScheduler
	policy    KeepAlivePolicy
	logger    *slog.Logger

	// flushMu serializes Flush so batches for a route leave in order.
	flushMu sync.Mutex

	mu        sync.Mutex
	deliver   DeliverFunc
	queues    map[string]*routeQueue
	listening map[string]struct{}

	totalMessageSize   int
	binaryMessageCount int
	keepAlive          bool

	// Stats
	sent           int64
	delivered      int64
	dropped        int64
	requeued       int64
	flushes        int64
	deliveryErrors int64
	queueWarnings  int64
}

// NewSender creates a Route Message Sender. A nil scheduler or policy is
// replaced with a no-op so tests can drive Flush by hand.
func NewSender(cfg Config, scheduler FlushScheduler, policy KeepAlivePolicy, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	if scheduler == nil {
		scheduler = noopScheduler{}
	}
	if policy == nil {
		policy = noopPolicy{}
	}

	return &Sender{
		cfg:       cfg,
		scheduler: scheduler,
		policy:    policy,
		logger:    logger,
		queues:    make(map[string]*routeQueue),
		listening: make(map[string]struct{}),
	}
}

// SetDeliverFunc configures the callback that receives flushed batches.
func (s *Sender) SetDeliverFunc(fn DeliverFunc) {
	s.mu.Lock()
	s.deliver = fn
	hasBacklog := s.hasListenedBacklogLocked()
	s.mu.Unlock()

	if fn != nil && hasBacklog {
		s.scheduler.ScheduleFlush()
	}
}

// Listen marks routeID as wanted by the consumer. A backlog for the route
// is delivered on the next flush tick, never synchronously.
func (s *Sender) Listen(routeID string) {
	s.mu.Lock()
	if _, ok := s.listening[routeID]; ok {
		s.mu.Unlock()
		return
	}
	s.listening[routeID] = struct{}{}
	q, hasQueue := s.queues[routeID]
	backlog := hasQueue && q.len() > 0
	s.mu.Unlock()

	s.logger.Debug("listening to route", "route_id", routeID, "backlog", backlog)

	if backlog {
		s.scheduler.ScheduleFlush()
	}
}

// StopListening stops delivery for routeID. Queued messages are kept so a
// later Listen resumes with the backlog.
func (s *Sender) StopListening(routeID string) {
	s.mu.Lock()
	delete(s.listening, routeID)
	s.mu.Unlock()

	s.logger.Debug("stopped listening to route", "route_id", routeID)
}

// StopListeningAll clears the listening set, keeping every backlog. It is
// used when the consumer goes away and will announce its routes again.
func (s *Sender) StopListeningAll() {
	s.mu.Lock()
	n := len(s.listening)
	s.listening = make(map[string]struct{})
	s.mu.Unlock()

	if n > 0 {
		s.logger.Info("stopped listening to all routes", "routes", n)
	}
}

// IsListening reports whether routeID is in the listening set.
func (s *Sender) IsListening(routeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.listening[routeID]
	return ok
}

// SendText queues a text message for routeID.
func (s *Sender) SendText(routeID, text string) {
	s.Send(model.NewTextMessage(routeID, text))
}

// SendBinary queues a binary message for routeID.
func (s *Sender) SendBinary(routeID string, data []byte) {
	s.Send(model.NewBinaryMessage(routeID, data))
}

// Send appends msg to its route's queue. It always succeeds; a queue that
// keeps growing is reported with a warning at each multiple of the warning
// threshold.
func (s *Sender) Send(msg model.RouteMessage) {
	routeID := msg.RouteID()

	s.mu.Lock()
	q, ok := s.queues[routeID]
	if !ok {
		q = newRouteQueue(s.cfg.InitialQueueCapacity)
		s.queues[routeID] = q
	}
	q.push(msg)
	s.sent++

	if msg.IsBinary() {
		s.binaryMessageCount++
	} else {
		s.totalMessageSize += msg.CharLen()
	}
	s.updateKeepAliveLocked()

	n := q.len()
	warn := false
	if th := s.cfg.QueueWarnThreshold; th > 0 && n > th && (n-1)%th == 0 {
		warn = true
		s.queueWarnings++
	}
	_, listened := s.listening[routeID]
	s.mu.Unlock()

	if warn {
		s.logger.Warn("route message queue is growing",
			"route_id", routeID,
			"queued", n,
			"listening", listened,
		)
	}

	if listened {
		s.scheduler.ScheduleFlush()
	}
}

// OnRouteRemoved forgets routeID entirely, discarding its backlog.
// Removing an unknown route is a no-op.
func (s *Sender) OnRouteRemoved(routeID string) {
	s.mu.Lock()
	delete(s.listening, routeID)

	q, ok := s.queues[routeID]
	if !ok {
		s.mu.Unlock()
		return
	}

	discarded := q.len()
	s.totalMessageSize -= q.charLen
	s.binaryMessageCount -= q.binaryCount
	s.dropped += int64(discarded)
	delete(s.queues, routeID)
	s.updateKeepAliveLocked()
	s.mu.Unlock()

	s.logger.Debug("route removed", "route_id", routeID, "discarded", discarded)
}

// QueueLen returns the number of messages queued for routeID.
func (s *Sender) QueueLen(routeID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.queues[routeID]; ok {
		return q.len()
	}
	return 0
}

type routeBatch struct {
	routeID string
	msgs    []model.RouteMessage
}

// Flush delivers the backlog of every listened route. Routes are taken in
// sorted order. Delivery runs outside the state lock, so a callback that
// sends more messages has them queued for the next tick. Failed
// deliveries are not retried; their errors are joined and returned. A
// batch refused with ErrConsumerUnavailable is kept instead.
func (s *Sender) Flush() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	deliver := s.deliver
	if deliver == nil {
		queued := len(s.queues)
		s.mu.Unlock()
		s.logger.Error("flush requested before delivery callback was configured",
			"queued_routes", queued,
		)
		return ErrNoDeliverer
	}

	routeIDs := make([]string, 0, len(s.listening))
	for id := range s.listening {
		routeIDs = append(routeIDs, id)
	}
	sort.Strings(routeIDs)

	batches := make([]routeBatch, 0, len(routeIDs))
	for _, id := range routeIDs {
		q, ok := s.queues[id]
		if !ok || q.len() == 0 {
			continue
		}
		s.totalMessageSize -= q.charLen
		s.binaryMessageCount -= q.binaryCount
		batches = append(batches, routeBatch{routeID: id, msgs: q.drain()})
		delete(s.queues, id)
	}
	s.updateKeepAliveLocked()
	s.flushes++
	s.mu.Unlock()

	var errs []error
	var delivered, requeued int64
	for _, b := range batches {
		if err := deliver(b.routeID, b.msgs); err != nil {
			if errors.Is(err, ErrConsumerUnavailable) {
				s.requeue(b)
				requeued += int64(len(b.msgs))
				s.logger.Debug("consumer unavailable, keeping backlog",
					"route_id", b.routeID,
					"count", len(b.msgs),
				)
				continue
			}
			s.logger.Warn("route message delivery failed",
				"route_id", b.routeID,
				"count", len(b.msgs),
				"error", err,
			)
			errs = append(errs, fmt.Errorf("deliver route %s: %w", b.routeID, err))
			continue
		}
		delivered += int64(len(b.msgs))
	}

	s.mu.Lock()
	s.delivered += delivered
	s.requeued += requeued
	s.deliveryErrors += int64(len(errs))
	s.mu.Unlock()

	if len(batches) > 0 {
		s.logger.Debug("flushed route messages",
			"routes", len(batches),
			"delivered", delivered,
			"requeued", requeued,
			"failed", len(errs),
		)
	}

	return errors.Join(errs...)
}

// requeue puts a refused batch back ahead of anything sent since it was
// taken, and stops listening to the route.
func (s *Sender) requeue(b routeBatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := newRouteQueue(s.cfg.InitialQueueCapacity)
	for _, m := range b.msgs {
		q.push(m)
	}
	if later, ok := s.queues[b.routeID]; ok {
		for _, m := range later.items() {
			q.push(m)
		}
		s.totalMessageSize -= later.charLen
		s.binaryMessageCount -= later.binaryCount
	}
	s.queues[b.routeID] = q
	s.totalMessageSize += q.charLen
	s.binaryMessageCount += q.binaryCount
	delete(s.listening, b.routeID)
	s.updateKeepAliveLocked()
}

// Snapshot copies the queues, listening set and total size. Binary
// messages are never persisted: keep-alive is meant to prevent suspension
// while any are queued, so finding one is a caller bug.
func (s *Sender) Snapshot() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Queues:           make(map[string][]SnapshotMessage, len(s.queues)),
		ListeningRoutes:  make([]string, 0, len(s.listening)),
		TotalMessageSize: s.totalMessageSize,
	}

	for id, q := range s.queues {
		if q.binaryCount > 0 {
			return Snapshot{}, fmt.Errorf("%w: route %s holds %d binary messages",
				ErrBinaryPersistence, id, q.binaryCount)
		}
		items := q.items()
		msgs := make([]SnapshotMessage, len(items))
		for i, m := range items {
			msgs[i] = SnapshotMessage{
				ID:        m.ID(),
				Text:      m.Text(),
				CreatedAt: m.CreatedAt(),
			}
		}
		snap.Queues[id] = msgs
	}

	for id := range s.listening {
		snap.ListeningRoutes = append(snap.ListeningRoutes, id)
	}
	sort.Strings(snap.ListeningRoutes)

	return snap, nil
}

// Restore replaces the sender's state with snap. A snapshot carrying
// binary payloads is rejected and the current state is left untouched.
// The total message size is recomputed from the restored queues rather
// than taken from snap.TotalMessageSize; a mismatch is logged.
func (s *Sender) Restore(snap Snapshot) error {
	for id, msgs := range snap.Queues {
		for _, m := range msgs {
			if m.Binary != nil {
				return fmt.Errorf("%w: snapshot route %s contains a binary payload",
					ErrBinaryPersistence, id)
			}
		}
	}

	queues := make(map[string]*routeQueue, len(snap.Queues))
	total := 0
	for id, msgs := range snap.Queues {
		if len(msgs) == 0 {
			continue
		}
		q := newRouteQueue(s.cfg.InitialQueueCapacity)
		for _, m := range msgs {
			q.push(model.RestoreTextMessage(m.ID, id, m.Text, m.CreatedAt))
		}
		total += q.charLen
		queues[id] = q
	}

	listening := make(map[string]struct{}, len(snap.ListeningRoutes))
	for _, id := range snap.ListeningRoutes {
		listening[id] = struct{}{}
	}

	if total != snap.TotalMessageSize {
		s.logger.Warn("restored total message size differs from snapshot",
			"snapshot", snap.TotalMessageSize,
			"computed", total,
		)
	}

	s.mu.Lock()
	s.queues = queues
	s.listening = listening
	s.totalMessageSize = total
	s.binaryMessageCount = 0
	s.updateKeepAliveLocked()
	backlog := s.hasListenedBacklogLocked()
	s.mu.Unlock()

	s.logger.Info("route message sender restored",
		"routes", len(queues),
		"listening", len(listening),
		"total_message_size", total,
	)

	if backlog {
		s.scheduler.ScheduleFlush()
	}
	return nil
}

// KeepAlive reports the last keep-alive decision.
func (s *Sender) KeepAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keepAlive
}

// Stats returns current statistics.
func (s *Sender) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	queued := 0
	for _, q := range s.queues {
		queued += q.len()
	}

	return Stats{
		Routes:             len(s.queues),
		ListeningRoutes:    len(s.listening),
		QueuedMessages:     queued,
		TotalMessageSize:   s.totalMessageSize,
		BinaryMessageCount: s.binaryMessageCount,
		KeepAlive:          s.keepAlive,
		MessagesSent:       s.sent,
		MessagesDelivered:  s.delivered,
		MessagesDropped:    s.dropped,
		MessagesRequeued:   s.requeued,
		Flushes:            s.flushes,
		DeliveryErrors:     s.deliveryErrors,
		QueueWarnings:      s.queueWarnings,
	}
}

// updateKeepAliveLocked notifies the policy only when the decision flips.
// Must be called with s.mu held.
func (s *Sender) updateKeepAliveLocked() {
	want := s.binaryMessageCount > 0 || s.totalMessageSize > s.cfg.KeepAliveThreshold
	if want == s.keepAlive {
		return
	}
	s.keepAlive = want
	s.policy.UpdateKeepAlive(PersistKey, want)
}

func (s *Sender) hasListenedBacklogLocked() bool {
	for id := range s.listening {
		if q, ok := s.queues[id]; ok && q.len() > 0 {
			return true
		}
	}
	return false
}
