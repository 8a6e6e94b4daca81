package keepalive

import (
	"log/slog"
	"sort"
	"sync"
)

// Manager records which components currently need the process kept alive.
// The process may be suspended only while no component holds keep-alive.
type Manager struct {
	logger *slog.Logger

	mu          sync.Mutex
	holders     map[string]struct{}
	subscribers []chan bool
	updates     int64
}

// NewManager creates an empty Manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:  logger,
		holders: make(map[string]struct{}),
	}
}

// UpdateKeepAlive records key's demand. Subscribers hear about changes of
// the aggregate only. It never calls back into the component.
func (m *Manager) UpdateKeepAlive(key string, keepAlive bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updates++
	before := len(m.holders) > 0
	if keepAlive {
		m.holders[key] = struct{}{}
	} else {
		delete(m.holders, key)
	}
	after := len(m.holders) > 0

	m.logger.Debug("keep-alive updated", "component", key, "keep_alive", keepAlive, "active", after)

	if before == after {
		return
	}
	for _, ch := range m.subscribers {
		// Latest value wins for a slow subscriber.
		select {
		case <-ch:
		default:
		}
		ch <- after
	}
}

// Active reports whether any component wants the process kept alive.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.holders) > 0
}

// Holders returns the keys currently holding keep-alive, sorted.
func (m *Manager) Holders() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.holders))
	for k := range m.holders {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Updates returns how many UpdateKeepAlive calls have been received.
func (m *Manager) Updates() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}

// Subscribe returns a channel that receives the aggregate value each time
// it changes. The channel holds one value; older values are replaced.
func (m *Manager) Subscribe() <-chan bool {
	ch := make(chan bool, 1)
	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()
	return ch
}
