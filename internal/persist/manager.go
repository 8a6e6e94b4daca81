package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Errors
var (
	ErrDuplicateKey = errors.New("persistence key already registered")

	// ErrNotSuspendable is wrapped by a component whose state cannot be
	// saved right now. A periodic checkpoint treats it as a skip.
	ErrNotSuspendable = errors.New("component state cannot be suspended now")
)

// Persistable is a component whose state survives suspension.
type Persistable interface {
	PersistKey() string
	MarshalState() ([]byte, error)
	UnmarshalState(data []byte) error
}

// Stats contains persistence statistics.
type Stats struct {
	Components  int
	Suspends    int64
	Resumes     int64
	Failures    int64
	Skipped     int64
	LastSuspend time.Time
}

// Manager snapshots registered components into a Store and restores them.
type Manager struct {
	store  Store
	logger *slog.Logger

	mu    sync.Mutex
	items map[string]Persistable
	order []string
	stats Stats
}

// NewManager creates a Manager backed by store.
func NewManager(store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		logger: logger,
		items:  make(map[string]Persistable),
	}
}

// Register adds p under its key.
func (m *Manager) Register(p Persistable) error {
	key := p.PersistKey()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, key)
	}
	m.items[key] = p
	m.order = append(m.order, key)
	return nil
}

func (m *Manager) registered() []Persistable {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Persistable, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.items[key])
	}
	return out
}

// Suspend snapshots every registered component concurrently and saves
// the results. The first failure cancels the remaining saves.
func (m *Manager) Suspend(ctx context.Context) error {
	start := time.Now()
	n, err := m.suspend(ctx)
	if err != nil {
		m.recordFailure()
		m.logger.Error("suspend failed", "error", err)
		return err
	}
	m.recordSuspend(n, start)
	return nil
}

func (m *Manager) suspend(ctx context.Context) (int, error) {
	items := m.registered()

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range items {
		g.Go(func() error {
			key := p.PersistKey()
			data, err := p.MarshalState()
			if err != nil {
				return fmt.Errorf("snapshot %s: %w", key, err)
			}
			if err := m.store.Save(gctx, key, data); err != nil {
				return fmt.Errorf("save %s: %w", key, err)
			}
			return nil
		})
	}

	return len(items), g.Wait()
}

func (m *Manager) recordFailure() {
	m.mu.Lock()
	m.stats.Failures++
	m.mu.Unlock()
}

func (m *Manager) recordSuspend(components int, start time.Time) {
	m.mu.Lock()
	m.stats.Suspends++
	m.stats.LastSuspend = time.Now()
	m.mu.Unlock()

	m.logger.Info("state suspended",
		"components", components,
		"duration", time.Since(start),
	)
}

// checkpoint is Suspend for the periodic loop: a component that is
// momentarily not suspendable skips the checkpoint instead of failing it.
func (m *Manager) checkpoint(ctx context.Context) {
	start := time.Now()
	n, err := m.suspend(ctx)
	switch {
	case err == nil:
		m.recordSuspend(n, start)
	case errors.Is(err, ErrNotSuspendable):
		m.mu.Lock()
		m.stats.Skipped++
		m.mu.Unlock()
		m.logger.Debug("checkpoint skipped", "reason", err)
	default:
		m.recordFailure()
		m.logger.Error("checkpoint failed", "error", err)
	}
}

// Resume restores every registered component that has stored state.
// A component that fails to restore does not stop the others.
func (m *Manager) Resume(ctx context.Context) error {
	var errs []error
	restored := 0

	for _, p := range m.registered() {
		key := p.PersistKey()
		data, ok, err := m.store.Load(ctx, key)
		if err != nil {
			errs = append(errs, fmt.Errorf("load %s: %w", key, err))
			continue
		}
		if !ok {
			m.logger.Debug("no stored state", "component", key)
			continue
		}
		if err := p.UnmarshalState(data); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", key, err))
			continue
		}
		restored++
	}

	m.mu.Lock()
	m.stats.Resumes++
	if len(errs) > 0 {
		m.stats.Failures++
	}
	m.mu.Unlock()

	err := errors.Join(errs...)
	if err != nil {
		m.logger.Error("resume failed", "error", err, "restored", restored)
		return err
	}
	m.logger.Info("state resumed", "restored", restored)
	return nil
}

// Run checkpoints state every interval while canSuspend reports true. A
// nil canSuspend always allows it. Run returns when ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration, canSuspend func() bool) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if canSuspend != nil && !canSuspend() {
				m.logger.Debug("checkpoint skipped, keep-alive held")
				continue
			}
			m.checkpoint(ctx)
		}
	}
}

// Stats returns current statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.Components = len(m.items)
	return s
}
