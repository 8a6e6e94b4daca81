package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/mediaroute/internal/model"
	"github.com/rickgao/mediaroute/internal/router"
)

// CommandHandler receives the Media Router's route commands.
// StopListeningAll is called whenever the router is not connected, since
// it announces its routes again after every connect.
type CommandHandler interface {
	Listen(routeID string)
	StopListening(routeID string)
	StopListeningAll()
	OnRouteRemoved(routeID string)
}

// Link keeps a connection to the Media Router alive, dispatches inbound
// commands and delivers outbound batches.
type Link struct {
	cfg       LinkConfig
	handler   CommandHandler
	logger    *slog.Logger
	newClient func(ClientConfig, *slog.Logger) Client

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	client Client
	stats  LinkStats
}

// NewLink creates a Link. Commands are dispatched to handler.
func NewLink(cfg LinkConfig, handler CommandHandler, logger *slog.Logger) *Link {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconnectBaseDelay <= 0 {
		cfg.ReconnectBaseDelay = DefaultLinkConfig().ReconnectBaseDelay
	}
	if cfg.ReconnectMaxDelay < cfg.ReconnectBaseDelay {
		cfg.ReconnectMaxDelay = cfg.ReconnectBaseDelay
	}

	return &Link{
		cfg:       cfg,
		handler:   handler,
		logger:    logger,
		newClient: NewClient,
	}
}

// Start begins connecting in the background. A router that is not yet
// reachable is retried with backoff; Start itself does not fail on it.
// Listening state from before Start (e.g. restored from a snapshot) is
// cleared until the router sends listen again.
func (l *Link) Start(ctx context.Context) error {
	l.handler.StopListeningAll()
	l.ctx, l.cancel = context.WithCancel(ctx)

	l.wg.Add(1)
	go l.run()

	l.logger.Info("media router link started", "url", l.cfg.Client.URL)
	return nil
}

// Stop closes the connection and waits for the link goroutine.
func (l *Link) Stop(ctx context.Context) error {
	l.logger.Info("stopping media router link")

	if l.cancel != nil {
		l.cancel()
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		l.logger.Warn("shutdown timeout, forcing close")
	}

	if c := l.setClient(nil); c != nil {
		c.Close()
	}

	l.logger.Info("media router link stopped")
	return nil
}

// Deliver sends one route_messages frame. It has the signature of the
// sender's delivery callback. Without a connection the error also wraps
// router.ErrConsumerUnavailable so the sender keeps the batch.
func (l *Link) Deliver(routeID string, msgs []model.RouteMessage) error {
	l.mu.RLock()
	c := l.client
	l.mu.RUnlock()

	if c == nil || !c.IsConnected() {
		l.countSendError()
		return fmt.Errorf("%w: %w", ErrNotConnected, router.ErrConsumerUnavailable)
	}

	data, err := EncodeBatch(routeID, msgs)
	if err != nil {
		l.countSendError()
		return err
	}

	if err := c.Send(data); err != nil {
		l.countSendError()
		if errors.Is(err, ErrNotConnected) {
			return fmt.Errorf("send route_messages: %w: %w", err, router.ErrConsumerUnavailable)
		}
		return fmt.Errorf("send route_messages: %w", err)
	}

	l.mu.Lock()
	l.stats.BatchesSent++
	l.stats.MessagesSent += int64(len(msgs))
	l.mu.Unlock()
	return nil
}

// IsConnected reports whether a connection is currently up.
func (l *Link) IsConnected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.client != nil && l.client.IsConnected()
}

// Stats returns current statistics.
func (l *Link) Stats() LinkStats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := l.stats
	s.Connected = l.client != nil && l.client.IsConnected()
	return s
}

func (l *Link) countSendError() {
	l.mu.Lock()
	l.stats.SendErrors++
	l.mu.Unlock()
}

func (l *Link) setClient(c Client) Client {
	l.mu.Lock()
	defer l.mu.Unlock()
	old := l.client
	l.client = c
	return old
}

// run connects, reads until the connection fails, then reconnects with
// exponential backoff until the link is stopped.
func (l *Link) run() {
	defer l.wg.Done()

	wait := l.cfg.ReconnectBaseDelay
	connectedBefore := false

	for {
		client := l.newClient(l.cfg.Client, l.logger)
		if err := client.Connect(l.ctx); err != nil {
			client.Close()
			if l.ctx.Err() != nil {
				return
			}
			l.logger.Warn("media router connect failed",
				"error", err,
				"retry_in", wait,
			)
			if !l.sleep(wait) {
				return
			}
			wait *= 2
			if wait > l.cfg.ReconnectMaxDelay {
				wait = l.cfg.ReconnectMaxDelay
			}
			continue
		}

		wait = l.cfg.ReconnectBaseDelay
		l.setClient(client)
		if connectedBefore {
			l.mu.Lock()
			l.stats.Reconnects++
			l.mu.Unlock()
			l.logger.Info("reconnected to media router")
		} else {
			l.logger.Info("connected to media router")
		}
		connectedBefore = true

		err := l.readLoop(client)
		if l.ctx.Err() == nil {
			l.handler.StopListeningAll()
		}

		// Stop may already have swapped the client out.
		l.mu.Lock()
		if l.client == client {
			l.client = nil
		}
		l.mu.Unlock()
		client.Close()

		if l.ctx.Err() != nil {
			return
		}
		l.logger.Warn("media router connection lost", "error", err, "retry_in", wait)
		if !l.sleep(wait) {
			return
		}
	}
}

// readLoop dispatches frames until ctx is done or the client fails.
func (l *Link) readLoop(client Client) error {
	for {
		select {
		case <-l.ctx.Done():
			return nil

		case err := <-client.Errors():
			return err

		case msg, ok := <-client.Messages():
			if !ok {
				return ErrNotConnected
			}
			l.handleFrame(msg.Data)
		}
	}
}

func (l *Link) handleFrame(data []byte) {
	cmd, err := DecodeCommand(data)
	if err != nil {
		l.mu.Lock()
		l.stats.InvalidFrames++
		l.mu.Unlock()
		l.logger.Warn("ignoring invalid frame", "error", err, "size", len(data))
		return
	}

	l.mu.Lock()
	l.stats.CommandsReceived++
	l.mu.Unlock()

	l.logger.Debug("media router command", "type", cmd.Type, "route_id", cmd.RouteID)

	switch cmd.Type {
	case TypeListen:
		l.handler.Listen(cmd.RouteID)
	case TypeStopListening:
		l.handler.StopListening(cmd.RouteID)
	case TypeRouteRemoved:
		l.handler.OnRouteRemoved(cmd.RouteID)
	}
}

func (l *Link) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-l.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
