// mediaroute runs the route message sender: it buffers provider messages
// per route and delivers them in batches to the Media Router.
// Usage: go run ./cmd/mediaroute --config configs/mediaroute.example.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/mediaroute/internal/api"
	"github.com/rickgao/mediaroute/internal/auth"
	"github.com/rickgao/mediaroute/internal/config"
	"github.com/rickgao/mediaroute/internal/connection"
	"github.com/rickgao/mediaroute/internal/database"
	"github.com/rickgao/mediaroute/internal/keepalive"
	"github.com/rickgao/mediaroute/internal/model"
	"github.com/rickgao/mediaroute/internal/persist"
	"github.com/rickgao/mediaroute/internal/router"
	"github.com/rickgao/mediaroute/internal/throttle"
	"github.com/rickgao/mediaroute/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/mediaroute.example.yaml", "path to config file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q\n", *logLevel)
		os.Exit(2)
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting mediaroute",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("mediaroute failed", "error", err)
		os.Exit(1)
	}
	logger.Info("mediaroute stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	store, closeStore, err := openStore(ctx, cfg.Persistence, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	ka := keepalive.NewManager(logger.With("component", "keepalive"))

	// The throttler and sender refer to each other; the hook reads sender
	// only after it is assigned below.
	var sender *router.Sender
	th := throttle.New(cfg.Sender.FlushInterval, func() error {
		return sender.Flush()
	}, logger.With("component", "throttle"))

	sender = router.NewSender(router.Config{
		QueueWarnThreshold:   cfg.Sender.QueueWarnThreshold,
		KeepAliveThreshold:   cfg.Sender.KeepAliveThresholdChars,
		InitialQueueCapacity: cfg.Sender.InitialQueueCapacity,
	}, th, ka, logger.With("component", "sender"))

	pm := persist.NewManager(store, logger.With("component", "persist"))
	if err := pm.Register(sender); err != nil {
		return fmt.Errorf("register sender: %w", err)
	}
	if err := pm.Resume(ctx); err != nil {
		// Start empty rather than refuse to serve.
		logger.Error("failed to resume state, starting empty", "error", err)
	}

	var link *connection.Link
	if cfg.Link.URL != "" {
		link, err = newLink(cfg.Link, sender, logger.With("component", "link"))
		if err != nil {
			return err
		}
		sender.SetDeliverFunc(link.Deliver)
	} else {
		logger.Warn("no link.url configured, batches are only logged")
		sender.SetDeliverFunc(logDeliver(logger.With("component", "deliver")))
	}

	// The throttler and link outlive the signal context so the final flush
	// on shutdown can still reach the router. Their Stop cancels them.
	compCtx, stopComponents := context.WithCancel(context.Background())
	defer stopComponents()

	if err := th.Start(compCtx); err != nil {
		return fmt.Errorf("start throttle: %w", err)
	}
	if link != nil {
		if err := link.Start(compCtx); err != nil {
			return fmt.Errorf("start link: %w", err)
		}
	}

	handlerCfg := api.HandlerConfig{
		InstanceID:   cfg.Instance.ID,
		Version:      version.Version,
		MaxBodyBytes: cfg.API.MaxBodyBytes,
		Token:        cfg.API.Token,
	}
	if link != nil {
		handlerCfg.LinkUp = link.IsConnected
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           api.NewHandler(sender, ka, handlerCfg, logger.With("component", "api")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting api server", "port", cfg.API.Port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	// Periodic checkpoint, only while nothing holds the host alive.
	g.Go(func() error {
		return pm.Run(gctx, cfg.Persistence.CheckpointInterval, func() bool {
			return !ka.Active()
		})
	})

	g.Go(func() error {
		updates := ka.Subscribe()
		for {
			select {
			case <-gctx.Done():
				return nil
			case active := <-updates:
				logger.Info("keep-alive changed",
					"active", active,
					"holders", ka.Holders(),
				)
			}
		}
	})

	logger.Info("mediaroute running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.API.Port),
	)

	runErr := g.Wait()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Final flush goes out over the link while it is still up.
	th.Stop(shutdownCtx)
	if link != nil {
		link.Stop(shutdownCtx)
	}

	if err := pm.Suspend(shutdownCtx); err != nil {
		if errors.Is(err, router.ErrBinaryPersistence) {
			logger.Error("binary messages still queued at shutdown, state not saved",
				"binary_messages", sender.Stats().BinaryMessageCount,
			)
		}
		runErr = errors.Join(runErr, err)
	}

	st := sender.Stats()
	logger.Info("final sender stats",
		"sent", st.MessagesSent,
		"delivered", st.MessagesDelivered,
		"dropped", st.MessagesDropped,
		"queued", st.QueuedMessages,
		"flushes", st.Flushes,
	)

	return runErr
}

// openStore builds the configured persistence backend.
func openStore(ctx context.Context, cfg config.PersistenceConfig, logger *slog.Logger) (persist.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendFile:
		store, err := persist.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("open file store: %w", err)
		}
		logger.Info("using file persistence", "dir", cfg.Dir)
		return store, func() {}, nil

	case config.BackendPostgres:
		logger.Info("connecting to database",
			"host", cfg.Postgres.Host,
			"port", cfg.Postgres.Port,
			"database", cfg.Postgres.Name,
		)
		pool, err := database.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		store, err := database.NewStateStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("database connected")
		return store, pool.Close, nil

	default:
		logger.Info("using in-memory persistence, state is lost on exit")
		return persist.NewMemoryStore(), func() {}, nil
	}
}

func newLink(cfg config.LinkConfig, handler connection.CommandHandler, logger *slog.Logger) (*connection.Link, error) {
	clientCfg := connection.DefaultClientConfig()
	clientCfg.URL = cfg.URL
	clientCfg.PingInterval = cfg.PingInterval
	clientCfg.PingTimeout = cfg.PingTimeout
	clientCfg.WriteTimeout = cfg.WriteTimeout

	if cfg.KeyID != "" {
		creds, err := auth.LoadCredentials(cfg.KeyID, cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load link credentials: %w", err)
		}
		clientCfg.Credentials = creds
		logger.Info("using link credentials", "key_id", cfg.KeyID)
	}

	return connection.NewLink(connection.LinkConfig{
		Client:             clientCfg,
		ReconnectBaseDelay: cfg.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.ReconnectMaxDelay,
	}, handler, logger), nil
}

// logDeliver is the delivery callback used when no router is configured.
func logDeliver(logger *slog.Logger) router.DeliverFunc {
	return func(routeID string, msgs []model.RouteMessage) error {
		for _, m := range msgs {
			logger.Info("route message",
				"route_id", routeID,
				"id", m.ID(),
				"kind", m.Kind(),
				"bytes", m.ByteLen(),
			)
		}
		return nil
	}
}
