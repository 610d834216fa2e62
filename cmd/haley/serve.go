package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	httpadapter "github.com/haleybot/haley/internal/adapters/http"
	redisadapter "github.com/haleybot/haley/internal/adapters/redis"
	"github.com/haleybot/haley/internal/config"
	"github.com/haleybot/haley/internal/logging"
	"github.com/haleybot/haley/internal/metrics"
	"github.com/haleybot/haley/pkg/adapters/memory"
	"github.com/haleybot/haley/pkg/capacity"
	"github.com/haleybot/haley/pkg/dispatch"
	"github.com/haleybot/haley/pkg/notify"
	"github.com/haleybot/haley/pkg/ports"
	"github.com/haleybot/haley/pkg/session"
	"github.com/haleybot/haley/pkg/workflow"
)

// reapInterval is how often idle sessions are swept.
const reapInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the signup engine",
	Long:  `Starts the engine's HTTP endpoint: the chat bridge posts inbound events to /events and replies come back in the response. Redis persists entities and sessions when configured; otherwise everything lives in memory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		logger := logging.New(logging.ParseLevel(cfg.LogLevel))

		reg := prometheus.NewRegistry()
		m := metrics.New(reg)

		var (
			entities  ports.EntityStore
			sessStore ports.SessionStore
		)
		if cfg.Redis.Addr != "" {
			store := redisadapter.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			defer store.Close()
			entities = store
			sessStore = redisadapter.NewSessionStore(store.Client(),
				redisadapter.WithSessionTTL(cfg.SessionTTL))
			logger.Info("using redis persistence", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
		} else {
			entities = memory.NewStore()
			sessStore = memory.NewSessionStore()
			logger.Warn("no redis configured, state is in-memory only")
		}

		var transport ports.Transport
		if cfg.BridgeURL != "" {
			transport = httpadapter.NewBridgeTransport(cfg.BridgeURL)
			logger.Info("using chat bridge", "url", cfg.BridgeURL)
		} else {
			transport = httpadapter.NewLogTransport(logger)
			logger.Warn("no chat bridge configured, notifications are log-only")
		}

		relay := notify.NewRelay(transport,
			notify.WithLogger(logger),
			notify.WithFailureCounter(m.NotifyFailures),
		)
		env := &workflow.Env{
			Store:  entities,
			Ledger: capacity.NewLedger(entities, capacity.WithOpCounter(m.SlotReservations)),
			Relay:  relay,
			Roles:  dispatch.NewRoles(entities, nil),
			Logger: logger,
		}
		sessions := session.NewManager(sessStore, workflow.DefaultRegistry(), env,
			session.WithLogger(logger),
			session.WithIdleTTL(cfg.SessionTTL),
			session.WithActiveGauge(m.ActiveSessions),
		)
		dispatcher := dispatch.New(sessions, entities, env.Roles,
			dispatch.WithLogger(logger),
			dispatch.WithAdmin(cfg.AdminID),
			dispatch.WithMetrics(m),
		)

		reapCtx, stopReaper := context.WithCancel(context.Background())
		defer stopReaper()
		go sessions.RunReaper(reapCtx, reapInterval)

		srv := &http.Server{
			Addr:    cfg.Listen,
			Handler: httpadapter.NewHandler(dispatcher, reg, httpadapter.WithLogger(logger)),
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting server", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("shutting down", "signal", sig.String())
			stopReaper()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("graceful shutdown did not complete", "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("force close: %w", err)
				}
			}
			logger.Info("server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
