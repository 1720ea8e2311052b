// brlapid is the BrlAPI-compatible braille display server daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dantte-lp/brlapid/internal/adminapi"
	"github.com/dantte-lp/brlapid/internal/backend"
	"github.com/dantte-lp/brlapid/internal/config"
	"github.com/dantte-lp/brlapid/internal/display"
	"github.com/dantte-lp/brlapid/internal/listener"
	brlmetrics "github.com/dantte-lp/brlapid/internal/metrics"
	"github.com/dantte-lp/brlapid/internal/session"
	"github.com/dantte-lp/brlapid/internal/translate"
	appversion "github.com/dantte-lp/brlapid/internal/version"
)

// shutdownTimeout is the maximum time to wait for HTTP servers to drain
// active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "brlapid",
		Short: "BrlAPI-compatible braille display server",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runDaemon(configPath)
		},
		SilenceUsage: true,
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to configuration file (YAML)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func runDaemon(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return err
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("brlapid starting",
		slog.String("version", appversion.Version),
		slog.String("listen_addr", cfg.Listen.Addr),
		slog.String("admin_addr", cfg.Admin.Addr),
		slog.String("metrics_addr", cfg.Metrics.Addr),
	)

	reg := prometheus.NewRegistry()
	collector := brlmetrics.NewCollector(reg)

	if err := runServers(cfg, collector, reg, logger); err != nil {
		logger.Error("brlapid exited with error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("brlapid stopped")
	return nil
}

// runServers builds the display/backend/translator/listener pipeline and
// runs every goroutine under an errgroup against a signal-aware context,
// mirroring the daemon's own supervision shape.
func runServers(cfg *config.Config, collector *brlmetrics.Collector, reg *prometheus.Registry, logger *slog.Logger) error {
	dim := display.Dimensions{Columns: cfg.Backend.Columns, Lines: cfg.Backend.Lines}

	be := backend.NewMemoryBackend(dim, cfg.Channels.MatrixSinkCapacity, cfg.Channels.KeycodeSourceCapacity,
		backend.WithDriverName(cfg.Backend.DriverName),
		backend.WithModelID(cfg.Backend.ModelID),
	)

	disp := display.New(dim, be.MatrixSink(), logger, display.WithMetrics(collector))
	worker := translate.NewWorker(translate.NewAsciiTableTranslator(), cfg.Channels.TranslationQueueCapacity, logger, translate.WithMetrics(collector))
	broadcaster := listener.NewKeyBroadcaster(logger)

	ln, err := listener.Listen(cfg.Listen.Addr)
	if err != nil {
		return fmt.Errorf("bind listener: %w", err)
	}

	metadata := session.Metadata{
		DriverName: cfg.Backend.DriverName,
		ModelID:    cfg.Backend.ModelID,
		Columns:    cfg.Backend.Columns,
		Lines:      cfg.Backend.Lines,
	}
	sessCfg := session.Config{
		AuthKey:          cfg.Auth.Key,
		TranslationTable: cfg.Backend.TranslationTable,
		Metadata:         metadata,
	}
	newSess := func(conn net.Conn) *session.Session {
		return session.New(conn, sessCfg, disp, worker, broadcaster, logger, session.WithMetrics(collector))
	}
	lst := listener.New(ln, newSess, logger)

	adminSrv := newAdminServer(cfg.Admin, be, lst.Registry(), logger)
	metricsSrv := newMetricsServer(cfg.Metrics, reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	stopBackend := make(chan struct{})
	g.Go(func() error {
		be.Run(stopBackend)
		return nil
	})

	g.Go(func() error {
		disp.Run(gCtx)
		return nil
	})
	g.Go(func() error {
		worker.Run(gCtx)
		return nil
	})
	g.Go(func() error {
		broadcaster.Run(gCtx, be.KeycodeSource())
		return nil
	})

	g.Go(func() error {
		logger.Info("BrlAPI listener accepting", slog.String("addr", cfg.Listen.Addr))
		return lst.Run(gCtx)
	})

	startHTTPServers(gCtx, g, cfg, adminSrv, metricsSrv, logger)
	g.Go(func() error {
		return runWatchdog(gCtx, logger)
	})
	g.Go(func() error {
		sampleSessionGauge(gCtx, collector, lst.Registry())
		return nil
	})

	notifyReady(logger)

	g.Go(func() error {
		<-gCtx.Done()
		close(stopBackend)
		return gracefulShutdown(gCtx, logger, adminSrv, metricsSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run servers: %w", err)
	}
	return nil
}

// startHTTPServers registers the admin and metrics HTTP server goroutines.
func startHTTPServers(ctx context.Context, g *errgroup.Group, cfg *config.Config, adminSrv, metricsSrv *http.Server, logger *slog.Logger) {
	lc := net.ListenConfig{}

	if cfg.Admin.Addr != "" {
		g.Go(func() error {
			logger.Info("admin API listening", slog.String("addr", cfg.Admin.Addr))
			return listenAndServe(ctx, &lc, adminSrv, cfg.Admin.Addr)
		})
	}

	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr),
			slog.String("path", cfg.Metrics.Path),
		)
		return listenAndServe(ctx, &lc, metricsSrv, cfg.Metrics.Addr)
	})
}

func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func newAdminServer(cfg config.AdminConfig, be backend.Backend, sessions adminapi.SessionLister, logger *slog.Logger) *http.Server {
	srv := adminapi.New(be, sessions, logger)
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// -------------------------------------------------------------------------
// Systemd integration
// -------------------------------------------------------------------------

func notifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: READY")
	}
}

func notifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("failed to notify systemd stopping", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: STOPPING")
	}
}

func runWatchdog(ctx context.Context, logger *slog.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("failed to check systemd watchdog", slog.String("error", err.Error()))
		return nil
	}
	if interval == 0 {
		logger.Debug("systemd watchdog not configured, skipping keepalive")
		return nil
	}

	tickInterval := interval / 2
	logger.Info("systemd watchdog enabled",
		slog.Duration("watchdog_sec", interval),
		slog.Duration("keepalive_interval", tickInterval),
	)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, wdErr := daemon.SdNotify(false, daemon.SdNotifyWatchdog); wdErr != nil {
				logger.Warn("failed to send watchdog keepalive", slog.String("error", wdErr.Error()))
			}
		}
	}
}

// -------------------------------------------------------------------------
// Graceful shutdown
// -------------------------------------------------------------------------

func gracefulShutdown(ctx context.Context, logger *slog.Logger, servers ...*http.Server) error {
	logger.Info("initiating graceful shutdown")
	notifyStopping(logger)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown server: %w", err))
		}
	}
	return shutdownErr
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// sessionGaugeInterval bounds how often the connected-sessions gauge is
// resampled from the listener's registry.
const sessionGaugeInterval = 2 * time.Second

// sampleSessionGauge periodically reconciles the Sessions gauge with the
// listener's registry length, rather than threading session lifecycle
// events through the listener goroutine itself.
func sampleSessionGauge(ctx context.Context, collector *brlmetrics.Collector, registry *listener.Registry) {
	ticker := time.NewTicker(sessionGaugeInterval)
	defer ticker.Stop()

	last := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := registry.Len()
			for ; last < n; last++ {
				collector.RegisterSession()
			}
			for ; last > n; last-- {
				collector.UnregisterSession()
			}
		}
	}
}
