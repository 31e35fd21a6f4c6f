package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/infigaming-com/go-dispatch/dispatch"
	"github.com/infigaming-com/go-dispatch/dispatch/driver/redis"
	"github.com/infigaming-com/go-dispatch/observability/metrics"
	"github.com/infigaming-com/go-dispatch/util"
	"github.com/infigaming-com/go-dispatch/web"
	"github.com/infigaming-com/go-dispatch/web/middleware"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("fail to load config, error: %v", err)
	}

	lg, closeLogger, err := util.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("fail to init logger, error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, lg, cfg)
	stop()
	if err != nil {
		lg.Error("dispatchd exited with error", zap.Error(err))
		closeLogger()
		os.Exit(1)
	}
	lg.Info("dispatchd exiting")
	closeLogger()
}

func run(ctx context.Context, lg *zap.Logger, cfg *Config) error {
	factory, closeRedis, err := redis.NewFactoryFromConfig(ctx, lg, &cfg.Redis)
	if err != nil {
		return err
	}
	defer closeRedis()

	opts := []dispatch.Option{
		dispatch.WithLogger(lg),
		dispatch.WithWorkers(cfg.Workers),
		dispatch.WithCallbackTimeout(cfg.CallbackTimeout),
		dispatch.WithCommandTimeout(cfg.CommandTimeout),
		dispatch.WithDeadLetter(newLoggingChannel(lg, "dead-letter")),
	}
	if cfg.Metrics.Enabled() {
		exporter, closeMetrics, err := metrics.NewMetricExporter(ctx,
			metrics.WithServiceName(cfg.ServiceName),
			metrics.WithOTLPEndpoint(cfg.Metrics.OTLPEndpoint),
			metrics.WithOTLPGRPCEndpoint(cfg.Metrics.OTLPGRPCEndpoint),
			metrics.WithEnvironment(cfg.Metrics.Environment),
		)
		if err != nil {
			return err
		}
		defer closeMetrics()
		dm, err := metrics.NewDispatchMetrics(exporter.Meter())
		if err != nil {
			return err
		}
		opts = append(opts, dispatch.WithMetrics(dm))
	}

	m, err := dispatch.New(factory, opts...)
	if err != nil {
		return err
	}
	defer shutdownManager(lg, m, cfg.ShutdownTimeout)
	// Registered before Start; the first connection picks them up.
	for _, topic := range cfg.Topics {
		if err := m.Subscribe(ctx, topic, newLoggingChannel(lg, topic)); err != nil {
			return err
		}
	}
	if err := m.Start(ctx); err != nil {
		return err
	}

	admin := web.NewServer(lg,
		web.WithPort(cfg.Admin.Port),
		web.WithMode(cfg.Admin.Mode),
		web.WithCustomHandler(middleware.CorrelationIdMiddleware()),
		web.WithCustomHandler(middleware.LoggingMiddleware(
			middleware.WithLogger(lg),
			middleware.WithExcludePaths([]string{"/healthcheck"}),
		)),
		web.WithStatus(m),
	)
	if err := admin.Start(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		lg.Info("shutdown signal received")
	case <-m.Done():
		lg.Error("dispatch loop stopped", zap.Error(m.Err()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := admin.Shutdown(shutdownCtx); err != nil {
		lg.Warn("admin server shutdown incomplete", zap.Error(err))
	}
	return m.Err()
}

// shutdownManager releases the manager's workers on every exit path, a
// failed Start included.
func shutdownManager(lg *zap.Logger, m *dispatch.Manager, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		lg.Warn("dispatch shutdown incomplete", zap.Error(err))
	}
}
