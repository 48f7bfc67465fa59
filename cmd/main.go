package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/heartbeat-agent/config"
	"github.com/angeloszaimis/heartbeat-agent/internal/counterstore"
	"github.com/angeloszaimis/heartbeat-agent/internal/heartbeat"
	"github.com/angeloszaimis/heartbeat-agent/internal/httpserver"
	"github.com/angeloszaimis/heartbeat-agent/internal/identity"
	"github.com/angeloszaimis/heartbeat-agent/internal/metrics"
	"github.com/angeloszaimis/heartbeat-agent/internal/reporter"
	"github.com/angeloszaimis/heartbeat-agent/pkg/logger"
)

const metricsBufferSize = 256

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log, closer := logger.NewWithFile(fileOptions(cfg.Logging), cfg.Logging.Level, true, cfg.Agent.Environment)
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Agent stopped with error", slog.Any("err", err))
		closer.Close()
		os.Exit(1)
	}

	log.Info("Agent stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	id, err := identity.NewResolver().Resolve(ctx, cfg.Agent.NodeName, cfg.Agent.Hostname)
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}

	addr, err := counterstore.ResolveEndpoint(id.NodeName, cfg.Store.Endpoints, cfg.Store.FallbackEndpoint)
	if err != nil {
		return fmt.Errorf("resolve store endpoint: %w", err)
	}

	client := counterstore.NewClient(storeOptions(cfg.Store, addr))
	defer client.Close()

	store := counterstore.New(client, log)

	sender, err := reporter.NewSender(cfg.Controller.URL, cfg.Controller.RequestTimeoutDuration(), nil)
	if err != nil {
		return fmt.Errorf("create sender: %w", err)
	}

	collector := metrics.NewCollector(metricsBufferSize, log)

	var srv *httpserver.Server
	if cfg.Metrics.Address != "" {
		srv, err = httpserver.New(cfg.Metrics.Address, setupRouter(collector), log)
		if err != nil {
			return fmt.Errorf("create status listener: %w", err)
		}
	}

	hb, err := heartbeat.New(heartbeatConfig(cfg.Heartbeat, id), store, sender, log, heartbeat.WithEmitter(collector))
	if err != nil {
		return fmt.Errorf("create heartbeat: %w", err)
	}

	log.Info("Heartbeat agent starting",
		slog.String("node", id.NodeName),
		slog.String("podname", id.Hostname),
		slog.String("store", addr),
		slog.String("controller", sender.Endpoint()),
		slog.String("interval", cfg.Heartbeat.Interval))

	collector.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hb.Run(gctx)
	})

	if srv != nil {
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	return g.Wait()
}

func heartbeatConfig(hc config.HeartbeatConfig, id identity.Identity) heartbeat.Config {
	return heartbeat.Config{
		Identity:     id.Hostname,
		CounterKey:   hc.CounterKey,
		Interval:     hc.IntervalDuration(),
		Align:        hc.Align,
		MaxInFlight:  hc.MaxInFlight,
		DrainTimeout: hc.DrainTimeoutDuration(),
	}
}

func storeOptions(sc config.StoreConfig, addr string) counterstore.Options {
	return counterstore.Options{
		Addr:        addr,
		DB:          sc.DB,
		Password:    sc.Password,
		DialTimeout: sc.DialTimeoutDuration(),
		ReadTimeout: sc.ReadTimeoutDuration(),
		PoolSize:    sc.PoolSize,
	}
}

func fileOptions(lc config.LoggingConfig) logger.FileOptions {
	return logger.FileOptions{
		Path:       lc.File,
		MaxSizeMB:  lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAgeDays: lc.MaxAgeDays,
	}
}
