package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mattjoyce/aoproc/internal/api"
	"github.com/mattjoyce/aoproc/internal/config"
	"github.com/mattjoyce/aoproc/internal/dispatch"
	"github.com/mattjoyce/aoproc/internal/events"
	"github.com/mattjoyce/aoproc/internal/journal"
	"github.com/mattjoyce/aoproc/internal/lock"
	"github.com/mattjoyce/aoproc/internal/log"
	"github.com/mattjoyce/aoproc/internal/metrics"
	"github.com/mattjoyce/aoproc/internal/process"
	"github.com/mattjoyce/aoproc/internal/state"
)

const pruneInterval = time.Hour

func runServe(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, source, err := config.Discover(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}

	process.Init(cfg.Service.LogLevel, cfg.Service.LogFormat, os.Stdout)
	logger := log.WithComponent("main")
	if source == "" {
		source = "(defaults)"
	}
	logger.Info("aoproc starting", "version", version, "config", source)

	pidLock, err := lock.Acquire(cfg.Lock.Path)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "path", cfg.Lock.Path, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLock.Path())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	st := state.NewStore()
	disp := dispatch.New(st,
		dispatch.WithMetrics(metrics.NewPrometheus(reg)),
		dispatch.WithProcessName(cfg.Process.Name),
		dispatch.WithLogger(log.WithComponent("dispatch")),
	)

	hub := events.NewHub(cfg.Events.Buffer)
	procOpts := []process.Option{process.WithObserver(hub)}
	apiOpts := []api.Option{api.WithEvents(hub), api.WithGatherer(reg)}

	if cfg.Journal.Enabled {
		j, err := journal.Open(ctx, cfg.Journal.Path)
		if err != nil {
			logger.Error("failed to open journal", "path", cfg.Journal.Path, "error", err)
			return 1
		}
		defer j.Close()
		logger.Info("journal opened", "path", cfg.Journal.Path)

		if n, err := j.Prune(ctx, cfg.Journal.Retention); err != nil {
			logger.Warn("initial journal prune failed", "error", err)
		} else if n > 0 {
			logger.Info("journal pruned", "removed", n)
		}
		go j.RunPruner(ctx, cfg.Journal.Retention, pruneInterval)

		procOpts = append(procOpts, process.WithObserver(j))
		apiOpts = append(apiOpts, api.WithJournal(j))
	}

	proc := process.New(st, disp, procOpts...)

	if !cfg.API.Enabled {
		logger.Info("API disabled; waiting for shutdown signal")
		<-ctx.Done()
		logger.Info("shutdown complete")
		return 0
	}

	srv := api.New(api.Config{Listen: cfg.API.Listen}, proc, log.WithComponent("api"), apiOpts...)
	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("API server failed", "error", err)
		return 1
	}

	logger.Info("shutdown complete")
	return 0
}
