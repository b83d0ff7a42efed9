package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"motion-trends/agents/dashboard"
	"motion-trends/shared/config"
	"motion-trends/shared/logger"
	"motion-trends/shared/scheduler"
)

func main() {
	once := flag.Bool("once", false, "run a single refresh and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := cfg.ValidateDashboard(); err != nil {
		log.Fatalf("Invalid dashboard configuration: %v", err)
	}

	appLog, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = appLog.Sync() }()

	// Create context that responds to signals
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	agent := dashboard.NewDashboardAgent(cfg, appLog)
	s := scheduler.New(scheduler.Options{
		Schedule:   cfg.Dashboard.Schedule,
		HealthPort: cfg.Monitoring.HealthPort,
		RunOnStart: true,
	}, agent, appLog)

	if *once {
		appLog.Info("Running once")
		if err := agent.Initialize(); err != nil {
			appLog.Error("Failed to initialize agent", logger.Error(err))
			os.Exit(1)
		}
		if err := s.RunOnce(ctx); err != nil {
			appLog.Error("Run failed", logger.Error(err))
			os.Exit(1)
		}
		return
	}

	appLog.Info("Starting scheduler")
	if err := s.Start(ctx); err != nil && ctx.Err() == nil {
		appLog.Error("Scheduler failed", logger.Error(err))
		os.Exit(1)
	}
}
