package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"motion-trends/shared/logger"
	"motion-trends/shared/monitoring"
)

// Metrics defines the common interface for agent metrics
type Metrics interface {
	// GetSummary returns a human-readable summary of the run
	GetSummary() string
}

// AgentEvents provides callbacks for monitoring agent execution
type AgentEvents struct {
	OnSuccess         func(metrics Metrics, duration time.Duration)
	OnPartialFailure  func(err error, duration time.Duration)
	OnCriticalFailure func(err error, duration time.Duration)
}

// Agent defines the interface that all agents must implement
type Agent interface {
	Name() string
	RunOnce(ctx context.Context, events *AgentEvents) error
	Initialize() error
}

// RouteProvider is implemented by agents that serve an HTTP API next to the
// health endpoints.
type RouteProvider interface {
	RegisterRoutes(router *gin.Engine)
}

// Options configures a Scheduler.
type Options struct {
	// Schedule is a cron spec with a seconds field, or a descriptor such as
	// "@every 10m". CRON_TZ= prefixes are honored.
	Schedule   string
	HealthPort int
	// RunOnStart triggers one run right after initialization instead of
	// waiting for the first tick.
	RunOnStart bool
}

// Scheduler manages the execution of agents on a schedule
type Scheduler struct {
	opts    Options
	monitor *monitoring.Monitor
	agent   Agent
	cron    *cron.Cron
	log     logger.Logger
}

func New(opts Options, agent Agent, log logger.Logger) *Scheduler {
	log = log.With(logger.String("agent", agent.Name()))
	cronLog := cronLogger{log: log}

	return &Scheduler{
		opts:    opts,
		monitor: monitoring.NewMonitor(agent.Name(), log),
		agent:   agent,
		log:     log,
		// Prevent overlapping runs
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
	}
}

// Monitor returns the run monitor backing the health endpoints.
func (s *Scheduler) Monitor() *monitoring.Monitor {
	return s.monitor
}

func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.agent.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize agent: %w", err)
	}

	_, err := s.cron.AddFunc(s.opts.Schedule, func() {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Error("Scheduled run failed", logger.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	healthServer := monitoring.NewHealthServer(s.monitor, s.opts.HealthPort, s.log)
	if rp, ok := s.agent.(RouteProvider); ok {
		rp.RegisterRoutes(healthServer.Router())
	}
	healthServer.Start()

	s.log.Info("Scheduler started", logger.String("schedule", s.opts.Schedule))
	s.cron.Start()

	if s.opts.RunOnStart {
		// Goes through the cron chain so it cannot overlap a scheduled tick.
		go s.cron.Entries()[0].WrappedJob.Run()
	}

	<-ctx.Done()
	s.log.Info("Scheduler stopping")
	<-s.cron.Stop().Done()

	if err := healthServer.Shutdown(context.Background()); err != nil {
		s.log.Warn("Health server shutdown failed", logger.Error(err))
	}
	return ctx.Err()
}

func (s *Scheduler) RunOnce(ctx context.Context) error {
	startTime := time.Now()
	agentName := s.agent.Name()

	s.log.Info("Starting run")

	events := &AgentEvents{
		OnSuccess: func(metrics Metrics, duration time.Duration) {
			s.monitor.RecordSuccess(metrics.GetSummary(), duration)
		},
		OnPartialFailure: func(err error, duration time.Duration) {
			s.monitor.RecordPartialFailure(fmt.Errorf("%s partial failure: %w", agentName, err), duration)
		},
		OnCriticalFailure: func(err error, duration time.Duration) {
			s.monitor.RecordCriticalFailure(fmt.Errorf("%s critical failure: %w", agentName, err), duration)
		},
	}

	if err := s.agent.RunOnce(ctx, events); err != nil {
		duration := time.Since(startTime)
		s.monitor.RecordCriticalFailure(fmt.Errorf("%s failed: %w", agentName, err), duration)
		return fmt.Errorf("%s run failed: %w", agentName, err)
	}

	return nil
}

// cronLogger adapts the structured logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(keysAndValues []any) []logger.Field {
	fields := make([]logger.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields = append(fields, logger.Any(key, keysAndValues[i+1]))
	}
	return fields
}
