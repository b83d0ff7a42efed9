package monitoring

import (
	"sync"
	"time"

	"motion-trends/shared/logger"
)

// Monitor tracks the outcome of the most recent agent run. Partial failures
// are logged and counted but do not affect health.
type Monitor struct {
	agent string
	log   logger.Logger

	mu             sync.RWMutex
	lastRunSuccess bool
	lastRunTime    time.Time
	lastSummary    string
	lastError      string
	runs           int
}

// Status is the JSON body served on /status.
type Status struct {
	Agent       string    `json:"agent"`
	Healthy     bool      `json:"healthy"`
	Runs        int       `json:"runs"`
	LastRunTime time.Time `json:"last_run_time,omitempty"`
	LastSummary string    `json:"last_summary,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	Summary     string    `json:"summary"`
}

func NewMonitor(agent string, log logger.Logger) *Monitor {
	return &Monitor{agent: agent, log: log.With(logger.String("agent", agent))}
}

func (m *Monitor) RecordSuccess(summary string, duration time.Duration) {
	now := time.Now()
	m.mu.Lock()
	m.lastRunSuccess = true
	m.lastRunTime = now
	m.lastSummary = summary
	m.lastError = ""
	m.runs++
	m.mu.Unlock()

	runsTotal.WithLabelValues(m.agent, ResultSuccess).Inc()
	runDuration.WithLabelValues(m.agent).Observe(duration.Seconds())
	lastSuccess.WithLabelValues(m.agent).Set(float64(now.Unix()))

	m.log.Info("Run completed successfully",
		logger.String("summary", summary),
		logger.Duration("duration", duration))
}

func (m *Monitor) RecordPartialFailure(err error, duration time.Duration) {
	runsTotal.WithLabelValues(m.agent, ResultPartial).Inc()

	m.log.Warn("Partial failure",
		logger.Error(err),
		logger.Duration("duration", duration))
}

func (m *Monitor) RecordCriticalFailure(err error, duration time.Duration) {
	m.mu.Lock()
	m.lastRunSuccess = false
	m.lastRunTime = time.Now()
	m.lastError = err.Error()
	m.runs++
	m.mu.Unlock()

	runsTotal.WithLabelValues(m.agent, ResultCritical).Inc()
	runDuration.WithLabelValues(m.agent).Observe(duration.Seconds())

	m.log.Error("Critical failure",
		logger.Error(err),
		logger.Duration("duration", duration))
}

func (m *Monitor) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastRunTime.IsZero() {
		return true // no runs yet
	}
	return m.lastRunSuccess
}

func (m *Monitor) GetStatusSummary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lastRunTime.IsZero() {
		return "No runs yet"
	}
	if m.lastRunSuccess {
		return "Last run: " + m.lastRunTime.Format("Jan 2 15:04")
	}
	return "Last run failed: " + m.lastRunTime.Format("Jan 2 15:04")
}

func (m *Monitor) Status() Status {
	summary := m.GetStatusSummary()
	healthy := m.IsHealthy()

	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{
		Agent:       m.agent,
		Healthy:     healthy,
		Runs:        m.runs,
		LastRunTime: m.lastRunTime,
		LastSummary: m.lastSummary,
		LastError:   m.lastError,
		Summary:     summary,
	}
}
