package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "motion_trends"

// Run outcome labels.
const (
	ResultSuccess  = "success"
	ResultPartial  = "partial"
	ResultCritical = "critical"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "agent_runs_total",
		Help:      "Agent runs by outcome",
	}, []string{"agent", "result"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "agent_run_duration_seconds",
		Help:      "Wall time of a single agent run",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"agent"})

	lastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "agent_last_success_timestamp_seconds",
		Help:      "Unix time of the last successful run",
	}, []string{"agent"})

	snapshotVideos = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "snapshot_videos",
		Help:      "Videos in the current snapshot by platform",
	}, []string{"agent", "platform"})

	snapshotGeneration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "snapshot_generation",
		Help:      "Number of snapshots installed since start",
	}, []string{"agent"})
)

// RecordSnapshot publishes the platform breakdown and generation of the
// snapshot an agent just produced or installed.
func RecordSnapshot(agent string, generation uint64, perPlatform map[string]int) {
	snapshotGeneration.WithLabelValues(agent).Set(float64(generation))
	for platform, n := range perPlatform {
		snapshotVideos.WithLabelValues(agent, platform).Set(float64(n))
	}
}
