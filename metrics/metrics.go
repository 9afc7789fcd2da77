package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const jobName = "reddit_digest"

// Metrics collects the outcome of a single run so it can be pushed to a
// Pushgateway before the process exits. lastSuccess and lastFailure have no
// series until set, so a push only carries the one matching the outcome.
type Metrics struct {
	registry     *prometheus.Registry
	postsFetched prometheus.Gauge
	runDuration  prometheus.Gauge
	lastSuccess  *prometheus.GaugeVec
	lastFailure  *prometheus.GaugeVec
}

func New(subreddit string) *Metrics {
	labels := prometheus.Labels{"subreddit": subreddit}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		postsFetched: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "reddit_digest_posts_fetched",
			Help:        "Number of posts in the last normalized table.",
			ConstLabels: labels,
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "reddit_digest_run_duration_seconds",
			Help:        "Wall time of the last run.",
			ConstLabels: labels,
		}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "reddit_digest_last_success_timestamp_seconds",
			Help:        "Unix time of the last run that completed every stage.",
			ConstLabels: labels,
		}, nil),
		lastFailure: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "reddit_digest_last_failure_timestamp_seconds",
			Help:        "Unix time of the last failed run, labelled by the stage that stopped it.",
			ConstLabels: labels,
		}, []string{"stage"}),
	}
	m.registry.MustRegister(m.postsFetched, m.runDuration, m.lastSuccess, m.lastFailure)
	return m
}

func (m *Metrics) PostsFetched(n int) {
	m.postsFetched.Set(float64(n))
}

// StageFailed marks stage as the one that stopped this run.
func (m *Metrics) StageFailed(stage string) {
	m.lastFailure.Reset()
	m.lastFailure.WithLabelValues(stage).SetToCurrentTime()
}

// RunFinished records the run duration and, on success, the completion time.
func (m *Metrics) RunFinished(started time.Time, succeeded bool) {
	m.runDuration.Set(time.Since(started).Seconds())
	if succeeded {
		m.lastSuccess.WithLabelValues().SetToCurrentTime()
	}
}

// Push sends the run's metrics to the Pushgateway at url. Metric names absent
// from this run keep the values an earlier run pushed.
func (m *Metrics) Push(ctx context.Context, url string) error {
	err := push.New(url, jobName).
		Gatherer(m.registry).
		AddContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
