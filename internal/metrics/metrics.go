// Package metrics exposes Prometheus metrics about the activation daemon.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records daemon activity.
type Metrics struct {
	spawns         *prometheus.CounterVec
	spawnDuration  prometheus.Histogram
	spawnsInFlight prometheus.Gauge
	groupExits     *prometheus.CounterVec
	activations    *prometheus.CounterVec
	restarts       *prometheus.CounterVec
	logAppends     *prometheus.CounterVec
	snapshots      *prometheus.CounterVec
}

// New returns metrics registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		spawns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actd_group_spawns_total",
				Help: "Total number of attempts to start a group process",
			},
			[]string{"result"}, // "attached", "failed"
		),
		spawnDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name: "actd_group_spawn_duration_seconds",
				Help: "Time from starting a group process until it attaches or fails",
				Buckets: []float64{
					0.05,
					0.1,
					0.5,
					1,
					5,
					10,
					30, // default exec timeout
					60,
				},
			},
		),
		spawnsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "actd_group_spawns_in_flight",
				Help: "Number of group processes that have been started but not yet attached",
			},
		),
		groupExits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actd_group_exits_total",
				Help: "Total number of group process exits observed by a watchdog",
			},
			[]string{"reason"}, // "unexpected", "terminated"
		),
		activations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actd_activations_total",
				Help: "Total number of activation requests by outcome",
			},
			[]string{"result"}, // "cached", "activated", "failed"
		),
		restarts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actd_object_restarts_total",
				Help: "Total number of automatic object reactivations by outcome",
			},
			[]string{"result"}, // "ok", "failed"
		),
		logAppends: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actd_log_appends_total",
				Help: "Total number of records appended to the log by outcome",
			},
			[]string{"result"}, // "ok", "failed"
		),
		snapshots: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actd_log_snapshots_total",
				Help: "Total number of snapshots written by outcome",
			},
			[]string{"result"}, // "ok", "failed"
		),
	}
}

// SpawnStarted records that a group process has been started.
//
// It returns a function that must be called with the outcome once the process
// attaches or the attempt fails.
func (m *Metrics) SpawnStarted() func(error) {
	if m == nil {
		return func(error) {}
	}

	start := time.Now()
	m.spawnsInFlight.Inc()

	return func(err error) {
		m.spawnsInFlight.Dec()
		m.spawnDuration.Observe(time.Since(start).Seconds())
		m.spawns.WithLabelValues(result(err, "attached")).Inc()
	}
}

// GroupExited records that a watchdog observed a group process exit.
func (m *Metrics) GroupExited(expected bool) {
	if m == nil {
		return
	}

	reason := "unexpected"
	if expected {
		reason = "terminated"
	}

	m.groupExits.WithLabelValues(reason).Inc()
}

// Activation records the outcome of an activation request.
func (m *Metrics) Activation(cached bool, err error) {
	if m == nil {
		return
	}

	r := result(err, "activated")
	if cached {
		r = "cached"
	}

	m.activations.WithLabelValues(r).Inc()
}

// Restart records the outcome of an automatic reactivation.
func (m *Metrics) Restart(err error) {
	if m != nil {
		m.restarts.WithLabelValues(result(err, "ok")).Inc()
	}
}

// LogAppend records the outcome of a log append.
func (m *Metrics) LogAppend(err error) {
	if m != nil {
		m.logAppends.WithLabelValues(result(err, "ok")).Inc()
	}
}

// Snapshot records the outcome of a snapshot.
func (m *Metrics) Snapshot(err error) {
	if m != nil {
		m.snapshots.WithLabelValues(result(err, "ok")).Inc()
	}
}

func result(err error, ok string) string {
	if err != nil {
		return "failed"
	}
	return ok
}
