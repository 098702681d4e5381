package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	probeChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botkeeper",
			Subsystem: "probe",
			Name:      "checks_total",
			Help:      "Number of liveness checks by result (present, absent, check_failed).",
		}, []string{"result"},
	)
	probeSpawns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botkeeper",
			Subsystem: "probe",
			Name:      "spawns_total",
			Help:      "Number of start attempts of the watched program by outcome (ok, error).",
		}, []string{"outcome"},
	)
	probeLastCheck = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "botkeeper",
			Subsystem: "probe",
			Name:      "last_check_timestamp_seconds",
			Help:      "Unix time of the most recent liveness check.",
		},
	)
	downloadRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botkeeper",
			Subsystem: "download",
			Name:      "runs_total",
			Help:      "Number of download engine invocations by outcome (ok, error).",
		}, []string{"outcome"},
	)
	downloadURLs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "botkeeper",
			Subsystem: "download",
			Name:      "urls_total",
			Help:      "Number of URLs handed to the download engine.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{probeChecks, probeSpawns, probeLastCheck, downloadRuns, downloadURLs}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func ObserveCheck(result string, at time.Time) {
	if regOK.Load() {
		probeChecks.WithLabelValues(result).Inc()
		probeLastCheck.Set(float64(at.Unix()))
	}
}

func IncSpawn(err error) {
	if regOK.Load() {
		probeSpawns.WithLabelValues(outcome(err)).Inc()
	}
}

func ObserveDownload(urls int, err error) {
	if regOK.Load() {
		downloadRuns.WithLabelValues(outcome(err)).Inc()
		downloadURLs.Add(float64(urls))
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
