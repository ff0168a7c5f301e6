// Package metrics exposes Prometheus collectors for the supervision
// daemon.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	daemonStarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vigil",
			Subsystem: "daemon",
			Name:      "starts_total",
			Help:      "Number of supervised workload starts.",
		},
	)
	daemonStops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vigil",
			Subsystem: "daemon",
			Name:      "stops_total",
			Help:      "Number of supervised workload stops.",
		},
	)
	daemonRestarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vigil",
			Subsystem: "daemon",
			Name:      "restarts_total",
			Help:      "Number of automatic workload restarts.",
		},
	)
	daemonErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vigil",
			Subsystem: "daemon",
			Name:      "errors_total",
			Help:      "Number of workload errors recorded by the monitor.",
		},
	)
	healthState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vigil",
			Subsystem: "daemon",
			Name:      "health_state",
			Help:      "Current health verdict (1 = active state, 0 = inactive).",
		}, []string{"status"},
	)
	cpuPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vigil",
			Subsystem: "daemon",
			Name:      "cpu_percent",
			Help:      "Sampled CPU usage of the supervised process.",
		},
	)
	memoryMB = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vigil",
			Subsystem: "daemon",
			Name:      "memory_mb",
			Help:      "Sampled resident memory of the supervised process in MB.",
		},
	)
	heartbeatAge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vigil",
			Subsystem: "daemon",
			Name:      "heartbeat_age_seconds",
			Help:      "Seconds since the last recorded heartbeat.",
		},
	)
)

// Register registers all collectors with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are
// no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		daemonStarts, daemonStops, daemonRestarts, daemonErrors,
		healthState, cpuPercent, memoryMB, heartbeatAge,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
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

// Handler serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has been called.

func IncStart() {
	if regOK.Load() {
		daemonStarts.Inc()
	}
}

func IncStop() {
	if regOK.Load() {
		daemonStops.Inc()
	}
}

func IncRestart() {
	if regOK.Load() {
		daemonRestarts.Inc()
	}
}

func IncError() {
	if regOK.Load() {
		daemonErrors.Inc()
	}
}

// SetHealthState marks status as the active verdict and clears the rest.
func SetHealthState(status string) {
	if !regOK.Load() {
		return
	}
	for _, s := range []string{"healthy", "warning", "critical"} {
		v := 0.0
		if s == status {
			v = 1.0
		}
		healthState.WithLabelValues(s).Set(v)
	}
}

func SetResourceSample(cpu, memMB *float64) {
	if !regOK.Load() {
		return
	}
	if cpu != nil {
		cpuPercent.Set(*cpu)
	}
	if memMB != nil {
		memoryMB.Set(*memMB)
	}
}

func SetHeartbeatAge(seconds float64) {
	if regOK.Load() {
		heartbeatAge.Set(seconds)
	}
}
