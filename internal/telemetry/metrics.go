package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Gate / scheduler

var QueueDepth = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "sovereign",
		Subsystem: "gate",
		Name:      "queue_depth",
		Help:      "Current number of waiters queued per model.",
	},
	[]string{"model_id"},
)

var SlotsInFlight = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "sovereign",
		Subsystem: "gate",
		Name:      "slots_in_flight",
		Help:      "Currently occupied slots per model.",
	},
	[]string{"model_id"},
)

var SlotsMax = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "sovereign",
		Subsystem: "gate",
		Name:      "slots_max",
		Help:      "Configured parallel-slot ceiling per model.",
	},
	[]string{"model_id"},
)

var QueueTimeoutsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sovereign",
		Subsystem: "gate",
		Name:      "queue_timeouts_total",
		Help:      "Total number of waiters evicted from the queue on deadline.",
	},
	[]string{"model_id"},
)

var DispatchDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "sovereign",
		Subsystem: "scheduler",
		Name:      "dispatch_duration_seconds",
		Help:      "End-to-end dispatch duration, from arrival to slot release, in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	},
	[]string{"model_id", "outcome"},
)

var DispatchesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sovereign",
		Subsystem: "scheduler",
		Name:      "dispatches_total",
		Help:      "Total number of dispatch attempts by outcome.",
	},
	[]string{"model_id", "outcome"},
)

// Worker supervisor

var WorkersRunning = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "sovereign",
		Subsystem: "supervisor",
		Name:      "workers_running",
		Help:      "Number of worker containers currently managed and running.",
	},
)

var WorkerStartsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sovereign",
		Subsystem: "supervisor",
		Name:      "worker_starts_total",
		Help:      "Total number of worker start attempts by outcome.",
	},
	[]string{"outcome"},
)

var WorkerStopsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sovereign",
		Subsystem: "supervisor",
		Name:      "worker_stops_total",
		Help:      "Total number of worker stop operations.",
	},
	[]string{"outcome"},
)

// Reservation engine

var ReservationTickDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "sovereign",
		Subsystem: "reservation",
		Name:      "tick_duration_seconds",
		Help:      "Duration of each reservation engine tick transaction.",
		Buckets:   prometheus.DefBuckets,
	},
)

var ReservationTransitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sovereign",
		Subsystem: "reservation",
		Name:      "transitions_total",
		Help:      "Total number of reservation state transitions by target state.",
	},
	[]string{"to_status"},
)

// Host metrics broadcaster

var HostCPUUtilization = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "sovereign",
		Subsystem: "host",
		Name:      "cpu_utilization_ratio",
		Help:      "Host CPU utilization as a fraction of total capacity.",
	},
)

var HostFilesystemFreeBytes = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "sovereign",
		Subsystem: "host",
		Name:      "filesystem_free_bytes",
		Help:      "Free bytes on the filesystem backing a sampled mount path.",
	},
	[]string{"mount"},
)

var BroadcastSubscribers = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "sovereign",
		Subsystem: "broadcaster",
		Name:      "subscribers",
		Help:      "Current number of connected metrics/event subscribers.",
	},
)

var BroadcastLaggedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sovereign",
		Subsystem: "broadcaster",
		Name:      "lagged_total",
		Help:      "Total number of times a subscriber fell behind and was marked lagged.",
	},
	[]string{"kind"},
)

// Usage log

var UsageRecordsDroppedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "sovereign",
		Subsystem: "usagelog",
		Name:      "records_dropped_total",
		Help:      "Total number of usage records dropped because the write buffer was full.",
	},
)

// All returns all Sovereign Engine-specific metrics for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		QueueDepth,
		SlotsInFlight,
		SlotsMax,
		QueueTimeoutsTotal,
		DispatchDuration,
		DispatchesTotal,
		WorkersRunning,
		WorkerStartsTotal,
		WorkerStopsTotal,
		ReservationTickDuration,
		ReservationTransitionsTotal,
		HostCPUUtilization,
		HostFilesystemFreeBytes,
		BroadcastSubscribers,
		BroadcastLaggedTotal,
		UsageRecordsDroppedTotal,
	}
}
