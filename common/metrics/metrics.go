package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "codex"

var (
	DecoderDecodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "decoder",
		Name:      "decodes_total",
		Help:      "Payloads decoded, by the tier that produced the result.",
	}, []string{"tier"})

	ChannelPhase = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "channel",
		Name:      "phase",
		Help:      "1 for the current phase of each channel manager, 0 otherwise.",
	}, []string{"phase"})

	ChannelReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "channel",
		Name:      "connect_attempts_total",
		Help:      "Channel connection attempts, by result.",
	}, []string{"result"})

	ChannelSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "channel",
		Name:      "sends_total",
		Help:      "Outbound channel events, by result.",
	}, []string{"result"})

	SandboxMounts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sandbox",
		Name:      "mounts_total",
		Help:      "Sandbox mirror operations, by result (ok, error, superseded).",
	}, []string{"result"})

	TreePersists = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "treesync",
		Name:      "persists_total",
		Help:      "File tree persistence calls, by result.",
	}, []string{"result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency, by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	AssistantTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assistant",
		Name:      "tasks_total",
		Help:      "Assistant tasks handled by the worker, by result.",
	}, []string{"result"})
)

// Result labels shared by the counters above.
const (
	ResultOK         = "ok"
	ResultError      = "error"
	ResultSuperseded = "superseded"
	ResultRejected   = "rejected"
)
