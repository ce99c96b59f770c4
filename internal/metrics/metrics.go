// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels for IngestUpdates.
const (
	ResultApplied  = "applied"
	ResultIgnored  = "ignored"
	ResultRejected = "rejected"
)

var (
	// IngestUpdates counts inbound updates by channel key and result.
	IngestUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dv8_ingest_updates_total",
		Help: "Inbound updates by channel and result",
	}, []string{"channel", "result"})

	// FramesPushed counts frames handed to an LED driver.
	FramesPushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dv8_frames_pushed_total",
		Help: "Frames pushed to the LED arrays",
	}, []string{"array"})

	// FramePushErrors counts failed driver writes.
	FramePushErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dv8_frame_push_errors_total",
		Help: "Failed frame pushes by array",
	}, []string{"array"})

	// PushDuration tracks how long a driver write takes.
	PushDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dv8_frame_push_duration_seconds",
		Help:    "Driver write latency",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	}, []string{"array"})

	// CurrentColor exposes the body color shared between the renderers.
	CurrentColor = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dv8_current_color",
		Help: "Current body color component (0..255)",
	}, []string{"channel"})

	// ConnectAttempts counts broker connection attempts by outcome.
	ConnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dv8_mqtt_connect_attempts_total",
		Help: "Broker connection attempts",
	}, []string{"result"})
)
