// Package metrics registers Prometheus instruments for the terminal
// server. Exposed on the /metrics endpoint when enabled in config.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TerminalConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "arc4de",
		Subsystem: "terminal",
		Name:      "connections",
		Help:      "Number of currently attached terminal socket connections.",
	})

	TerminalConnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arc4de",
		Subsystem: "terminal",
		Name:      "connects_total",
		Help:      "Total number of successfully authenticated terminal connections.",
	})

	TerminalAuthFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arc4de",
		Subsystem: "terminal",
		Name:      "auth_failures_total",
		Help:      "Total number of rejected terminal socket authentications.",
	})

	TerminalFramesReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arc4de",
		Subsystem: "terminal",
		Name:      "frames_received_total",
		Help:      "Total number of frames received from terminal clients.",
	}, []string{"type"})

	TerminalOutputBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arc4de",
		Subsystem: "terminal",
		Name:      "output_bytes_total",
		Help:      "Total number of terminal output bytes sent to clients.",
	})

	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arc4de",
		Subsystem: "auth",
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts by result.",
	}, []string{"result"})
)
