package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges refreshed on every stats collection; /metrics serves them from
// the default registry alongside the Go runtime collectors.
var (
	// DetectedSources tracks how many agentic tools have data on this host.
	DetectedSources = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gandalf",
		Subsystem: "sources",
		Name:      "detected_total",
		Help:      "Number of conversation sources detected on this host",
	})

	// WorkspacesTotal tracks discoverable workspaces across all sources.
	WorkspacesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gandalf",
		Subsystem: "workspaces",
		Name:      "total",
		Help:      "Number of discoverable workspaces across all detected sources",
	})

	// ConversationsTotal tracks conversations summed over workspace totals.
	ConversationsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gandalf",
		Subsystem: "workspaces",
		Name:      "conversations_total",
		Help:      "Number of conversations summed over all workspace totals",
	})
)
