// Package metrics registers the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FilesGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "achgen_files_generated_total",
		Help: "Number of NACHA files rendered and stamped.",
	})

	EntriesEncoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "achgen_entries_encoded_total",
		Help: "Number of entry detail records written into files, offsets included.",
	})

	ReturnsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "achgen_returns_applied_total",
		Help: "Inbound return and NOC records applied to entries.",
	}, []string{"type"})

	ReturnsUnmatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "achgen_returns_unmatched_total",
		Help: "Inbound records whose trace number matched no known entry.",
	})
)
