package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentLinesRead tracks lines read from input documents per stage
	DocumentLinesRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptv_playlist_lines_read_total",
		Help: "Total number of lines read from input documents",
	}, []string{"stage"})

	// EntriesConverted tracks source list channels written as playlist entries
	EntriesConverted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iptv_playlist_entries_converted_total",
		Help: "Total number of channel entries converted to extended M3U",
	})

	// MalformedLines tracks source list lines that could not be parsed
	MalformedLines = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iptv_playlist_malformed_lines_total",
		Help: "Total number of malformed source list lines",
	})

	// LinksRewritten tracks bracketed-host URLs rewritten to the plain host
	LinksRewritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iptv_playlist_links_rewritten_total",
		Help: "Total number of stream links rewritten",
	})

	// FilterLines tracks lines kept or dropped by the group filter
	FilterLines = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptv_playlist_filter_lines_total",
		Help: "Total number of lines processed by the group filter",
	}, []string{"result"})

	// RecordsExtracted tracks records emitted by keyword extraction
	RecordsExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iptv_playlist_records_extracted_total",
		Help: "Total number of records matched by keyword extraction",
	})

	// DuplicatesRemoved tracks entries dropped by de-duplication
	DuplicatesRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iptv_playlist_duplicates_removed_total",
		Help: "Total number of duplicate entries removed",
	})

	// Resolutions tracks redirect resolutions by outcome
	// (resolved, unchanged, cached, failed)
	Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptv_playlist_resolutions_total",
		Help: "Total number of URL redirect resolutions by outcome",
	}, []string{"outcome"})

	// CircuitBreakerState tracks the current state of per-host circuit breakers
	// 0=closed, 1=open, 2=half-open
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "iptv_playlist_circuit_breaker_state",
		Help: "Current state of circuit breaker (0=closed, 1=open, 2=half-open)",
	}, []string{"host"})

	// StageDuration tracks how long each stage takes
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "iptv_playlist_stage_duration_seconds",
		Help:    "Duration of playlist processing stages",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
)

// Resolution outcomes
const (
	OutcomeResolved  = "resolved"
	OutcomeUnchanged = "unchanged"
	OutcomeCached    = "cached"
	OutcomeFailed    = "failed"
)

// RecordLinesRead adds n input lines for a stage
func RecordLinesRead(stage string, n int) {
	DocumentLinesRead.WithLabelValues(stage).Add(float64(n))
}

// RecordConversion records the result of one source list conversion
func RecordConversion(entries, malformed int) {
	EntriesConverted.Add(float64(entries))
	MalformedLines.Add(float64(malformed))
}

// RecordRewrites adds n rewritten links
func RecordRewrites(n int) {
	LinksRewritten.Add(float64(n))
}

// RecordFilter records kept and dropped line counts
func RecordFilter(kept, dropped int) {
	FilterLines.WithLabelValues("kept").Add(float64(kept))
	FilterLines.WithLabelValues("dropped").Add(float64(dropped))
}

// RecordExtracted adds n extracted records
func RecordExtracted(n int) {
	RecordsExtracted.Add(float64(n))
}

// RecordDuplicates adds n removed duplicates
func RecordDuplicates(n int) {
	DuplicatesRemoved.Add(float64(n))
}

// RecordResolution increments the resolution counter for an outcome
func RecordResolution(outcome string) {
	Resolutions.WithLabelValues(outcome).Inc()
}

// SetCircuitBreakerState updates the circuit breaker state metric
// state should be one of: "CLOSED" (0), "OPEN" (1), "HALF-OPEN" (2)
func SetCircuitBreakerState(host, state string) {
	var value float64
	switch state {
	case "CLOSED":
		value = 0
	case "OPEN":
		value = 1
	case "HALF-OPEN":
		value = 2
	}
	CircuitBreakerState.WithLabelValues(host).Set(value)
}

// ObserveStage records how long a stage took
func ObserveStage(stage string, seconds float64) {
	StageDuration.WithLabelValues(stage).Observe(seconds)
}

// WriteTextfile writes every registered metric to path in the text
// exposition format read by the node exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
