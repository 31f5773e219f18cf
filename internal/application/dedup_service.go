package application

import (
	"context"
	"strings"
	"time"

	"github.com/alorle/iptv-playlist/internal/m3u"
	"github.com/alorle/iptv-playlist/internal/port/driven"
	"github.com/alorle/iptv-playlist/logging"
	"github.com/alorle/iptv-playlist/metrics"
)

const stageDedup = "dedup"

// DedupReport summarizes one de-duplication pass.
type DedupReport struct {
	Kept    int
	Removed int
}

// DedupService keeps the first entry for every display name.
type DedupService struct {
	store  driven.DocumentStore
	header bool
	logger *logging.Logger
}

// NewDedupService creates a DedupService. When header is set the output
// opens with a bare #EXTM3U line.
func NewDedupService(store driven.DocumentStore, header bool, logger *logging.Logger) *DedupService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &DedupService{store: store, header: header, logger: logger}
}

// Name implements Stage.
func (s *DedupService) Name() string { return stageDedup }

// Dedup pairs each #EXTINF line with the next non-blank line and drops
// later entries whose display name was already seen. Entries without a
// display name are dropped too.
func (s *DedupService) Dedup(doc []byte) ([]byte, DedupReport) {
	var lines []string
	for _, line := range m3u.SplitLines(doc) {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	var b strings.Builder
	if s.header {
		b.WriteString(m3u.HeaderTag + "\n")
	}

	var report DedupReport
	seen := make(map[string]bool)
	for _, rec := range m3u.Records(lines) {
		name, ok := m3u.DisplayName(rec.Extinf)
		if !ok || seen[name] {
			report.Removed++
			continue
		}
		seen[name] = true
		report.Kept++
		b.WriteString(rec.Extinf + "\n" + rec.URL + "\n\n")
	}

	return []byte(b.String()), report
}

// Apply implements Stage.
func (s *DedupService) Apply(ctx context.Context, doc []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer observe(stageDedup, time.Now())

	metrics.RecordLinesRead(stageDedup, len(m3u.SplitLines(doc)))

	out, report := s.Dedup(doc)

	metrics.RecordDuplicates(report.Removed)
	s.logger.Info("removed duplicate channels", map[string]interface{}{
		"kept":    report.Kept,
		"removed": report.Removed,
	})

	return out, nil
}

// Run de-duplicates the playlist at input and writes the result to output.
func (s *DedupService) Run(ctx context.Context, input, output string) error {
	return runDocument(ctx, s.store, s, input, output)
}
