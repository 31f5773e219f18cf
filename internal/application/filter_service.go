package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/alorle/iptv-playlist/internal/m3u"
	"github.com/alorle/iptv-playlist/internal/port/driven"
	"github.com/alorle/iptv-playlist/logging"
	"github.com/alorle/iptv-playlist/metrics"
)

const stageFilter = "filter"

// ErrEmptyGroup is returned when a FilterService is created without a group.
var ErrEmptyGroup = errors.New("filter group cannot be empty")

// FilterReport summarizes one filter pass.
type FilterReport struct {
	Kept    int
	Dropped int
}

// FilterService keeps the entries of a single group.
type FilterService struct {
	store  driven.DocumentStore
	target string
	logger *logging.Logger
}

// NewFilterService creates a FilterService keeping lines tagged
// group-title="<group>" and the line right after each of them.
func NewFilterService(store driven.DocumentStore, group string, logger *logging.Logger) (*FilterService, error) {
	if strings.TrimSpace(group) == "" {
		return nil, ErrEmptyGroup
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &FilterService{
		store:  store,
		target: `group-title="` + group + `"`,
		logger: logger,
	}, nil
}

// Name implements Stage.
func (s *FilterService) Name() string { return stageFilter }

// Filter keeps line i when it contains the target attribute or when line
// i-1 of the original document does. Kept lines are rejoined with "\n".
func (s *FilterService) Filter(doc []byte) ([]byte, FilterReport) {
	lines := m3u.SplitLines(doc)
	kept := make([]string, 0, len(lines))

	prevMatched := false
	for _, line := range lines {
		matched := strings.Contains(line, s.target)
		if matched || prevMatched {
			kept = append(kept, line)
		}
		prevMatched = matched
	}

	return m3u.JoinLines(kept), FilterReport{
		Kept:    len(kept),
		Dropped: len(lines) - len(kept),
	}
}

// Apply implements Stage.
func (s *FilterService) Apply(ctx context.Context, doc []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer observe(stageFilter, time.Now())

	metrics.RecordLinesRead(stageFilter, len(m3u.SplitLines(doc)))

	out, report := s.Filter(doc)

	metrics.RecordFilter(report.Kept, report.Dropped)
	s.logger.Info("filtered playlist", map[string]interface{}{
		"kept":    report.Kept,
		"dropped": report.Dropped,
	})

	return out, nil
}

// Run filters the playlist at input and writes the result to output.
func (s *FilterService) Run(ctx context.Context, input, output string) error {
	return runDocument(ctx, s.store, s, input, output)
}
