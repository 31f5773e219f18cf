package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alorle/iptv-playlist/internal/m3u"
	"github.com/alorle/iptv-playlist/internal/port/driven"
	"github.com/alorle/iptv-playlist/logging"
	"github.com/alorle/iptv-playlist/metrics"
)

const stageExtract = "extract"

// ExtractMode selects which line of a record the keyword is tested against.
type ExtractMode string

const (
	ExtractExtinf       ExtractMode = "extinf"         // keyword in the #EXTINF line
	ExtractURL          ExtractMode = "url"            // keyword in the URL line
	ExtractAny          ExtractMode = "any"            // keyword in either line
	ExtractExtinfAndURL ExtractMode = "extinf_and_url" // keyword in #EXTINF and URL keyword in URL
	ExtractExtinfOrURL  ExtractMode = "extinf_or_url"  // keyword in #EXTINF or URL keyword in URL
)

var (
	// ErrEmptyKeyword is returned when no keyword expression is configured.
	ErrEmptyKeyword = errors.New("extract keyword is required")
	// ErrEmptyURLKeyword is returned when a combined mode has no URL keyword.
	ErrEmptyURLKeyword = errors.New("extract url keyword is required for extinf_and_url and extinf_or_url")
)

// Combined reports whether the mode tests a second keyword against the URL line.
func (m ExtractMode) Combined() bool {
	return m == ExtractExtinfAndURL || m == ExtractExtinfOrURL
}

// ParseExtractMode converts a configuration value to an ExtractMode.
func ParseExtractMode(s string) (ExtractMode, error) {
	switch m := ExtractMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ExtractExtinf, ExtractURL, ExtractAny, ExtractExtinfAndURL, ExtractExtinfOrURL:
		return m, nil
	default:
		return "", fmt.Errorf("unknown extract mode %q", s)
	}
}

// ExtractOptions configures an ExtractService.
type ExtractOptions struct {
	Mode       ExtractMode
	Keyword    string // tested against #EXTINF lines, or URL lines in url mode
	URLKeyword string // second keyword of the combined modes
}

// ExtractService keeps the #EXTINF/URL records matching a keyword expression.
type ExtractService struct {
	store  driven.DocumentStore
	opts   ExtractOptions
	logger *logging.Logger
}

// NewExtractService creates a new ExtractService.
func NewExtractService(store driven.DocumentStore, opts ExtractOptions, logger *logging.Logger) (*ExtractService, error) {
	mode, err := ParseExtractMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	opts.Mode = mode
	if strings.TrimSpace(opts.Keyword) == "" {
		return nil, ErrEmptyKeyword
	}
	if mode.Combined() && strings.TrimSpace(opts.URLKeyword) == "" {
		return nil, ErrEmptyURLKeyword
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &ExtractService{store: store, opts: opts, logger: logger}, nil
}

// Name implements Stage.
func (s *ExtractService) Name() string { return stageExtract }

// Extract returns the matching records in document order, each distinct
// record once, every record followed by a blank line.
func (s *ExtractService) Extract(doc []byte) ([]byte, int) {
	seen := make(map[m3u.Record]bool)
	var b strings.Builder
	n := 0

	for _, rec := range m3u.Records(m3u.SplitLines(doc)) {
		if !s.matches(rec) || seen[rec] {
			continue
		}
		seen[rec] = true
		n++
		fmt.Fprintf(&b, "%s\n%s\n\n", rec.Extinf, rec.URL)
	}

	return []byte(b.String()), n
}

func (s *ExtractService) matches(rec m3u.Record) bool {
	kw, urlKW := s.opts.Keyword, s.opts.URLKeyword
	switch s.opts.Mode {
	case ExtractExtinf:
		return MatchKeyword(rec.Extinf, kw)
	case ExtractURL:
		return MatchKeyword(rec.URL, kw)
	case ExtractAny:
		return MatchKeyword(rec.Extinf, kw) || MatchKeyword(rec.URL, kw)
	case ExtractExtinfAndURL:
		return MatchKeyword(rec.Extinf, kw) && MatchKeyword(rec.URL, urlKW)
	case ExtractExtinfOrURL:
		return MatchKeyword(rec.Extinf, kw) || MatchKeyword(rec.URL, urlKW)
	}
	return false
}

// MatchKeyword tests text against a keyword expression. Surrounding double
// quotes are ignored; "a&&b" needs every term, "a||b" needs any term, and
// anything else is a plain substring. An empty expression never matches.
func MatchKeyword(text, expr string) bool {
	if expr == "" {
		return false
	}
	expr = strings.Trim(expr, `"`)

	switch {
	case strings.Contains(expr, "&&"):
		for _, term := range strings.Split(expr, "&&") {
			if !strings.Contains(text, strings.TrimSpace(term)) {
				return false
			}
		}
		return true
	case strings.Contains(expr, "||"):
		for _, term := range strings.Split(expr, "||") {
			if strings.Contains(text, strings.TrimSpace(term)) {
				return true
			}
		}
		return false
	default:
		return strings.Contains(text, expr)
	}
}

// Apply implements Stage.
func (s *ExtractService) Apply(ctx context.Context, doc []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer observe(stageExtract, time.Now())

	metrics.RecordLinesRead(stageExtract, len(m3u.SplitLines(doc)))

	out, n := s.Extract(doc)

	metrics.RecordExtracted(n)
	s.logger.Info("extracted records", map[string]interface{}{
		"mode":    string(s.opts.Mode),
		"records": n,
	})

	return out, nil
}

// Run extracts records from the playlist at input and writes them to output.
func (s *ExtractService) Run(ctx context.Context, input, output string) error {
	return runDocument(ctx, s.store, s, input, output)
}
