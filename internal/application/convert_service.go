package application

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/alorle/iptv-playlist/internal/channel"
	"github.com/alorle/iptv-playlist/internal/m3u"
	"github.com/alorle/iptv-playlist/internal/port/driven"
	"github.com/alorle/iptv-playlist/internal/sourcelist"
	"github.com/alorle/iptv-playlist/logging"
	"github.com/alorle/iptv-playlist/metrics"
)

const stageConvert = "convert"

// ConvertOptions configures a ConvertService.
type ConvertOptions struct {
	GuideURL    string   // x-tvg-url written in the header
	LogoBaseURL string   // logo URL is LogoBaseURL + derived name + ".png"
	Prefixes    []string // brand prefixes collapsed by name derivation
	OnMalformed sourcelist.MalformedPolicy
}

// ConvertReport summarizes one conversion.
type ConvertReport struct {
	Groups  int
	Entries int
	Skipped []int // 1-based line numbers of malformed channel lines
}

// ConvertService turns grouped source lists into extended M3U playlists.
type ConvertService struct {
	store       driven.DocumentStore
	parser      *sourcelist.Parser
	guideURL    string
	logoBaseURL string
	logger      *logging.Logger
}

// NewConvertService creates a new ConvertService.
func NewConvertService(store driven.DocumentStore, opts ConvertOptions, logger *logging.Logger) (*ConvertService, error) {
	deriver, err := channel.NewNameDeriver(opts.Prefixes)
	if err != nil {
		return nil, fmt.Errorf("invalid name prefixes: %w", err)
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &ConvertService{
		store:       store,
		parser:      sourcelist.NewParser(deriver, opts.OnMalformed),
		guideURL:    opts.GuideURL,
		logoBaseURL: opts.LogoBaseURL,
		logger:      logger,
	}, nil
}

// Name implements Stage.
func (s *ConvertService) Name() string { return stageConvert }

// Convert renders the source list src as an extended playlist: the header
// line followed by two lines per valid channel entry.
func (s *ConvertService) Convert(src []byte) ([]byte, ConvertReport, error) {
	res, err := s.parser.Parse(src)
	if err != nil {
		return nil, ConvertReport{}, err
	}

	enc := m3u.NewEncoder(s.guideURL, s.logoBaseURL)
	for _, e := range res.Entries {
		enc.AddEntry(e)
	}

	var buf bytes.Buffer
	if err := enc.Encode(&buf); err != nil {
		return nil, ConvertReport{}, fmt.Errorf("failed to encode playlist: %w", err)
	}

	report := ConvertReport{
		Groups:  len(res.Groups),
		Entries: len(res.Entries),
	}
	for _, m := range res.Malformed {
		s.logger.LogMalformedLine(m.Line, m.Text, m.Err)
		report.Skipped = append(report.Skipped, m.Line)
	}

	return buf.Bytes(), report, nil
}

// Apply implements Stage.
func (s *ConvertService) Apply(ctx context.Context, doc []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer observe(stageConvert, time.Now())

	metrics.RecordLinesRead(stageConvert, len(m3u.SplitLines(doc)))

	out, report, err := s.Convert(doc)
	if err != nil {
		return nil, err
	}

	metrics.RecordConversion(report.Entries, len(report.Skipped))
	s.logger.Info("converted source list", map[string]interface{}{
		"groups":  report.Groups,
		"entries": report.Entries,
		"skipped": len(report.Skipped),
	})

	return out, nil
}

// Run converts the source list at input and writes the playlist to output.
func (s *ConvertService) Run(ctx context.Context, input, output string) error {
	return runDocument(ctx, s.store, s, input, output)
}
