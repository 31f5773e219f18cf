package application

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/alorle/iptv-playlist/internal/m3u"
	"github.com/alorle/iptv-playlist/internal/port/driven"
	"github.com/alorle/iptv-playlist/logging"
	"github.com/alorle/iptv-playlist/metrics"
)

const stageRewrite = "rewrite"

// ErrEmptyHost is returned when a RewriteService is created without a host.
var ErrEmptyHost = errors.New("rewrite host cannot be empty")

// RewriteService strips bracketed address and port prefixes from links
// served through a fixed host, turning
// http://[2001:db8::1]:8080/<host>/ch1 into http://<host>/ch1.
type RewriteService struct {
	store       driven.DocumentStore
	pattern     *regexp.Regexp
	replacement []byte
	logger      *logging.Logger
}

// NewRewriteService creates a new RewriteService for host.
func NewRewriteService(store driven.DocumentStore, host string, logger *logging.Logger) (*RewriteService, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, ErrEmptyHost
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &RewriteService{
		store:       store,
		pattern:     regexp.MustCompile(`http://\[.*?\]:\d+/` + regexp.QuoteMeta(host) + `/`),
		replacement: []byte("http://" + host + "/"),
		logger:      logger,
	}, nil
}

// Name implements Stage.
func (s *RewriteService) Name() string { return stageRewrite }

// Rewrite replaces every match in doc and returns the result with the
// number of links rewritten. Unmatched text passes through unchanged.
func (s *RewriteService) Rewrite(doc []byte) ([]byte, int) {
	count := 0
	out := s.pattern.ReplaceAllFunc(doc, func([]byte) []byte {
		count++
		return s.replacement
	})
	return out, count
}

// Apply implements Stage.
func (s *RewriteService) Apply(ctx context.Context, doc []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer observe(stageRewrite, time.Now())

	metrics.RecordLinesRead(stageRewrite, len(m3u.SplitLines(doc)))

	out, count := s.Rewrite(doc)

	metrics.RecordRewrites(count)
	s.logger.Info("rewrote links", map[string]interface{}{"rewritten": count})

	return out, nil
}

// Run rewrites the playlist at input and writes the result to output.
func (s *RewriteService) Run(ctx context.Context, input, output string) error {
	return runDocument(ctx, s.store, s, input, output)
}
