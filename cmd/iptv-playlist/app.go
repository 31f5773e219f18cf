package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/alorle/iptv-playlist/circuitbreaker"
	"github.com/alorle/iptv-playlist/config"
	"github.com/alorle/iptv-playlist/internal/adapter/driven"
	"github.com/alorle/iptv-playlist/internal/application"
	"github.com/alorle/iptv-playlist/internal/sourcelist"
	"github.com/alorle/iptv-playlist/logging"
	"github.com/alorle/iptv-playlist/metrics"
)

// app carries what every subcommand needs once the configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	store  *driven.DocumentFileStore
	runID  string
	start  time.Time

	closers []func() error
}

func newApp(cfg *config.Config, logOutput io.Writer) *app {
	runID := uuid.NewString()
	logger := logging.NewWithFormat(
		logging.ParseLogLevel(cfg.Log.Level),
		"",
		logging.Format(cfg.Log.Format),
		logOutput,
	).With(map[string]interface{}{"run_id": runID})

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  driven.NewDocumentFileStore(),
		runID:  runID,
		start:  time.Now(),
	}
}

func (a *app) component(name string) *logging.Logger {
	return a.logger.With(map[string]interface{}{"component": name})
}

// close releases resources opened while building stages and writes the
// metrics textfile if one is configured.
func (a *app) close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil

	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *app) convertService() (*application.ConvertService, error) {
	c := a.cfg.Convert
	policy, err := sourcelist.ParsePolicy(c.OnMalformed)
	if err != nil {
		return nil, err
	}
	return application.NewConvertService(a.store, application.ConvertOptions{
		GuideURL:    c.EPGURL,
		LogoBaseURL: c.LogoBaseURL,
		Prefixes:    c.NamePrefixes,
		OnMalformed: policy,
	}, a.component("convert"))
}

func (a *app) rewriteService() (*application.RewriteService, error) {
	return application.NewRewriteService(a.store, a.cfg.Rewrite.Host, a.component("rewrite"))
}

func (a *app) filterService() (*application.FilterService, error) {
	return application.NewFilterService(a.store, a.cfg.Filter.Group, a.component("filter"))
}

func (a *app) extractService() (*application.ExtractService, error) {
	c := a.cfg.Extract
	return application.NewExtractService(a.store, application.ExtractOptions{
		Mode:       application.ExtractMode(c.Mode),
		Keyword:    c.Keyword,
		URLKeyword: c.URLKeyword,
	}, a.component("extract"))
}

func (a *app) dedupService() *application.DedupService {
	return application.NewDedupService(a.store, a.cfg.Dedup.Header, a.component("dedup"))
}

func (a *app) resolveService() (*application.ResolveService, error) {
	c := a.cfg.Resolve
	if err := c.Validate(); err != nil {
		return nil, err
	}
	logger := a.component("resolve")

	resolver := driven.NewRedirectHTTPResolver(driven.RedirectResolverConfig{
		Method:       c.Method,
		Timeout:      c.Timeout,
		MaxRedirects: c.MaxRedirects,
		UserAgent:    c.UserAgent,
	}, logger)

	var cache *driven.ResolutionBoltDBRepository
	if c.CachePath != "" {
		db, err := bbolt.Open(c.CachePath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("failed to open resolution cache: %w", err)
		}
		a.closers = append(a.closers, db.Close)

		cache, err = driven.NewResolutionBoltDBRepository(db)
		if err != nil {
			return nil, fmt.Errorf("failed to create resolution cache: %w", err)
		}
	}

	opts := application.ResolveOptions{
		Workers:        c.Workers,
		RateLimit:      c.RateLimit,
		MaxRetries:     c.MaxRetries,
		InitialBackoff: c.InitialBackoff,
		MaxBackoff:     c.MaxBackoff,
		CacheTTL:       c.CacheTTL,
		Breaker: circuitbreaker.Config{
			FailureThreshold: c.CBFailureThreshold,
			Timeout:          c.CBTimeout,
			HalfOpenRequests: c.CBHalfOpenRequests,
		},
	}

	// A nil *ResolutionBoltDBRepository must not reach the service as a
	// non-nil interface.
	if cache == nil {
		return application.NewResolveService(a.store, resolver, nil, opts, logger), nil
	}
	return application.NewResolveService(a.store, resolver, cache, opts, logger), nil
}

// stage builds the named pipeline stage.
func (a *app) stage(name string) (application.Stage, error) {
	switch name {
	case "convert":
		return a.convertService()
	case "rewrite":
		return a.rewriteService()
	case "filter":
		return a.filterService()
	case "extract":
		return a.extractService()
	case "dedup":
		return a.dedupService(), nil
	case "resolve":
		return a.resolveService()
	default:
		return nil, fmt.Errorf("unknown stage %q", name)
	}
}

func (a *app) pipelineService(names []string) (*application.PipelineService, error) {
	stages := make([]application.Stage, 0, len(names))
	for _, name := range names {
		st, err := a.stage(name)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s stage: %w", name, err)
		}
		stages = append(stages, st)
	}
	return application.NewPipelineService(a.store, stages, a.component("pipeline"))
}

// defaultLogOutput is where logs go unless a test swaps it.
var defaultLogOutput io.Writer = os.Stderr
