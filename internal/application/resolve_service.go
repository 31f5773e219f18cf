package application

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"

	"github.com/alorle/iptv-playlist/circuitbreaker"
	"github.com/alorle/iptv-playlist/internal/m3u"
	"github.com/alorle/iptv-playlist/internal/port/driven"
	"github.com/alorle/iptv-playlist/internal/resolution"
	"github.com/alorle/iptv-playlist/logging"
	"github.com/alorle/iptv-playlist/metrics"
)

const stageResolve = "resolve"

// streamURLPattern selects the lines whose redirect chain is resolved.
var streamURLPattern = regexp.MustCompile(`^https?://\S+`)

// ResolveOptions configures a ResolveService.
type ResolveOptions struct {
	Workers        int           // URLs resolved in parallel
	RateLimit      int           // requests per second across all workers, 0 is unlimited
	MaxRetries     int           // retries per URL after the first attempt
	InitialBackoff time.Duration // first retry delay
	MaxBackoff     time.Duration // retry delay cap
	CacheTTL       time.Duration // how long cached resolutions stay fresh
	Breaker        circuitbreaker.Config
}

// ResolveReport summarizes one resolution pass. Every unique URL is counted
// in exactly one of Resolved, Unchanged, Cached and Failed.
type ResolveReport struct {
	URLs      int
	Resolved  int
	Unchanged int
	Cached    int
	Failed    int
	VideoLike int
}

// ResolveService replaces stream URLs with the end of their redirect chains.
type ResolveService struct {
	store    driven.DocumentStore
	resolver driven.URLResolver
	cache    driven.ResolutionRepository
	opts     ResolveOptions
	limiter  ratelimit.Limiter
	breakers *circuitbreaker.Registry
	logger   *logging.Logger
	now      func() time.Time
}

// NewResolveService creates a new ResolveService. cache may be nil.
func NewResolveService(
	store driven.DocumentStore,
	resolver driven.URLResolver,
	cache driven.ResolutionRepository,
	opts ResolveOptions,
	logger *logging.Logger,
) *ResolveService {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}
	if logger == nil {
		logger = logging.Discard()
	}

	limiter := ratelimit.NewUnlimited()
	if opts.RateLimit > 0 {
		limiter = ratelimit.New(opts.RateLimit)
	}

	cbConfig := opts.Breaker
	cbConfig.Logger = logger

	return &ResolveService{
		store:    store,
		resolver: resolver,
		cache:    cache,
		opts:     opts,
		limiter:  limiter,
		breakers: circuitbreaker.NewRegistry(cbConfig),
		logger:   logger,
		now:      time.Now,
	}
}

// Name implements Stage.
func (s *ResolveService) Name() string { return stageResolve }

// Resolve trims every line of doc and replaces each stream URL line with
// its final URL. A URL that cannot be resolved is kept as is. The only
// error returned is the cancellation of ctx.
func (s *ResolveService) Resolve(ctx context.Context, doc []byte) ([]byte, ResolveReport, error) {
	lines := m3u.SplitLines(doc)

	var unique []string
	seen := make(map[string]bool)
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
		if streamURLPattern.MatchString(lines[i]) && !seen[lines[i]] {
			seen[lines[i]] = true
			unique = append(unique, lines[i])
		}
	}

	var (
		mu     sync.Mutex
		finals = make(map[string]string, len(unique))
		report = ResolveReport{URLs: len(unique)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for _, u := range unique {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			final, outcome, videoLike := s.resolveOne(gctx, u)

			mu.Lock()
			defer mu.Unlock()
			finals[u] = final
			switch outcome {
			case metrics.OutcomeResolved:
				report.Resolved++
			case metrics.OutcomeUnchanged:
				report.Unchanged++
			case metrics.OutcomeCached:
				report.Cached++
			default:
				report.Failed++
			}
			if videoLike {
				report.VideoLike++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, ResolveReport{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, ResolveReport{}, err
	}

	for i, line := range lines {
		if final, ok := finals[line]; ok {
			lines[i] = final
		}
	}

	return m3u.JoinLines(lines), report, nil
}

// resolveOne returns the final URL for u, the outcome label and whether
// the final URL looks like a video stream.
func (s *ResolveService) resolveOne(ctx context.Context, u string) (string, string, bool) {
	if cached, ok := s.lookupCache(ctx, u); ok {
		metrics.RecordResolution(metrics.OutcomeCached)
		return cached.FinalURL(), metrics.OutcomeCached, cached.VideoLike()
	}

	breaker := s.breakers.ForURL(u)

	var res resolution.Resolution
	operation := func() error {
		s.limiter.Take()
		err := breaker.Execute(func() error {
			var err error
			res, err = s.resolver.Resolve(ctx, u)
			return err
		})
		if err != nil && (resolution.IsPermanent(err) || errors.Is(err, circuitbreaker.ErrCircuitOpen)) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.RetryNotify(operation, s.newBackOff(ctx), func(err error, d time.Duration) {
		s.logger.LogResolveRetry(u, err, d)
	})
	if err != nil {
		s.logger.LogResolveFailed(u, err)
		metrics.RecordResolution(metrics.OutcomeFailed)
		return u, metrics.OutcomeFailed, false
	}

	s.storeCache(ctx, res)

	outcome := metrics.OutcomeUnchanged
	if res.Changed() {
		outcome = metrics.OutcomeResolved
		s.logger.Debug("resolved stream url", map[string]interface{}{
			"url":       u,
			"final":     res.FinalURL(),
			"redirects": res.Redirects(),
		})
	}
	metrics.RecordResolution(outcome)
	return res.FinalURL(), outcome, res.VideoLike()
}

func (s *ResolveService) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.InitialBackoff
	b.MaxInterval = s.opts.MaxBackoff

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(s.opts.MaxRetries, 0))), ctx)
}

func (s *ResolveService) lookupCache(ctx context.Context, u string) (resolution.Resolution, bool) {
	if s.cache == nil {
		return resolution.Resolution{}, false
	}

	cached, err := s.cache.FindBySourceURL(ctx, u)
	if err != nil {
		if !errors.Is(err, resolution.ErrNotFound) {
			s.logger.Warn("failed to read resolution cache", map[string]interface{}{"url": u, "error": err.Error()})
		}
		return resolution.Resolution{}, false
	}
	return cached, cached.FreshAt(s.now(), s.opts.CacheTTL)
}

func (s *ResolveService) storeCache(ctx context.Context, res resolution.Resolution) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Save(ctx, res); err != nil {
		s.logger.Warn("failed to store resolution", map[string]interface{}{"url": res.SourceURL(), "error": err.Error()})
	}
}

// Apply implements Stage.
func (s *ResolveService) Apply(ctx context.Context, doc []byte) ([]byte, error) {
	defer observe(stageResolve, time.Now())

	metrics.RecordLinesRead(stageResolve, len(m3u.SplitLines(doc)))

	out, report, err := s.Resolve(ctx, doc)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"urls":       report.URLs,
		"resolved":   report.Resolved,
		"unchanged":  report.Unchanged,
		"cached":     report.Cached,
		"failed":     report.Failed,
		"video_like": report.VideoLike,
	}
	if open := s.breakers.Open(); len(open) > 0 {
		fields["open_circuits"] = strings.Join(open, ",")
	}
	s.logger.Info("resolved stream urls", fields)

	return out, nil
}

// Run resolves the playlist at input and writes the result to output.
func (s *ResolveService) Run(ctx context.Context, input, output string) error {
	return runDocument(ctx, s.store, s, input, output)
}
