package driven

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alorle/iptv-playlist/internal/resolution"
	"github.com/alorle/iptv-playlist/logging"
)

// StatusError reports a server-side failure while following a chain.
// It is treated as transient by callers that retry.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
}

// RedirectResolverConfig configures a RedirectHTTPResolver.
type RedirectResolverConfig struct {
	Method       string        // HEAD or GET, defaults to HEAD
	Timeout      time.Duration // per request, defaults to 10s
	MaxRedirects int           // defaults to 10
	UserAgent    string
}

// RedirectHTTPResolver implements the URLResolver port by following
// Location headers hop by hop.
type RedirectHTTPResolver struct {
	method       string
	maxRedirects int
	userAgent    string
	httpClient   *http.Client
	logger       *logging.Logger
	now          func() time.Time
}

// NewRedirectHTTPResolver creates a resolver that never lets net/http follow
// redirects on its own, so every hop is counted and bounded here.
func NewRedirectHTTPResolver(cfg RedirectResolverConfig, logger *logging.Logger) *RedirectHTTPResolver {
	if cfg.Method == "" {
		cfg.Method = http.MethodHead
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 10
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &RedirectHTTPResolver{
		method:       strings.ToUpper(cfg.Method),
		maxRedirects: cfg.MaxRedirects,
		userAgent:    cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
		now:    time.Now,
	}
}

// Resolve follows the redirect chain starting at rawURL and returns where it ends.
func (r *RedirectHTTPResolver) Resolve(ctx context.Context, rawURL string) (resolution.Resolution, error) {
	current, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (current.Scheme != "http" && current.Scheme != "https") || current.Host == "" {
		return resolution.Resolution{}, fmt.Errorf("%w: %q", resolution.ErrInvalidURL, rawURL)
	}

	method := r.method
	for hops := 0; ; {
		resp, err := r.do(ctx, method, current.String())
		if err != nil {
			return resolution.Resolution{}, err
		}
		resp.Body.Close()

		switch {
		case isRedirect(resp.StatusCode):
			location := resp.Header.Get("Location")
			if location == "" {
				return r.finish(rawURL, current, hops, resp)
			}
			if hops >= r.maxRedirects {
				return resolution.Resolution{}, fmt.Errorf("%w: %s stopped after %d hops", resolution.ErrTooManyRedirects, rawURL, hops)
			}
			next, err := current.Parse(location)
			if err != nil {
				return resolution.Resolution{}, fmt.Errorf("%w: bad Location %q from %s", resolution.ErrInvalidURL, location, current)
			}
			r.logger.Debug("following redirect", map[string]interface{}{
				"from":   current.String(),
				"to":     next.String(),
				"status": resp.StatusCode,
			})
			current = next
			hops++

		case resp.StatusCode == http.StatusMethodNotAllowed && method == http.MethodHead:
			// Some origins reject HEAD outright; retry the same hop with GET.
			method = http.MethodGet

		case resp.StatusCode >= http.StatusInternalServerError:
			return resolution.Resolution{}, &StatusError{URL: current.String(), StatusCode: resp.StatusCode}

		default:
			return r.finish(rawURL, current, hops, resp)
		}
	}
}

func (r *RedirectHTTPResolver) do(ctx context.Context, method, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to request %s: %w", target, err)
	}
	return resp, nil
}

func (r *RedirectHTTPResolver) finish(rawURL string, final *url.URL, hops int, resp *http.Response) (resolution.Resolution, error) {
	finalURL := strings.TrimSpace(rawURL)
	if hops > 0 {
		finalURL = final.String()
	}
	return resolution.NewResolution(rawURL, finalURL, hops, resp.Header.Get("Content-Type"), r.now())
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}
