package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alorle/iptv-playlist/circuitbreaker"
	"github.com/alorle/iptv-playlist/internal/resolution"
)

func testResolveOptions() ResolveOptions {
	return ResolveOptions{
		Workers:        3,
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		CacheTTL:       time.Hour,
		Breaker:        circuitbreaker.Config{FailureThreshold: 100, Timeout: time.Minute},
	}
}

// redirectTo resolves every URL to final(url) after one hop.
func redirectTo(final func(string) string, contentType string) func(context.Context, string) (resolution.Resolution, error) {
	return func(ctx context.Context, rawURL string) (resolution.Resolution, error) {
		return resolution.NewResolution(rawURL, final(rawURL), 1, contentType, time.Now())
	}
}

func TestResolveService_Resolve(t *testing.T) {
	t.Run("replaces URL lines and keeps the rest", func(t *testing.T) {
		resolver := &mockURLResolver{
			resolveFunc: redirectTo(func(u string) string { return strings.Replace(u, "short", "cdn", 1) + ".m3u8" }, ""),
		}
		svc := NewResolveService(nil, resolver, nil, testResolveOptions(), nil)

		doc := "#EXTM3U\n  #EXTINF:-1,A  \n http://short/a \n\n#EXTINF:-1,B\nhttp://short/b\n#EXTINF:-1,A again\nhttp://short/a\nrtmp://not/http\n"
		out, report, err := svc.Resolve(context.Background(), []byte(doc))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		want := "#EXTM3U\n#EXTINF:-1,A\nhttp://cdn/a.m3u8\n\n#EXTINF:-1,B\nhttp://cdn/b.m3u8\n#EXTINF:-1,A again\nhttp://cdn/a.m3u8\nrtmp://not/http\n"
		if string(out) != want {
			t.Errorf("Resolve() =\n%q\nwant:\n%q", out, want)
		}
		if report.URLs != 2 || report.Resolved != 2 || report.VideoLike != 2 {
			t.Errorf("unexpected report %+v", report)
		}
		if resolver.callCount("http://short/a") != 1 {
			t.Errorf("duplicate URL resolved %d times, want 1", resolver.callCount("http://short/a"))
		}
	})

	t.Run("unchanged URLs are counted separately", func(t *testing.T) {
		resolver := &mockURLResolver{
			resolveFunc: func(ctx context.Context, rawURL string) (resolution.Resolution, error) {
				return resolution.NewResolution(rawURL, rawURL, 0, "text/html", time.Now())
			},
		}
		svc := NewResolveService(nil, resolver, nil, testResolveOptions(), nil)

		out, report, err := svc.Resolve(context.Background(), []byte("http://a/x"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if string(out) != "http://a/x" || report.Unchanged != 1 || report.VideoLike != 0 {
			t.Errorf("Resolve() = %q, %+v", out, report)
		}
	})

	t.Run("failures keep the original URL after retries", func(t *testing.T) {
		var attempts atomic.Int32
		resolver := &mockURLResolver{
			resolveFunc: func(ctx context.Context, rawURL string) (resolution.Resolution, error) {
				attempts.Add(1)
				return resolution.Resolution{}, errors.New("connection reset")
			},
		}
		svc := NewResolveService(nil, resolver, nil, testResolveOptions(), nil)

		out, report, err := svc.Resolve(context.Background(), []byte("http://down/a"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if string(out) != "http://down/a" || report.Failed != 1 {
			t.Errorf("Resolve() = %q, %+v", out, report)
		}
		if got := attempts.Load(); got != 3 {
			t.Errorf("attempts = %d, want 3 (1 + 2 retries)", got)
		}
	})

	t.Run("transient failures recover", func(t *testing.T) {
		var attempts atomic.Int32
		resolver := &mockURLResolver{
			resolveFunc: func(ctx context.Context, rawURL string) (resolution.Resolution, error) {
				if attempts.Add(1) == 1 {
					return resolution.Resolution{}, errors.New("timeout")
				}
				return resolution.NewResolution(rawURL, "http://final/a", 1, "", time.Now())
			},
		}
		svc := NewResolveService(nil, resolver, nil, testResolveOptions(), nil)

		out, report, _ := svc.Resolve(context.Background(), []byte("http://flaky/a"))
		if string(out) != "http://final/a" || report.Resolved != 1 {
			t.Errorf("Resolve() = %q, %+v", out, report)
		}
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		resolver := &mockURLResolver{
			resolveFunc: func(ctx context.Context, rawURL string) (resolution.Resolution, error) {
				return resolution.Resolution{}, fmt.Errorf("%w: loop", resolution.ErrTooManyRedirects)
			},
		}
		svc := NewResolveService(nil, resolver, nil, testResolveOptions(), nil)

		_, report, _ := svc.Resolve(context.Background(), []byte("http://loop/a"))
		if report.Failed != 1 {
			t.Errorf("unexpected report %+v", report)
		}
		if got := resolver.callCount("http://loop/a"); got != 1 {
			t.Errorf("resolver called %d times, want 1", got)
		}
	})

	t.Run("open circuit stops requests to a dead host", func(t *testing.T) {
		resolver := &mockURLResolver{
			resolveFunc: func(ctx context.Context, rawURL string) (resolution.Resolution, error) {
				return resolution.Resolution{}, errors.New("refused")
			},
		}
		opts := testResolveOptions()
		opts.Workers = 1
		opts.MaxRetries = 0
		opts.Breaker = circuitbreaker.Config{FailureThreshold: 2, Timeout: time.Hour}
		svc := NewResolveService(nil, resolver, nil, opts, nil)

		doc := "http://dead/1\nhttp://dead/2\nhttp://dead/3\nhttp://dead/4\n"
		_, report, _ := svc.Resolve(context.Background(), []byte(doc))
		if report.Failed != 4 {
			t.Errorf("unexpected report %+v", report)
		}

		total := 0
		for i := 1; i <= 4; i++ {
			total += resolver.callCount(fmt.Sprintf("http://dead/%d", i))
		}
		if total != 2 {
			t.Errorf("resolver called %d times, want 2 before the circuit opened", total)
		}
	})

	t.Run("cancelled context is an error", func(t *testing.T) {
		svc := NewResolveService(nil, &mockURLResolver{}, nil, testResolveOptions(), nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, _, err := svc.Resolve(ctx, []byte("http://a/1")); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestResolveService_Cache(t *testing.T) {
	now := time.Now()

	t.Run("fresh cache entries skip the network", func(t *testing.T) {
		cache := &mockResolutionRepository{
			findBySourceURLFunc: func(ctx context.Context, sourceURL string) (resolution.Resolution, error) {
				return resolution.NewResolution(sourceURL, "http://cached/final", 1, "video/mp2t", now.Add(-time.Minute))
			},
		}
		resolver := &mockURLResolver{}
		svc := NewResolveService(nil, resolver, cache, testResolveOptions(), nil)

		out, report, _ := svc.Resolve(context.Background(), []byte("http://a/1"))
		if string(out) != "http://cached/final" || report.Cached != 1 || report.VideoLike != 1 {
			t.Errorf("Resolve() = %q, %+v", out, report)
		}
		if resolver.callCount("http://a/1") != 0 {
			t.Error("resolver should not be called for a fresh cache hit")
		}
	})

	t.Run("stale entries are resolved again and stored", func(t *testing.T) {
		var saved []resolution.Resolution
		cache := &mockResolutionRepository{
			findBySourceURLFunc: func(ctx context.Context, sourceURL string) (resolution.Resolution, error) {
				return resolution.NewResolution(sourceURL, "http://old/final", 1, "", now.Add(-2*time.Hour))
			},
			saveFunc: func(ctx context.Context, r resolution.Resolution) error {
				saved = append(saved, r)
				return nil
			},
		}
		resolver := &mockURLResolver{resolveFunc: redirectTo(func(string) string { return "http://new/final" }, "")}
		svc := NewResolveService(nil, resolver, cache, testResolveOptions(), nil)

		out, report, _ := svc.Resolve(context.Background(), []byte("http://a/1"))
		if string(out) != "http://new/final" || report.Resolved != 1 {
			t.Errorf("Resolve() = %q, %+v", out, report)
		}
		if len(saved) != 1 || saved[0].FinalURL() != "http://new/final" {
			t.Errorf("expected new resolution to be cached, got %v", saved)
		}
	})

	t.Run("cache errors do not fail resolution", func(t *testing.T) {
		cache := &mockResolutionRepository{
			findBySourceURLFunc: func(ctx context.Context, sourceURL string) (resolution.Resolution, error) {
				return resolution.Resolution{}, errors.New("db closed")
			},
			saveFunc: func(ctx context.Context, r resolution.Resolution) error {
				return errors.New("db closed")
			},
		}
		resolver := &mockURLResolver{resolveFunc: redirectTo(func(string) string { return "http://x/final" }, "")}
		svc := NewResolveService(nil, resolver, cache, testResolveOptions(), nil)

		out, _, err := svc.Resolve(context.Background(), []byte("http://a/1"))
		if err != nil || string(out) != "http://x/final" {
			t.Errorf("Resolve() = %q, %v", out, err)
		}
	})
}

func TestResolveService_Run(t *testing.T) {
	store := newDocs(map[string]string{"migu.m3u": "#EXTINF:-1,A\nhttp://s/a\n"})
	resolver := &mockURLResolver{resolveFunc: redirectTo(func(string) string { return "http://cdn/a" }, "")}
	svc := NewResolveService(store, resolver, nil, testResolveOptions(), nil)

	if err := svc.Run(context.Background(), "migu.m3u", "final.m3u"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := string(store.written["final.m3u"]); got != "#EXTINF:-1,A\nhttp://cdn/a\n" {
		t.Errorf("written = %q", got)
	}
}
