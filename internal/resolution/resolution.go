package resolution

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrEmptySourceURL   = errors.New("resolution source URL cannot be empty")
	ErrEmptyFinalURL    = errors.New("resolution final URL cannot be empty")
	ErrInvalidTimestamp = errors.New("resolution timestamp must not be zero")
	ErrNotFound         = errors.New("resolution not found")

	// ErrTooManyRedirects and ErrInvalidURL are permanent: retrying the
	// same URL cannot succeed.
	ErrTooManyRedirects = errors.New("too many redirects")
	ErrInvalidURL       = errors.New("invalid stream URL")
)

// Resolution is the end of a redirect chain for one stream URL.
// It is an immutable value object.
type Resolution struct {
	sourceURL   string
	finalURL    string
	redirects   int
	contentType string
	resolvedAt  time.Time
}

// NewResolution creates a resolution with validation.
func NewResolution(sourceURL, finalURL string, redirects int, contentType string, resolvedAt time.Time) (Resolution, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return Resolution{}, ErrEmptySourceURL
	}
	finalURL = strings.TrimSpace(finalURL)
	if finalURL == "" {
		return Resolution{}, ErrEmptyFinalURL
	}
	if resolvedAt.IsZero() {
		return Resolution{}, ErrInvalidTimestamp
	}
	return Resolution{
		sourceURL:   sourceURL,
		finalURL:    finalURL,
		redirects:   redirects,
		contentType: strings.ToLower(strings.TrimSpace(contentType)),
		resolvedAt:  resolvedAt,
	}, nil
}

// ReconstructResolution rebuilds a Resolution from persisted state.
// Intended for repository adapters only; it bypasses validation.
func ReconstructResolution(sourceURL, finalURL string, redirects int, contentType string, resolvedAt time.Time) Resolution {
	return Resolution{
		sourceURL:   sourceURL,
		finalURL:    finalURL,
		redirects:   redirects,
		contentType: contentType,
		resolvedAt:  resolvedAt,
	}
}

func (r Resolution) SourceURL() string     { return r.sourceURL }
func (r Resolution) FinalURL() string      { return r.finalURL }
func (r Resolution) Redirects() int        { return r.redirects }
func (r Resolution) ContentType() string   { return r.contentType }
func (r Resolution) ResolvedAt() time.Time { return r.resolvedAt }

// Changed reports whether the chain ended somewhere other than where it began.
func (r Resolution) Changed() bool {
	return r.finalURL != r.sourceURL
}

// FreshAt reports whether the resolution is younger than ttl at time now.
func (r Resolution) FreshAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.resolvedAt) < ttl
}

var videoContentTypes = []string{
	"video/",
	"application/octet-stream",
	"application/vnd.apple.mpegurl",
	"application/x-mpegurl",
}

// VideoLike reports whether the final URL serves media or an HLS playlist.
func (r Resolution) VideoLike() bool {
	for _, ct := range videoContentTypes {
		if strings.Contains(r.contentType, ct) {
			return true
		}
	}
	return strings.HasSuffix(strings.ToLower(r.finalURL), ".m3u8")
}

// IsPermanent reports whether err means resolving the same URL again
// cannot succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInvalidURL) ||
		errors.Is(err, ErrTooManyRedirects) ||
		errors.Is(err, context.Canceled)
}
