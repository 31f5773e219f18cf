package driven

import (
	"context"

	"github.com/alorle/iptv-playlist/internal/resolution"
)

// ResolutionRepository defines the interface for cached redirect resolutions.
// This is a driven port implemented by concrete adapters (e.g., BoltDB).
type ResolutionRepository interface {
	// Save stores a resolution, replacing any previous one for the same source URL.
	Save(ctx context.Context, r resolution.Resolution) error

	// FindBySourceURL retrieves the resolution for a source URL. Returns
	// resolution.ErrNotFound if none is stored.
	FindBySourceURL(ctx context.Context, sourceURL string) (resolution.Resolution, error)

	// Count returns the number of stored resolutions.
	Count(ctx context.Context) (int, error)
}
