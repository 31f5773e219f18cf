package driven

import (
	"context"

	"github.com/alorle/iptv-playlist/internal/resolution"
)

// URLResolver follows the redirect chain of a stream URL.
// This is a driven port implemented by concrete adapters (e.g., HTTP).
type URLResolver interface {
	// Resolve returns where rawURL ends up after following its redirects.
	Resolve(ctx context.Context, rawURL string) (resolution.Resolution, error)
}
