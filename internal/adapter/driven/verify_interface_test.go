package driven

import (
	port "github.com/alorle/iptv-playlist/internal/port/driven"
)

// Compile-time check that DocumentFileStore implements DocumentStore interface
var _ port.DocumentStore = (*DocumentFileStore)(nil)

// Compile-time check that ResolutionBoltDBRepository implements ResolutionRepository interface
var _ port.ResolutionRepository = (*ResolutionBoltDBRepository)(nil)

// Compile-time check that RedirectHTTPResolver implements URLResolver interface
var _ port.URLResolver = (*RedirectHTTPResolver)(nil)
