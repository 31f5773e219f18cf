// Package application holds the playlist processing services. Each service
// is a Stage: a pure transformation of one in-memory document, plus a Run
// method that reads the source and writes the result through a DocumentStore.
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/alorle/iptv-playlist/internal/port/driven"
	"github.com/alorle/iptv-playlist/metrics"
)

// Stage transforms one playlist document into another.
type Stage interface {
	// Name identifies the stage in logs, metrics and pipeline configuration.
	Name() string

	// Apply transforms doc. It never performs file I/O.
	Apply(ctx context.Context, doc []byte) ([]byte, error)
}

// runDocument reads input, applies stage and writes the result to output.
// Nothing is written if reading or the transformation fails.
func runDocument(ctx context.Context, store driven.DocumentStore, stage Stage, input, output string) error {
	src, err := store.Read(ctx, input)
	if err != nil {
		return err
	}

	out, err := stage.Apply(ctx, src)
	if err != nil {
		return fmt.Errorf("%s failed: %w", stage.Name(), err)
	}

	return store.Write(ctx, output, out)
}

// observe records the duration of a stage that started at start.
func observe(stage string, start time.Time) {
	metrics.ObserveStage(stage, time.Since(start).Seconds())
}
