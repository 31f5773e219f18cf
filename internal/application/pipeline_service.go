package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alorle/iptv-playlist/internal/port/driven"
	"github.com/alorle/iptv-playlist/logging"
)

var (
	// ErrNoStages is returned for a pipeline without stages.
	ErrNoStages = errors.New("pipeline has no stages")
	// ErrConvertNotFirst is returned when convert appears after another stage;
	// its input is a source list, not a playlist.
	ErrConvertNotFirst = errors.New("convert can only be the first pipeline stage")
)

// PipelineService runs several stages over one document in memory:
// one read, the stages in order, one write.
type PipelineService struct {
	store  driven.DocumentStore
	stages []Stage
	logger *logging.Logger
}

// NewPipelineService creates a new PipelineService.
func NewPipelineService(store driven.DocumentStore, stages []Stage, logger *logging.Logger) (*PipelineService, error) {
	if len(stages) == 0 {
		return nil, ErrNoStages
	}
	for i, st := range stages {
		if st.Name() == stageConvert && i != 0 {
			return nil, ErrConvertNotFirst
		}
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &PipelineService{store: store, stages: stages, logger: logger}, nil
}

// Name implements Stage.
func (p *PipelineService) Name() string { return "pipeline" }

// Stages returns the stage names in execution order.
func (p *PipelineService) Stages() []string {
	names := make([]string, len(p.stages))
	for i, st := range p.stages {
		names[i] = st.Name()
	}
	return names
}

// Apply feeds doc through every stage in order.
func (p *PipelineService) Apply(ctx context.Context, doc []byte) ([]byte, error) {
	p.logger.Info("running pipeline", map[string]interface{}{"stages": strings.Join(p.Stages(), ",")})

	for _, st := range p.stages {
		out, err := st.Apply(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("%s stage: %w", st.Name(), err)
		}
		doc = out
	}
	return doc, nil
}

// Run reads input once, applies every stage and writes the result to output.
func (p *PipelineService) Run(ctx context.Context, input, output string) error {
	return runDocument(ctx, p.store, p, input, output)
}
