package stages

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fusesell/fusesell/internal/stage"
	"github.com/fusesell/fusesell/pkg/schema"
)

// Fetcher pulls raw prospect data from an external source. Scraping
// and OCR mechanics live behind this interface, outside the core.
type Fetcher interface {
	Fetch(ctx context.Context, input json.RawMessage) (map[string]any, error)
}

// inputFetcher is the default Fetcher: it treats the run config's
// input_data payload as the already-fetched document.
type inputFetcher struct{}

func (inputFetcher) Fetch(ctx context.Context, input json.RawMessage) (map[string]any, error) {
	if len(input) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "no input_data supplied and no fetcher configured")
	}
	var data map[string]any
	if err := json.Unmarshal(input, &data); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "input_data is not a JSON object").WithCause(err)
	}
	return data, nil
}

// DataAcquisition gathers the raw prospect document the rest of the
// pipeline works from.
type DataAcquisition struct {
	deps    Deps
	fetcher Fetcher
}

// NewDataAcquisition creates the stage. A nil fetcher falls back to
// reading the run config's input_data.
func NewDataAcquisition(deps Deps, fetcher Fetcher) *DataAcquisition {
	if fetcher == nil {
		fetcher = inputFetcher{}
	}
	return &DataAcquisition{deps: deps, fetcher: fetcher}
}

func (s *DataAcquisition) Name() string { return stage.NameDataAcquisition }

func (s *DataAcquisition) Validate(sc *stage.Context) bool {
	return sc != nil && sc.Config != nil
}

func (s *DataAcquisition) Execute(ctx context.Context, sc *stage.Context) (*stage.Result, error) {
	started := s.deps.now()

	data, err := s.fetcher.Fetch(ctx, sc.Config.InputData)
	if err != nil {
		return &stage.Result{
			Stage:     s.Name(),
			Status:    schema.StageResultError,
			Error:     wrapStageError(err, s.Name()),
			StartedAt: started,
			Duration:  time.Since(started),
		}, nil
	}

	return &stage.Result{
		Stage:     s.Name(),
		Status:    schema.StageResultSuccess,
		Data:      map[string]any{"data": data},
		StartedAt: started,
		Duration:  time.Since(started),
	}, nil
}

// wrapStageError normalizes any error into the structured envelope
// with the stage recorded.
func wrapStageError(err error, stageName string) *schema.Error {
	if serr, ok := err.(*schema.Error); ok {
		if serr.Stage == "" {
			serr.Stage = stageName
		}
		return serr
	}
	return schema.NewError(schema.ErrCodeStageExecution, err.Error()).WithStage(stageName).WithCause(err)
}
