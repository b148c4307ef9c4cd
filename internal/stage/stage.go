// Package stage defines the stage contracts the pipeline executes and
// the registry they are looked up from.
package stage

import (
	"context"
	"time"

	"github.com/fusesell/fusesell/internal/config"
	"github.com/fusesell/fusesell/pkg/schema"
)

// Stage names in canonical pipeline order.
const (
	NameDataAcquisition = "data_acquisition"
	NameDataPreparation = "data_preparation"
	NameLeadScoring     = "lead_scoring"
	NameInitialOutreach = "initial_outreach"
	NameFollowUp        = "follow_up"
)

// CanonicalOrder is the registered execution order for a normal run.
var CanonicalOrder = []string{
	NameDataAcquisition,
	NameDataPreparation,
	NameLeadScoring,
	NameInitialOutreach,
	NameFollowUp,
}

// Context is the shared state one pipeline run threads through its
// stages: the run configuration, the owning process id, and every
// completed stage's output keyed by stage name. Input carries the
// assembled input for the stage currently executing, built by the
// runner from a fixed stage-indexed mapping.
type Context struct {
	Config    *config.RunConfig
	ProcessID string
	Input     map[string]any
	Outputs   map[string]map[string]any
}

// NewContext creates a Context for a run.
func NewContext(cfg *config.RunConfig, processID string) *Context {
	return &Context{
		Config:    cfg,
		ProcessID: processID,
		Input:     map[string]any{},
		Outputs:   map[string]map[string]any{},
	}
}

// Output returns a prior stage's output, or nil when it has not run.
func (c *Context) Output(stageName string) map[string]any {
	return c.Outputs[stageName]
}

// Result is the outcome one stage invocation reports.
type Result struct {
	Stage     string                   `json:"stage"`
	Status    schema.StageResultStatus `json:"status"`
	Data      map[string]any           `json:"data,omitempty"`
	Action    schema.Action            `json:"action,omitempty"`
	Reason    string                   `json:"reason,omitempty"`
	Stop      bool                     `json:"stop,omitempty"`
	Error     *schema.Error            `json:"error,omitempty"`
	StartedAt time.Time                `json:"started_at"`
	Duration  time.Duration            `json:"duration"`
}

// Success reports whether the stage completed successfully.
func (r *Result) Success() bool {
	return r.Status == schema.StageResultSuccess
}

// Stage is a named unit of pipeline work.
type Stage interface {
	Name() string
	Execute(ctx context.Context, sc *Context) (*Result, error)
	Validate(sc *Context) bool
}

// ActionStage is implemented by outreach-capable stages that accept a
// direct action entry point in addition to sequential execution.
type ActionStage interface {
	Stage
	ExecuteAction(ctx context.Context, sc *Context, action schema.Action) (*Result, error)
}
