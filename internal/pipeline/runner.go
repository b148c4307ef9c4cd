// Package pipeline sequences the outreach stages for one prospect and
// provides the continuation entry point over prior runs.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fusesell/fusesell/internal/config"
	"github.com/fusesell/fusesell/internal/logging"
	"github.com/fusesell/fusesell/internal/stage"
	"github.com/fusesell/fusesell/internal/store"
	"github.com/fusesell/fusesell/pkg/schema"
)

// Result is the consolidated outcome of one pipeline invocation.
type Result struct {
	ProcessID        string               `json:"process_id"`
	Status           schema.ProcessStatus `json:"status"`
	StageResults     []*stage.Result      `json:"stage_results"`
	Duration         time.Duration        `json:"duration"`
	StagesExecuted   int                  `json:"stages_executed"`
	StagesSuccessful int                  `json:"stages_successful"`
	Error            *schema.Error        `json:"error,omitempty"`
}

// Runner executes the registered stage sequence, or a single
// continuation action against a prior process.
type Runner struct {
	store     store.Store
	registry  *stage.Registry
	validator *config.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(s store.Store, registry *stage.Registry, validator *config.Validator, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:     s,
		registry:  registry,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// Execute validates the config and runs either a normal sequential
// pass or a continuation, depending on continue_execution.
func (r *Runner) Execute(ctx context.Context, cfg *config.RunConfig) (*Result, error) {
	cfg.Normalize()
	if err := r.validator.Validate(cfg); err != nil {
		return nil, err
	}

	if cfg.IsContinuation() {
		return r.executeContinuation(ctx, cfg)
	}
	return r.executeRun(ctx, cfg)
}

func (r *Runner) executeRun(ctx context.Context, cfg *config.RunConfig) (*Result, error) {
	started := r.now()

	requestBody, _ := json.Marshal(cfg)
	process := &store.Process{
		ID:          cfg.ExecutionID,
		OrgID:       cfg.OrgID,
		TeamID:      cfg.TeamID,
		Status:      schema.ProcessStatusRunning,
		RequestBody: requestBody,
	}
	if err := r.store.CreateProcess(ctx, process); err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "create process").WithCause(err)
	}

	ctx = logging.WithIDs(ctx, process.ID, "", cfg.OrgID)
	log := logging.LogWith(ctx, r.logger)

	plan := r.buildPlan(cfg)
	log.InfoContext(ctx, "pipeline run starting", slog.Int("stages", len(plan)))

	sc := stage.NewContext(cfg, process.ID)
	result := &Result{ProcessID: process.ID, StageResults: make([]*stage.Result, 0, len(plan))}

	var prev *stage.Result
	for i, st := range plan {
		stageCtx := logging.WithStageName(ctx, st.Name())

		// Pre-condition: the first stage always runs; every later one
		// needs its immediate predecessor to have succeeded. prev is
		// left pointing at the stage that broke the chain so every
		// subsequent skip names it.
		if i > 0 && (prev == nil || !prev.Success()) {
			skipped := &stage.Result{
				Stage:     st.Name(),
				Status:    schema.StageResultSkipped,
				Reason:    fmt.Sprintf("predecessor %s did not succeed", prev.Stage),
				StartedAt: r.now(),
			}
			result.StageResults = append(result.StageResults, skipped)
			continue
		}

		sc.Input = buildInput(st.Name(), sc)

		op := r.beginOperation(stageCtx, process.ID, st.Name(), i, len(result.StageResults), sc.Input)
		res := r.invoke(stageCtx, st, sc)
		r.finishOperation(stageCtx, op, res)
		r.advanceRuntimeIndex(stageCtx, process.ID, i+1)

		result.StageResults = append(result.StageResults, res)
		result.StagesExecuted++
		if res.Success() {
			result.StagesSuccessful++
			sc.Outputs[st.Name()] = res.Data
		}
		prev = res

		// Post-conditions.
		if res.Stop {
			logging.LogWith(stageCtx, r.logger).InfoContext(stageCtx, "stage requested stop", slog.String("reason", res.Reason))
			break
		}
		if st.Name() == stage.NameInitialOutreach && res.Success() && res.Action == schema.ActionDraftWrite {
			// Human-in-the-loop gate: a fresh outreach draft waits for
			// review before anything else happens.
			log.InfoContext(stageCtx, "pausing after outreach draft for review")
			break
		}
	}

	result.Status = aggregateStatus(result.StageResults)
	result.Duration = r.now().Sub(started)
	for _, res := range result.StageResults {
		if res.Error != nil {
			result.Error = res.Error
			break
		}
	}

	r.finishProcess(ctx, process.ID, result.Status)
	log.InfoContext(ctx, "pipeline run finished",
		slog.String("status", string(result.Status)),
		slog.Int("executed", result.StagesExecuted),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

// buildPlan applies skip_stages and stop_after to the registered order.
func (r *Runner) buildPlan(cfg *config.RunConfig) []stage.Stage {
	skip := make(map[string]bool, len(cfg.SkipStages))
	for _, name := range cfg.SkipStages {
		skip[name] = true
	}

	var plan []stage.Stage
	for _, st := range r.registry.Ordered() {
		if skip[st.Name()] {
			continue
		}
		plan = append(plan, st)
		if cfg.StopAfter != "" && st.Name() == cfg.StopAfter {
			break
		}
	}
	return plan
}

// invoke runs one stage with timing and panic capture.
func (r *Runner) invoke(ctx context.Context, st stage.Stage, sc *stage.Context) (res *stage.Result) {
	started := r.now()

	defer func() {
		if rec := recover(); rec != nil {
			serr := schema.NewErrorf(schema.ErrCodeStageExecution, "stage panicked: %v", rec).WithStage(st.Name())
			logging.LogWith(ctx, r.logger).ErrorContext(ctx, "stage panicked", slog.Any("panic", rec))
			res = &stage.Result{
				Stage:     st.Name(),
				Status:    schema.StageResultError,
				Error:     serr,
				StartedAt: started,
				Duration:  r.now().Sub(started),
			}
		}
	}()

	if !st.Validate(sc) {
		return &stage.Result{
			Stage:     st.Name(),
			Status:    schema.StageResultError,
			Error:     schema.NewError(schema.ErrCodeValidation, "stage context validation failed").WithStage(st.Name()),
			StartedAt: started,
			Duration:  r.now().Sub(started),
		}
	}

	res, err := st.Execute(ctx, sc)
	if err != nil {
		serr := schema.NewError(schema.ErrCodeStageExecution, err.Error()).WithStage(st.Name()).WithCause(err)
		return &stage.Result{
			Stage:     st.Name(),
			Status:    schema.StageResultError,
			Error:     serr,
			StartedAt: started,
			Duration:  r.now().Sub(started),
		}
	}
	if res.StartedAt.IsZero() {
		res.StartedAt = started
	}
	if res.Duration == 0 {
		res.Duration = r.now().Sub(started)
	}
	return res
}

// buildInput assembles a stage's input from prior outputs per the
// fixed mapping.
func buildInput(stageName string, sc *stage.Context) map[string]any {
	switch stageName {
	case stage.NameDataPreparation:
		return copyMap(sc.Output(stage.NameDataAcquisition))
	case stage.NameLeadScoring:
		return copyMap(sc.Output(stage.NameDataPreparation))
	case stage.NameInitialOutreach:
		in := copyMap(sc.Output(stage.NameDataPreparation))
		for k, v := range sc.Output(stage.NameLeadScoring) {
			in[k] = v
		}
		return in
	case stage.NameFollowUp:
		return copyMap(sc.Output(stage.NameInitialOutreach))
	default:
		return map[string]any{}
	}
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func aggregateStatus(results []*stage.Result) schema.ProcessStatus {
	for _, res := range results {
		if res.Status == schema.StageResultError || res.Status == schema.StageResultFail {
			return schema.ProcessStatusFailed
		}
	}
	return schema.ProcessStatusCompleted
}

// --- best-effort tracking writes ---

// beginOperation records the stage invocation before it runs. A store
// fault here is tracked, logged, and never aborts the run.
func (r *Runner) beginOperation(ctx context.Context, processID, stageName string, runtimeIndex, chainIndex int, input map[string]any) *store.Operation {
	inputJSON, _ := json.Marshal(input)
	op := &store.Operation{
		ID:              uuid.NewString(),
		ProcessID:       processID,
		StageName:       stageName,
		RuntimeIndex:    runtimeIndex,
		ChainIndex:      chainIndex,
		ExecutionStatus: schema.OperationStatusRunning,
		Input:           inputJSON,
	}
	if err := r.store.CreateOperation(ctx, op); err != nil {
		logging.LogWith(ctx, r.logger).WarnContext(ctx, "failed to record operation", slog.Any("error", err))
		return nil
	}
	return op
}

func (r *Runner) finishOperation(ctx context.Context, op *store.Operation, res *stage.Result) {
	if op == nil {
		return
	}
	status := schema.OperationStatusDone
	if res.Status == schema.StageResultError || res.Status == schema.StageResultFail {
		status = schema.OperationStatusFailed
	}
	output, _ := json.Marshal(res)
	if err := r.store.UpdateOperation(ctx, op.ID, store.OperationUpdate{
		ExecutionStatus: &status,
		Output:          output,
	}); err != nil {
		logging.LogWith(ctx, r.logger).WarnContext(ctx, "failed to update operation", slog.Any("error", err))
	}
}

func (r *Runner) advanceRuntimeIndex(ctx context.Context, processID string, index int) {
	if err := r.store.UpdateProcess(ctx, processID, store.ProcessUpdate{RuntimeIndex: &index}); err != nil {
		logging.LogWith(ctx, r.logger).WarnContext(ctx, "failed to advance runtime index", slog.Any("error", err))
	}
}

func (r *Runner) finishProcess(ctx context.Context, processID string, status schema.ProcessStatus) {
	if err := r.store.UpdateProcess(ctx, processID, store.ProcessUpdate{Status: &status}); err != nil {
		logging.LogWith(ctx, r.logger).WarnContext(ctx, "failed to finalize process status", slog.Any("error", err))
	}
}
